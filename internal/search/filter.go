package search

import (
	"fmt"
	"real-estate-catalog/internal/models"
	"real-estate-catalog/internal/slug"
	"strings"
)

// Filters narrows a free-text search. Zero values are ignored.
type Filters struct {
	Operation models.Operation
	City      string
	Type      string
	MinPrice  int64
	MaxPrice  int64
	MinRooms  int
	Sort      string // precio_asc, precio_desc, recientes
}

// Expression renders the filters as a Meilisearch filter expression
func (f Filters) Expression() string {
	var filters []string

	if f.Operation != "" {
		filters = append(filters, fmt.Sprintf("operacion = %s", quote(string(f.Operation))))
	}
	if city, ok := slug.NormalizeCity(f.City); ok {
		filters = append(filters, fmt.Sprintf("ciudad = %s", quote(city)))
	}
	if typ, ok := slug.NormalizeType(f.Type); ok {
		filters = append(filters, fmt.Sprintf("tipo = %s", quote(typ)))
	}
	if f.MinPrice > 0 {
		filters = append(filters, fmt.Sprintf("precio >= %d", f.MinPrice))
	}
	if f.MaxPrice > 0 {
		filters = append(filters, fmt.Sprintf("precio <= %d", f.MaxPrice))
	}
	if f.MinRooms > 0 {
		filters = append(filters, fmt.Sprintf("habitaciones >= %d", f.MinRooms))
	}

	return strings.Join(filters, " AND ")
}

// SortRule maps the public sort names onto sortable attributes.
// An empty rule keeps relevance order.
func (f Filters) SortRule() string {
	switch f.Sort {
	case "precio_asc":
		return "precio:asc"
	case "precio_desc":
		return "precio:desc"
	case "recientes":
		return "created_at:desc"
	case "antiguas":
		return "created_at:asc"
	}
	return ""
}

func quote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
}
