package catalog

import (
	"errors"
	"math"
	"real-estate-catalog/internal/database/query"
	"real-estate-catalog/internal/models"
	"strconv"
	"strings"
)

// PageSize is fixed for every public listing
const PageSize = 12

// MaxPage bounds page numbers so the offset always fits in 32 bits
const MaxPage = math.MaxInt32 / PageSize

// Sort is the public ordering enum carried in the "orden" query parameter
type Sort string

const (
	SortRecent    Sort = "recientes"
	SortOldest    Sort = "antiguas"
	SortPriceAsc  Sort = "precio_asc"
	SortPriceDesc Sort = "precio_desc"
)

// ParseSort maps a query value to a Sort, defaulting to most recent
func ParseSort(s string) Sort {
	switch Sort(strings.ToLower(strings.TrimSpace(s))) {
	case SortOldest:
		return SortOldest
	case SortPriceAsc:
		return SortPriceAsc
	case SortPriceDesc:
		return SortPriceDesc
	}
	return SortRecent
}

// orderBy returns the ORDER BY clause; id breaks ties so pages never overlap
func (s Sort) orderBy() string {
	switch s {
	case SortOldest:
		return "created_at ASC, id ASC"
	case SortPriceAsc:
		return "precio ASC, id ASC"
	case SortPriceDesc:
		return "precio DESC, id DESC"
	}
	return "created_at DESC, id DESC"
}

// ParsePage reads a 1-based page number; anything unusable is page 1 and
// anything past MaxPage is MaxPage
func ParsePage(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if errors.Is(err, strconv.ErrRange) && n > 0 {
		return MaxPage
	}
	if err != nil || n < 1 {
		return 1
	}
	return min(n, MaxPage)
}

// Filter is the set of already-resolved listing dimensions. Tag and
// neighborhood are IDs, never slugs: membership is decided inside the
// predicate set so counts match pages.
type Filter struct {
	Operation       models.Operation `json:"operacion,omitempty"`
	City            string           `json:"ciudad,omitempty"`
	Type            string           `json:"tipo,omitempty"`
	TagID           uint             `json:"tag,omitempty"`
	NeighborhoodID  uint             `json:"barrio,omitempty"`
	MinRooms        int              `json:"habitaciones,omitempty"`
	HighlightedOnly bool             `json:"destacado,omitempty"`
	Sort            Sort             `json:"orden"`
	Page            int              `json:"page"`
}

// normalized fills defaults so equal filters produce equal cache keys
func (f Filter) normalized() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Page > MaxPage {
		f.Page = MaxPage
	}
	if f.Sort == "" {
		f.Sort = SortRecent
	}
	if f.MinRooms < 0 {
		f.MinRooms = 0
	}
	return f
}

// Compile turns a filter into a bounded query plan: one equality predicate
// per present dimension, ">=" for rooms, a fixed ORDER BY and the
// (page-1)*12 offset.
func Compile(f Filter) query.Plan {
	f = f.normalized()
	wb := query.NewWhereBuilder()

	if f.Operation != "" {
		wb.AddEquals("operacion", string(f.Operation))
	}
	if f.City != "" {
		wb.AddEquals("ciudad", f.City)
	}
	if f.Type != "" {
		wb.AddEquals("tipo", f.Type)
	}
	if f.TagID != 0 {
		wb.AddClause("id IN (SELECT property_id FROM property_tags WHERE tag_id = ?)", f.TagID)
	}
	if f.NeighborhoodID != 0 {
		wb.AddEquals("barrio_id", f.NeighborhoodID)
	}
	if f.MinRooms > 0 {
		wb.AddMin("habitaciones", f.MinRooms)
	}
	if f.HighlightedOnly {
		wb.AddEquals("destacado", true)
	}

	return query.NewPlan(wb, f.Sort.orderBy(), (f.Page-1)*PageSize, PageSize)
}
