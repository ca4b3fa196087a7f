package pipeline

import (
	"errors"
	"fmt"
	"real-estate-catalog/internal/catalog"
	"real-estate-catalog/internal/models"
	"real-estate-catalog/internal/slug"
	"strings"
)

// ErrInvalidInput is returned for values the catalog cannot place
// (unknown city, type or operation)
var ErrInvalidInput = errors.New("pipeline: invalid input")

// ImageInput is one gallery image in display order
type ImageInput struct {
	URL       string `json:"url" validate:"required,url"`
	IsPrimary bool   `json:"es_principal"`
}

// PropertyInput is the admin payload for create and update
type PropertyInput struct {
	Title            string       `json:"titulo" validate:"required,max=255"`
	Price            int64        `json:"precio" validate:"gte=0"`
	Operation        string       `json:"operacion" validate:"required,oneof=venta arriendo sale lease"`
	Negotiable       bool         `json:"negociable"`
	Type             string       `json:"tipo" validate:"required,tipo"`
	Usage            string       `json:"uso" validate:"max=50"`
	City             string       `json:"ciudad" validate:"required,ciudad"`
	Neighborhood     string       `json:"barrio" validate:"max=150"`
	Address          string       `json:"direccion" validate:"max=255"`
	Rooms            int          `json:"habitaciones" validate:"gte=0,lte=50"`
	Bathrooms        int          `json:"banos" validate:"gte=0,lte=50"`
	Area             float64      `json:"area_m2" validate:"gte=0"`
	LotFront         float64      `json:"frente" validate:"gte=0"`
	LotDepth         float64      `json:"fondo" validate:"gte=0"`
	Description      string       `json:"descripcion"`
	ShortDescription string       `json:"descripcion_corta" validate:"max=500"`
	SEOTitle         string       `json:"seo_titulo" validate:"max=255"`
	SEODescription   string       `json:"seo_descripcion"`
	CanonicalURL     string       `json:"url_canonica" validate:"omitempty,url"`
	Highlighted      bool         `json:"destacado"`
	AgentID          *string      `json:"agente_id" validate:"omitempty,uuid"`
	Images           []ImageInput `json:"imagenes" validate:"dive"`
	Tags             []string     `json:"etiquetas" validate:"dive,required,max=100"`
	Amenities        []string     `json:"amenidades" validate:"dive,required,max=100"`
}

// toProperty maps the input onto a property row. City and type are stored
// in canonical slug form.
func (in PropertyInput) toProperty() (models.Property, error) {
	op, ok := models.ParseOperation(strings.ToLower(strings.TrimSpace(in.Operation)))
	if !ok {
		return models.Property{}, fmt.Errorf("%w: operacion %q", ErrInvalidInput, in.Operation)
	}
	city, ok := slug.NormalizeCity(in.City)
	if !ok {
		return models.Property{}, fmt.Errorf("%w: ciudad %q", ErrInvalidInput, in.City)
	}
	typ, ok := slug.NormalizeType(in.Type)
	if !ok {
		return models.Property{}, fmt.Errorf("%w: tipo %q", ErrInvalidInput, in.Type)
	}

	p := models.Property{
		Price:            in.Price,
		Operation:        op,
		Negotiable:       in.Negotiable,
		Type:             typ,
		Usage:            in.Usage,
		City:             city,
		Address:          in.Address,
		Rooms:            in.Rooms,
		Bathrooms:        in.Bathrooms,
		Area:             in.Area,
		LotFront:         in.LotFront,
		LotDepth:         in.LotDepth,
		Title:            strings.TrimSpace(in.Title),
		Description:      in.Description,
		ShortDescription: in.ShortDescription,
		SEOTitle:         in.SEOTitle,
		SEODescription:   in.SEODescription,
		CanonicalURL:     in.CanonicalURL,
		Highlighted:      in.Highlighted,
		AgentID:          in.AgentID,
	}
	return p, nil
}

// images builds ordered image rows and the primary image URL for them
func (in PropertyInput) images(propertyID string) ([]models.PropertyImage, string) {
	rows := make([]models.PropertyImage, len(in.Images))
	for i, img := range in.Images {
		rows[i] = models.PropertyImage{
			PropertyID: propertyID,
			URL:        img.URL,
			Order:      i,
			IsPrimary:  img.IsPrimary,
		}
	}
	return rows, catalog.PrimaryImage(rows)
}

// tags dedupes tag names by slug, keeping the first spelling
func (in PropertyInput) tags() []models.Tag {
	var out []models.Tag
	for _, l := range labels(in.Tags) {
		out = append(out, models.Tag{Name: l.name, Slug: l.slug})
	}
	return out
}

func (in PropertyInput) amenities() []models.Amenity {
	var out []models.Amenity
	for _, l := range labels(in.Amenities) {
		out = append(out, models.Amenity{Name: l.name, Slug: l.slug})
	}
	return out
}

type label struct{ name, slug string }

// labels returns (name, slug) pairs in input order, unique by slug
func labels(names []string) []label {
	seen := make(map[string]bool, len(names))
	var out []label
	for _, n := range names {
		n = strings.TrimSpace(n)
		s := slug.Make(n)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, label{n, s})
	}
	return out
}
