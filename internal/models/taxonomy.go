package models

import "time"

// Neighborhood is a shared reference entity keyed by slug (barrio)
type Neighborhood struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name           string    `gorm:"column:nombre;type:varchar(150);not null" json:"nombre"`
	City           string    `gorm:"column:ciudad;type:varchar(100);not null;index" json:"ciudad"`
	Slug           string    `gorm:"type:varchar(150);not null;uniqueIndex" json:"slug"`
	SEOTitle       string    `gorm:"column:seo_titulo;type:varchar(255)" json:"seo_titulo,omitempty"`
	SEODescription string    `gorm:"column:seo_descripcion;type:text" json:"seo_descripcion,omitempty"`
	Featured       bool      `gorm:"column:destacado;not null;default:false" json:"destacado"`
	DisplayOrder   int       `gorm:"column:orden;not null;default:0" json:"orden"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Neighborhood) TableName() string {
	return "barrios"
}

// Tag is a shared marketing label ("con piscina", "para estrenar")
type Tag struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"column:nombre;type:varchar(100);not null" json:"nombre"`
	Slug      string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"slug"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Tag) TableName() string {
	return "tags"
}

// Amenity is a shared amenity/service label ("parqueadero", "gimnasio")
type Amenity struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"column:nombre;type:varchar(100);not null" json:"nombre"`
	Slug      string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"slug"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Amenity) TableName() string {
	return "amenidades"
}

// PropertyTag is the property ↔ tag join row
type PropertyTag struct {
	PropertyID string `gorm:"type:varchar(36);primaryKey" json:"property_id"`
	TagID      uint   `gorm:"primaryKey;index" json:"tag_id"`

	Property *Property `gorm:"foreignKey:PropertyID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
	Tag      *Tag      `gorm:"foreignKey:TagID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (PropertyTag) TableName() string {
	return "property_tags"
}

// PropertyAmenity is the property ↔ amenity join row
type PropertyAmenity struct {
	PropertyID string `gorm:"type:varchar(36);primaryKey" json:"property_id"`
	AmenityID  uint   `gorm:"column:amenidad_id;primaryKey;index" json:"amenidad_id"`

	Property *Property `gorm:"foreignKey:PropertyID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
	Amenity  *Amenity  `gorm:"foreignKey:AmenityID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (PropertyAmenity) TableName() string {
	return "property_amenidades"
}
