package models

import "time"

// PropertyImage represents an image associated with a property
type PropertyImage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PropertyID string    `gorm:"type:varchar(36);not null;index" json:"property_id"`
	URL        string    `gorm:"column:url;type:text;not null" json:"url"`
	Order      int       `gorm:"column:orden;not null;default:0" json:"orden"`
	IsPrimary  bool      `gorm:"column:es_principal;not null;default:false" json:"es_principal"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for PropertyImage
func (PropertyImage) TableName() string {
	return "property_images"
}
