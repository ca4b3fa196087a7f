package models

import "time"

// PropertySnapshot records a property's commercial state after an admin edit
type PropertySnapshot struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PropertyID string    `gorm:"type:varchar(36);not null;index:idx_property_date" json:"property_id"`
	SnapshotAt time.Time `gorm:"not null;index:idx_property_date,priority:2;index:idx_snapshot_date" json:"snapshot_at"`

	// Estado del inmueble al momento del snapshot
	Price        int64  `gorm:"column:precio" json:"precio"`
	Operation    string `gorm:"column:operacion;type:varchar(20)" json:"operacion"`
	Type         string `gorm:"column:tipo;type:varchar(50)" json:"tipo"`
	Highlighted  bool   `gorm:"column:destacado" json:"destacado"`
	PrimaryImage string `gorm:"column:imagen_principal;type:text" json:"imagen_principal,omitempty"`

	HasChanged bool   `gorm:"default:false" json:"has_changed"`
	ChangeNote string `gorm:"type:text" json:"change_note,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`

	Property *Property `gorm:"foreignKey:PropertyID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name
func (PropertySnapshot) TableName() string {
	return "property_snapshots"
}

// PropertyChange represents a detected change between two snapshots
type PropertyChange struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PropertyID      string    `gorm:"type:varchar(36);not null;index" json:"property_id"`
	SnapshotID      uint      `gorm:"not null" json:"snapshot_id"`
	ChangeType      string    `gorm:"type:varchar(50);not null" json:"change_type"`
	OldValue        string    `gorm:"type:text" json:"old_value,omitempty"`
	NewValue        string    `gorm:"type:text" json:"new_value,omitempty"`
	ChangeMagnitude *float64  `gorm:"type:decimal(14,2)" json:"change_magnitude,omitempty"`
	DetectedAt      time.Time `gorm:"not null;autoCreateTime;index" json:"detected_at"`

	Property *Property `gorm:"foreignKey:PropertyID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name
func (PropertyChange) TableName() string {
	return "property_changes"
}

// ChangeType constants
const (
	ChangeTypePrice       = "price_changed"
	ChangeTypeOperation   = "operation_changed"
	ChangeTypeType        = "type_changed"
	ChangeTypeHighlighted = "highlighted_changed"
	ChangeTypeImage       = "image_changed"
	ChangeTypeNew         = "new_property"
)
