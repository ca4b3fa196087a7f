package models

import "time"

// PropertyView is an append-only, anonymized visit event. It is only ever
// read back in aggregate.
type PropertyView struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PropertyID string    `gorm:"type:varchar(36);not null;index:idx_views_property_time,priority:1" json:"property_id"`
	IPHash     string    `gorm:"column:ip_hash;type:varchar(64);not null" json:"-"`
	SessionID  *string   `gorm:"column:session_id;type:varchar(64)" json:"-"`
	ViewedAt   time.Time `gorm:"column:viewed_at;not null;index;index:idx_views_property_time,priority:2" json:"viewed_at"`

	Property *Property `gorm:"foreignKey:PropertyID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (PropertyView) TableName() string {
	return "property_views"
}

// LeadType distinguishes buyer inquiries from owners who want to list
type LeadType string

// LeadStatus is only mutated by the admin operator
type LeadStatus string

const (
	LeadTypeBuyer LeadType = "comprador"
	LeadTypeOwner LeadType = "propietario"

	LeadStatusNew       LeadStatus = "nuevo"
	LeadStatusContacted LeadStatus = "contactado"
	LeadStatusClosed    LeadStatus = "cerrado"
)

// Valid reports whether t is a known lead type
func (t LeadType) Valid() bool {
	return t == LeadTypeBuyer || t == LeadTypeOwner
}

// Valid reports whether s is a known lead status
func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusClosed:
		return true
	}
	return false
}

// Lead is a contact-intent record captured from public pages
type Lead struct {
	ID         uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string     `gorm:"column:nombre;type:varchar(150);not null" json:"nombre"`
	Phone      string     `gorm:"column:telefono;type:varchar(30);not null" json:"telefono"`
	Message    string     `gorm:"column:mensaje;type:text" json:"mensaje,omitempty"`
	PropertyID *string    `gorm:"type:varchar(36);index" json:"property_id,omitempty"`
	Type       LeadType   `gorm:"column:tipo;type:varchar(20);not null" json:"tipo"`
	Status     LeadStatus `gorm:"column:estado;type:varchar(20);not null;default:'nuevo';index" json:"estado"`
	CreatedAt  time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Property *Property `gorm:"foreignKey:PropertyID;references:ID;constraint:OnDelete:SET NULL" json:"-"`
}

func (Lead) TableName() string {
	return "leads"
}
