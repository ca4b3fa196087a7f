package models

import "time"

type Property struct {
	// Identidad
	ID   string `gorm:"type:varchar(36);primaryKey" json:"id"`
	Slug string `gorm:"type:varchar(255);not null;uniqueIndex" json:"slug"`

	// Comercial
	Price      int64     `gorm:"column:precio;not null;index" json:"precio"`
	Operation  Operation `gorm:"column:operacion;type:varchar(20);not null;index" json:"operacion"`
	Negotiable bool      `gorm:"column:negociable;not null;default:false" json:"negociable"`

	// Clasificación
	Type  string `gorm:"column:tipo;type:varchar(50);not null;index" json:"tipo"`
	Usage string `gorm:"column:uso;type:varchar(50)" json:"uso,omitempty"`

	// Ubicación
	City           string `gorm:"column:ciudad;type:varchar(100);not null;index" json:"ciudad"`
	NeighborhoodID *uint  `gorm:"column:barrio_id;index" json:"barrio_id,omitempty"`
	Address        string `gorm:"column:direccion;type:varchar(255)" json:"direccion,omitempty"`

	// Características físicas
	Rooms     int     `gorm:"column:habitaciones;not null;default:0;index" json:"habitaciones"`
	Bathrooms int     `gorm:"column:banos;not null;default:0" json:"banos"`
	Area      float64 `gorm:"column:area_m2;type:decimal(10,2)" json:"area_m2"`
	LotFront  float64 `gorm:"column:frente;type:decimal(10,2)" json:"frente,omitempty"`
	LotDepth  float64 `gorm:"column:fondo;type:decimal(10,2)" json:"fondo,omitempty"`

	// Marketing
	Title            string `gorm:"column:titulo;type:varchar(255);not null" json:"titulo"`
	Description      string `gorm:"column:descripcion;type:text" json:"descripcion,omitempty"`
	ShortDescription string `gorm:"column:descripcion_corta;type:text" json:"descripcion_corta,omitempty"`
	SEOTitle         string `gorm:"column:seo_titulo;type:varchar(255)" json:"seo_titulo,omitempty"`
	SEODescription   string `gorm:"column:seo_descripcion;type:text" json:"seo_descripcion,omitempty"`
	CanonicalURL     string `gorm:"column:url_canonica;type:varchar(500)" json:"url_canonica,omitempty"`
	Highlighted      bool   `gorm:"column:destacado;not null;default:false;index" json:"destacado"`

	AgentID      *string `gorm:"column:agente_id;type:varchar(36)" json:"agente_id,omitempty"`
	PrimaryImage string  `gorm:"column:imagen_principal;type:text" json:"imagen_principal"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`

	// Relationships are declared for constraint migration only; they are never preloaded.
	// Gallery is filled by the batched image join.
	Gallery      []PropertyImage `gorm:"foreignKey:PropertyID;references:ID;constraint:OnDelete:CASCADE" json:"galeria"`
	Neighborhood *Neighborhood   `gorm:"foreignKey:NeighborhoodID;references:ID;constraint:OnDelete:SET NULL" json:"barrio,omitempty"`
	Tags         []string        `gorm:"-" json:"etiquetas,omitempty"`
	Amenities    []string        `gorm:"-" json:"amenidades,omitempty"`
}

// Operation is the sale/lease axis of a listing
type Operation string

const (
	OperationSale  Operation = "venta"
	OperationLease Operation = "arriendo"
)

// Valid reports whether o is a known operation
func (o Operation) Valid() bool {
	return o == OperationSale || o == OperationLease
}

// ParseOperation accepts the URL form of an operation ("venta", "arriendo")
// and the English aliases used by the admin API.
func ParseOperation(s string) (Operation, bool) {
	switch s {
	case "venta", "sale":
		return OperationSale, true
	case "arriendo", "lease", "renta":
		return OperationLease, true
	}
	return "", false
}

// TableName specifies the table name
func (Property) TableName() string {
	return "properties"
}
