// Package leads stores contact requests captured on public pages and lets
// the operator track them.
package leads

import (
	"context"
	"errors"
	"fmt"
	"real-estate-catalog/internal/logging"
	"real-estate-catalog/internal/metrics"
	"real-estate-catalog/internal/models"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	// ErrLeadNotFound is returned by UpdateStatus for unknown IDs
	ErrLeadNotFound = errors.New("leads: lead not found")
	// ErrInvalidStatus is returned for statuses outside nuevo/contactado/cerrado
	ErrInvalidStatus = errors.New("leads: invalid status")
	// ErrUnknownProperty is returned when a lead references a missing property
	ErrUnknownProperty = errors.New("leads: unknown property")
)

const defaultPageSize = 20

// Input is the public lead form
type Input struct {
	Name       string  `json:"nombre" validate:"required,max=150"`
	Phone      string  `json:"telefono" validate:"required,telefono"`
	Message    string  `json:"mensaje" validate:"max=2000"`
	PropertyID *string `json:"property_id" validate:"omitempty,uuid"`
	Type       string  `json:"tipo" validate:"required,oneof=comprador propietario"`
}

// ListFilter selects leads for the admin list
type ListFilter struct {
	Status   models.LeadStatus
	Page     int
	PageSize int
}

// ListResult is one page of leads
type ListResult struct {
	Items      []models.Lead `json:"items"`
	TotalCount int64         `json:"total_count"`
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
}

// Service manages leads
type Service struct {
	db  *gorm.DB
	log *logrus.Logger
}

// NewService creates a new lead service
func NewService(db *gorm.DB, log *logrus.Logger) *Service {
	return &Service{db: db, log: logging.OrDefault(log)}
}

// Create stores a new lead with status nuevo
func (s *Service) Create(ctx context.Context, in Input) (*models.Lead, error) {
	typ := models.LeadType(in.Type)
	if !typ.Valid() {
		return nil, fmt.Errorf("leads: invalid type %q", in.Type)
	}

	lead := models.Lead{
		Name:    strings.TrimSpace(in.Name),
		Phone:   strings.TrimSpace(in.Phone),
		Message: strings.TrimSpace(in.Message),
		Type:    typ,
		Status:  models.LeadStatusNew,
	}

	db := s.db.WithContext(ctx)
	if in.PropertyID != nil && *in.PropertyID != "" {
		var n int64
		if err := db.Model(&models.Property{}).Where("id = ?", *in.PropertyID).Count(&n).Error; err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrUnknownProperty
		}
		lead.PropertyID = in.PropertyID
	}

	if err := db.Create(&lead).Error; err != nil {
		s.log.WithError(err).Error("Failed to store lead")
		return nil, err
	}

	metrics.LeadsCreated.WithLabelValues(string(typ)).Inc()
	s.log.WithFields(logrus.Fields{"lead_id": lead.ID, "tipo": typ}).Info("Lead captured")
	return &lead, nil
}

// UpdateStatus moves a lead to another status
func (s *Service) UpdateStatus(ctx context.Context, id uint, status models.LeadStatus) (*models.Lead, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	db := s.db.WithContext(ctx)
	var lead models.Lead
	if err := db.First(&lead, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLeadNotFound
		}
		return nil, err
	}

	if err := db.Model(&lead).Update("estado", status).Error; err != nil {
		return nil, err
	}
	lead.Status = status
	s.log.WithFields(logrus.Fields{"lead_id": id, "estado": status}).Info("Lead status updated")
	return &lead, nil
}

// List returns leads newest first, optionally filtered by status
func (s *Service) List(ctx context.Context, f ListFilter) (*ListResult, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 || f.PageSize > 100 {
		f.PageSize = defaultPageSize
	}

	q := s.db.WithContext(ctx).Model(&models.Lead{})
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, ErrInvalidStatus
		}
		q = q.Where("estado = ?", f.Status)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	items := []models.Lead{}
	if err := q.Order("created_at DESC, id DESC").
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Find(&items).Error; err != nil {
		return nil, err
	}

	return &ListResult{
		Items:      items,
		TotalCount: total,
		Page:       f.Page,
		TotalPages: int((total + int64(f.PageSize) - 1) / int64(f.PageSize)),
	}, nil
}
