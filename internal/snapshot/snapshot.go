package snapshot

import (
	"context"
	"errors"
	"fmt"
	"real-estate-catalog/internal/logging"
	"real-estate-catalog/internal/models"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service records a snapshot of every admin write and the changes it made
type Service struct {
	db  *gorm.DB
	log *logrus.Logger
}

// NewService creates a new snapshot service
func NewService(db *gorm.DB, log *logrus.Logger) *Service {
	return &Service{db: db, log: logging.OrDefault(log)}
}

// History is the audit trail of one property, newest first
type History struct {
	Snapshots []models.PropertySnapshot `json:"snapshots"`
	Changes   []models.PropertyChange   `json:"changes"`
}

// Record snapshots the property's commercial fields and stores the
// differences against the previous snapshot. The first snapshot of a
// property records a new_property change.
func (s *Service) Record(ctx context.Context, property *models.Property) error {
	now := time.Now().UTC()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last models.PropertySnapshot
		err := tx.Where("property_id = ?", property.ID).
			Order("snapshot_at DESC, id DESC").
			First(&last).Error

		var changes []models.PropertyChange
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			changes = []models.PropertyChange{{
				PropertyID: property.ID,
				ChangeType: models.ChangeTypeNew,
				NewValue:   strconv.FormatInt(property.Price, 10),
			}}
		case err != nil:
			return err
		default:
			changes = DetectChanges(&last, property)
		}

		snap := models.PropertySnapshot{
			PropertyID:   property.ID,
			SnapshotAt:   now,
			Price:        property.Price,
			Operation:    string(property.Operation),
			Type:         property.Type,
			Highlighted:  property.Highlighted,
			PrimaryImage: property.PrimaryImage,
			HasChanged:   len(changes) > 0,
		}
		if len(changes) > 0 {
			notes := make([]string, len(changes))
			for i, c := range changes {
				notes[i] = fmt.Sprintf("%s: %s -> %s", c.ChangeType, c.OldValue, c.NewValue)
			}
			snap.ChangeNote = strings.Join(notes, "; ")
		}
		if err := tx.Create(&snap).Error; err != nil {
			return err
		}

		if len(changes) == 0 {
			return nil
		}
		for i := range changes {
			changes[i].SnapshotID = snap.ID
			changes[i].DetectedAt = now
		}
		if err := tx.Create(&changes).Error; err != nil {
			return err
		}
		s.log.WithFields(logrus.Fields{
			"property_id": property.ID,
			"changes":     len(changes),
		}).Debug("Property changes recorded")
		return nil
	})
}

// DetectChanges compares a property with its previous snapshot
func DetectChanges(last *models.PropertySnapshot, property *models.Property) []models.PropertyChange {
	changes := []models.PropertyChange{}
	add := func(changeType, oldValue, newValue string, magnitude *float64) {
		changes = append(changes, models.PropertyChange{
			PropertyID:      property.ID,
			ChangeType:      changeType,
			OldValue:        oldValue,
			NewValue:        newValue,
			ChangeMagnitude: magnitude,
		})
	}

	if property.Price != last.Price {
		delta := float64(property.Price - last.Price)
		add(models.ChangeTypePrice, strconv.FormatInt(last.Price, 10), strconv.FormatInt(property.Price, 10), &delta)
	}
	if string(property.Operation) != last.Operation {
		add(models.ChangeTypeOperation, last.Operation, string(property.Operation), nil)
	}
	if property.Type != last.Type {
		add(models.ChangeTypeType, last.Type, property.Type, nil)
	}
	if property.Highlighted != last.Highlighted {
		add(models.ChangeTypeHighlighted, strconv.FormatBool(last.Highlighted), strconv.FormatBool(property.Highlighted), nil)
	}
	if property.PrimaryImage != last.PrimaryImage {
		add(models.ChangeTypeImage, last.PrimaryImage, property.PrimaryImage, nil)
	}
	return changes
}

// GetPropertyHistory returns snapshots and changes of a property, newest first
func (s *Service) GetPropertyHistory(ctx context.Context, propertyID string, limit int) (*History, error) {
	db := s.db.WithContext(ctx)

	h := &History{Snapshots: []models.PropertySnapshot{}, Changes: []models.PropertyChange{}}
	q := db.Where("property_id = ?", propertyID).Order("snapshot_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&h.Snapshots).Error; err != nil {
		return nil, err
	}

	cq := db.Where("property_id = ?", propertyID).Order("detected_at DESC, id DESC")
	if limit > 0 {
		cq = cq.Limit(limit)
	}
	if err := cq.Find(&h.Changes).Error; err != nil {
		return nil, err
	}
	return h, nil
}

// GetRecentPriceChanges returns the latest price changes across the catalog
func (s *Service) GetRecentPriceChanges(ctx context.Context, limit int) ([]models.PropertyChange, error) {
	var changes []models.PropertyChange
	q := s.db.WithContext(ctx).
		Where("change_type = ?", models.ChangeTypePrice).
		Order("detected_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&changes).Error; err != nil {
		return nil, err
	}
	return changes, nil
}
