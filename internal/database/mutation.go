package database

import (
	"context"
	"real-estate-catalog/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LinkReplacer swaps the full set of label links of one property.
// The gorm implementations delete every link row and re-insert; an
// incremental diff can replace them without touching callers.
type LinkReplacer interface {
	ReplaceLinks(ctx context.Context, propertyID string, labelIDs []uint) error
}

// UpsertNeighborhood inserts or refreshes a neighborhood keyed by slug and
// returns its ID. Admin-managed fields (SEO, destacado, orden) are left alone
// on conflict.
func (gdb *GormDB) UpsertNeighborhood(ctx context.Context, n *models.Neighborhood) (uint, error) {
	db := gdb.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"nombre", "ciudad", "updated_at"}),
	}).Create(n).Error
	if err != nil {
		return 0, err
	}

	// The ID is not reliably returned on the update path (MySQL), re-read by slug
	var stored models.Neighborhood
	if err := db.Where("slug = ?", n.Slug).First(&stored).Error; err != nil {
		return 0, notFound(err)
	}
	n.ID = stored.ID
	return stored.ID, nil
}

// SlugTaken reports whether another property already uses slug
func (gdb *GormDB) SlugTaken(ctx context.Context, slug, exceptID string) (bool, error) {
	var count int64
	q := gdb.db.WithContext(ctx).Model(&models.Property{}).Where("slug = ?", slug)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

// InsertProperty inserts the property row only; children are written separately
func (gdb *GormDB) InsertProperty(ctx context.Context, p *models.Property) error {
	return gdb.db.WithContext(ctx).Omit(clause.Associations).Create(p).Error
}

// UpdateProperty overwrites every column of an existing property row
func (gdb *GormDB) UpdateProperty(ctx context.Context, p *models.Property) error {
	result := gdb.db.WithContext(ctx).Model(&models.Property{}).
		Where("id = ?", p.ID).
		Select("*").
		Omit("id", "created_at", "Gallery", "Neighborhood").
		Updates(p)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProperty deletes the root row. Images and link rows go with it
// through ON DELETE CASCADE.
func (gdb *GormDB) DeleteProperty(ctx context.Context, id string) error {
	result := gdb.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Property{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertImages bulk-inserts image rows
func (gdb *GormDB) InsertImages(ctx context.Context, images []models.PropertyImage) error {
	if len(images) == 0 {
		return nil
	}
	return gdb.db.WithContext(ctx).Create(&images).Error
}

// DeleteImages removes every image row of a property
func (gdb *GormDB) DeleteImages(ctx context.Context, propertyID string) error {
	return gdb.db.WithContext(ctx).Where("property_id = ?", propertyID).Delete(&models.PropertyImage{}).Error
}

// UpsertTags creates missing tags by slug and returns the IDs of all of them
func (gdb *GormDB) UpsertTags(ctx context.Context, tags []models.Tag) ([]uint, error) {
	slugs := make([]string, len(tags))
	for i, t := range tags {
		slugs[i] = t.Slug
	}
	return upsertBySlug(gdb.db.WithContext(ctx), tags, slugs)
}

// UpsertAmenities creates missing amenities by slug and returns the IDs of all of them
func (gdb *GormDB) UpsertAmenities(ctx context.Context, amenities []models.Amenity) ([]uint, error) {
	slugs := make([]string, len(amenities))
	for i, a := range amenities {
		slugs[i] = a.Slug
	}
	return upsertBySlug(gdb.db.WithContext(ctx), amenities, slugs)
}

func upsertBySlug[T any](db *gorm.DB, rows []T, slugs []string) ([]uint, error) {
	if len(rows) == 0 {
		return []uint{}, nil
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoNothing: true,
	}).Create(&rows).Error; err != nil {
		return nil, err
	}

	var zero T
	var ids []uint
	if err := db.Model(&zero).Where("slug IN ?", slugs).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// TagLinks returns the property_tags replacer
func (gdb *GormDB) TagLinks() LinkReplacer {
	return tagLinks{db: gdb.db}
}

// AmenityLinks returns the property_amenidades replacer
func (gdb *GormDB) AmenityLinks() LinkReplacer {
	return amenityLinks{db: gdb.db}
}

type tagLinks struct {
	db *gorm.DB
}

func (l tagLinks) ReplaceLinks(ctx context.Context, propertyID string, labelIDs []uint) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("property_id = ?", propertyID).Delete(&models.PropertyTag{}).Error; err != nil {
			return err
		}
		if len(labelIDs) == 0 {
			return nil
		}
		rows := make([]models.PropertyTag, len(labelIDs))
		for i, id := range labelIDs {
			rows[i] = models.PropertyTag{PropertyID: propertyID, TagID: id}
		}
		return tx.Omit(clause.Associations).Create(&rows).Error
	})
}

type amenityLinks struct {
	db *gorm.DB
}

func (l amenityLinks) ReplaceLinks(ctx context.Context, propertyID string, labelIDs []uint) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("property_id = ?", propertyID).Delete(&models.PropertyAmenity{}).Error; err != nil {
			return err
		}
		if len(labelIDs) == 0 {
			return nil
		}
		rows := make([]models.PropertyAmenity, len(labelIDs))
		for i, id := range labelIDs {
			rows[i] = models.PropertyAmenity{PropertyID: propertyID, AmenityID: id}
		}
		return tx.Omit(clause.Associations).Create(&rows).Error
	})
}
