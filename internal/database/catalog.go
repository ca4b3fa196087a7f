package database

import (
	"context"
	"real-estate-catalog/internal/database/query"
	"real-estate-catalog/internal/models"

	"gorm.io/gorm"
)

// FindPage runs a listing plan: one count and one page fetch over the same
// predicate set. The page fetch is skipped when the offset is negative or
// past the end.
func (gdb *GormDB) FindPage(ctx context.Context, plan query.Plan) ([]models.Property, int64, error) {
	base := gdb.db.WithContext(ctx).Model(&models.Property{}).Where(plan.Where, plan.Args...).Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	properties := []models.Property{}
	if total == 0 || plan.Offset < 0 || int64(plan.Offset) >= total {
		return properties, total, nil
	}

	q := base.Order(plan.OrderBy).Offset(plan.Offset)
	if plan.Limit > 0 {
		q = q.Limit(plan.Limit)
	}
	if err := q.Find(&properties).Error; err != nil {
		return nil, 0, err
	}
	return properties, total, nil
}

// FindProperties runs a plan without counting
func (gdb *GormDB) FindProperties(ctx context.Context, plan query.Plan) ([]models.Property, error) {
	q := gdb.db.WithContext(ctx).Where(plan.Where, plan.Args...)
	if plan.OrderBy != "" {
		q = q.Order(plan.OrderBy)
	}
	if plan.Offset > 0 {
		q = q.Offset(plan.Offset)
	}
	if plan.Limit > 0 {
		q = q.Limit(plan.Limit)
	}

	properties := []models.Property{}
	err := q.Find(&properties).Error
	return properties, err
}

// GetPropertyByID retrieves a property by ID
func (gdb *GormDB) GetPropertyByID(ctx context.Context, id string) (*models.Property, error) {
	var property models.Property
	if err := gdb.db.WithContext(ctx).Where("id = ?", id).First(&property).Error; err != nil {
		return nil, notFound(err)
	}
	return &property, nil
}

// GetPropertyBySlug retrieves a property by its public slug
func (gdb *GormDB) GetPropertyBySlug(ctx context.Context, slug string) (*models.Property, error) {
	var property models.Property
	if err := gdb.db.WithContext(ctx).Where("slug = ?", slug).First(&property).Error; err != nil {
		return nil, notFound(err)
	}
	return &property, nil
}

// GetPropertiesByIDs fetches properties in no particular order
func (gdb *GormDB) GetPropertiesByIDs(ctx context.Context, ids []string) ([]models.Property, error) {
	properties := []models.Property{}
	if len(ids) == 0 {
		return properties, nil
	}
	err := gdb.db.WithContext(ctx).Where("id IN ?", ids).Find(&properties).Error
	return properties, err
}

// ImagesFor fetches every image row of the given properties in one query
func (gdb *GormDB) ImagesFor(ctx context.Context, propertyIDs []string) ([]models.PropertyImage, error) {
	var images []models.PropertyImage
	err := gdb.db.WithContext(ctx).
		Where("property_id IN ?", propertyIDs).
		Order("property_id, orden, id").
		Find(&images).Error
	return images, err
}

// LabelsFor returns the tag and amenity names linked to a property
func (gdb *GormDB) LabelsFor(ctx context.Context, propertyID string) ([]string, []string, error) {
	db := gdb.db.WithContext(ctx)

	var tags []string
	if err := db.Table("tags").
		Joins("JOIN property_tags ON property_tags.tag_id = tags.id").
		Where("property_tags.property_id = ?", propertyID).
		Order("tags.nombre").
		Pluck("tags.nombre", &tags).Error; err != nil {
		return nil, nil, err
	}

	var amenities []string
	if err := db.Table("amenidades").
		Joins("JOIN property_amenidades ON property_amenidades.amenidad_id = amenidades.id").
		Where("property_amenidades.property_id = ?", propertyID).
		Order("amenidades.nombre").
		Pluck("amenidades.nombre", &amenities).Error; err != nil {
		return nil, nil, err
	}

	return tags, amenities, nil
}

// FindTagBySlug looks up a tag by slug
func (gdb *GormDB) FindTagBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	var tag models.Tag
	if err := gdb.db.WithContext(ctx).Where("slug = ?", slug).First(&tag).Error; err != nil {
		return nil, notFound(err)
	}
	return &tag, nil
}

// FindNeighborhoodBySlug looks up a neighborhood by slug
func (gdb *GormDB) FindNeighborhoodBySlug(ctx context.Context, slug string) (*models.Neighborhood, error) {
	var n models.Neighborhood
	if err := gdb.db.WithContext(ctx).Where("slug = ?", slug).First(&n).Error; err != nil {
		return nil, notFound(err)
	}
	return &n, nil
}

// GetNeighborhood looks up a neighborhood by ID
func (gdb *GormDB) GetNeighborhood(ctx context.Context, id uint) (*models.Neighborhood, error) {
	var n models.Neighborhood
	if err := gdb.db.WithContext(ctx).First(&n, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &n, nil
}

// ListNeighborhoods returns all neighborhoods, featured and manually ordered first
func (gdb *GormDB) ListNeighborhoods(ctx context.Context) ([]models.Neighborhood, error) {
	var out []models.Neighborhood
	err := gdb.db.WithContext(ctx).
		Order("destacado DESC, orden ASC, nombre ASC").
		Find(&out).Error
	return out, err
}

// CountRow is one bucket of a grouped count
type CountRow struct {
	Key   string `gorm:"column:bucket" json:"key"`
	Count int64  `gorm:"column:total" json:"count"`
}

// Stats is the admin dashboard summary
type Stats struct {
	TotalProperties int64      `json:"total_properties"`
	Highlighted     int64      `json:"destacados"`
	ByOperation     []CountRow `json:"por_operacion"`
	ByType          []CountRow `json:"por_tipo"`
	ByCity          []CountRow `json:"por_ciudad"`
	LeadsByStatus   []CountRow `json:"leads_por_estado"`
}

// GetStats aggregates catalog and lead counts
func (gdb *GormDB) GetStats(ctx context.Context) (*Stats, error) {
	db := gdb.db.WithContext(ctx)
	stats := &Stats{}

	if err := db.Model(&models.Property{}).Count(&stats.TotalProperties).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Property{}).Where("destacado = ?", true).Count(&stats.Highlighted).Error; err != nil {
		return nil, err
	}

	groups := []struct {
		model  interface{}
		column string
		dest   *[]CountRow
	}{
		{&models.Property{}, "operacion", &stats.ByOperation},
		{&models.Property{}, "tipo", &stats.ByType},
		{&models.Property{}, "ciudad", &stats.ByCity},
		{&models.Lead{}, "estado", &stats.LeadsByStatus},
	}
	for _, g := range groups {
		if err := db.Model(g.model).
			Select(g.column + " AS bucket, COUNT(*) AS total").
			Group(g.column).
			Order("total DESC").
			Scan(g.dest).Error; err != nil {
			return nil, err
		}
	}

	return stats, nil
}
