// Package pipeline writes a property and its children (images, tag and
// amenity links) as one logical unit. By default the steps run one by one
// and a failed create is compensated by deleting the root row; with a
// TxFunc configured every step shares one datastore transaction.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"real-estate-catalog/internal/cache"
	"real-estate-catalog/internal/database"
	"real-estate-catalog/internal/logging"
	"real-estate-catalog/internal/metrics"
	"real-estate-catalog/internal/models"
	"real-estate-catalog/internal/slug"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrPropertyNotFound is returned by Update and Delete for unknown IDs
var ErrPropertyNotFound = errors.New("pipeline: property not found")

// Step names one stage of a write
type Step string

const (
	StepNeighborhood Step = "neighborhood"
	StepSlug         Step = "slug"
	StepProperty     Step = "property"
	StepImages       Step = "images"
	StepTags         Step = "tags"
	StepAmenities    Step = "amenities"
	StepDelete       Step = "delete"
)

// StepError reports which stage of a write failed
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Store is the write side of the datastore
type Store interface {
	GetPropertyByID(ctx context.Context, id string) (*models.Property, error)
	UpsertNeighborhood(ctx context.Context, n *models.Neighborhood) (uint, error)
	SlugTaken(ctx context.Context, slug, exceptID string) (bool, error)
	InsertProperty(ctx context.Context, p *models.Property) error
	UpdateProperty(ctx context.Context, p *models.Property) error
	DeleteProperty(ctx context.Context, id string) error
	InsertImages(ctx context.Context, images []models.PropertyImage) error
	DeleteImages(ctx context.Context, propertyID string) error
	UpsertTags(ctx context.Context, tags []models.Tag) ([]uint, error)
	UpsertAmenities(ctx context.Context, amenities []models.Amenity) ([]uint, error)
	TagLinks() database.LinkReplacer
	AmenityLinks() database.LinkReplacer
}

// TxFunc runs fn inside one datastore transaction
type TxFunc func(ctx context.Context, fn func(Store) error) error

// GormTx adapts GormDB transactions to a TxFunc
func GormTx(db *database.GormDB) TxFunc {
	return func(ctx context.Context, fn func(Store) error) error {
		return db.Transaction(ctx, func(tx *database.GormDB) error {
			return fn(tx)
		})
	}
}

// SearchQueue schedules search index updates
type SearchQueue interface {
	Enqueue(ctx context.Context, propertyID, action string) error
}

// HistoryRecorder snapshots a property after each write
type HistoryRecorder interface {
	Record(ctx context.Context, p *models.Property) error
}

// DeleteLogger audits physical deletes
type DeleteLogger interface {
	LogDeletion(ctx context.Context, p *models.Property, reason string) error
}

// Invalidator drops cached reads by tag
type Invalidator interface {
	InvalidateTag(ctx context.Context, tag string) error
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithTransactions makes every write one transaction instead of
// best-effort steps with compensation
func WithTransactions(tx TxFunc) Option {
	return func(p *Pipeline) { p.tx = tx }
}

func WithSearchQueue(q SearchQueue) Option {
	return func(p *Pipeline) { p.search = q }
}

func WithHistory(h HistoryRecorder) Option {
	return func(p *Pipeline) { p.history = h }
}

func WithDeleteLog(d DeleteLogger) Option {
	return func(p *Pipeline) { p.deletes = d }
}

func WithCache(c Invalidator) Option {
	return func(p *Pipeline) { p.cache = c }
}

// Pipeline runs admin writes
type Pipeline struct {
	store   Store
	tx      TxFunc
	search  SearchQueue
	history HistoryRecorder
	deletes DeleteLogger
	cache   Invalidator
	log     *logrus.Logger
}

// New creates a pipeline over store
func New(store Store, log *logrus.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{store: store, log: logging.OrDefault(log)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Create writes a new property with its images, tags and amenities.
// A failure after the root row exists removes that row again; if the
// removal fails too, the orphan is logged and the original error returned.
func (p *Pipeline) Create(ctx context.Context, in PropertyInput) (*models.Property, error) {
	prop, err := in.toProperty()
	if err != nil {
		return nil, err
	}
	prop.ID = uuid.NewString()
	prop.NeighborhoodID = p.upsertNeighborhood(ctx, in, prop.City)

	prop.Slug, err = p.uniqueSlug(ctx, prop.Title, "")
	if err != nil {
		return nil, &StepError{Step: StepSlug, Err: err}
	}

	images, primary := in.images(prop.ID)
	prop.PrimaryImage = primary

	logger := p.log.WithField("property_id", prop.ID)

	if p.tx != nil {
		err = p.tx(ctx, func(s Store) error {
			return p.writeCreate(ctx, s, &prop, images, in)
		})
		if err != nil {
			metrics.PipelineRollbacks.WithLabelValues(stepOf(err), "transaction").Inc()
			logger.WithError(err).Error("Create rolled back")
			return nil, err
		}
	} else if err = p.writeCreate(ctx, p.store, &prop, images, in); err != nil {
		p.compensate(ctx, &prop, err)
		return nil, err
	}

	prop.Gallery = images
	prop.Tags = labelNames(in.Tags)
	prop.Amenities = labelNames(in.Amenities)

	logger.WithField("slug", prop.Slug).Info("Property created")
	p.afterWrite(ctx, &prop, models.SyncActionIndex)
	return &prop, nil
}

func (p *Pipeline) writeCreate(ctx context.Context, s Store, prop *models.Property, images []models.PropertyImage, in PropertyInput) error {
	if err := s.InsertProperty(ctx, prop); err != nil {
		return &StepError{Step: StepProperty, Err: err}
	}
	if err := s.InsertImages(ctx, images); err != nil {
		return &StepError{Step: StepImages, Err: err}
	}
	if err := replaceTags(ctx, s, prop.ID, in); err != nil {
		return err
	}
	return replaceAmenities(ctx, s, prop.ID, in)
}

// compensate deletes the root row of a failed create. A failure of the
// property insert itself has nothing to remove.
func (p *Pipeline) compensate(ctx context.Context, prop *models.Property, cause error) {
	step := stepOf(cause)
	logger := p.log.WithError(cause).WithFields(logrus.Fields{
		"property_id": prop.ID,
		"step":        step,
	})
	if step == string(StepProperty) {
		logger.Error("Create failed")
		return
	}

	if err := p.store.DeleteProperty(ctx, prop.ID); err != nil && !errors.Is(err, database.ErrNotFound) {
		metrics.PipelineRollbacks.WithLabelValues(step, "failed").Inc()
		logger.WithField("orphan", true).WithField("rollback_error", err.Error()).
			Error("Rollback failed, property row left without its children")
		return
	}
	metrics.PipelineRollbacks.WithLabelValues(step, "ok").Inc()
	logger.Warn("Create rolled back")

	if p.deletes != nil {
		if err := p.deletes.LogDeletion(ctx, prop, models.DeleteReasonRollback); err != nil {
			p.softFailure("delete_log", prop.ID, err)
		}
	}
}

// Update overwrites a property and fully replaces its images and links.
// The slug is kept so published URLs stay valid.
func (p *Pipeline) Update(ctx context.Context, id string, in PropertyInput) (*models.Property, error) {
	existing, err := p.store.GetPropertyByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrPropertyNotFound
	}
	if err != nil {
		return nil, &StepError{Step: StepProperty, Err: err}
	}

	prop, err := in.toProperty()
	if err != nil {
		return nil, err
	}
	prop.ID = existing.ID
	prop.Slug = existing.Slug
	prop.CreatedAt = existing.CreatedAt
	prop.NeighborhoodID = p.upsertNeighborhood(ctx, in, prop.City)

	images, primary := in.images(prop.ID)
	prop.PrimaryImage = primary

	if p.tx != nil {
		err = p.tx(ctx, func(s Store) error {
			return p.writeUpdate(ctx, s, &prop, existing.PrimaryImage, images, in, true)
		})
	} else {
		err = p.writeUpdate(ctx, p.store, &prop, existing.PrimaryImage, images, in, false)
	}
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrPropertyNotFound
	}
	if err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{
			"property_id": id,
			"step":        stepOf(err),
		}).Error("Update failed")
		return nil, err
	}

	prop.Gallery = images
	prop.Tags = labelNames(in.Tags)
	prop.Amenities = labelNames(in.Amenities)

	p.log.WithField("property_id", id).Info("Property updated")
	p.afterWrite(ctx, &prop, models.SyncActionIndex)
	return &prop, nil
}

// writeUpdate runs the update steps. Outside a transaction, link failures
// are logged and do not fail the update, and a failed image rewrite puts
// imagen_principal back in line with the rows that are left.
func (p *Pipeline) writeUpdate(ctx context.Context, s Store, prop *models.Property, previousPrimary string, images []models.PropertyImage, in PropertyInput, strict bool) error {
	if err := s.UpdateProperty(ctx, prop); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return err
		}
		return &StepError{Step: StepProperty, Err: err}
	}

	if err := s.DeleteImages(ctx, prop.ID); err != nil {
		if !strict {
			p.resetPrimary(ctx, s, prop, previousPrimary)
		}
		return &StepError{Step: StepImages, Err: err}
	}
	if err := s.InsertImages(ctx, images); err != nil {
		if !strict {
			p.resetPrimary(ctx, s, prop, "")
		}
		return &StepError{Step: StepImages, Err: err}
	}

	for _, replace := range []func(context.Context, Store, string, PropertyInput) error{replaceTags, replaceAmenities} {
		if err := replace(ctx, s, prop.ID, in); err != nil {
			if strict {
				return err
			}
			p.softFailure(stepOf(err), prop.ID, err)
		}
	}
	return nil
}

// resetPrimary rewrites the root row after a failed image step
func (p *Pipeline) resetPrimary(ctx context.Context, s Store, prop *models.Property, primary string) {
	prop.PrimaryImage = primary
	if err := s.UpdateProperty(ctx, prop); err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{
			"property_id": prop.ID,
			"step":        string(StepImages),
		}).Error("Failed to reset primary image")
	}
}

// Delete removes a property; images and links cascade
func (p *Pipeline) Delete(ctx context.Context, id string) error {
	existing, err := p.store.GetPropertyByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return ErrPropertyNotFound
	}
	if err != nil {
		return &StepError{Step: StepDelete, Err: err}
	}

	if err := p.store.DeleteProperty(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrPropertyNotFound
		}
		return &StepError{Step: StepDelete, Err: err}
	}
	p.log.WithFields(logrus.Fields{"property_id": id, "slug": existing.Slug}).Info("Property deleted")

	if p.deletes != nil {
		if err := p.deletes.LogDeletion(ctx, existing, models.DeleteReasonManual); err != nil {
			p.softFailure("delete_log", id, err)
		}
	}
	p.enqueue(ctx, id, models.SyncActionDelete)
	p.invalidate(ctx)
	return nil
}

func (p *Pipeline) afterWrite(ctx context.Context, prop *models.Property, action string) {
	if p.history != nil {
		if err := p.history.Record(ctx, prop); err != nil {
			p.softFailure("history", prop.ID, err)
		}
	}
	p.enqueue(ctx, prop.ID, action)
	p.invalidate(ctx)
}

func (p *Pipeline) enqueue(ctx context.Context, id, action string) {
	if p.search == nil {
		return
	}
	if err := p.search.Enqueue(ctx, id, action); err != nil {
		p.softFailure("search_sync", id, err)
	}
}

func (p *Pipeline) invalidate(ctx context.Context) {
	if p.cache == nil {
		return
	}
	if err := p.cache.InvalidateTag(ctx, cache.TagCatalog); err != nil {
		p.softFailure("cache", "", err)
	}
}

// upsertNeighborhood is soft: a failure leaves the property without a barrio
func (p *Pipeline) upsertNeighborhood(ctx context.Context, in PropertyInput, city string) *uint {
	name := in.Neighborhood
	s := slug.Make(name)
	if s == "" {
		return nil
	}
	id, err := p.store.UpsertNeighborhood(ctx, &models.Neighborhood{Name: name, City: city, Slug: s})
	if err != nil {
		p.softFailure(string(StepNeighborhood), "", err)
		return nil
	}
	return &id
}

// uniqueSlug derives a slug from the title, suffixing -2, -3... on collision
func (p *Pipeline) uniqueSlug(ctx context.Context, title, exceptID string) (string, error) {
	base := slug.Make(title)
	if base == "" {
		base = "inmueble"
	}
	candidate := base
	for n := 2; n <= 100; n++ {
		taken, err := p.store.SlugTaken(ctx, candidate, exceptID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
	return fmt.Sprintf("%s-%s", base, uuid.NewString()[:8]), nil
}

func (p *Pipeline) softFailure(step, propertyID string, err error) {
	metrics.SoftFailures.WithLabelValues(step).Inc()
	entry := p.log.WithError(err).WithField("step", step)
	if propertyID != "" {
		entry = entry.WithField("property_id", propertyID)
	}
	entry.Warn("Soft dependency failed")
}

func replaceTags(ctx context.Context, s Store, propertyID string, in PropertyInput) error {
	ids, err := s.UpsertTags(ctx, in.tags())
	if err != nil {
		return &StepError{Step: StepTags, Err: err}
	}
	if err := s.TagLinks().ReplaceLinks(ctx, propertyID, ids); err != nil {
		return &StepError{Step: StepTags, Err: err}
	}
	return nil
}

func replaceAmenities(ctx context.Context, s Store, propertyID string, in PropertyInput) error {
	ids, err := s.UpsertAmenities(ctx, in.amenities())
	if err != nil {
		return &StepError{Step: StepAmenities, Err: err}
	}
	if err := s.AmenityLinks().ReplaceLinks(ctx, propertyID, ids); err != nil {
		return &StepError{Step: StepAmenities, Err: err}
	}
	return nil
}

func stepOf(err error) string {
	var se *StepError
	if errors.As(err, &se) {
		return string(se.Step)
	}
	return "unknown"
}

func labelNames(names []string) []string {
	ls := labels(names)
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.name
	}
	return out
}
