package pipeline

import (
	"context"
	"errors"
	"real-estate-catalog/internal/cache"
	"real-estate-catalog/internal/database"
	"real-estate-catalog/internal/models"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *database.GormDB {
	t.Helper()
	db, err := database.NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleInput() PropertyInput {
	return PropertyInput{
		Title:        "Casa Bonita en Caobos",
		Price:        420_000_000,
		Operation:    "venta",
		Type:         "Casas",
		City:         "Cúcuta",
		Neighborhood: "Los Caobos",
		Rooms:        3,
		Bathrooms:    2,
		Images: []ImageInput{
			{URL: "https://cdn.example.com/1.jpg"},
			{URL: "https://cdn.example.com/2.jpg", IsPrimary: true},
		},
		Tags:      []string{"Con piscina", "con  piscina", "Para estrenar"},
		Amenities: []string{"Parqueadero"},
	}
}

func countRows(t *testing.T, db *database.GormDB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.DB().Model(model).Count(&n).Error)
	return n
}

// recorder implements every soft dependency and remembers the calls
type recorder struct {
	enqueued    []string
	recorded    []string
	deleted     []string
	invalidated []string
	historyErr  error
}

func (r *recorder) Enqueue(_ context.Context, id, action string) error {
	r.enqueued = append(r.enqueued, action+":"+id)
	return nil
}

func (r *recorder) Record(_ context.Context, p *models.Property) error {
	r.recorded = append(r.recorded, p.ID)
	return r.historyErr
}

func (r *recorder) LogDeletion(_ context.Context, p *models.Property, reason string) error {
	r.deleted = append(r.deleted, reason+":"+p.ID)
	return nil
}

func (r *recorder) InvalidateTag(_ context.Context, tag string) error {
	r.invalidated = append(r.invalidated, tag)
	return nil
}

func withRecorder(r *recorder) []Option {
	return []Option{WithSearchQueue(r), WithHistory(r), WithDeleteLog(r), WithCache(r)}
}

func TestCreate_WritesEveryChild(t *testing.T) {
	db := newTestDB(t)
	rec := &recorder{}
	p := New(db, logrus.New(), withRecorder(rec)...)
	ctx := context.Background()

	prop, err := p.Create(ctx, sampleInput())
	require.NoError(t, err)

	assert.Equal(t, "casa-bonita-en-caobos", prop.Slug)
	assert.Equal(t, "cucuta", prop.City)
	assert.Equal(t, "casa", prop.Type)
	assert.Equal(t, models.OperationSale, prop.Operation)
	assert.Equal(t, "https://cdn.example.com/2.jpg", prop.PrimaryImage)
	require.NotNil(t, prop.NeighborhoodID)
	assert.Equal(t, []string{"Con piscina", "Para estrenar"}, prop.Tags)

	stored, err := db.GetPropertyBySlug(ctx, prop.Slug)
	require.NoError(t, err)
	assert.Equal(t, prop.PrimaryImage, stored.PrimaryImage)

	assert.Equal(t, int64(2), countRows(t, db, &models.PropertyImage{}))
	assert.Equal(t, int64(2), countRows(t, db, &models.PropertyTag{}))
	assert.Equal(t, int64(1), countRows(t, db, &models.PropertyAmenity{}))

	n, err := db.FindNeighborhoodBySlug(ctx, "los-caobos")
	require.NoError(t, err)
	assert.Equal(t, *prop.NeighborhoodID, n.ID)

	assert.Equal(t, []string{"index:" + prop.ID}, rec.enqueued)
	assert.Equal(t, []string{prop.ID}, rec.recorded)
	assert.Equal(t, []string{cache.TagCatalog}, rec.invalidated)
}

func TestCreate_SlugCollisionsGetSuffixes(t *testing.T) {
	db := newTestDB(t)
	p := New(db, nil)
	ctx := context.Background()

	first, err := p.Create(ctx, sampleInput())
	require.NoError(t, err)
	second, err := p.Create(ctx, sampleInput())
	require.NoError(t, err)
	third, err := p.Create(ctx, sampleInput())
	require.NoError(t, err)

	assert.Equal(t, "casa-bonita-en-caobos", first.Slug)
	assert.Equal(t, "casa-bonita-en-caobos-2", second.Slug)
	assert.Equal(t, "casa-bonita-en-caobos-3", third.Slug)
	assert.Equal(t, *first.NeighborhoodID, *third.NeighborhoodID)
}

func TestCreate_InvalidInput(t *testing.T) {
	db := newTestDB(t)
	p := New(db, nil)

	in := sampleInput()
	in.City = "Medellín"
	_, err := p.Create(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, int64(0), countRows(t, db, &models.Property{}))
}

type failImages struct {
	*database.GormDB
}

func (failImages) InsertImages(context.Context, []models.PropertyImage) error {
	return errors.New("disk full")
}

type failImagesAndRollback struct {
	failImages
}

func (failImagesAndRollback) DeleteProperty(context.Context, string) error {
	return errors.New("connection lost")
}

type failAmenities struct {
	*database.GormDB
}

func (failAmenities) UpsertAmenities(context.Context, []models.Amenity) ([]uint, error) {
	return nil, errors.New("deadlock")
}

func TestCreate_RollbackAfterImageFailure(t *testing.T) {
	db := newTestDB(t)
	rec := &recorder{}
	p := New(failImages{db}, logrus.New(), withRecorder(rec)...)

	_, err := p.Create(context.Background(), sampleInput())
	require.Error(t, err)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepImages, stepErr.Step)

	assert.Equal(t, int64(0), countRows(t, db, &models.Property{}))
	assert.Len(t, rec.deleted, 1)
	assert.Contains(t, rec.deleted[0], models.DeleteReasonRollback)
	assert.Empty(t, rec.enqueued)
	assert.Empty(t, rec.invalidated)
}

func TestCreate_RollbackFailureIsLoggedAsOrphan(t *testing.T) {
	db := newTestDB(t)
	log, hook := test.NewNullLogger()
	p := New(failImagesAndRollback{failImages{db}}, log)

	_, err := p.Create(context.Background(), sampleInput())

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepImages, stepErr.Step)
	assert.EqualError(t, stepErr.Err, "disk full")

	assert.Equal(t, int64(1), countRows(t, db, &models.Property{}))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, true, entry.Data["orphan"])
}

func TestCreate_TransactionalModeLeavesNothing(t *testing.T) {
	db := newTestDB(t)
	tx := func(ctx context.Context, fn func(Store) error) error {
		return db.Transaction(ctx, func(tx *database.GormDB) error {
			return fn(failAmenities{tx})
		})
	}
	p := New(db, nil, WithTransactions(tx))

	_, err := p.Create(context.Background(), sampleInput())
	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepAmenities, stepErr.Step)

	assert.Equal(t, int64(0), countRows(t, db, &models.Property{}))
	assert.Equal(t, int64(0), countRows(t, db, &models.PropertyImage{}))
	assert.Equal(t, int64(0), countRows(t, db, &models.PropertyTag{}))
}

func TestCreate_TransactionalModeCommits(t *testing.T) {
	db := newTestDB(t)
	p := New(db, nil, WithTransactions(GormTx(db)))

	prop, err := p.Create(context.Background(), sampleInput())
	require.NoError(t, err)
	assert.Equal(t, int64(1), countRows(t, db, &models.Property{}))
	assert.Equal(t, int64(2), countRows(t, db, &models.PropertyImage{}))
	assert.NotEmpty(t, prop.ID)
}

func TestCreate_SoftDependencyFailureStillSucceeds(t *testing.T) {
	db := newTestDB(t)
	rec := &recorder{historyErr: errors.New("snapshot table locked")}
	log, hook := test.NewNullLogger()
	p := New(db, log, withRecorder(rec)...)

	prop, err := p.Create(context.Background(), sampleInput())
	require.NoError(t, err)
	assert.NotNil(t, prop)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["step"] == "history" {
			warned = true
		}
	}
	assert.True(t, warned)
	assert.Equal(t, []string{cache.TagCatalog}, rec.invalidated)
}

func TestUpdate_ReplacesChildrenAndKeepsSlug(t *testing.T) {
	db := newTestDB(t)
	rec := &recorder{}
	p := New(db, nil, withRecorder(rec)...)
	ctx := context.Background()

	created, err := p.Create(ctx, sampleInput())
	require.NoError(t, err)

	in := sampleInput()
	in.Title = "Otro título"
	in.Price = 399_000_000
	in.Operation = "arriendo"
	in.Neighborhood = ""
	in.Images = []ImageInput{{URL: "https://cdn.example.com/3.jpg"}}
	in.Tags = []string{"Vista"}
	in.Amenities = nil

	updated, err := p.Update(ctx, created.ID, in)
	require.NoError(t, err)
	assert.Equal(t, created.Slug, updated.Slug)

	stored, err := db.GetPropertyByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Otro título", stored.Title)
	assert.Equal(t, int64(399_000_000), stored.Price)
	assert.Equal(t, models.OperationLease, stored.Operation)
	assert.Nil(t, stored.NeighborhoodID)
	assert.Equal(t, "https://cdn.example.com/3.jpg", stored.PrimaryImage)
	assert.Equal(t, created.CreatedAt.Unix(), stored.CreatedAt.Unix())

	tags, amenities, err := db.LabelsFor(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Vista"}, tags)
	assert.Empty(t, amenities)
	assert.Equal(t, int64(1), countRows(t, db, &models.PropertyImage{}))

	assert.Len(t, rec.recorded, 2)
	assert.Len(t, rec.invalidated, 2)
}

func TestUpdate_LinkFailureIsSoftOutsideTransactions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	created, err := New(db, nil).Create(ctx, sampleInput())
	require.NoError(t, err)

	in := sampleInput()
	in.Price = 1
	_, err = New(failAmenities{db}, nil).Update(ctx, created.ID, in)
	require.NoError(t, err)

	stored, err := db.GetPropertyByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Price)
}

func TestUpdate_ImageFailureLeavesNoDanglingPrimary(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	created, err := New(db, nil).Create(ctx, sampleInput())
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/2.jpg", created.PrimaryImage)

	in := sampleInput()
	in.Images = []ImageInput{{URL: "https://cdn.example.com/3.jpg", IsPrimary: true}}
	_, err = New(failImages{db}, nil).Update(ctx, created.ID, in)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepImages, stepErr.Step)

	stored, err := db.GetPropertyByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.PrimaryImage)
	assert.Equal(t, int64(0), countRows(t, db, &models.PropertyImage{}))
}

func TestUpdateAndDelete_NotFound(t *testing.T) {
	db := newTestDB(t)
	p := New(db, nil)

	_, err := p.Update(context.Background(), "missing", sampleInput())
	assert.ErrorIs(t, err, ErrPropertyNotFound)

	err = p.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrPropertyNotFound)
}

func TestDelete_CascadesAndLogs(t *testing.T) {
	db := newTestDB(t)
	rec := &recorder{}
	p := New(db, nil, withRecorder(rec)...)
	ctx := context.Background()

	created, err := p.Create(ctx, sampleInput())
	require.NoError(t, err)

	require.NoError(t, p.Delete(ctx, created.ID))

	assert.Equal(t, int64(0), countRows(t, db, &models.Property{}))
	assert.Equal(t, int64(0), countRows(t, db, &models.PropertyImage{}))
	assert.Equal(t, int64(0), countRows(t, db, &models.PropertyTag{}))
	assert.Equal(t, int64(0), countRows(t, db, &models.PropertyAmenity{}))
	// shared labels outlive the property
	assert.Equal(t, int64(2), countRows(t, db, &models.Tag{}))

	assert.Equal(t, []string{models.DeleteReasonManual + ":" + created.ID}, rec.deleted)
	assert.Equal(t, "delete:"+created.ID, rec.enqueued[len(rec.enqueued)-1])
}
