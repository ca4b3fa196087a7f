package scheduler

import (
	"context"
	"errors"
	"real-estate-catalog/internal/catalog"
	"real-estate-catalog/internal/cleanup"
	"real-estate-catalog/internal/config"
	"real-estate-catalog/internal/database"
	"real-estate-catalog/internal/models"
	"real-estate-catalog/internal/recommend"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndexer struct {
	indexed []string
	deleted []string
	err     error
}

func (f *fakeIndexer) IndexProperty(_ context.Context, p *models.Property) error {
	if f.err != nil {
		return f.err
	}
	f.indexed = append(f.indexed, p.ID)
	return nil
}

func (f *fakeIndexer) DeleteDocument(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeLoader map[string]*models.Property

func (f fakeLoader) AdminGet(_ context.Context, id string) (*models.Property, error) {
	if p, ok := f[id]; ok {
		return p, nil
	}
	return nil, catalog.ErrNotFound
}

func newWorker(t *testing.T, idx *fakeIndexer, loader fakeLoader) (*database.GormDB, *QueueWorker) {
	t.Helper()
	db, err := database.NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, NewQueueWorker(db.DB(), idx, loader, time.Hour, 10, nil)
}

func jobs(t *testing.T, db *database.GormDB) []models.SearchSyncJob {
	t.Helper()
	var out []models.SearchSyncJob
	require.NoError(t, db.DB().Order("id").Find(&out).Error)
	return out
}

func TestEnqueue_CoalescesPendingJobs(t *testing.T) {
	db, w := newWorker(t, &fakeIndexer{}, nil)
	ctx := context.Background()

	require.NoError(t, w.Enqueue(ctx, "p1", models.SyncActionIndex))
	require.NoError(t, w.Enqueue(ctx, "p1", models.SyncActionDelete))
	require.NoError(t, w.Enqueue(ctx, "p2", models.SyncActionIndex))
	assert.Error(t, w.Enqueue(ctx, "p3", "reindex"))

	all := jobs(t, db)
	require.Len(t, all, 2)
	assert.Equal(t, models.SyncActionDelete, all[0].Action)
	assert.Equal(t, "p2", all[1].PropertyID)
}

func TestProcessNextBatch(t *testing.T) {
	idx := &fakeIndexer{}
	loader := fakeLoader{"p1": {ID: "p1"}}
	db, w := newWorker(t, idx, loader)
	ctx := context.Background()

	require.NoError(t, w.Enqueue(ctx, "p1", models.SyncActionIndex))
	require.NoError(t, w.Enqueue(ctx, "gone", models.SyncActionIndex))
	require.NoError(t, w.Enqueue(ctx, "p9", models.SyncActionDelete))

	assert.Equal(t, 3, w.ProcessNextBatch(ctx))
	assert.Equal(t, []string{"p1"}, idx.indexed)
	assert.ElementsMatch(t, []string{"gone", "p9"}, idx.deleted)

	for _, j := range jobs(t, db) {
		assert.Equal(t, models.QueueStatusDone, j.Status)
		assert.NotNil(t, j.CompletedAt)
	}
	assert.Equal(t, 0, w.ProcessNextBatch(ctx))

	stats, err := w.GetQueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats[models.QueueStatusDone])
	assert.Equal(t, false, stats["is_running"])
}

func TestProcessNextBatch_RetriesWithBackoff(t *testing.T) {
	idx := &fakeIndexer{err: errors.New("meilisearch down")}
	db, w := newWorker(t, idx, nil)
	ctx := context.Background()

	clock := time.Now().UTC()
	w.now = func() time.Time { return clock }

	require.NoError(t, w.Enqueue(ctx, "p1", models.SyncActionDelete))
	assert.Equal(t, 1, w.ProcessNextBatch(ctx))

	j := jobs(t, db)[0]
	assert.Equal(t, models.QueueStatusFailed, j.Status)
	assert.Equal(t, 1, j.Attempts)
	assert.Equal(t, "meilisearch down", j.LastError)
	require.NotNil(t, j.NextRetryAt)

	// not due yet
	assert.Equal(t, 0, w.ProcessNextBatch(ctx))

	for i := 1; i < models.MaxRetryAttempts; i++ {
		clock = clock.Add(5 * time.Hour)
		assert.Equal(t, 1, w.ProcessNextBatch(ctx))
	}
	j = jobs(t, db)[0]
	assert.Equal(t, models.QueueStatusPermanentFail, j.Status)
	assert.Equal(t, models.MaxRetryAttempts, j.Attempts)

	clock = clock.Add(5 * time.Hour)
	assert.Equal(t, 0, w.ProcessNextBatch(ctx))
}

func TestWorker_StartStop(t *testing.T) {
	_, w := newWorker(t, &fakeIndexer{}, nil)
	w.Start(context.Background())
	w.Start(context.Background())
	w.Stop()
	w.Stop()
}

type fakePurger struct{ got cleanup.PurgeConfig }

func (f *fakePurger) PurgeViews(_ context.Context, cfg cleanup.PurgeConfig) (*cleanup.PurgeResult, error) {
	f.got = cfg
	return &cleanup.PurgeResult{DryRun: cfg.DryRun}, nil
}

type fakeFeatured struct{ calls []int }

func (f *fakeFeatured) Featured(_ context.Context, limit int) (catalog.Page, error) {
	f.calls = append(f.calls, limit)
	return catalog.Page{}, nil
}

type fakeTrending struct{ err error }

func (f *fakeTrending) Trending(context.Context, int) (recommend.Result, error) {
	return recommend.Result{}, f.err
}

func TestScheduler_Jobs(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Cleanup.DryRun = true
	purger := &fakePurger{}
	featured := &fakeFeatured{}
	trending := &fakeTrending{err: errors.New("boom")}

	s := NewScheduler(cfg, Deps{Purger: purger, Featured: featured, Trending: trending}, nil)
	ctx := context.Background()

	res, err := s.RunRetention(ctx)
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, 180*24*time.Hour, purger.got.Retention)
	assert.Equal(t, cfg.Cleanup.MaxDeletions, purger.got.MaxDeletions)

	assert.EqualError(t, s.RunWarmup(ctx), "boom")
	assert.Equal(t, []int{warmupFeatured}, featured.calls)

	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 2)
	s.Stop()
}

func TestScheduler_BadTimezoneFallsBackToUTC(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Timezone = "Mars/Olympus"
	cfg.Scheduler.Enabled = false
	s := NewScheduler(cfg, Deps{}, nil)
	assert.Equal(t, time.UTC, s.cron.Location())
	require.NoError(t, s.Start())
}
