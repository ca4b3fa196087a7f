package scheduler

import (
	"context"
	"errors"
	"fmt"
	"real-estate-catalog/internal/catalog"
	"real-estate-catalog/internal/logging"
	"real-estate-catalog/internal/metrics"
	"real-estate-catalog/internal/models"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Indexer pushes documents to the search engine
type Indexer interface {
	IndexProperty(ctx context.Context, p *models.Property) error
	DeleteDocument(ctx context.Context, id string) error
}

// PropertyLoader reads the current state of a property with its labels
type PropertyLoader interface {
	AdminGet(ctx context.Context, id string) (*models.Property, error)
}

// QueueWorker drains search_sync_queue into the search index
type QueueWorker struct {
	db           *gorm.DB
	indexer      Indexer
	loader       PropertyLoader
	log          *logrus.Logger
	pollInterval time.Duration
	batchSize    int
	now          func() time.Time

	mu        sync.Mutex
	stopChan  chan struct{}
	done      chan struct{}
	isRunning bool
}

// NewQueueWorker creates a new queue worker
func NewQueueWorker(db *gorm.DB, indexer Indexer, loader PropertyLoader, pollInterval time.Duration, batchSize int, log *logrus.Logger) *QueueWorker {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	return &QueueWorker{
		db:           db,
		indexer:      indexer,
		loader:       loader,
		log:          logging.OrDefault(log),
		pollInterval: pollInterval,
		batchSize:    batchSize,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue schedules a property for indexing or removal. A job still
// pending for the same property is rewritten with the latest action.
func (w *QueueWorker) Enqueue(ctx context.Context, propertyID, action string) error {
	if action != models.SyncActionIndex && action != models.SyncActionDelete {
		return fmt.Errorf("unknown sync action %q", action)
	}

	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pending models.SearchSyncJob
		err := tx.Where("property_id = ? AND status = ?", propertyID, models.QueueStatusPending).
			First(&pending).Error
		switch {
		case err == nil:
			return tx.Model(&pending).Update("action", action).Error
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		return tx.Create(&models.SearchSyncJob{
			PropertyID: propertyID,
			Action:     action,
			Status:     models.QueueStatusPending,
		}).Error
	})
}

// Start starts the poll loop
func (w *QueueWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		w.log.Warn("QueueWorker already running")
		return
	}
	w.isRunning = true
	w.stopChan = make(chan struct{})
	w.done = make(chan struct{})

	w.log.WithFields(logrus.Fields{
		"poll_interval": w.pollInterval.String(),
		"batch_size":    w.batchSize,
	}).Info("QueueWorker started")

	go w.run(ctx, w.stopChan, w.done)
}

// Stop stops the poll loop and waits for the current batch
func (w *QueueWorker) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = false
	close(w.stopChan)
	done := w.done
	w.mu.Unlock()

	<-done
	w.log.Info("QueueWorker stopped")
}

func (w *QueueWorker) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ProcessNextBatch(ctx)
		}
	}
}

// ProcessNextBatch processes up to batchSize due jobs and returns how many
// were attempted. Pending jobs go first, then failed jobs whose retry time
// has passed.
func (w *QueueWorker) ProcessNextBatch(ctx context.Context) int {
	now := w.now()
	var jobs []models.SearchSyncJob
	err := w.db.WithContext(ctx).
		Where("status = ? OR (status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?)",
			models.QueueStatusPending, models.QueueStatusFailed, now).
		Order("created_at ASC, id ASC").
		Limit(w.batchSize).
		Find(&jobs).Error
	if err != nil {
		w.log.WithError(err).Error("QueueWorker: failed to fetch jobs")
		return 0
	}

	for i := range jobs {
		if ctx.Err() != nil {
			return i
		}
		w.processJob(ctx, &jobs[i])
	}
	return len(jobs)
}

func (w *QueueWorker) processJob(ctx context.Context, job *models.SearchSyncJob) {
	logger := w.log.WithFields(logrus.Fields{
		"job_id":      job.ID,
		"property_id": job.PropertyID,
		"action":      job.Action,
		"attempt":     job.Attempts + 1,
	})

	job.Status = models.QueueStatusProcessing
	job.Attempts++
	if err := w.db.WithContext(ctx).Save(job).Error; err != nil {
		logger.WithError(err).Error("QueueWorker: failed to mark job processing")
		return
	}

	if err := w.sync(ctx, job); err != nil {
		w.handleError(ctx, job, err, logger)
		return
	}

	completedAt := w.now()
	job.Status = models.QueueStatusDone
	job.LastError = ""
	job.NextRetryAt = nil
	job.CompletedAt = &completedAt
	if err := w.db.WithContext(ctx).Save(job).Error; err != nil {
		logger.WithError(err).Error("QueueWorker: failed to mark job done")
		return
	}
	metrics.SearchSyncProcessed.WithLabelValues(job.Action, "done").Inc()
	logger.Debug("Search document synced")
}

// sync applies one job. A property that no longer exists is removed from
// the index whatever the job's action.
func (w *QueueWorker) sync(ctx context.Context, job *models.SearchSyncJob) error {
	if job.Action == models.SyncActionDelete {
		return w.indexer.DeleteDocument(ctx, job.PropertyID)
	}

	p, err := w.loader.AdminGet(ctx, job.PropertyID)
	if errors.Is(err, catalog.ErrNotFound) {
		return w.indexer.DeleteDocument(ctx, job.PropertyID)
	}
	if err != nil {
		return fmt.Errorf("load property: %w", err)
	}
	return w.indexer.IndexProperty(ctx, p)
}

func (w *QueueWorker) handleError(ctx context.Context, job *models.SearchSyncJob, err error, logger *logrus.Entry) {
	job.Status = models.QueueStatusFailed
	job.LastError = err.Error()

	if job.Attempts >= models.MaxRetryAttempts {
		completedAt := w.now()
		job.Status = models.QueueStatusPermanentFail
		job.CompletedAt = &completedAt
		job.NextRetryAt = nil
		metrics.SearchSyncProcessed.WithLabelValues(job.Action, "permanent_fail").Inc()
		logger.WithError(err).Error("QueueWorker: max retries exceeded")
	} else {
		next := w.now().Add(models.GetNextRetryDelay(job.Attempts - 1))
		job.NextRetryAt = &next
		metrics.SearchSyncProcessed.WithLabelValues(job.Action, "retry").Inc()
		logger.WithError(err).WithField("next_retry_at", next.Format(time.RFC3339)).
			Warn("QueueWorker: sync failed, retry scheduled")
	}

	if err := w.db.WithContext(ctx).Save(job).Error; err != nil {
		logger.WithError(err).Error("QueueWorker: failed to save retry status")
	}
}

// GetQueueStats returns job counts by status
func (w *QueueWorker) GetQueueStats(ctx context.Context) (map[string]interface{}, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	if err := w.db.WithContext(ctx).Model(&models.SearchSyncJob{}).
		Select("status, count(*) AS total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	stats := map[string]interface{}{
		models.QueueStatusPending:       int64(0),
		models.QueueStatusProcessing:    int64(0),
		models.QueueStatusDone:          int64(0),
		models.QueueStatusFailed:        int64(0),
		models.QueueStatusPermanentFail: int64(0),
	}
	for _, r := range rows {
		stats[r.Status] = r.Total
	}

	w.mu.Lock()
	stats["is_running"] = w.isRunning
	w.mu.Unlock()
	return stats, nil
}
