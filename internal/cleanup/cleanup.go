package cleanup

import (
	"context"
	"fmt"
	"real-estate-catalog/internal/logging"
	"real-estate-catalog/internal/models"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service audits property deletions and purges the view log
type Service struct {
	db  *gorm.DB
	log *logrus.Logger
}

// NewService creates a new cleanup service
func NewService(db *gorm.DB, log *logrus.Logger) *Service {
	return &Service{db: db, log: logging.OrDefault(log)}
}

// PurgeConfig holds limits for one view purge
type PurgeConfig struct {
	Retention    time.Duration // views older than this are deleted
	MaxDeletions int           // abort when more rows than this are eligible
	DryRun       bool          // count only
}

// PurgeResult holds the outcome of one view purge
type PurgeResult struct {
	TargetCount  int64     `json:"target_count"`
	DeletedCount int64     `json:"deleted_count"`
	Cutoff       time.Time `json:"cutoff"`
	DryRun       bool      `json:"dry_run"`
	ExecutedAt   time.Time `json:"executed_at"`
}

// LogDeletion writes a delete_logs row for a property that is being removed
func (s *Service) LogDeletion(ctx context.Context, p *models.Property, reason string) error {
	entry := models.DeleteLog{
		PropertyID: p.ID,
		Title:      p.Title,
		Slug:       p.Slug,
		Reason:     reason,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to create delete log for property %s: %w", p.ID, err)
	}
	return nil
}

// PurgeViews deletes property_views rows older than the retention period.
// It refuses to run when more rows than MaxDeletions would go.
func (s *Service) PurgeViews(ctx context.Context, cfg PurgeConfig) (*PurgeResult, error) {
	now := time.Now().UTC()
	result := &PurgeResult{
		Cutoff:     now.Add(-cfg.Retention),
		DryRun:     cfg.DryRun,
		ExecutedAt: now,
	}
	if cfg.Retention <= 0 {
		return nil, fmt.Errorf("retention must be positive, got %s", cfg.Retention)
	}

	db := s.db.WithContext(ctx)
	if err := db.Model(&models.PropertyView{}).
		Where("viewed_at < ?", result.Cutoff).
		Count(&result.TargetCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count expired views: %w", err)
	}

	logger := s.log.WithFields(logrus.Fields{
		"cutoff":  result.Cutoff.Format(time.RFC3339),
		"target":  result.TargetCount,
		"dry_run": cfg.DryRun,
	})

	if result.TargetCount == 0 {
		logger.Debug("No expired views to purge")
		return result, nil
	}
	if cfg.MaxDeletions > 0 && result.TargetCount > int64(cfg.MaxDeletions) {
		return nil, fmt.Errorf("safety check failed: %d views exceed max deletion limit of %d",
			result.TargetCount, cfg.MaxDeletions)
	}
	if cfg.DryRun {
		logger.Info("[DRY-RUN] Would purge expired views")
		return result, nil
	}

	res := db.Where("viewed_at < ?", result.Cutoff).Delete(&models.PropertyView{})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to purge views: %w", res.Error)
	}
	result.DeletedCount = res.RowsAffected
	logger.WithField("deleted", result.DeletedCount).Info("Expired views purged")
	return result, nil
}

// DeleteStats summarizes the delete log
type DeleteStats struct {
	TotalDeleted    int64            `json:"total_deleted"`
	ByReason        map[string]int64 `json:"by_reason"`
	DeletedLast30d  int64            `json:"deleted_last_30_days"`
	ViewsStored     int64            `json:"views_stored"`
	OldestViewStamp *time.Time       `json:"oldest_view,omitempty"`
}

// GetDeleteStats returns statistics about deleted properties and the view log
func (s *Service) GetDeleteStats(ctx context.Context) (*DeleteStats, error) {
	db := s.db.WithContext(ctx)
	stats := &DeleteStats{ByReason: map[string]int64{}}

	if err := db.Model(&models.DeleteLog{}).Count(&stats.TotalDeleted).Error; err != nil {
		return nil, err
	}

	var reasonCounts []struct {
		Reason string
		Count  int64
	}
	if err := db.Model(&models.DeleteLog{}).
		Select("reason, count(*) as count").
		Group("reason").
		Scan(&reasonCounts).Error; err != nil {
		return nil, err
	}
	for _, rc := range reasonCounts {
		stats.ByReason[rc.Reason] = rc.Count
	}

	thirtyDaysAgo := time.Now().UTC().AddDate(0, 0, -30)
	if err := db.Model(&models.DeleteLog{}).
		Where("deleted_at >= ?", thirtyDaysAgo).
		Count(&stats.DeletedLast30d).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.PropertyView{}).Count(&stats.ViewsStored).Error; err != nil {
		return nil, err
	}
	if stats.ViewsStored > 0 {
		var oldest models.PropertyView
		if err := db.Order("viewed_at ASC").First(&oldest).Error; err != nil {
			return nil, err
		}
		stats.OldestViewStamp = &oldest.ViewedAt
	}

	return stats, nil
}

// GetRecentDeleteLogs returns recent delete log entries
func (s *Service) GetRecentDeleteLogs(ctx context.Context, limit int) ([]models.DeleteLog, error) {
	if limit <= 0 {
		limit = 50
	}
	logs := []models.DeleteLog{}
	err := s.db.WithContext(ctx).Order("deleted_at DESC, id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
