// Package analytics records anonymized property views and aggregates them
// for the trending list.
package analytics

import (
	"context"
	"encoding/hex"
	"real-estate-catalog/internal/logging"
	"real-estate-catalog/internal/metrics"
	"real-estate-catalog/internal/models"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
	"gorm.io/gorm"
)

// ViewCount is one row of the trending aggregation
type ViewCount struct {
	PropertyID string `gorm:"column:property_id" json:"property_id"`
	Views      int64  `gorm:"column:views" json:"views"`
}

// Service writes and aggregates property_views rows
type Service struct {
	db  *gorm.DB
	key []byte
	log *logrus.Logger
}

// NewService creates a view recorder. Keys longer than 64 bytes are
// compressed to 32 before keying the IP digest.
func NewService(db *gorm.DB, hashKey string, log *logrus.Logger) *Service {
	key := []byte(hashKey)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	return &Service{db: db, key: key, log: logging.OrDefault(log)}
}

// HashIP returns the hex BLAKE2b-256 of ip under the service key
func (s *Service) HashIP(ip string) string {
	h, err := blake2b.New256(s.key)
	if err != nil {
		// key length is bounded in NewService
		panic(err)
	}
	h.Write([]byte(ip))
	return hex.EncodeToString(h.Sum(nil))
}

// RecordView appends a view event. Failures are logged and never reach the
// page being served.
func (s *Service) RecordView(ctx context.Context, propertyID, ip, sessionID string) {
	view := models.PropertyView{
		PropertyID: propertyID,
		IPHash:     s.HashIP(ip),
		ViewedAt:   time.Now().UTC(),
	}
	if sessionID != "" {
		view.SessionID = &sessionID
	}

	if err := s.db.WithContext(ctx).Create(&view).Error; err != nil {
		s.log.WithError(err).WithField("property_id", propertyID).Warn("Failed to record property view")
		return
	}
	metrics.ViewsRecorded.Inc()
}

// TopViewed counts views since the given time and returns the k most viewed
// properties, most viewed first. Ties break on property id.
func (s *Service) TopViewed(ctx context.Context, since time.Time, k int) ([]ViewCount, error) {
	var rows []ViewCount
	err := s.db.WithContext(ctx).
		Model(&models.PropertyView{}).
		Select("property_id, COUNT(*) AS views").
		Where("viewed_at >= ?", since.UTC()).
		Group("property_id").
		Order("views DESC, property_id ASC").
		Limit(k).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CountSince returns the number of views of one property since the given time
func (s *Service) CountSince(ctx context.Context, propertyID string, since time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&models.PropertyView{}).
		Where("property_id = ? AND viewed_at >= ?", propertyID, since.UTC()).
		Count(&n).Error
	return n, err
}
