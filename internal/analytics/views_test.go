package analytics

import (
	"context"
	"real-estate-catalog/internal/database"
	"real-estate-catalog/internal/models"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*database.GormDB, *Service) {
	t.Helper()
	db, err := database.NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, NewService(db.DB(), "test-key", logrus.New())
}

func insertProperty(t *testing.T, db *database.GormDB, id string) {
	t.Helper()
	require.NoError(t, db.InsertProperty(context.Background(), &models.Property{
		ID: id, Slug: id, Title: id, Operation: models.OperationSale, City: "cucuta", Type: "casa",
	}))
}

func TestHashIP(t *testing.T) {
	_, svc := setup(t)

	a := svc.HashIP("190.0.0.1")
	assert.Len(t, a, 64)
	assert.Equal(t, a, svc.HashIP("190.0.0.1"))
	assert.NotEqual(t, a, svc.HashIP("190.0.0.2"))

	other := NewService(nil, "another-key", nil)
	assert.NotEqual(t, a, other.HashIP("190.0.0.1"))

	long := NewService(nil, strings.Repeat("k", 100), nil)
	assert.Len(t, long.HashIP("190.0.0.1"), 64)
}

func TestRecordViewAndTopViewed(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()

	insertProperty(t, db, "p1")
	insertProperty(t, db, "p2")
	insertProperty(t, db, "p3")

	for i := 0; i < 3; i++ {
		svc.RecordView(ctx, "p2", "10.0.0.1", "")
	}
	svc.RecordView(ctx, "p1", "10.0.0.1", "s-1")
	svc.RecordView(ctx, "p3", "10.0.0.1", "")
	svc.RecordView(ctx, "p3", "10.0.0.2", "")

	// outside the window
	require.NoError(t, db.DB().Create(&models.PropertyView{
		PropertyID: "p1", IPHash: "x", ViewedAt: time.Now().UTC().Add(-30 * 24 * time.Hour),
	}).Error)

	since := time.Now().UTC().Add(-7 * 24 * time.Hour)
	top, err := svc.TopViewed(ctx, since, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, ViewCount{PropertyID: "p2", Views: 3}, top[0])
	assert.Equal(t, ViewCount{PropertyID: "p3", Views: 2}, top[1])

	n, err := svc.CountSince(ctx, "p1", since)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var stored models.PropertyView
	require.NoError(t, db.DB().Where("session_id = ?", "s-1").First(&stored).Error)
	assert.Equal(t, svc.HashIP("10.0.0.1"), stored.IPHash)
}

func TestRecordView_FailureIsOnlyLogged(t *testing.T) {
	db, _ := setup(t)
	log, hook := test.NewNullLogger()
	svc := NewService(db.DB(), "k", log)

	// foreign key violation: the property does not exist
	svc.RecordView(context.Background(), "missing", "10.0.0.1", "")

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "missing", hook.LastEntry().Data["property_id"])
}
