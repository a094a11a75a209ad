package services

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wisprad/backend/internal/database"
	"github.com/wisprad/backend/internal/models"
)

func setupTestDB(t *testing.T) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	database.DB = db
}

func addSession(t *testing.T, sessionID string, lastUpdate time.Time, stopped bool) {
	t.Helper()
	sess := models.Session{
		SessionID:  sessionID,
		Username:   "alice",
		StartTime:  lastUpdate.Add(-time.Hour),
		UpdateTime: &lastUpdate,
	}
	if stopped {
		now := time.Now()
		sess.StopTime = &now
	}
	require.NoError(t, database.DB.Create(&sess).Error)
}

func TestCleanupStopsStaleSessions(t *testing.T) {
	setupTestDB(t)
	svc := NewSessionCleanupService(30)

	addSession(t, "fresh", time.Now().Add(-5*time.Minute), false)
	addSession(t, "stale", time.Now().Add(-2*time.Hour), false)
	addSession(t, "already-stopped", time.Now().Add(-2*time.Hour), true)

	svc.cleanup()

	var fresh, stale, stopped models.Session
	require.NoError(t, database.DB.Where("session_id = ?", "fresh").First(&fresh).Error)
	require.NoError(t, database.DB.Where("session_id = ?", "stale").First(&stale).Error)
	require.NoError(t, database.DB.Where("session_id = ?", "already-stopped").First(&stopped).Error)

	assert.True(t, fresh.IsActive())
	assert.False(t, stale.IsActive())
	assert.Equal(t, "Stale-Session-Cleanup", stale.TerminateCause)
	// Previously stopped sessions keep their terminate cause
	assert.Empty(t, stopped.TerminateCause)
}

func TestCleanupFallsBackToStartTime(t *testing.T) {
	setupTestDB(t)
	svc := NewSessionCleanupService(30)

	// Session that never got an interim update
	sess := models.Session{
		SessionID: "no-interim",
		Username:  "bob",
		StartTime: time.Now().Add(-3 * time.Hour),
	}
	require.NoError(t, database.DB.Create(&sess).Error)

	svc.cleanup()

	require.NoError(t, database.DB.Where("session_id = ?", "no-interim").First(&sess).Error)
	assert.False(t, sess.IsActive())
}

func TestNewSessionCleanupServiceFloor(t *testing.T) {
	svc := NewSessionCleanupService(1)
	assert.Equal(t, 5*time.Minute, svc.staleAfter)
}
