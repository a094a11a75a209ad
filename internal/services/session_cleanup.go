package services

import (
	"log"
	"time"

	"github.com/wisprad/backend/internal/database"
	"github.com/wisprad/backend/internal/models"
)

// SessionCleanupService closes sessions whose NAS stopped sending interim
// updates (crashed router, dropped link). Such sessions would otherwise
// stay "active" forever because no Stop ever arrives.
type SessionCleanupService struct {
	staleAfter time.Duration
	interval   time.Duration
	stopChan   chan struct{}
}

func NewSessionCleanupService(staleMinutes int) *SessionCleanupService {
	if staleMinutes < 5 {
		staleMinutes = 5
	}
	return &SessionCleanupService{
		staleAfter: time.Duration(staleMinutes) * time.Minute,
		interval:   5 * time.Minute,
		stopChan:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup loop
func (s *SessionCleanupService) Start() {
	log.Printf("Session cleanup service started (stale after %v)", s.staleAfter)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.cleanup()
			case <-s.stopChan:
				return
			}
		}
	}()
}

// Stop terminates the cleanup loop
func (s *SessionCleanupService) Stop() {
	close(s.stopChan)
	log.Println("Session cleanup service stopped")
}

// cleanup stops every active session whose last update is older than the
// stale threshold. Counters are left at their last reported values.
func (s *SessionCleanupService) cleanup() {
	cutoff := time.Now().Add(-s.staleAfter)
	now := time.Now()

	res := database.DB.Model(&models.Session{}).
		Where("stop_time IS NULL").
		Where("COALESCE(update_time, start_time) < ?", cutoff).
		Updates(map[string]interface{}{
			"stop_time":       now,
			"update_time":     now,
			"terminate_cause": "Stale-Session-Cleanup",
		})
	if res.Error != nil {
		log.Printf("Session cleanup failed: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("Session cleanup: closed %d stale sessions", res.RowsAffected)
	}
}
