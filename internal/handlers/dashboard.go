package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/wisprad/backend/internal/database"
	"github.com/wisprad/backend/internal/models"
)

// Version is stamped at build time via -ldflags
var Version = "dev"

var startTime = time.Now()

// DashboardHandler serves aggregate statistics for the console landing page
type DashboardHandler struct {
	droppedPackets func() uint64
}

func NewDashboardHandler(droppedPackets func() uint64) *DashboardHandler {
	return &DashboardHandler{droppedPackets: droppedPackets}
}

// Stats returns the dashboard counters
func (h *DashboardHandler) Stats(c *fiber.Ctx) error {
	var totalUsers, activeUsers, totalNas, activeSessions int64

	database.DB.Model(&models.User{}).Count(&totalUsers)
	database.DB.Model(&models.User{}).Where("is_active = ?", true).Count(&activeUsers)
	database.DB.Model(&models.Nas{}).Count(&totalNas)
	database.DB.Model(&models.Session{}).Where("stop_time IS NULL").Count(&activeSessions)

	// Traffic accounted today, from the accounting log. Log rows carry the
	// session's running totals, so take the latest counters per session among
	// today's rows instead of summing every row. Midnight is local time.
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	type octets struct {
		Input  int64
		Output int64
	}
	var today octets
	database.DB.Raw(`SELECT COALESCE(SUM(input), 0) AS input, COALESCE(SUM(output), 0) AS output
		FROM (SELECT MAX(input_octets) AS input, MAX(output_octets) AS output
		      FROM acct_log WHERE timestamp >= ? GROUP BY session_id)`, midnight).
		Scan(&today)

	var dropped uint64
	if h.droppedPackets != nil {
		dropped = h.droppedPackets()
	}

	return c.JSON(fiber.Map{
		"total_users":     totalUsers,
		"active_users":    activeUsers,
		"total_nas":       totalNas,
		"active_sessions": activeSessions,
		"today_input":     today.Input,
		"today_output":    today.Output,
		"dropped_packets": dropped,
	})
}

// Health is an unauthenticated liveness probe
func (h *DashboardHandler) Health(c *fiber.Ctx) error {
	status := "ok"
	if sqlDB, err := database.DB.DB(); err != nil || sqlDB.Ping() != nil {
		status = "degraded"
	}
	return c.JSON(fiber.Map{
		"status":  status,
		"version": Version,
		"uptime":  int64(time.Since(startTime).Seconds()),
	})
}
