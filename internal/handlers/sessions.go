package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/wisprad/backend/internal/database"
	"github.com/wisprad/backend/internal/models"
)

type SessionHandler struct{}

func NewSessionHandler() *SessionHandler {
	return &SessionHandler{}
}

// Active returns sessions that have not received a Stop yet
func (h *SessionHandler) Active(c *fiber.Ctx) error {
	query := database.DB.Where("stop_time IS NULL")

	if username := strings.TrimSpace(c.Query("username")); username != "" {
		query = query.Where("username = ?", username)
	}
	if nasIP := strings.TrimSpace(c.Query("nas_ip")); nasIP != "" {
		query = query.Where("nas_ip_address = ?", nasIP)
	}

	var sessions []models.Session
	if err := query.Order("start_time DESC").Find(&sessions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch sessions",
		})
	}

	return c.JSON(fiber.Map{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

// List returns session history (stopped sessions included) with pagination
func (h *SessionHandler) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 50)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}

	query := database.DB.Model(&models.Session{})
	if username := strings.TrimSpace(c.Query("username")); username != "" {
		query = query.Where("username = ?", username)
	}

	var total int64
	query.Count(&total)

	var sessions []models.Session
	if err := query.Order("start_time DESC").Offset((page - 1) * limit).Limit(limit).
		Find(&sessions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch sessions",
		})
	}

	return c.JSON(fiber.Map{
		"sessions": sessions,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}
