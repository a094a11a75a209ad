package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/wisprad/backend/internal/database"
	"github.com/wisprad/backend/internal/models"
)

type AccountingHandler struct{}

func NewAccountingHandler() *AccountingHandler {
	return &AccountingHandler{}
}

// List returns the accounting log, newest first, with pagination
func (h *AccountingHandler) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 50)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}

	query := database.DB.Model(&models.AcctRecord{})
	if username := strings.TrimSpace(c.Query("username")); username != "" {
		query = query.Where("username = ?", username)
	}
	if sessionID := strings.TrimSpace(c.Query("session_id")); sessionID != "" {
		query = query.Where("session_id = ?", sessionID)
	}

	var total int64
	query.Count(&total)

	var records []models.AcctRecord
	if err := query.Order("timestamp DESC").Offset((page - 1) * limit).Limit(limit).
		Find(&records).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch accounting records",
		})
	}

	return c.JSON(fiber.Map{
		"records": records,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// AuthLogList returns the authentication log, newest first
func (h *AccountingHandler) AuthLogList(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 50)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}

	query := database.DB.Model(&models.AuthLog{})
	if username := strings.TrimSpace(c.Query("username")); username != "" {
		query = query.Where("username = ?", username)
	}
	if reply := strings.TrimSpace(c.Query("reply")); reply != "" {
		query = query.Where("reply = ?", reply)
	}

	var total int64
	query.Count(&total)

	var entries []models.AuthLog
	if err := query.Order("auth_date DESC").Offset((page - 1) * limit).Limit(limit).
		Find(&entries).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch auth log",
		})
	}

	return c.JSON(fiber.Map{
		"entries": entries,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}
