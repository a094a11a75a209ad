package handlers

import (
	"errors"
	"log"
	"net"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/wisprad/backend/internal/config"
	"github.com/wisprad/backend/internal/database"
	"github.com/wisprad/backend/internal/models"
)

// NasHandler manages NAS devices. Mutations trigger a reload of the RADIUS
// server's secret cache so changes take effect without a restart.
type NasHandler struct {
	cfg           *config.Config
	reloadSecrets func() error
}

func NewNasHandler(cfg *config.Config, reloadSecrets func() error) *NasHandler {
	return &NasHandler{cfg: cfg, reloadSecrets: reloadSecrets}
}

func (h *NasHandler) reload() {
	if h.reloadSecrets == nil {
		return
	}
	if err := h.reloadSecrets(); err != nil {
		log.Printf("NAS: secret cache reload failed: %v", err)
	}
}

// NasRequest is the create/update request body. Secret is write-only.
type NasRequest struct {
	Name        string         `json:"name"`
	IPAddress   string         `json:"ip_address"`
	Type        models.NasType `json:"type"`
	Description string         `json:"description"`
	Secret      string         `json:"secret"`
	IsActive    *bool          `json:"is_active"`
}

func withHasSecret(nas models.Nas) models.Nas {
	nas.HasSecret = nas.Secret != ""
	return nas
}

// List returns all registered NAS devices
func (h *NasHandler) List(c *fiber.Ctx) error {
	var nasList []models.Nas
	if err := database.DB.Order("name").Find(&nasList).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch NAS devices",
		})
	}

	for i := range nasList {
		nasList[i] = withHasSecret(nasList[i])
	}

	return c.JSON(fiber.Map{
		"nas":   nasList,
		"total": len(nasList),
	})
}

// Get returns a single NAS device by ID
func (h *NasHandler) Get(c *fiber.Ctx) error {
	var nas models.Nas
	if err := database.DB.First(&nas, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "NAS not found",
		})
	}
	return c.JSON(withHasSecret(nas))
}

// Create registers a new NAS device. A missing secret falls back to the
// configured default secret.
func (h *NasHandler) Create(c *fiber.Ctx) error {
	var req NasRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	req.IPAddress = strings.TrimSpace(req.IPAddress)
	if req.Name == "" || req.IPAddress == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Name and IP address are required",
		})
	}
	if net.ParseIP(req.IPAddress) == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid IP address",
		})
	}

	secret := req.Secret
	if secret == "" {
		secret = h.cfg.DefaultSecret
	}

	nas := models.Nas{
		Name:        req.Name,
		IPAddress:   req.IPAddress,
		Type:        models.NasTypeMikrotik,
		Description: req.Description,
		Secret:      secret,
		IsActive:    true,
	}
	if req.Type != "" {
		nas.Type = req.Type
	}
	if req.IsActive != nil {
		nas.IsActive = *req.IsActive
	}

	if err := database.DB.Create(&nas).Error; err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "A NAS with this IP address already exists",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create NAS",
		})
	}

	h.reload()
	return c.Status(fiber.StatusCreated).JSON(withHasSecret(nas))
}

// Update modifies a NAS device. An empty secret keeps the current one.
func (h *NasHandler) Update(c *fiber.Ctx) error {
	var nas models.Nas
	if err := database.DB.First(&nas, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "NAS not found",
		})
	}

	var req NasRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Name != "" {
		nas.Name = req.Name
	}
	if req.IPAddress != "" {
		req.IPAddress = strings.TrimSpace(req.IPAddress)
		if net.ParseIP(req.IPAddress) == nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid IP address",
			})
		}
		nas.IPAddress = req.IPAddress
	}
	if req.Type != "" {
		nas.Type = req.Type
	}
	nas.Description = req.Description
	if req.Secret != "" {
		nas.Secret = req.Secret
	}
	if req.IsActive != nil {
		nas.IsActive = *req.IsActive
	}

	if err := database.DB.Save(&nas).Error; err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "A NAS with this IP address already exists",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update NAS",
		})
	}

	h.reload()
	return c.JSON(withHasSecret(nas))
}

// Delete removes a NAS device
func (h *NasHandler) Delete(c *fiber.Ctx) error {
	var nas models.Nas
	if err := database.DB.First(&nas, c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "NAS not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch NAS",
		})
	}

	if err := database.DB.Delete(&nas).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete NAS",
		})
	}

	h.reload()
	return c.JSON(fiber.Map{
		"message": "NAS deleted",
	})
}
