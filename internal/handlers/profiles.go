package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/wisprad/backend/internal/database"
	"github.com/wisprad/backend/internal/models"
)

type ProfileHandler struct{}

func NewProfileHandler() *ProfileHandler {
	return &ProfileHandler{}
}

// ProfileRequest is the create/update request body
type ProfileRequest struct {
	Name           string `json:"name"`
	RateLimit      string `json:"rate_limit"`
	SessionTimeout *int   `json:"session_timeout"`
	IdleTimeout    *int   `json:"idle_timeout"`
	Description    string `json:"description"`
}

// List returns all profiles
func (h *ProfileHandler) List(c *fiber.Ctx) error {
	var profiles []models.Profile
	if err := database.DB.Order("name").Find(&profiles).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch profiles",
		})
	}
	return c.JSON(fiber.Map{
		"profiles": profiles,
		"total":    len(profiles),
	})
}

// Create adds a new profile
func (h *ProfileHandler) Create(c *fiber.Ctx) error {
	var req ProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Profile name is required",
		})
	}

	profile := models.Profile{
		Name:        req.Name,
		RateLimit:   req.RateLimit,
		Description: req.Description,
	}
	if req.SessionTimeout != nil {
		profile.SessionTimeout = *req.SessionTimeout
	}
	if req.IdleTimeout != nil {
		profile.IdleTimeout = *req.IdleTimeout
	}

	if err := database.DB.Create(&profile).Error; err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "A profile with this name already exists",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create profile",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(profile)
}

// Update modifies a profile. Renaming the default profile is not allowed.
func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	var profile models.Profile
	if err := database.DB.First(&profile, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Profile not found",
		})
	}

	var req ProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Name != "" && req.Name != profile.Name {
		if profile.Name == models.DefaultProfileName {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "The default profile cannot be renamed",
			})
		}
		profile.Name = strings.TrimSpace(req.Name)
	}
	profile.RateLimit = req.RateLimit
	profile.Description = req.Description
	if req.SessionTimeout != nil {
		profile.SessionTimeout = *req.SessionTimeout
	}
	if req.IdleTimeout != nil {
		profile.IdleTimeout = *req.IdleTimeout
	}

	if err := database.DB.Save(&profile).Error; err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "A profile with this name already exists",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update profile",
		})
	}

	return c.JSON(profile)
}

// Delete removes a profile that is not in use and not the default
func (h *ProfileHandler) Delete(c *fiber.Ctx) error {
	var profile models.Profile
	if err := database.DB.First(&profile, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Profile not found",
		})
	}

	if profile.Name == models.DefaultProfileName {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "The default profile cannot be deleted",
		})
	}

	var inUse int64
	database.DB.Model(&models.User{}).Where("profile_name = ?", profile.Name).Count(&inUse)
	if inUse > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Profile is in use by existing users",
		})
	}

	if err := database.DB.Delete(&profile).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete profile",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Profile deleted",
	})
}
