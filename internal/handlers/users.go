package handlers

import (
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/wisprad/backend/internal/database"
	"github.com/wisprad/backend/internal/models"
	rad "github.com/wisprad/backend/internal/radius"
)

type UserHandler struct{}

func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

// UserRequest is the create/update request body. Password is write-only;
// on update an empty password means "keep the current credential".
type UserRequest struct {
	Username       string     `json:"username"`
	Password       string     `json:"password"`
	StoreCleartext *bool      `json:"store_cleartext"`
	FullName       *string    `json:"full_name"`
	ProfileName    string     `json:"profile_name"`
	IsActive       *bool      `json:"is_active"`
	ExpiredAt      *time.Time `json:"expired_at"`
}

// setCredential derives and stores the credential material for a password
func setCredential(user *models.User, password string, storeCleartext bool) {
	user.NTHash = hex.EncodeToString(rad.NTPasswordHash(password))
	user.StoreCleartext = storeCleartext
	if storeCleartext {
		user.Password = password
	} else {
		user.Password = ""
	}
}

// List returns users with pagination and optional username search
func (h *UserHandler) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 50)
	search := strings.TrimSpace(c.Query("search"))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}

	query := database.DB.Model(&models.User{})
	if search != "" {
		query = query.Where("username LIKE ? OR full_name LIKE ?", "%"+search+"%", "%"+search+"%")
	}

	var total int64
	query.Count(&total)

	var users []models.User
	if err := query.Order("username").Offset((page - 1) * limit).Limit(limit).Find(&users).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch users",
		})
	}

	return c.JSON(fiber.Map{
		"users": users,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// Get returns a single user by ID
func (h *UserHandler) Get(c *fiber.Ctx) error {
	var user models.User
	if err := database.DB.First(&user, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}
	return c.JSON(user)
}

// Create adds a new subscriber
func (h *UserHandler) Create(c *fiber.Ctx) error {
	var req UserRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Username and password are required",
		})
	}

	user := models.User{
		Username:    req.Username,
		ProfileName: models.DefaultProfileName,
		IsActive:    true,
		ExpiredAt:   req.ExpiredAt,
	}
	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.ProfileName != "" {
		user.ProfileName = req.ProfileName
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	storeCleartext := false
	if req.StoreCleartext != nil {
		storeCleartext = *req.StoreCleartext
	}
	setCredential(&user, req.Password, storeCleartext)

	if err := database.DB.Create(&user).Error; err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Username already exists",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create user",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(user)
}

// Update modifies an existing subscriber
func (h *UserHandler) Update(c *fiber.Ctx) error {
	var user models.User
	if err := database.DB.First(&user, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	var req UserRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	oldUsername := user.Username

	if req.Username != "" {
		user.Username = strings.TrimSpace(req.Username)
	}
	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.ProfileName != "" {
		user.ProfileName = req.ProfileName
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.ExpiredAt != nil {
		user.ExpiredAt = req.ExpiredAt
	}

	if req.Password != "" {
		storeCleartext := user.StoreCleartext
		if req.StoreCleartext != nil {
			storeCleartext = *req.StoreCleartext
		}
		setCredential(&user, req.Password, storeCleartext)
	} else if req.StoreCleartext != nil && !*req.StoreCleartext {
		// Dropping cleartext storage does not require a new password
		user.StoreCleartext = false
		user.Password = ""
	}

	if err := database.DB.Save(&user).Error; err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Username already exists",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update user",
		})
	}

	database.InvalidateUserCache(oldUsername)
	if user.Username != oldUsername {
		database.InvalidateUserCache(user.Username)
	}

	return c.JSON(user)
}

// Delete removes a subscriber
func (h *UserHandler) Delete(c *fiber.Ctx) error {
	var user models.User
	if err := database.DB.First(&user, c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "User not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch user",
		})
	}

	if err := database.DB.Delete(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete user",
		})
	}

	database.InvalidateUserCache(user.Username)

	return c.JSON(fiber.Map{
		"message": "User deleted",
	})
}
