package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/wisprad/backend/internal/database"
	"github.com/wisprad/backend/internal/models"
)

type TwoFAHandler struct{}

func NewTwoFAHandler() *TwoFAHandler {
	return &TwoFAHandler{}
}

func currentAdmin(c *fiber.Ctx) (*models.Admin, error) {
	adminID, _ := c.Locals("admin_id").(uint)
	var admin models.Admin
	if err := database.DB.First(&admin, adminID).Error; err != nil {
		return nil, err
	}
	return &admin, nil
}

// Setup generates a new TOTP secret for the admin. The secret is stored
// immediately but 2FA only becomes required after Verify confirms a code.
func (h *TwoFAHandler) Setup(c *fiber.Ctx) error {
	admin, err := currentAdmin(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Admin not found",
		})
	}

	if admin.TwoFactorEnabled {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "2FA is already enabled",
		})
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "RADIUS Dashboard",
		AccountName: admin.Username,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate 2FA secret",
		})
	}

	if err := database.DB.Model(admin).Update("two_factor_secret", key.Secret()).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save 2FA secret",
		})
	}

	return c.JSON(fiber.Map{
		"secret": key.Secret(),
		"url":    key.URL(),
	})
}

// Verify confirms a TOTP code against the pending secret and enables 2FA
func (h *TwoFAHandler) Verify(c *fiber.Ctx) error {
	admin, err := currentAdmin(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Admin not found",
		})
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil || req.Code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Code is required",
		})
	}

	if admin.TwoFactorSecret == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "2FA setup has not been started",
		})
	}

	if !totp.Validate(req.Code, admin.TwoFactorSecret) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid code. Please try again",
		})
	}

	if err := database.DB.Model(admin).Update("two_factor_enabled", true).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to enable 2FA",
		})
	}

	return c.JSON(fiber.Map{
		"message": "2FA enabled successfully",
	})
}

// Disable turns off 2FA after re-verifying the admin's password
func (h *TwoFAHandler) Disable(c *fiber.Ctx) error {
	admin, err := currentAdmin(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Admin not found",
		})
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(req.Password)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Password is incorrect",
		})
	}

	err = database.DB.Model(admin).Updates(map[string]interface{}{
		"two_factor_enabled": false,
		"two_factor_secret":  "",
	}).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to disable 2FA",
		})
	}

	return c.JSON(fiber.Map{
		"message": "2FA disabled",
	})
}
