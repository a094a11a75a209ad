package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/wisprad/backend/internal/config"
	"github.com/wisprad/backend/internal/database"
	"github.com/wisprad/backend/internal/handlers"
	"github.com/wisprad/backend/internal/middleware"
	"github.com/wisprad/backend/internal/models"
	"github.com/wisprad/backend/internal/radius"
	"github.com/wisprad/backend/internal/services"
)

func main() {
	log.SetFlags(log.LstdFlags)
	cfg := config.Load()

	if err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := models.AutoMigrate(database.DB); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	seedAdmin(cfg)
	seedDefaultProfile()

	radiusServer := radius.NewServer(cfg.RadiusAuthPort, cfg.RadiusAcctPort, cfg.Debug())
	if err := radiusServer.Start(); err != nil {
		log.Fatalf("Failed to start RADIUS server: %v", err)
	}

	cleanupService := services.NewSessionCleanupService(cfg.StaleSessionMinutes)
	cleanupService.Start()

	backupService := services.NewBackupService(cfg)
	backupService.Start()

	app := buildApp(cfg, radiusServer, backupService)

	go func() {
		addr := ":" + strconv.Itoa(cfg.DashboardPort)
		log.Printf("Starting dashboard API on %s", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("Dashboard API error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	radiusServer.Shutdown(ctx)
	cleanupService.Stop()
	backupService.Stop()
	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("Dashboard shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
}

func buildApp(cfg *config.Config, radiusServer *radius.Server, backupService *services.BackupService) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(middleware.Recovery())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS())

	authHandler := handlers.NewAuthHandler(cfg)
	twoFAHandler := handlers.NewTwoFAHandler()
	userHandler := handlers.NewUserHandler()
	nasHandler := handlers.NewNasHandler(cfg, radiusServer.LoadSecrets)
	profileHandler := handlers.NewProfileHandler()
	sessionHandler := handlers.NewSessionHandler()
	acctHandler := handlers.NewAccountingHandler()
	dashboardHandler := handlers.NewDashboardHandler(radiusServer.DroppedPackets)

	app.Get("/api/health", dashboardHandler.Health)
	app.Post("/api/auth/login", authHandler.Login)

	api := app.Group("/api", middleware.AuthRequired(cfg.JWTSecret))

	api.Post("/auth/logout", authHandler.Logout)
	api.Get("/auth/me", authHandler.Me)
	api.Put("/auth/password", authHandler.ChangePassword)

	api.Post("/auth/2fa/setup", twoFAHandler.Setup)
	api.Post("/auth/2fa/verify", twoFAHandler.Verify)
	api.Post("/auth/2fa/disable", twoFAHandler.Disable)

	admin := middleware.AdminOnly()

	api.Get("/users", userHandler.List)
	api.Get("/users/:id", userHandler.Get)
	api.Post("/users", admin, userHandler.Create)
	api.Put("/users/:id", admin, userHandler.Update)
	api.Delete("/users/:id", admin, userHandler.Delete)

	api.Get("/nas", nasHandler.List)
	api.Get("/nas/:id", nasHandler.Get)
	api.Post("/nas", admin, nasHandler.Create)
	api.Put("/nas/:id", admin, nasHandler.Update)
	api.Delete("/nas/:id", admin, nasHandler.Delete)

	api.Get("/profiles", profileHandler.List)
	api.Post("/profiles", admin, profileHandler.Create)
	api.Put("/profiles/:id", admin, profileHandler.Update)
	api.Delete("/profiles/:id", admin, profileHandler.Delete)

	api.Get("/sessions", sessionHandler.Active)
	api.Get("/sessions/history", sessionHandler.List)

	api.Get("/accounting", acctHandler.List)
	api.Get("/auth-log", acctHandler.AuthLogList)

	api.Get("/dashboard/stats", dashboardHandler.Stats)

	api.Post("/backup/run", admin, func(c *fiber.Ctx) error {
		filename, err := backupService.RunNow()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"filename": filename,
		})
	})

	return app
}

// seedAdmin creates the initial admin account on first boot
func seedAdmin(cfg *config.Config) {
	var count int64
	database.DB.Model(&models.Admin{}).Count(&count)
	if count > 0 {
		return
	}

	hashed, err := handlers.HashPassword(cfg.AdminPassword)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}

	admin := models.Admin{
		Username: cfg.AdminUsername,
		Password: hashed,
		FullName: "Administrator",
		Role:     models.AdminRoleAdmin,
		IsActive: true,
	}
	if err := database.DB.Create(&admin).Error; err != nil {
		log.Fatalf("Failed to seed admin account: %v", err)
	}
	log.Printf("Seeded admin account %q", cfg.AdminUsername)
}

// seedDefaultProfile ensures the default profile exists
func seedDefaultProfile() {
	var count int64
	database.DB.Model(&models.Profile{}).Where("name = ?", models.DefaultProfileName).Count(&count)
	if count > 0 {
		return
	}

	profile := models.Profile{
		Name:        models.DefaultProfileName,
		Description: "Fallback profile, carries no extra reply attributes",
	}
	if err := database.DB.Create(&profile).Error; err != nil {
		log.Fatalf("Failed to seed default profile: %v", err)
	}
}
