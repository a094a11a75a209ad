package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wisprad/backend/internal/config"
	"github.com/wisprad/backend/internal/database"
	"github.com/wisprad/backend/internal/middleware"
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
	database.Redis = nil

	attemptsMutex.Lock()
	loginAttempts = make(map[string]*LoginAttempt)
	attemptsMutex.Unlock()
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:      "handlers-test-secret",
		JWTExpireHours: 1,
		DefaultSecret:  "fallback-secret",
	}
}

func seedTestAdmin(t *testing.T, username, password string) models.Admin {
	t.Helper()
	hashed, err := HashPassword(password)
	require.NoError(t, err)

	admin := models.Admin{
		Username: username,
		Password: hashed,
		Role:     models.AdminRoleAdmin,
		IsActive: true,
	}
	require.NoError(t, database.DB.Create(&admin).Error)
	return admin
}

func testApp(cfg *config.Config) *fiber.App {
	app := fiber.New()

	authHandler := NewAuthHandler(cfg)
	userHandler := NewUserHandler()
	nasHandler := NewNasHandler(cfg, nil)
	profileHandler := NewProfileHandler()
	sessionHandler := NewSessionHandler()
	dashboardHandler := NewDashboardHandler(nil)

	app.Post("/api/auth/login", authHandler.Login)

	api := app.Group("/api", middleware.AuthRequired(cfg.JWTSecret))
	api.Post("/auth/logout", authHandler.Logout)
	api.Get("/auth/me", authHandler.Me)

	api.Get("/users", userHandler.List)
	api.Post("/users", userHandler.Create)
	api.Put("/users/:id", userHandler.Update)
	api.Delete("/users/:id", userHandler.Delete)

	api.Get("/nas", nasHandler.List)
	api.Post("/nas", nasHandler.Create)

	api.Get("/profiles", profileHandler.List)
	api.Post("/profiles", profileHandler.Create)
	api.Delete("/profiles/:id", profileHandler.Delete)

	api.Get("/sessions", sessionHandler.Active)
	api.Get("/sessions/history", sessionHandler.List)

	api.Get("/dashboard/stats", dashboardHandler.Stats)

	return app
}

func doRequest(t *testing.T, app *fiber.App, method, target string, body interface{}, token string) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &payload))
	}
	return resp.StatusCode, payload
}

func loginToken(t *testing.T, app *fiber.App, username, password string) string {
	t.Helper()
	status, payload := doRequest(t, app, "POST", "/api/auth/login",
		fiber.Map{"username": username, "password": password}, "")
	require.Equal(t, fiber.StatusOK, status)
	token, _ := payload["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestLogin(t *testing.T) {
	setupTestDB(t)
	cfg := testConfig()
	seedTestAdmin(t, "root", "hunter22")
	app := testApp(cfg)

	// Wrong password
	status, payload := doRequest(t, app, "POST", "/api/auth/login",
		fiber.Map{"username": "root", "password": "wrong"}, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Contains(t, payload, "error")

	// Missing fields
	status, _ = doRequest(t, app, "POST", "/api/auth/login",
		fiber.Map{"username": "root"}, "")
	assert.Equal(t, fiber.StatusBadRequest, status)

	// Valid login
	token := loginToken(t, app, "root", "hunter22")

	status, payload = doRequest(t, app, "GET", "/api/auth/me", nil, token)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "root", payload["username"])
}

func TestLoginDisabledAccount(t *testing.T) {
	setupTestDB(t)
	cfg := testConfig()
	admin := seedTestAdmin(t, "root", "hunter22")
	require.NoError(t, database.DB.Model(&admin).Update("is_active", false).Error)
	app := testApp(cfg)

	status, _ := doRequest(t, app, "POST", "/api/auth/login",
		fiber.Map{"username": "root", "password": "hunter22"}, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestLoginLockout(t *testing.T) {
	setupTestDB(t)
	cfg := testConfig()
	seedTestAdmin(t, "root", "hunter22")
	app := testApp(cfg)

	for i := 0; i < maxLoginAttempts; i++ {
		status, _ := doRequest(t, app, "POST", "/api/auth/login",
			fiber.Map{"username": "root", "password": "wrong"}, "")
		assert.Equal(t, fiber.StatusUnauthorized, status)
	}

	// Even the right password is refused while the IP is blocked
	status, _ := doRequest(t, app, "POST", "/api/auth/login",
		fiber.Map{"username": "root", "password": "hunter22"}, "")
	assert.Equal(t, fiber.StatusTooManyRequests, status)
}

func TestLogoutRevokesToken(t *testing.T) {
	setupTestDB(t)
	cfg := testConfig()
	seedTestAdmin(t, "root", "hunter22")
	app := testApp(cfg)

	token := loginToken(t, app, "root", "hunter22")

	status, _ := doRequest(t, app, "POST", "/api/auth/logout", nil, token)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = doRequest(t, app, "GET", "/api/auth/me", nil, token)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestUserCRUD(t *testing.T) {
	setupTestDB(t)
	cfg := testConfig()
	seedTestAdmin(t, "root", "hunter22")
	app := testApp(cfg)
	token := loginToken(t, app, "root", "hunter22")

	// Create
	status, payload := doRequest(t, app, "POST", "/api/users", fiber.Map{
		"username": "alice",
		"password": "wonderland",
	}, token)
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "alice", payload["username"])
	assert.Equal(t, "default", payload["profile_name"])

	// The NT hash never appears in API responses
	assert.NotContains(t, payload, "nt_hash")
	assert.NotContains(t, payload, "password")

	var user models.User
	require.NoError(t, database.DB.Where("username = ?", "alice").First(&user).Error)
	assert.Len(t, user.NTHash, 32)
	assert.Empty(t, user.Password)

	// Duplicate username
	status, _ = doRequest(t, app, "POST", "/api/users", fiber.Map{
		"username": "alice",
		"password": "other",
	}, token)
	assert.Equal(t, fiber.StatusBadRequest, status)

	// Create with cleartext storage for CHAP
	status, _ = doRequest(t, app, "POST", "/api/users", fiber.Map{
		"username":        "bob",
		"password":        "secret123",
		"store_cleartext": true,
	}, token)
	require.Equal(t, fiber.StatusCreated, status)

	var bob models.User
	require.NoError(t, database.DB.Where("username = ?", "bob").First(&bob).Error)
	assert.Equal(t, "secret123", bob.Password)
	assert.True(t, bob.StoreCleartext)

	// Update: dropping cleartext wipes the stored password
	status, _ = doRequest(t, app, "PUT", "/api/users/2", fiber.Map{
		"store_cleartext": false,
	}, token)
	require.Equal(t, fiber.StatusOK, status)
	require.NoError(t, database.DB.Where("username = ?", "bob").First(&bob).Error)
	assert.Empty(t, bob.Password)
	assert.False(t, bob.StoreCleartext)

	// List with search
	status, payload = doRequest(t, app, "GET", "/api/users?search=ali", nil, token)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(1), payload["total"])

	// Delete
	status, _ = doRequest(t, app, "DELETE", "/api/users/1", nil, token)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = doRequest(t, app, "DELETE", "/api/users/1", nil, token)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestNasCreate(t *testing.T) {
	setupTestDB(t)
	cfg := testConfig()
	seedTestAdmin(t, "root", "hunter22")
	app := testApp(cfg)
	token := loginToken(t, app, "root", "hunter22")

	// Without a secret the configured default applies
	status, payload := doRequest(t, app, "POST", "/api/nas", fiber.Map{
		"name":       "edge1",
		"ip_address": "192.0.2.1",
	}, token)
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, true, payload["has_secret"])
	assert.NotContains(t, payload, "secret")

	var nas models.Nas
	require.NoError(t, database.DB.Where("ip_address = ?", "192.0.2.1").First(&nas).Error)
	assert.Equal(t, cfg.DefaultSecret, nas.Secret)

	// Duplicate IP
	status, _ = doRequest(t, app, "POST", "/api/nas", fiber.Map{
		"name":       "edge2",
		"ip_address": "192.0.2.1",
		"secret":     "x",
	}, token)
	assert.Equal(t, fiber.StatusBadRequest, status)

	// Invalid IP
	status, _ = doRequest(t, app, "POST", "/api/nas", fiber.Map{
		"name":       "edge3",
		"ip_address": "not-an-ip",
	}, token)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestProfileGuards(t *testing.T) {
	setupTestDB(t)
	cfg := testConfig()
	seedTestAdmin(t, "root", "hunter22")
	app := testApp(cfg)
	token := loginToken(t, app, "root", "hunter22")

	require.NoError(t, database.DB.Create(&models.Profile{
		Name: models.DefaultProfileName,
	}).Error)

	status, payload := doRequest(t, app, "POST", "/api/profiles", fiber.Map{
		"name":       "premium",
		"rate_limit": "10M/10M",
	}, token)
	require.Equal(t, fiber.StatusCreated, status)
	premiumID := int(payload["id"].(float64))

	// Default profile cannot be deleted
	status, _ = doRequest(t, app, "DELETE", "/api/profiles/1", nil, token)
	assert.Equal(t, fiber.StatusBadRequest, status)

	// In-use profile cannot be deleted
	require.NoError(t, database.DB.Create(&models.User{
		Username: "alice", NTHash: "00000000000000000000000000000000",
		ProfileName: "premium", IsActive: true,
	}).Error)
	status, _ = doRequest(t, app, "DELETE", "/api/profiles/"+strconv.Itoa(premiumID), nil, token)
	assert.Equal(t, fiber.StatusBadRequest, status)

	require.NoError(t, database.DB.Where("username = ?", "alice").Delete(&models.User{}).Error)
	status, _ = doRequest(t, app, "DELETE", "/api/profiles/"+strconv.Itoa(premiumID), nil, token)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestUserUpdatePreservesOmittedFields(t *testing.T) {
	setupTestDB(t)
	cfg := testConfig()
	seedTestAdmin(t, "root", "hunter22")
	app := testApp(cfg)
	token := loginToken(t, app, "root", "hunter22")

	expiry := time.Now().Add(30 * 24 * time.Hour).UTC().Truncate(time.Second)
	status, _ := doRequest(t, app, "POST", "/api/users", fiber.Map{
		"username":   "carol",
		"password":   "secret123",
		"full_name":  "Carol Jones",
		"expired_at": expiry,
	}, token)
	require.Equal(t, fiber.StatusCreated, status)

	// An update that omits full_name and expired_at leaves them untouched
	status, _ = doRequest(t, app, "PUT", "/api/users/1", fiber.Map{
		"is_active": false,
	}, token)
	require.Equal(t, fiber.StatusOK, status)

	var user models.User
	require.NoError(t, database.DB.Where("username = ?", "carol").First(&user).Error)
	assert.Equal(t, "Carol Jones", user.FullName)
	require.NotNil(t, user.ExpiredAt)
	assert.WithinDuration(t, expiry, *user.ExpiredAt, time.Second)
	assert.False(t, user.IsActive)

	status, _ = doRequest(t, app, "PUT", "/api/users/1", fiber.Map{
		"full_name": "Carol Smith",
	}, token)
	require.Equal(t, fiber.StatusOK, status)
	require.NoError(t, database.DB.Where("username = ?", "carol").First(&user).Error)
	assert.Equal(t, "Carol Smith", user.FullName)
	assert.False(t, user.IsActive)
}

func TestSessionsRouteReturnsActiveOnly(t *testing.T) {
	setupTestDB(t)
	cfg := testConfig()
	seedTestAdmin(t, "root", "hunter22")
	app := testApp(cfg)
	token := loginToken(t, app, "root", "hunter22")

	stopped := time.Now().Add(-time.Hour)
	require.NoError(t, database.DB.Create(&models.Session{
		SessionID: "sess-live", Username: "alice",
		StartTime: time.Now().Add(-2 * time.Hour),
	}).Error)
	require.NoError(t, database.DB.Create(&models.Session{
		SessionID: "sess-done", Username: "bob",
		StartTime: time.Now().Add(-3 * time.Hour), StopTime: &stopped,
	}).Error)

	status, payload := doRequest(t, app, "GET", "/api/sessions", nil, token)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(1), payload["total"])
	sessions := payload["sessions"].([]interface{})
	require.Len(t, sessions, 1)
	assert.Equal(t, "sess-live", sessions[0].(map[string]interface{})["session_id"])

	status, payload = doRequest(t, app, "GET", "/api/sessions/history", nil, token)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(2), payload["total"])
}

func TestDashboardStatsTodayTraffic(t *testing.T) {
	setupTestDB(t)
	cfg := testConfig()
	seedTestAdmin(t, "root", "hunter22")
	app := testApp(cfg)
	token := loginToken(t, app, "root", "hunter22")

	// A long-running session whose counters accrued on previous days must
	// not show up as today's traffic while the accounting log is empty
	require.NoError(t, database.DB.Create(&models.Session{
		SessionID: "sess-old", Username: "alice",
		StartTime:   time.Now().Add(-48 * time.Hour),
		InputOctets: 1_000_000_000, OutputOctets: 2_000_000_000,
	}).Error)

	status, payload := doRequest(t, app, "GET", "/api/dashboard/stats", nil, token)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(1), payload["active_sessions"])
	assert.Equal(t, float64(0), payload["today_input"])
	assert.Equal(t, float64(0), payload["today_output"])

	// Log rows carry running totals; only the latest per session counts
	require.NoError(t, database.DB.Create(&models.AcctRecord{
		SessionID: "sess-a", Username: "alice", StatusType: "Interim-Update",
		InputOctets: 100, OutputOctets: 10,
	}).Error)
	require.NoError(t, database.DB.Create(&models.AcctRecord{
		SessionID: "sess-a", Username: "alice", StatusType: "Stop",
		InputOctets: 300, OutputOctets: 30,
	}).Error)
	require.NoError(t, database.DB.Create(&models.AcctRecord{
		SessionID: "sess-b", Username: "bob", StatusType: "Stop",
		InputOctets: 50, OutputOctets: 5,
	}).Error)

	status, payload = doRequest(t, app, "GET", "/api/dashboard/stats", nil, token)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(350), payload["today_input"])
	assert.Equal(t, float64(35), payload["today_output"])
}
