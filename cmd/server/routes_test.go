package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/huangang/issuetrack/internal/config"
	"github.com/huangang/issuetrack/internal/middleware"
	"github.com/huangang/issuetrack/internal/models"
	"github.com/huangang/issuetrack/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	db     *gorm.DB
	router *gin.Engine
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.JWT = config.JWTConfig{Secret: "test-secret-for-routes", ExpireHour: 1}
	cfg.RateLimit = config.RateLimitConfig{RPS: 1000, Burst: 1000}
	cfg.Admin = config.AdminConfig{Username: "admin", Password: "admin123", Email: "admin@example.com"}
	return cfg
}

func newTestServer(t *testing.T) *testServer {
	return newTestServerWith(t, testConfig())
}

// newTestServerWith serves the production route table over an in-memory
// database.
func newTestServerWith(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()

	db, err := models.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.Migrate(db))

	svc := newAppServices(cfg, db)
	t.Cleanup(svc.shutdown)

	r := gin.New()
	registerRoutes(r, svc)
	return &testServer{db: db, router: r}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func (s *testServer) call(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w.Code, env
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	code, env := s.call(t, "POST", "/api/login", "", gin.H{"username": username, "password": password})
	require.Equal(t, http.StatusOK, code, env.Message)
	var resp struct {
		Token string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	return resp.Token
}

func (s *testServer) register(t *testing.T, username string) uint {
	t.Helper()
	code, env := s.call(t, "POST", "/api/register", "", gin.H{
		"name": strings.ToUpper(username), "username": username,
		"email": username + "@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var u models.User
	require.NoError(t, json.Unmarshal(env.Data, &u))
	return u.ID
}

func idOf(t *testing.T, env envelope) uint {
	t.Helper()
	var v struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v.ID
}

func utoa(v uint) string { return strconv.FormatUint(uint64(v), 10) }

func TestAuditedWorkflow(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin", "admin123")

	pmID := s.register(t, "pm")
	devID := s.register(t, "dev")
	s.register(t, "outsider")

	code, env := s.call(t, "POST", "/api/admin/change_role", admin, gin.H{"user_id": pmID, "role": "PROJECT_MANAGER"})
	require.Equal(t, http.StatusOK, code, env.Message)

	code, env = s.call(t, "POST", "/api/admin/change_role", admin, gin.H{"user_id": devID, "role": "superuser"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_failed", env.Error)

	pm := s.login(t, "pm", "secret123")
	dev := s.login(t, "dev", "secret123")
	outsider := s.login(t, "outsider", "secret123")

	code, env = s.call(t, "POST", "/api/projects", dev, gin.H{"name": "Nope"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "role_mismatch", env.Error)

	code, env = s.call(t, "POST", "/api/projects", pm, gin.H{"name": "Apollo"})
	require.Equal(t, http.StatusCreated, code, env.Message)
	projectID := idOf(t, env)
	projectPath := "/api/projects/" + utoa(projectID)

	code, env = s.call(t, "GET", projectPath, outsider, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "access_forbidden", env.Error)

	code, _ = s.call(t, "POST", projectPath+"/members", pm, gin.H{"user_id": devID})
	require.Equal(t, http.StatusCreated, code)
	code, env = s.call(t, "POST", projectPath+"/members", pm, gin.H{"user_id": devID})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_failed", env.Error)

	code, env = s.call(t, "POST", projectPath+"/issues", dev, gin.H{"title": "Crash", "status": "open"})
	require.Equal(t, http.StatusCreated, code, env.Message)
	issuePath := projectPath + "/issues/" + utoa(idOf(t, env))

	code, env = s.call(t, "POST", issuePath+"/comments", dev, gin.H{"content": "looking"})
	require.Equal(t, http.StatusCreated, code, env.Message)
	commentPath := issuePath + "/comments/" + utoa(idOf(t, env))

	code, env = s.call(t, "PUT", commentPath, pm, gin.H{"content": "hijack"})
	assert.Equal(t, http.StatusForbidden, code)

	code, env = s.call(t, "POST", issuePath+"/comments", dev, gin.H{"content": ""})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.call(t, "GET", "/api/logs", pm, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "role_mismatch", env.Error)

	code, env = s.call(t, "GET", "/api/logs", admin, nil)
	require.Equal(t, http.StatusOK, code)
	var entries []services.LogEntry
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	require.Len(t, entries, 5)
	assert.Contains(t, entries[0].Action, "Inserted comment")
	assert.Contains(t, entries[0].Action, "by dev")
	assert.Equal(t, "Updated user with ID "+utoa(pmID)+" (PM) by admin", entries[4].Action)

	code, env = s.call(t, "GET", "/api/logs/2", admin, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	assert.Len(t, entries, 2)

	code, _ = s.call(t, "GET", "/api/logs?limit=1", admin, nil)
	assert.Equal(t, http.StatusOK, code)
	code, env = s.call(t, "GET", "/api/logs/0", admin, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.call(t, "GET", "/api/logs?limit=abc", admin, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestDeletedUserTokenIsRejected(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin", "admin123")
	devID := s.register(t, "dev")
	dev := s.login(t, "dev", "secret123")
	s.register(t, "ops")

	code, _ := s.call(t, "GET", "/api/user", dev, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = s.call(t, "DELETE", "/api/admin/users/"+utoa(devID), admin, nil)
	require.Equal(t, http.StatusOK, code)

	code, env := s.call(t, "GET", "/api/user", dev, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthenticated", env.Error)

	// a new account under the same username does not revive the old token
	s.register(t, "dev")
	code, env = s.call(t, "GET", "/api/user", dev, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthenticated", env.Error)

	fresh := s.login(t, "dev", "secret123")
	code, _ = s.call(t, "GET", "/api/user", fresh, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestAdminCannotDeleteSelf(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin", "admin123")

	var adminUser models.User
	require.NoError(t, s.db.Where("username = ?", "admin").First(&adminUser).Error)

	code, env := s.call(t, "DELETE", "/api/admin/users/"+utoa(adminUser.ID), admin, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_failed", env.Error)
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "dev")

	code, env := s.call(t, "POST", "/api/register", "", gin.H{
		"name": "x", "username": "dev", "email": "x@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "username already exists")

	code, _ = s.call(t, "POST", "/api/register", "", gin.H{"username": "y"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)

	// produce at least one decision sample
	s.call(t, "GET", "/api/user", s.login(t, "admin", "admin123"), nil)

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "issuetrack_authz_decisions_total")
}

func TestLoginThrottled(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{RPS: 0.001, Burst: 2}
	s := newTestServerWith(t, cfg)

	code, _ := s.call(t, "POST", "/api/login", "", gin.H{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)
	s.login(t, "admin", "admin123")

	code, env := s.call(t, "POST", "/api/login", "", gin.H{"username": "admin", "password": "admin123"})
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "too_many_requests", env.Error)
	assert.Empty(t, env.Data)

	// only the register and login routes are throttled
	code, _ = s.call(t, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestRoutesCarryRequestIDAndCORS(t *testing.T) {
	cfg := testConfig()
	cfg.CORS = config.CORSConfig{AllowOrigins: []string{"https://app.example.com"}}
	s := newTestServerWith(t, cfg)

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set(middleware.RequestIDHeader, "trace-1")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "trace-1", w.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
