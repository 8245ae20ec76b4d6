package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/wellness-engine/internal/common"
	"serotonyl.ru/wellness-engine/internal/domain"
	"serotonyl.ru/wellness-engine/internal/features/accounts"
	"serotonyl.ru/wellness-engine/internal/features/admin"
	"serotonyl.ru/wellness-engine/internal/features/badges"
	"serotonyl.ru/wellness-engine/internal/features/ledger"
	"serotonyl.ru/wellness-engine/internal/features/plant"
	"serotonyl.ru/wellness-engine/internal/features/rewards"
	"serotonyl.ru/wellness-engine/internal/features/shop"
	"serotonyl.ru/wellness-engine/internal/features/streak"
	"serotonyl.ru/wellness-engine/internal/features/tasks"
	"serotonyl.ru/wellness-engine/internal/httpapi/middleware"
	"serotonyl.ru/wellness-engine/internal/jobs"
	"serotonyl.ru/wellness-engine/internal/storage/memory"
)

const adminPassword = "admin-pass"

var (
	secret   = []byte("test-secret")
	hashOnce sync.Once
	hash     string
)

func init() {
	gin.SetMode(gin.TestMode)
}

func adminHash(t *testing.T) string {
	hashOnce.Do(func() {
		var err error
		hash, err = admin.HashPassword(adminPassword)
		require.NoError(t, err)
	})
	return hash
}

func newTestServer(t *testing.T, ready func(context.Context) error) *Server {
	t.Helper()
	store := memory.New()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := common.ClockFunc(func() time.Time { return now })

	evaluator := badges.NewEvaluator(store, nil, clock)
	shopSvc := shop.NewService(store, clock)
	plantSvc := plant.NewService(store, nil, clock, plant.DefaultPolicy)
	taskSvc := tasks.NewService(store, clock, nil)
	scheduler := jobs.NewScheduler(time.UTC, jobs.Standard(
		jobs.Specs{TaskAssignment: "0 0 * * *", StreakReset: "5 0 * * *", PlantDecay: "0 1 * * *"},
		taskSvc, streak.NewService(store, clock), plantSvc,
	)...)

	adminSvc := admin.NewService(store, adminHash(t), clock)
	require.NoError(t, adminSvc.SeedCatalog(context.Background(),
		[]domain.Badge{{ID: "first", Name: "First", PointsRequired: 10}},
		[]domain.StoreItem{{ID: "pot", Name: "Pot", Cost: 60, Category: "plant-pot", IsActive: true}},
	))

	s := NewServer(Services{
		Accounts: accounts.NewService(store, clock),
		Ledger:   ledger.NewService(store),
		Plant:    plantSvc,
		Shop:     shopSvc,
		Badges:   evaluator,
		Tasks:    taskSvc,
		Pipeline: rewards.NewPipeline(store, clock, evaluator, shopSvc, rewards.DefaultAmounts, plant.DefaultPolicy),
		Admin:    adminSvc,
		Jobs:     scheduler,
	}, Options{
		JWTSecret: secret,
		RateLimit: 1000,
		Metrics:   true,
		Ready:     ready,
	})
	t.Cleanup(s.Close)
	return s
}

type client struct {
	t      *testing.T
	s      *Server
	token  string
	header map[string]string
}

func (s *Server) as(t *testing.T, userID string) *client {
	token, err := middleware.IssueToken(secret, userID, time.Hour, time.Now())
	require.NoError(t, err)
	return &client{t: t, s: s, token: token}
}

func (c *client) do(method, path string, body any) (int, map[string]any) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.header {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	c.s.Handler().ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w.Code, out
}

func (s *Server) asAdmin(t *testing.T, password string) *client {
	return &client{t: t, s: s, header: map[string]string{"X-Admin-Password": password}}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)
	anon := &client{t: t, s: s}

	code, body := anon.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	degraded := newTestServer(t, func(context.Context) error { return errors.New("db down") })
	code, body = (&client{t: t, s: degraded}).do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", body["status"])
}

func TestRequiresToken(t *testing.T) {
	s := newTestServer(t, nil)
	code, _ := (&client{t: t, s: s}).do(http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRegisterAndMe(t *testing.T) {
	s := newTestServer(t, nil)
	u := s.as(t, "u1")

	code, body := u.do(http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["error"])

	code, _ = u.do(http.MethodPost, "/api/register", nil)
	assert.Equal(t, http.StatusCreated, code)
	code, _ = u.do(http.MethodPost, "/api/register", nil)
	assert.Equal(t, http.StatusOK, code)

	code, body = u.do(http.MethodGet, "/api/me", nil)
	require.Equal(t, http.StatusOK, code)
	acc := body["account"].(map[string]any)
	assert.Equal(t, "u1", acc["userId"])
	assert.EqualValues(t, 0, acc["pointsBalance"])
	p := body["plant"].(map[string]any)
	assert.Equal(t, "healthy", p["healthStatus"])
}

func TestActionsFlow(t *testing.T) {
	s := newTestServer(t, nil)
	u := s.as(t, "u1")
	code, _ := u.do(http.MethodPost, "/api/register", nil)
	require.Equal(t, http.StatusCreated, code)

	code, body := u.do(http.MethodPost, "/api/mood", map[string]string{"mood": "calm"})
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 5, body["credited"])

	code, body = u.do(http.MethodPost, "/api/journal", nil)
	require.Equal(t, http.StatusOK, code)
	newBadges := body["newBadges"].([]any)
	require.Len(t, newBadges, 1)
	assert.Equal(t, "first", newBadges[0].(map[string]any)["id"])

	code, _ = u.do(http.MethodPost, "/api/breathing", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)
	code, body = u.do(http.MethodPost, "/api/breathing", map[string]int{"durationSeconds": -1})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_input", body["error"])
	code, body = u.do(http.MethodPost, "/api/breathing", map[string]int{"durationSeconds": 62})
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 12, body["credited"])

	code, body = u.do(http.MethodPost, "/api/plant/water", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 10, body["credited"])
	assert.Equal(t, "healthy", body["plant"].(map[string]any)["healthStatus"])

	code, body = u.do(http.MethodGet, "/api/transactions?limit=10", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["transactions"].([]any), 4)

	code, body = u.do(http.MethodGet, "/api/badges", nil)
	require.Equal(t, http.StatusOK, code)
	list := body["badges"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, true, list[0].(map[string]any)["earned"])
}

func TestTasksFlow(t *testing.T) {
	s := newTestServer(t, nil)
	u := s.as(t, "u1")
	other := s.as(t, "u2")
	u.do(http.MethodPost, "/api/register", nil)
	other.do(http.MethodPost, "/api/register", nil)

	code, body := s.asAdmin(t, adminPassword).do(http.MethodPost, "/admin/jobs/tasks/run", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, body["updated"])

	code, body = u.do(http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, code)
	list := body["tasks"].([]any)
	require.Len(t, list, 3)
	taskID := list[0].(map[string]any)["id"].(string)

	code, body = other.do(http.MethodPost, "/api/tasks/"+taskID+"/complete", nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "forbidden", body["error"])

	code, body = u.do(http.MethodPost, "/api/tasks/"+taskID+"/complete", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["task"].(map[string]any)["isCompleted"])

	code, body = u.do(http.MethodPost, "/api/tasks/"+taskID+"/complete", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already_completed", body["error"])

	code, _ = u.do(http.MethodPost, "/api/tasks/nope/complete", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestStoreFlow(t *testing.T) {
	s := newTestServer(t, nil)
	u := s.as(t, "u1")
	u.do(http.MethodPost, "/api/register", nil)
	adm := s.asAdmin(t, adminPassword)

	code, body := u.do(http.MethodGet, "/api/store", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["items"].([]any), 1)

	code, _ = adm.do(http.MethodPost, "/admin/accounts/u1/grant", map[string]any{"amount": 50})
	require.Equal(t, http.StatusOK, code)

	code, body = u.do(http.MethodPost, "/api/store/pot/purchase", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "insufficient_funds", body["error"])

	code, _ = adm.do(http.MethodPost, "/admin/accounts/u1/grant", map[string]any{"amount": 10, "reason": "бонус"})
	require.Equal(t, http.StatusOK, code)

	code, body = u.do(http.MethodPost, "/api/store/pot/purchase", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, body["account"].(map[string]any)["pointsBalance"])

	code, body = u.do(http.MethodPost, "/api/store/pot/purchase", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already_owned", body["error"])

	code, _ = u.do(http.MethodPost, "/api/store/ghost/purchase", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = u.do(http.MethodGet, "/api/inventory", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["items"].([]any), 1)
}

func TestAdminEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	code, body := s.asAdmin(t, "wrong").do(http.MethodPut, "/admin/badges", domain.Badge{ID: "b", Name: "B"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthorized", body["error"])

	adm := s.asAdmin(t, adminPassword)
	code, _ = adm.do(http.MethodPut, "/admin/badges", domain.Badge{ID: "b", Name: "B", PointsRequired: 100})
	assert.Equal(t, http.StatusOK, code)

	code, body = adm.do(http.MethodPut, "/admin/store-items", domain.StoreItem{ID: "x", Name: "X", Cost: -5})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_input", body["error"])

	code, _ = adm.do(http.MethodPost, "/admin/jobs/nope/run", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = adm.do(http.MethodPost, "/admin/accounts/ghost/grant", map[string]any{"amount": 10})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{common.ErrAccountNotFound, http.StatusNotFound},
		{common.ErrInsufficientFunds, http.StatusBadRequest},
		{common.ErrAlreadyOwned, http.StatusConflict},
		{common.ErrAlreadyCompleted, http.StatusConflict},
		{common.ErrForbidden, http.StatusForbidden},
		{common.ErrInvalidAmount, http.StatusBadRequest},
		{common.ErrConflict, http.StatusConflict},
		{common.ErrTooManyAttempts, http.StatusTooManyRequests},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, _ := statusFor(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
	}
}
