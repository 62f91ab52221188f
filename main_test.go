package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nva-backoffice/internal/config"
	"nva-backoffice/internal/models"
	"nva-backoffice/internal/redis"
	"nva-backoffice/internal/repository"
	"nva-backoffice/internal/repository/memory"
	"nva-backoffice/internal/services"
	"nva-backoffice/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

const (
	adminUser = "root"
	adminPass = "root-password"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
	store  *repository.Store
	tokens *utils.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.New(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	cfg := &config.Config{
		MaxFileSize:       1 << 20,
		AllowedImageTypes: []string{"image/jpeg", "image/png"},
		CORSOrigins:       []string{"*"},
		AdminUsername:     adminUser,
		AdminPassword:     adminPass,
		AITimeout:         time.Second,
	}
	now := func() time.Time { return testNow }
	store := memory.NewStore(now)
	tokens := utils.NewTokenManager("test-secret", time.Hour, 2*time.Hour)
	log, _ := test.NewNullLogger()

	a, err := newApp(context.Background(), deps{
		cfg:      cfg,
		store:    store,
		tokens:   tokens,
		sessions: client,
		limiter:  redis.NewLoginLimiter(client, 3, time.Minute),
		analyzer: services.LocalAnalyzer{},
		pusher:   services.NoopPusher{},
		clock:    services.Clock{Loc: time.UTC, Now: now},
		log:      log,
	})
	require.NoError(t, err)

	return &testServer{t: t, router: setupRoutes(a, cfg, log), store: store, tokens: tokens}
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(username, password string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": username, "password": password})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var res struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &res))
	return res.AccessToken
}

// agent creates an agent directly in the store and returns it with an access token.
func (s *testServer) agent(username string) (*models.Agent, string) {
	s.t.Helper()
	a := &models.Agent{Username: username, FirstName: username, IsActive: true, TotalPayments: decimal.Zero}
	require.NoError(s.t, s.store.Agents.Create(context.Background(), a))
	pair, err := s.tokens.GeneratePair(a.ID, a.Username, false)
	require.NoError(s.t, err)
	return a, pair.AccessToken
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func fieldsOf(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	decode(t, w, &body)
	return body.Fields
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestLoginAndProfile(t *testing.T) {
	s := newTestServer(t)
	token := s.login(adminUser, adminPass)

	w := s.do(http.MethodGet, "/api/v1/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Agent services.Profile `json:"agent"`
	}
	decode(t, w, &body)
	assert.Equal(t, adminUser, body.Agent.Username)

	w = s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": adminUser, "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/profile", "", nil).Code)
}

func TestLoginLockout(t *testing.T) {
	s := newTestServer(t)

	codes := []int{}
	for i := 0; i < 4; i++ {
		codes = append(codes, s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": adminUser, "password": "wrong"}).Code)
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)

	w := s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": adminUser, "password": adminPass})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestAdminCreatesAgentWhoCanLogIn(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(adminUser, adminPass)

	w := s.do(http.MethodPost, "/api/v1/agents", admin, gin.H{"username": "hana", "first_name": "Hana", "gender": "Female"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Agent    services.Profile `json:"agent"`
		Password string           `json:"password"`
	}
	decode(t, w, &created)
	assert.Len(t, created.Password, utils.GeneratedPasswordLength)

	hana := s.login("hana", created.Password)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/v1/agents", hana, gin.H{"username": "other"}).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/dashboard/stats", hana, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/dashboard/stats", admin, nil).Code)

	w = s.do(http.MethodGet, "/api/v1/messages/users?type=agents", hana, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var dir struct {
		Users []services.Profile `json:"users"`
	}
	decode(t, w, &dir)
	require.Len(t, dir.Users, 1)
	assert.Equal(t, created.Agent.ID, dir.Users[0].ID)
}

func TestValidationResponses(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(adminUser, adminPass)

	w := s.do(http.MethodPost, "/api/v1/agents", admin, gin.H{"username": "x", "email": "not-an-email", "gender": "robot"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := fieldsOf(t, w)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "gender")

	w = s.do(http.MethodGet, "/api/v1/evaluation/rankings?month=2024-13", admin, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "must be formatted as YYYY-MM", fieldsOf(t, w)["month"])

	w = s.do(http.MethodGet, "/api/v1/events/abc", admin, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, fieldsOf(t, w), "id")

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/v1/agenda/2024/march", admin, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/v1/agenda/2024/13", admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/events/999", admin, nil).Code)
}

func TestEventRoutes(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(adminUser, adminPass)
	alice, aliceToken := s.agent("alice")

	event := gin.H{
		"location":     "Bole",
		"company_name": "Acme",
		"event_code":   "GALA-1",
		"start_date":   "2024-03-20T09:00:00Z",
		"end_date":     "2024-03-20T17:00:00Z",
		"agent_ids":    []uint{alice.ID},
	}
	w := s.do(http.MethodPost, "/api/v1/events", admin, event)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/api/v1/events", admin, event).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/v1/events", aliceToken, event).Code)

	w = s.do(http.MethodGet, "/api/v1/events/mine", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine struct {
		Events []services.EventView `json:"events"`
	}
	decode(t, w, &mine)
	require.Len(t, mine.Events, 1)
	assert.Equal(t, "GALA-1", mine.Events[0].EventCode)

	w = s.do(http.MethodGet, "/api/v1/events/available-agents?start_date=2024-03-20&end_date=2024-03-20", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var free struct {
		Agents []services.Profile `json:"agents"`
	}
	decode(t, w, &free)
	assert.Empty(t, free.Agents, "alice is busy that day")
}

func TestPaymentFlow(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(adminUser, adminPass)
	alice, aliceToken := s.agent("alice")
	bob, bobToken := s.agent("bob")

	w := s.do(http.MethodPost, "/api/v1/payments", admin, gin.H{"agent_id": alice.ID, "amount": "150.00", "work_days": 3})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = s.do(http.MethodPost, "/api/v1/payments", admin, gin.H{"agent_id": alice.ID, "amount": "-20", "work_days": 0})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/payments", admin, gin.H{"agent_id": alice.ID, "amount": "10", "work_days": 0})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, fieldsOf(t, w), "work_days")

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/v1/payments", aliceToken, gin.H{"agent_id": alice.ID, "amount": "1", "work_days": 1}).Code)

	w = s.do(http.MethodGet, "/api/v1/payments/mine", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine struct {
		Payments []models.Payment `json:"payments"`
	}
	decode(t, w, &mine)
	assert.Len(t, mine.Payments, 2)

	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/payments/agent/%d/total", alice.ID), aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var total services.PaymentTotal
	decode(t, w, &total)
	assert.True(t, total.TotalPayment.Equal(decimal.NewFromInt(130)), total.TotalPayment.String())
	assert.Equal(t, int64(1), total.Credits)
	assert.Equal(t, int64(1), total.Debits)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, fmt.Sprintf("/api/v1/payments/agent/%d/total", alice.ID), bobToken, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, fmt.Sprintf("/api/v1/payments/%d", mine.Payments[0].ID), bobToken, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, fmt.Sprintf("/api/v1/payments/agent/%d", bob.ID), bobToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/api/v1/payments", admin, gin.H{"agent_id": 999, "amount": "5", "work_days": 1}).Code)
}

func TestPresenceStatsAreScopedToCaller(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(adminUser, adminPass)
	alice, aliceToken := s.agent("alice")
	bob, _ := s.agent("bob")

	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/presences", aliceToken, gin.H{"location_name": "Bole"}).Code)

	w := s.do(http.MethodGet, fmt.Sprintf("/api/v1/evaluation/presence-stats?month=2024-03&agent_id=%d", bob.ID), aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats services.PresenceStats
	decode(t, w, &stats)
	assert.Equal(t, alice.ID, stats.AgentID)
	assert.Equal(t, int64(1), stats.Total)

	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/evaluation/presence-stats?month=2024-03&agent_id=%d", bob.ID), admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &stats)
	assert.Equal(t, bob.ID, stats.AgentID)
	assert.Equal(t, int64(0), stats.Total)
}

func TestRankingsAndExport(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(adminUser, adminPass)
	s.agent("alice")

	w := s.do(http.MethodPost, "/api/v1/evaluation/calculate-rankings", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/evaluation/calculate-rankings", admin, gin.H{"month": "March"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/evaluation/rankings?month=2024-03", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ranked struct {
		Rankings []services.RankingEntry `json:"rankings"`
	}
	decode(t, w, &ranked)
	require.Len(t, ranked.Rankings, 1)
	assert.Equal(t, 1, ranked.Rankings[0].Rank)

	w = s.do(http.MethodGet, "/api/v1/evaluation/export-csv?month=2024-03", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="agent_performance_2024_03.csv"`, w.Header().Get("Content-Disposition"))
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "ID,Name,Clients,Products,Events,PresenceRate,Revenue,Score,Rank", lines[0])

	w = s.do(http.MethodGet, "/api/v1/evaluation/export-xlsx?month=2024-03", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")

	w = s.do(http.MethodGet, "/api/v1/evaluation/ai-analysis?month=2024-03", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var analysis services.AnalysisResult
	decode(t, w, &analysis)
	assert.False(t, analysis.Cached)

	w = s.do(http.MethodGet, "/api/v1/evaluation/ai-analysis?month=2024-03", admin, nil)
	decode(t, w, &analysis)
	assert.True(t, analysis.Cached)
}

func TestAgendaRoutes(t *testing.T) {
	s := newTestServer(t)
	_, token := s.agent("alice")

	w := s.do(http.MethodPost, "/api/v1/agenda/availability", token, gin.H{"date": "2024-03-18", "is_available": false})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = s.do(http.MethodPost, "/api/v1/agenda/availability", token, gin.H{"date": "2024-03-18", "is_available": true})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/agenda/2024/3", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var agenda struct {
		Days []json.RawMessage `json:"days"`
	}
	decode(t, w, &agenda)
	assert.Len(t, agenda.Days, 31)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/agenda/preferences", token, nil).Code)
}
