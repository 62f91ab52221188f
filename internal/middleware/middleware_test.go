package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nva-backoffice/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(tokens *utils.TokenManager, log logrus.FieldLogger) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger(log))
	r.GET("/me", AuthRequired(tokens), func(c *gin.Context) {
		actor := GetActor(c)
		c.JSON(http.StatusOK, gin.H{"id": actor.ID, "admin": actor.IsAdmin})
	})
	r.GET("/admin", AuthRequired(tokens), AdminRequired(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	tokens := utils.NewTokenManager("secret", time.Hour, 2*time.Hour)
	log, _ := test.NewNullLogger()
	r := newRouter(tokens, log)

	pair, err := tokens.GeneratePair(7, "alice", false)
	require.NoError(t, err)

	w := get(r, "/me", pair.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":7,"admin":false}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", "nonsense").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", pair.RefreshToken).Code, "refresh tokens are not access tokens")

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token "+pair.AccessToken)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRequired(t *testing.T) {
	tokens := utils.NewTokenManager("secret", time.Hour, 2*time.Hour)
	log, _ := test.NewNullLogger()
	r := newRouter(tokens, log)

	agent, err := tokens.GeneratePair(7, "alice", false)
	require.NoError(t, err)
	admin, err := tokens.GeneratePair(1, "root", true)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, get(r, "/admin", agent.AccessToken).Code)
	assert.Equal(t, http.StatusNoContent, get(r, "/admin", admin.AccessToken).Code)
}

func TestRequestLogger(t *testing.T) {
	tokens := utils.NewTokenManager("secret", time.Hour, 2*time.Hour)
	log, hook := test.NewNullLogger()
	r := newRouter(tokens, log)

	pair, err := tokens.GeneratePair(7, "alice", false)
	require.NoError(t, err)

	get(r, "/me", pair.AccessToken)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, uint(7), entry.Data["agent_id"])
	assert.Equal(t, 200, entry.Data["status"])

	get(r, "/me", "")
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.NotContains(t, hook.LastEntry().Data, "agent_id")
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://backoffice.example"}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://backoffice.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://backoffice.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
