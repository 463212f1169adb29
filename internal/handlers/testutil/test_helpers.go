package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/yaruyo/internal/api"
	"github.com/charlesng35/yaruyo/internal/app"
	iauth "github.com/charlesng35/yaruyo/internal/auth"
	sharedtestutil "github.com/charlesng35/yaruyo/internal/database/testutil"
	"github.com/charlesng35/yaruyo/internal/push"
	"github.com/charlesng35/yaruyo/internal/services"
	"github.com/charlesng35/yaruyo/pkg/response"
)

// ChannelSecret signs webhook bodies in handler tests.
const ChannelSecret = "test-channel-secret"

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Router   *gin.Engine
	JWT      *iauth.JWTService
	Push     *push.Recorder
	Families *services.FamilyService
	Plans    *services.PlanService
	Drafts   *services.DraftService
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())
	recorder := push.NewRecorder()

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "test-suite-super-secret-key-32-bytes!!",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	users, err := services.NewUserService(db)
	require.NoError(t, err)
	codes, err := services.NewInviteCodeService(db, services.WithCodeGenerator(sequentialCodes()))
	require.NoError(t, err)
	dispatch, err := services.NewDispatchService(db, recorder)
	require.NoError(t, err)
	families, err := services.NewFamilyService(db, codes)
	require.NoError(t, err)
	plans, err := services.NewPlanService(db, dispatch)
	require.NoError(t, err)
	reactions, err := services.NewReactionService(db, dispatch)
	require.NoError(t, err)
	drafts, err := services.NewDraftService(db, dispatch)
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.Line.ChannelSecret = ChannelSecret
	cfg.Monitoring.Health.Enabled = true
	cfg.Monitoring.Prometheus.Enabled = true

	router, err := api.NewRouter(db, api.Dependencies{
		Verifier:  jwtSvc,
		Replier:   recorder,
		Users:     users,
		Families:  families,
		Plans:     plans,
		Reactions: reactions,
		Drafts:    drafts,
	}, cfg)
	require.NoError(t, err)

	return &Env{
		T:        t,
		DB:       db,
		Router:   router,
		JWT:      jwtSvc,
		Push:     recorder,
		Families: families,
		Plans:    plans,
		Drafts:   drafts,
	}
}

// sequentialCodes hands out 200000, 200001, ... so tests can predict codes.
func sequentialCodes() func() (string, error) {
	var (
		mu   sync.Mutex
		next = 200000
	)
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		code := fmt.Sprintf("%06d", next)
		next++
		return code, nil
	}
}

// Token issues an access token for uid.
func (e *Env) Token(uid, name string) string {
	e.T.Helper()
	token, err := e.JWT.GenerateAccessToken(iauth.AccessTokenInput{UserID: uid, DisplayName: name})
	require.NoError(e.T, err)
	return token
}

// CreateFamily makes uid the parent of a new family through the API and
// returns the creation payload.
func (e *Env) CreateFamily(token string) services.FamilyCreated {
	e.T.Helper()
	w := e.Request(http.MethodPost, "/api/family", nil, token)
	require.Equal(e.T, http.StatusCreated, w.Code, w.Body.String())

	var created services.FamilyCreated
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &created)
	return created
}

// JoinFamily joins the family identified by code through the API.
func (e *Env) JoinFamily(token, code string) {
	e.T.Helper()
	w := e.Request(http.MethodPost, "/api/family/join", map[string]string{"code": code}, token)
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())
}

// Declare stores a plan for uid directly through the service layer.
func (e *Env) Declare(uid string, subjects ...string) string {
	e.T.Helper()
	result, err := e.Plans.Declare(context.Background(), uid, services.DeclareInput{Subjects: subjects})
	require.NoError(e.T, err)
	return result.Plan.ID
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// Webhook posts a raw body to the LINE webhook with the given signature.
func (e *Env) Webhook(method string, body []byte, signature string) *httptest.ResponseRecorder {
	e.T.Helper()

	req, err := http.NewRequest(method, "/webhooks/line", bytes.NewReader(body))
	require.NoError(e.T, err)
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Line-Signature", signature)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
