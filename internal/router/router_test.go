package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filevault/internal/config"
	apperrors "filevault/internal/errors"
	"filevault/internal/handler"
	"filevault/internal/metrics"
	"filevault/internal/model"
	"filevault/internal/service"
)

// stubAuth accepts the bearers in users and rejects everything else.
type stubAuth struct {
	service.AuthService
	users map[string]*model.User
}

func (s *stubAuth) Authenticate(_ context.Context, bearer string) (*model.User, error) {
	if user, ok := s.users[bearer]; ok {
		return user, nil
	}
	return nil, apperrors.ErrTokenInvalid
}

func (s *stubAuth) Register(_ context.Context, caller *model.User, _ service.RegisterInput) (*model.User, error) {
	if caller != nil {
		return nil, apperrors.ErrAlreadyAuthenticated
	}
	return &model.User{ID: 5}, nil
}

type stubFiles struct {
	service.FileService
}

func (stubFiles) List(_ context.Context, user *model.User) ([]string, error) {
	return []string{user.Username + ".txt"}, nil
}

func newTestRouter(t *testing.T, cfg *config.Config) *echo.Echo {
	t.Helper()
	logger, _ := test.NewNullLogger()
	reg := prometheus.NewRegistry()
	authService := &stubAuth{users: map[string]*model.User{"good": {ID: 1, Username: "alice"}}}

	e := echo.New()
	Register(e, cfg, Observability{Log: logger, Metrics: metrics.New(reg), Gatherer: reg}, authService, Handlers{
		Auth:    handler.NewAuthHandler(authService, true),
		Files:   handler.NewFileHandler(stubFiles{}),
		Profile: handler.NewProfileHandler(nil),
	})
	return e
}

func testConfig() *config.Config {
	return &config.Config{RateLimitMax: 100, RateLimitWindow: 15 * time.Minute}
}

func do(e *echo.Echo, method, target, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Healthz(t *testing.T) {
	rec := do(newTestRouter(t, testConfig()), http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRouter_SecuredRoutesNeedBearer(t *testing.T) {
	e := newTestRouter(t, testConfig())

	rec := do(e, http.MethodGet, "/api/v1/files", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)

	rec = do(e, http.MethodGet, "/api/v1/profile", "forged")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(e, http.MethodGet, "/api/v1/files", "good")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice.txt")
}

func TestRouter_RegisterAuthIsOptional(t *testing.T) {
	e := newTestRouter(t, testConfig())

	rec := do(e, http.MethodPost, "/api/v1/auth/register", "")
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = do(e, http.MethodPost, "/api/v1/auth/register", "forged")
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = do(e, http.MethodPost, "/api/v1/auth/register", "good")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ALREADY_AUTHENTICATED")
}

func TestRouter_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitMax = 2
	e := newTestRouter(t, cfg)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/api/v1/files", "").Code)
	}
	rec := do(e, http.MethodGet, "/api/v1/files", "")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/healthz", "").Code)
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	e := newTestRouter(t, testConfig())
	do(e, http.MethodGet, "/api/v1/files", "good")

	rec := do(e, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `path="/api/v1/files"`)
}

func TestRouter_FileBodyLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUploadBytes = 1024
	cfg.MaxBatchBytes = 2048
	e := newTestRouter(t, cfg)

	tests := []struct {
		name   string
		method string
		size   int
	}{
		{name: "batch upload", method: http.MethodPost, size: 2049},
		{name: "replacement", method: http.MethodPut, size: 1024 + multipartOverhead + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/files", strings.NewReader(strings.Repeat("x", tt.size)))
			req.Header.Set(echo.HeaderContentType, "multipart/form-data; boundary=x")
			req.Header.Set(echo.HeaderAuthorization, "Bearer good")
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
			assert.Contains(t, rec.Body.String(), "FILE_TOO_LARGE")
		})
	}
}
