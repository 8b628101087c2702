package router

import (
	"net/http"
	"strconv"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	"filevault/internal/config"
	apperrors "filevault/internal/errors"
	"filevault/internal/handler"
	"filevault/internal/logging"
	"filevault/internal/metrics"
	"filevault/internal/service"
	"filevault/internal/validation"
)

// Handlers groups the HTTP handlers served under the API base path.
type Handlers struct {
	Auth    *handler.AuthHandler
	Files   *handler.FileHandler
	Profile *handler.ProfileHandler
}

// Observability carries the logger and metrics shared by every request.
type Observability struct {
	Log      logrus.FieldLogger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	obs Observability,
	authService service.AuthService,
	h Handlers,
) {
	e.HTTPErrorHandler = handler.ErrorHandler(obs.Log)
	e.Validator = validation.New()

	e.Use(middleware.RequestID())
	e.Use(obs.Metrics.Middleware())
	e.Use(logging.RequestLogger(obs.Log))
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler(obs.Gatherer)))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api/v1", rateLimiter(cfg))

	// Public routes
	auth := api.Group("/auth")
	auth.POST("/register", h.Auth.Register, bearerAuth(authService, true))
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh-token", h.Auth.Refresh)
	auth.POST("/logout", h.Auth.Logout)
	auth.GET("/email-verification", h.Auth.VerifyEmail)

	// Secured routes (require a bearer access token)
	secured := api.Group("", bearerAuth(authService, false))

	secured.GET("/files", h.Files.Get)
	secured.POST("/files", h.Files.Upload, bodyLimit(cfg.MaxBatchBytes))
	secured.PUT("/files", h.Files.Update, bodyLimit(cfg.MaxUploadBytes+multipartOverhead))
	secured.DELETE("/files", h.Files.Delete)

	secured.GET("/profile", h.Profile.Get)
	secured.PUT("/profile", h.Profile.Update)
}

// multipartOverhead leaves room for the part headers and boundaries around a single file.
const multipartOverhead = 1 << 20

// bodyLimit rejects request bodies larger than n bytes with 413. A non-positive n disables it.
func bodyLimit(n int64) echo.MiddlewareFunc {
	if n <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return middleware.BodyLimit(strconv.FormatInt(n, 10) + "B")
}

// bearerAuth resolves the Authorization bearer to the caller. When optional, requests without
// a usable token pass through anonymously.
func bearerAuth(authService service.AuthService, optional bool) echo.MiddlewareFunc {
	cfg := echojwt.Config{
		ContextKey:  handler.UserContextKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return authService.Authenticate(c.Request().Context(), token)
		},
		ErrorHandler: handler.AuthFailure,
	}
	if optional {
		cfg.ContinueOnIgnoredError = true
		cfg.ErrorHandler = func(echo.Context, error) error { return nil }
	}
	return echojwt.WithConfig(cfg)
}

// rateLimiter allows RateLimitMax requests per RateLimitWindow and client IP.
func rateLimiter(cfg *config.Config) echo.MiddlewareFunc {
	if cfg.RateLimitMax <= 0 || cfg.RateLimitWindow <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(cfg.RateLimitMax) / cfg.RateLimitWindow.Seconds()),
		Burst:     cfg.RateLimitMax,
		ExpiresIn: cfg.RateLimitWindow,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		DenyHandler: func(echo.Context, string, error) error {
			return apperrors.ErrRateLimited
		},
	})
}
