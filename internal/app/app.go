package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"filevault/internal/auth"
	"filevault/internal/cache"
	"filevault/internal/config"
	"filevault/internal/db"
	"filevault/internal/handler"
	"filevault/internal/mail"
	"filevault/internal/metrics"
	"filevault/internal/repository"
	"filevault/internal/router"
	"filevault/internal/service"
	"filevault/internal/storage"
	"filevault/internal/validation"
)

// Storage drivers.
const (
	DriverS3     = "s3"
	DriverMemory = "memory"
)

// Infra holds the external connections the application runs on.
type Infra struct {
	DB      *gorm.DB
	Redis   *redis.Client
	Objects storage.ObjectStore
	Mailer  mail.Mailer
}

// App is the fully wired application.
type App struct {
	Config   *config.Config
	Log      logrus.FieldLogger
	Infra    Infra
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Auth     service.AuthService
	Files    service.FileService
	Profiles service.ProfileService
	Sweep    service.SweepService
}

// New connects to MySQL, Redis and the object store, migrates the schema and wires every service.
func New(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*App, error) {
	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		return nil, err
	}
	if cfg.ResetDB {
		log.Warn("RESET_DB set, dropping all tables")
	}
	if err := db.Migrate(gormDB, cfg.ResetDB); err != nil {
		return nil, err
	}

	rdb := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("redis not reachable, tokens cannot be verified until it is")
	}

	objects, err := OpenObjectStore(ctx, cfg)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}

	mailer := mail.NewSMTPMailer(mail.Config{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.MailFrom,
	}, log)

	return Wire(cfg, log, Infra{DB: gormDB, Redis: rdb, Objects: objects, Mailer: mailer})
}

// OpenObjectStore returns the object store selected by STORAGE_DRIVER.
func OpenObjectStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	switch cfg.StorageDriver {
	case DriverS3:
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
		})
	case DriverMemory:
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// Wire builds repositories and services on top of infra.
func Wire(cfg *config.Config, log logrus.FieldLogger, infra Infra) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Initialize repositories
	userRepo := repository.NewUserRepository(infra.DB)
	fileRepo := repository.NewFileRepository(infra.DB)

	// Initialize auth components
	hasher := auth.NewBcryptHasher(auth.DefaultBcryptCost)
	tokens := auth.NewTokenService(auth.NewJWTService(cfg.JWTSecret), auth.NewRedisTokenStore(infra.Redis))
	cacheClient := cache.New(infra.Redis, log)
	v := validation.New()
	password, err := auth.NewPasswordAuthenticator(userRepo, hasher)
	if err != nil {
		return nil, err
	}

	// Initialize services
	authService := service.NewAuthService(service.AuthDeps{
		Users:     userRepo,
		Hasher:    hasher,
		Tokens:    tokens,
		Password:  password,
		Bearer:    auth.NewBearerAuthenticator(userRepo, tokens),
		Mailer:    infra.Mailer,
		Validator: v,
		Metrics:   m,
		Log:       log,
	}, service.AuthConfig{
		EmailTTL:        cfg.EmailTokenTTL,
		AccessTTL:       cfg.AccessTokenTTL,
		RefreshTTL:      cfg.RefreshTokenTTL,
		RevokeOnRefresh: cfg.RevokeOnRefresh(),
		PublicBaseURL:   cfg.PublicBaseURL,
	})

	return &App{
		Config:   cfg,
		Log:      log,
		Infra:    infra,
		Registry: reg,
		Metrics:  m,
		Auth:     authService,
		Files:    service.NewFileService(infra.Objects, fileRepo, cacheClient, m, log, cfg.MaxUploadBytes, cfg.ListCacheTTL),
		Profiles: service.NewProfileService(userRepo, fileRepo, infra.Objects, hasher, cacheClient, v, log),
		Sweep: service.NewSweepService(userRepo, infra.Objects, tokens, cacheClient, infra.Mailer, m, log, service.SweepConfig{
			RemoveAfter: cfg.SweepRemoveAfter,
			WarnAfter:   cfg.SweepWarnAfter,
		}),
	}, nil
}

// Echo returns an HTTP server serving the API.
func (a *App) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	router.Register(e, a.Config, router.Observability{
		Log:      a.Log,
		Metrics:  a.Metrics,
		Gatherer: a.Registry,
	}, a.Auth, router.Handlers{
		Auth:    handler.NewAuthHandler(a.Auth, a.Config.CookieSecure),
		Files:   handler.NewFileHandler(a.Files),
		Profile: handler.NewProfileHandler(a.Profiles),
	})
	return e
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	var errs []error
	if a.Infra.Redis != nil {
		errs = append(errs, a.Infra.Redis.Close())
	}
	if a.Infra.DB != nil {
		if sqlDB, err := a.Infra.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
