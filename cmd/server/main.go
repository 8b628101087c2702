package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"filevault/docs" // swagger docs

	"filevault/internal/app"
	"filevault/internal/config"
	"filevault/internal/logging"
	"filevault/internal/scheduler"
)

const shutdownTimeout = 15 * time.Second

// @title FileVault API
// @version 1.0
// @description Per-user file storage with email verified accounts and JWT authentication.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("application init")
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.WithError(err).Warn("close connections")
		}
	}()

	sched, err := scheduler.New(cfg.SweepSchedule, a.Sweep, log)
	if err != nil {
		log.WithError(err).Fatal("scheduler init")
	}
	sched.Start()

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "https://"), "http://")
	}
	log.Infof("Swagger documentation available at: %s/swagger/index.html", cfg.PublicBaseURL)

	e := a.Echo()
	go func() {
		addr := ":" + cfg.ServerPort
		log.WithField("addr", addr).Info("server listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server start")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown")
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("sweep still running at shutdown")
	}
}
