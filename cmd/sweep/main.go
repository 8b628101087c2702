// Command sweep runs the inactive user removal and warning passes once and exits.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"filevault/internal/app"
	"filevault/internal/config"
	"filevault/internal/logging"
	"filevault/internal/scheduler"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("application init")
	}
	defer a.Close()

	sched, err := scheduler.New(cfg.SweepSchedule, a.Sweep, log)
	if err != nil {
		log.WithError(err).Fatal("scheduler init")
	}
	sched.RunOnce(ctx)
}
