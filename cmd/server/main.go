// Package main is the entry point for the territory assignment engine's
// HTTP server: config and logging, the sqlite persistence.Port, the
// layered solver, the HTTP API, and the background recalibration
// scheduler, wired together and run until a shutdown signal arrives.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/territory-assign/internal/config"
	"github.com/aristath/territory-assign/internal/events"
	"github.com/aristath/territory-assign/internal/modules/solver"
	"github.com/aristath/territory-assign/internal/persistence/sqlite"
	"github.com/aristath/territory-assign/internal/reliability"
	"github.com/aristath/territory-assign/internal/scheduler"
	"github.com/aristath/territory-assign/internal/server"
	"github.com/aristath/territory-assign/pkg/logger"

	"github.com/aristath/territory-assign/internal/modules/assignment"
)

// recalibrationSchedule is how often the scheduler checks every known
// build's Configuration for staleness; recalibrationStaleAfter (passed to the job
// itself) governs how old a build's thresholds must be before they're
// actually recomputed.
const (
	recalibrationSchedule = "@every 1h"
	recalibrationStaleAfter = 24 * time.Hour
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)
	log.Info().Msg("starting territory assignment engine")

	dbPath := cfg.DataDir + "/assignments.db"
	db, err := sqlite.Open(dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := sqlite.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}

	store := sqlite.New(db, log)
	cache := newNoopCache()

	var remote solver.RemoteClient
	if cfg.Solver.RemoteURL != "" {
		remote = solver.NewHTTPClient(cfg.Solver.RemoteURL, cfg.Solver.RemoteTimeout, log)
	}
	sv := solver.New(solver.Config{
		RouteToRemoteAccountCeiling: cfg.Solver.RouteToRemoteAccountCeiling,
		InProcessVarCeiling:         cfg.Solver.InProcessVarCeiling,
		RemoteTimeout:               cfg.Solver.RemoteTimeout,
	}, remote)

	eventManager := events.NewManager()

	backupCtx, backupCancel := context.WithTimeout(context.Background(), 10*time.Second)
	backup, err := reliability.New(backupCtx, cfg.Backup, log)
	backupCancel()
	if err != nil {
		log.Warn().Err(err).Msg("report backup disabled: failed to build s3 client")
	} else if backup.Enabled() {
		log.Info().Str("bucket", cfg.Backup.Bucket).Msg("report backup enabled")
	}

	orch := assignment.New(store, sv, eventManager, cache)

	srv := server.New(server.Config{
		Log:          log,
		Orchestrator: orch,
		Events:       eventManager,
		Backup:       backup,
		Port:         cfg.Port,
		DevMode:      cfg.DevMode,
	})

	sched := scheduler.New(log)
	recalJob := scheduler.NewRecalibrationJob(store, srv.KnownBuildIDs, recalibrationStaleAfter, log)
	if err := sched.AddJob(recalibrationSchedule, recalJob); err != nil {
		log.Error().Err(err).Msg("failed to register recalibration job")
	}
	sched.Start()
	defer sched.Stop()

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("stopped")
}

// noopCache satisfies persistence.CacheInvalidator for the sqlite-backed
// store, which has no in-process cache of its own to invalidate (every
// read hits the database directly).
type noopCache struct{}

func newNoopCache() *noopCache { return &noopCache{} }

func (*noopCache) Invalidate(buildID string, keys ...string) {}
