/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the fleet roster engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load YAML config
  2. Set up structured logging
  3. Open the configured record store (memory, sqlite or postgres)
  4. Wire the domain engines, alert channel and sweep scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to the YAML config file. Omit to run with defaults
           (in-memory store, :8080).

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweep scheduler (waits for an in-flight sweep)
  4. Close the store
  5. Exit

EXAMPLES:
  # Run with defaults (in-memory, for local development)
  ./server

  # Run with a config file
  ./server -config=./configs/production.yaml

SEE ALSO:
  - config/config.go: Configuration schema and defaults
  - api/server.go: Router configuration
  - api/scheduler.go: Background sweeps
*/
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetops/roster-engine/api"
	"github.com/fleetops/roster-engine/config"
	"github.com/fleetops/roster-engine/fleet"
	memstore "github.com/fleetops/roster-engine/fleet/store"
	"github.com/fleetops/roster-engine/store/postgres"
	"github.com/fleetops/roster-engine/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("load config")
	}

	log := newLogger(cfg.Logging)

	// Storage backend. closeStore is a no-op for the memory store.
	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("open store")
	}
	defer closeStore()

	clock := fleet.RealClock{}
	sink := auditSink(store, log)

	penalties := &fleet.PenalizationEngine{
		Store:      store,
		Audit:      sink,
		Clock:      clock,
		FloorHours: cfg.Policy.PenaltyFloorHours,
		Log:        log.With().Str("component", "penalization").Logger(),
	}
	leaves := &fleet.LeaveEngine{
		Store: store,
		Audit: sink,
		Clock: clock,
		Log:   log.With().Str("component", "leave").Logger(),
	}

	var alerts fleet.AlertChannel = fleet.NopAlerts{}
	if cfg.Alerts.WebhookURL != "" {
		alerts = api.NewWebhookAlerts(cfg.Alerts.WebhookURL, cfg.Alerts.Timeout,
			log.With().Str("component", "alerts").Logger())
	}

	scheduler := api.NewSweepScheduler(store, penalties, leaves, alerts,
		cfg.Scheduler, cfg.Policy, log.With().Str("component", "scheduler").Logger())
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(store, penalties, leaves, clock,
		cfg.Policy.ExpiringDays, log.With().Str("component", "api").Logger())
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.ListenAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}

	log.Info().Msg("server stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var out = os.Stderr
	logger := zerolog.New(out)
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// openStore builds the configured RecordStore. The returned close
// function releases the backend's resources.
func openStore(cfg *config.Config, log zerolog.Logger) (fleet.RecordStore, func(), error) {
	switch cfg.Store.Driver {
	case "sqlite":
		s, err := sqlite.New(cfg.Store.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case "postgres":
		s, pool, err := postgres.Connect(context.Background(), cfg.Store.Postgres.DSN())
		if err != nil {
			return nil, nil, err
		}
		return s, pool.Close, nil
	default:
		log.Warn().Msg("using in-memory store, state is lost on restart")
		return memstore.NewMemory(), func() {}, nil
	}
}

// auditSink returns the store itself when it can record audit entries,
// otherwise a logging fallback so entries are at least visible.
func auditSink(store fleet.RecordStore, log zerolog.Logger) fleet.AuditSink {
	if sink, ok := store.(fleet.AuditSink); ok {
		return sink
	}
	return logSink{log: log.With().Str("component", "audit").Logger()}
}

type logSink struct{ log zerolog.Logger }

func (s logSink) LogAction(_ context.Context, entry fleet.AuditEntry) error {
	s.log.Info().
		Str("action", string(entry.Action)).
		Str("entity", entry.EntityType+"/"+entry.EntityID).
		Str("actor", entry.Actor).
		Bool("automatic", entry.Automatic).
		Msg(entry.Description)
	return nil
}
