/*
scheduler.go - Automated sweep scheduler

PURPOSE:
  Runs the daily background jobs that keep the fleet state honest:
  activating scheduled penalizations, restoring expired ones, removing
  employees whose approved leave is fully processed, and pushing fleet
  reports to the alert channel.

DESIGN:
  - One background goroutine with a configurable check interval
  - Each daily job fires once per day, the first tick at or after its
    configured hour; a missed hour (process down) is caught up on the
    next tick of the same day
  - Every job runs under runJob: panics are recovered, failures are
    audited as sweep_failed and alerted, and the loop always survives
  - Hourly heartbeat metrics are logged on every tick

JOBS:
  hourly        ComputeMetrics snapshot, once per wall-clock hour
  penalization  ActivateScheduled then CheckAndRestoreExpired
  cleanup       CleanupApprovedLeaves
  report        ComputeMetrics + Report pushed to the alert channel

USAGE:
  s := NewSweepScheduler(store, penalties, leaves, alerts, cfg, log)
  s.Start()
  // ... later
  s.Stop()

SEE ALSO:
  - handlers.go: Manual admin triggers for the same sweeps
  - fleet/penalization.go, fleet/leave.go: The jobs themselves
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fleetops/roster-engine/config"
	"github.com/fleetops/roster-engine/fleet"
)

// SweepScheduler drives the recurring fleet maintenance jobs.
type SweepScheduler struct {
	Store     fleet.RecordStore
	Penalties *fleet.PenalizationEngine
	Leaves    *fleet.LeaveEngine
	Alerts    fleet.AlertChannel
	Clock     fleet.Clock
	Log       zerolog.Logger

	CheckInterval    time.Duration
	ReportHour       int
	PenalizationHour int
	CleanupHour      int
	ExpiringDays     int

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex

	// lastRun maps job name to the period key (day or hour) it last
	// completed in. Guards the once-per-period semantics. Own lock:
	// Tick runs on the background goroutine while Stop holds mu.
	lastMu  sync.Mutex
	lastRun map[string]string
}

// NewSweepScheduler creates a scheduler wired from config. The clock
// defaults to real time; tests swap it.
func NewSweepScheduler(store fleet.RecordStore, penalties *fleet.PenalizationEngine,
	leaves *fleet.LeaveEngine, alerts fleet.AlertChannel, cfg config.SchedulerConfig,
	policy config.PolicyConfig, log zerolog.Logger) *SweepScheduler {
	return &SweepScheduler{
		Store:            store,
		Penalties:        penalties,
		Leaves:           leaves,
		Alerts:           alerts,
		Clock:            fleet.RealClock{},
		Log:              log,
		CheckInterval:    cfg.CheckInterval,
		ReportHour:       cfg.ReportHour,
		PenalizationHour: cfg.PenalizationHour,
		CleanupHour:      cfg.CleanupHour,
		ExpiringDays:     policy.ExpiringDays,
		stop:             make(chan bool),
		lastRun:          make(map[string]string),
	}
}

// Start begins the background loop.
func (s *SweepScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)

	go s.run(s.ticker)

	s.Log.Info().Dur("interval", s.CheckInterval).
		Int("penalization_hour", s.PenalizationHour).
		Int("cleanup_hour", s.CleanupHour).
		Int("report_hour", s.ReportHour).
		Msg("scheduler: started")
}

// Stop halts the loop and waits for an in-flight tick to finish.
// Idempotent: further calls are no-ops.
func (s *SweepScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
		close(s.stop)
		s.wg.Wait()
		s.Log.Info().Msg("scheduler: stopped")
	}
}

// run owns its ticker by value: Stop clears s.ticker under mu, so the
// loop must not read the field.
func (s *SweepScheduler) run(ticker *time.Ticker) {
	defer s.wg.Done()

	// Run immediately on start
	s.Tick(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Tick(context.Background())
		case <-s.stop:
			return
		}
	}
}

// Tick evaluates which jobs are due and runs them. Exported so admin
// endpoints and tests can force a pass without waiting for the ticker.
func (s *SweepScheduler) Tick(ctx context.Context) {
	now := s.Clock.Now()
	today := fleet.DateOf(now).String()
	hourKey := now.UTC().Format("2006-01-02T15")
	hour := now.Hour()

	if s.due("hourly", hourKey) {
		s.runJob(ctx, "hourly", hourKey, s.hourlySnapshot)
	}
	if hour >= s.PenalizationHour && s.due("penalization", today) {
		s.runJob(ctx, "penalization", today, s.penalizationSweep)
	}
	if hour >= s.CleanupHour && s.due("cleanup", today) {
		s.runJob(ctx, "cleanup", today, s.cleanupSweep)
	}
	if hour >= s.ReportHour && s.due("report", today) {
		s.runJob(ctx, "report", today, s.dailyReport)
	}
}

// due reports whether the named job has not yet completed in the period
// identified by key.
func (s *SweepScheduler) due(job, key string) bool {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.lastRun[job] != key
}

func (s *SweepScheduler) markDone(job, key string) {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	s.lastRun[job] = key
}

// runJob executes one job with panic recovery. Failures are audited and
// alerted but never propagate; a failed job stays due and is retried on
// the next tick.
func (s *SweepScheduler) runJob(ctx context.Context, name, key string, job func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			s.reportFailure(ctx, name, fmt.Errorf("panic: %v", r))
		}
	}()

	s.Log.Info().Str("job", name).Msg("scheduler: running job")
	if err := job(ctx); err != nil {
		s.reportFailure(ctx, name, err)
		return
	}
	s.markDone(name, key)
}

func (s *SweepScheduler) reportFailure(ctx context.Context, job string, err error) {
	s.Log.Error().Err(err).Str("job", job).Msg("scheduler: job failed")
	entry := fleet.AuditEntry{
		ID:          uuid.NewString(),
		Actor:       fleet.System.ID,
		Role:        fleet.System.Role,
		Action:      fleet.AuditSweepFailed,
		EntityType:  "scheduler",
		EntityID:    job,
		Description: fmt.Sprintf("scheduled job %s failed", job),
		Automatic:   true,
		Payload:     fleet.SweepFailed{Job: job, Error: err.Error()},
		CreatedAt:   s.Clock.Now(),
	}
	if sink, ok := s.Store.(fleet.AuditSink); ok {
		if aerr := sink.LogAction(ctx, entry); aerr != nil {
			s.Log.Error().Err(aerr).Msg("scheduler: audit of failure failed")
		}
	}
	s.Alerts.SendMessage(ctx, fmt.Sprintf("sweep %s failed: %v", job, err))
}

// penalizationSweep activates windows whose start date has arrived, then
// restores windows whose end date has passed. Order matters: an employee
// whose window both starts and ends in the catch-up range must still end
// the day restored.
func (s *SweepScheduler) penalizationSweep(ctx context.Context) error {
	activated, err := s.Penalties.ActivateScheduled(ctx, fleet.System)
	if err != nil {
		return fmt.Errorf("activate scheduled: %w", err)
	}
	restored, err := s.Penalties.CheckAndRestoreExpired(ctx, fleet.System)
	if err != nil {
		return fmt.Errorf("restore expired: %w", err)
	}

	s.Log.Info().
		Int("activated", activated.Activated).
		Int("restored", restored.Restored).
		Int("failed", activated.Failed+restored.Failed).
		Msg("scheduler: penalization sweep done")

	if len(restored.RestoredEmployees) > 0 {
		var names []string
		for _, e := range restored.RestoredEmployees {
			names = append(names, fmt.Sprintf("%s %s (%s)", e.FirstName, e.LastName, e.ID))
		}
		s.Alerts.SendMessage(ctx, fmt.Sprintf("penalizations ended for %d employees: %v", len(names), names))
	}
	return nil
}

func (s *SweepScheduler) cleanupSweep(ctx context.Context) error {
	report, err := s.Leaves.CleanupApprovedLeaves(ctx, fleet.System)
	if err != nil {
		return fmt.Errorf("cleanup approved leaves: %w", err)
	}
	s.Log.Info().Int("deleted", report.Total).Msg("scheduler: cleanup sweep done")
	if report.Total > 0 {
		s.Alerts.SendMessage(ctx, fmt.Sprintf("removed %d employees with processed leave", report.Total))
	}
	return nil
}

// hourlySnapshot pushes a short metrics line so the ops channel sees
// the fleet move during the day. Fires once per wall-clock hour.
func (s *SweepScheduler) hourlySnapshot(ctx context.Context) error {
	m, err := fleet.ComputeMetrics(ctx, s.Store, s.Clock, s.ExpiringDays)
	if err != nil {
		return fmt.Errorf("compute metrics: %w", err)
	}
	s.Log.Info().
		Int("total", m.Total).
		Int("current_hours", m.CurrentHours).
		Int("open_leaves", m.OpenLeaveCount).
		Msg("scheduler: hourly snapshot")
	s.Alerts.SendMessage(ctx, fmt.Sprintf("fleet snapshot %sh: %d employees, %d hours, %d open leaves",
		s.Clock.Now().UTC().Format("2006-01-02 15"), m.Total, m.CurrentHours, m.OpenLeaveCount))
	return nil
}

func (s *SweepScheduler) dailyReport(ctx context.Context) error {
	m, err := fleet.ComputeMetrics(ctx, s.Store, s.Clock, s.ExpiringDays)
	if err != nil {
		return fmt.Errorf("compute metrics: %w", err)
	}
	title := fmt.Sprintf("fleet report %s", fleet.Today(s.Clock))
	if !s.Alerts.SendMessage(ctx, m.Report(title)) {
		s.Log.Warn().Msg("scheduler: daily report not delivered")
	}
	return nil
}
