/*
penalization.go - Penalization engine

PURPOSE:
  Applies and removes penalization windows on employees, and runs the two
  daily sweeps: activating scheduled windows whose start date arrived,
  and restoring employees whose window expired.

STATE RULES:
  - An immediate penalization (start today or earlier) snapshots
    CurrentHours into OriginalHours, forces CurrentHours to the policy
    floor, and sets Status to penalizado.
  - A future start only stores the window; Status and hours are untouched
    until the activation sweep reaches the start date.
  - Removal restores hours from the snapshot, clears the window, and
    returns the employee to active. Removing with no window stored is a
    no-op (administrative double-clicks), not an error.

SWEEP SAFETY:
  Both sweeps are idempotent. Activation skips employees already
  penalizado, so re-running within a day cannot re-snapshot hours.
  A persistence failure on one employee is logged and counted; the sweep
  continues with the rest.

SEE ALSO:
  - leave.go: The other engine mutating employee status
  - api/scheduler.go: Time-driven invocation of the sweeps
*/
package fleet

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// PenalizationEngine owns every penalization-window mutation.
// FloorHours is the policy floor that CurrentHours is forced to while a
// penalization is active (0 unless configured otherwise).
type PenalizationEngine struct {
	Store      RecordStore
	Audit      AuditSink
	Clock      Clock
	FloorHours int
	Log        zerolog.Logger
}

// SweepReport is the result of one activation or expiration sweep.
type SweepReport struct {
	Checked              int
	Activated            int
	Restored             int
	Failed               int
	RestoredEmployees    []Employee
	PendingPenalizations []Employee
}

// Apply sets a penalization window on an employee. When start is today or
// earlier the penalization takes effect immediately; a future start is
// stored as scheduled and picked up by ActivateScheduled.
func (pe *PenalizationEngine) Apply(ctx context.Context, employeeID string, start, end Date, reason string, actor Actor) (*Employee, error) {
	if start.After(end) {
		return nil, &InvalidRangeError{Start: start, End: end}
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: penalization reason must not be empty", ErrInvalidRange)
	}

	emp, err := pe.Store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	before := emp.Clone()
	today := Today(pe.Clock)
	immediate := start.BeforeOrEqual(today)

	emp.PenalizationStart = &start
	emp.PenalizationEnd = &end
	if immediate {
		pe.penalize(emp)
	}

	updated, err := pe.Store.UpdateEmployee(ctx, *emp, before.UpdatedAt)
	if err != nil {
		return nil, err
	}

	emitAudit(ctx, pe.Audit, pe.Log, AuditEntry{
		Actor:       actor.ID,
		Role:        actor.Role,
		Action:      AuditPenalizationApplied,
		EntityType:  "employee",
		EntityID:    employeeID,
		Description: fmt.Sprintf("penalization %s to %s: %s", start, end, reason),
		Automatic:   actor.Automatic,
		Payload:     PenalizationApplied{Before: before, After: updated, Reason: reason, Scheduled: !immediate},
		CreatedAt:   pe.Clock.Now(),
	})

	pe.Log.Info().
		Str("employee_id", employeeID).
		Stringer("start", start).
		Stringer("end", end).
		Bool("scheduled", !immediate).
		Msg("penalization applied")

	return updated, nil
}

// Remove clears the penalization window and restores the snapshot hours.
// Idempotent: an employee with no window stored is returned unchanged.
func (pe *PenalizationEngine) Remove(ctx context.Context, employeeID string, actor Actor) (*Employee, error) {
	emp, err := pe.Store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if !emp.HasPenalizationWindow() && emp.OriginalHours == nil {
		return emp, nil
	}
	before := emp.Clone()

	restored := pe.restore(emp)

	updated, err := pe.Store.UpdateEmployee(ctx, *emp, before.UpdatedAt)
	if err != nil {
		return nil, err
	}

	emitAudit(ctx, pe.Audit, pe.Log, AuditEntry{
		Actor:       actor.ID,
		Role:        actor.Role,
		Action:      AuditPenalizationRemoved,
		EntityType:  "employee",
		EntityID:    employeeID,
		Description: fmt.Sprintf("penalization removed, %d hours restored", restored),
		Automatic:   actor.Automatic,
		Payload:     PenalizationRemoved{Before: before, After: updated, RestoredHours: restored},
		CreatedAt:   pe.Clock.Now(),
	})

	pe.Log.Info().
		Str("employee_id", employeeID).
		Int("restored_hours", restored).
		Msg("penalization removed")

	return updated, nil
}

// ActivateScheduled scans for scheduled windows whose start date arrived
// and applies them. Employees already penalizado are skipped, which makes
// the sweep safe to run more than once per day.
func (pe *PenalizationEngine) ActivateScheduled(ctx context.Context, actor Actor) (*SweepReport, error) {
	today := Today(pe.Clock)
	due, err := pe.Store.ListEmployees(ctx, func(e *Employee) bool {
		return e.Status != StatusPenalized &&
			e.HasPenalizationWindow() &&
			e.PenalizationStart.BeforeOrEqual(today)
	})
	if err != nil {
		return nil, err
	}

	report := &SweepReport{Checked: len(due)}
	var activated []string
	for i := range due {
		emp := due[i]
		before := emp.Clone()
		pe.penalize(&emp)

		updated, err := pe.Store.UpdateEmployee(ctx, emp, before.UpdatedAt)
		if err != nil {
			report.Failed++
			pe.Log.Error().Err(err).Str("employee_id", emp.ID).Msg("scheduled activation failed")
			continue
		}
		report.Activated++
		activated = append(activated, emp.ID)

		emitAudit(ctx, pe.Audit, pe.Log, AuditEntry{
			Actor:       actor.ID,
			Role:        actor.Role,
			Action:      AuditPenalizationApplied,
			EntityType:  "employee",
			EntityID:    emp.ID,
			Description: fmt.Sprintf("scheduled penalization activated (window %s to %s)", emp.PenalizationStart, emp.PenalizationEnd),
			Automatic:   actor.Automatic,
			Payload:     PenalizationApplied{Before: before, After: updated, Reason: "scheduled activation", Scheduled: false},
			CreatedAt:   pe.Clock.Now(),
		})
	}

	emitAudit(ctx, pe.Audit, pe.Log, AuditEntry{
		Actor:       actor.ID,
		Role:        actor.Role,
		Action:      AuditPenalizationSwept,
		EntityType:  "sweep",
		EntityID:    "activate_scheduled",
		Description: fmt.Sprintf("activation sweep: %d activated, %d failed", report.Activated, report.Failed),
		Automatic:   actor.Automatic,
		Payload:     PenalizationSwept{Activated: report.Activated, Checked: report.Checked, Failed: report.Failed, Employees: activated},
		CreatedAt:   pe.Clock.Now(),
	})

	pe.Log.Info().
		Int("checked", report.Checked).
		Int("activated", report.Activated).
		Int("failed", report.Failed).
		Msg("activation sweep complete")

	return report, nil
}

// CheckAndRestoreExpired restores every penalized employee whose window
// ended before today. Employees whose window is still open are returned
// in PendingPenalizations so callers can report without a second query.
func (pe *PenalizationEngine) CheckAndRestoreExpired(ctx context.Context, actor Actor) (*SweepReport, error) {
	today := Today(pe.Clock)

	expired, err := pe.Store.ListEmployees(ctx, func(e *Employee) bool {
		return e.Status == StatusPenalized &&
			e.PenalizationEnd != nil &&
			e.PenalizationEnd.Before(today)
	})
	if err != nil {
		return nil, err
	}
	pending, err := pe.Store.ListEmployees(ctx, func(e *Employee) bool {
		return e.Status == StatusPenalized &&
			e.PenalizationEnd != nil &&
			e.PenalizationEnd.AfterOrEqual(today)
	})
	if err != nil {
		return nil, err
	}

	report := &SweepReport{Checked: len(expired), PendingPenalizations: pending}
	for i := range expired {
		restored, err := pe.Remove(ctx, expired[i].ID, actor)
		if err != nil {
			report.Failed++
			pe.Log.Error().Err(err).Str("employee_id", expired[i].ID).Msg("expiry restoration failed")
			continue
		}
		report.Restored++
		report.RestoredEmployees = append(report.RestoredEmployees, *restored)
	}

	emitAudit(ctx, pe.Audit, pe.Log, AuditEntry{
		Actor:       actor.ID,
		Role:        actor.Role,
		Action:      AuditPenalizationSwept,
		EntityType:  "sweep",
		EntityID:    "restore_expired",
		Description: fmt.Sprintf("expiration sweep: %d checked, %d restored, %d failed", report.Checked, report.Restored, report.Failed),
		Automatic:   actor.Automatic,
		Payload:     PenalizationSwept{Checked: report.Checked, Restored: report.Restored, Failed: report.Failed},
		CreatedAt:   pe.Clock.Now(),
	})

	pe.Log.Info().
		Int("checked", report.Checked).
		Int("restored", report.Restored).
		Int("pending", len(report.PendingPenalizations)).
		Msg("expiration sweep complete")

	return report, nil
}

// ExpiringSoon returns penalized employees whose window ends within the
// next N days, for the daily report.
func (pe *PenalizationEngine) ExpiringSoon(ctx context.Context, days int) ([]Employee, error) {
	today := Today(pe.Clock)
	horizon := today.AddDays(days)
	return pe.Store.ListEmployees(ctx, func(e *Employee) bool {
		return e.Status == StatusPenalized &&
			e.PenalizationEnd != nil &&
			e.PenalizationEnd.AfterOrEqual(today) &&
			e.PenalizationEnd.BeforeOrEqual(horizon)
	})
}

// penalize mutates emp in place for an active penalization. The snapshot
// is taken only once: an already-set OriginalHours is preserved.
func (pe *PenalizationEngine) penalize(emp *Employee) {
	if emp.OriginalHours == nil {
		snapshot := emp.CurrentHours
		emp.OriginalHours = &snapshot
	}
	emp.CurrentHours = pe.FloorHours
	emp.Status = StatusPenalized
}

// restore mutates emp in place, returning the hours put back.
func (pe *PenalizationEngine) restore(emp *Employee) int {
	restored := emp.CurrentHours
	if emp.OriginalHours != nil {
		restored = *emp.OriginalHours
		emp.CurrentHours = restored
	}
	emp.OriginalHours = nil
	emp.PenalizationStart = nil
	emp.PenalizationEnd = nil
	emp.Status = StatusActive
	return restored
}
