/*
leave.go - Leave lifecycle engine

PURPOSE:
  Manages IT-leave and company-leave transitions, including the approval
  workflow that bridges a LeaveRequest, its Notification chain, and the
  employee's operational status.

COMPANY-LEAVE STATE MACHINE (driven by notification decisions):

  notification action | employee status becomes | leave status becomes
  --------------------+-------------------------+---------------------
  approve             | company_leave_approved  | approved
  reject              | active                  | rejected
  pending_laboral     | pending_laboral         | pending (unchanged)
  processed           | unchanged               | processed

  pending accepts all four actions; pending_laboral accepts only
  approve/reject. The pending_laboral branch resolves the current
  notification and spawns a new one with ParentID set and the same
  LeaveID, so the approval queue is never lost and the chain stays
  traceable.

IT LEAVE:
  Applied immediately by any privileged user, no approval gate.
  Reactivation (back to active) is legal only from it_leave.

SEE ALSO:
  - penalization.go: The other engine mutating employee status
  - api/scheduler.go: Daily cleanup of approved leaves
*/
package fleet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LeaveEngine owns every leave-related mutation.
type LeaveEngine struct {
	Store RecordStore
	Audit AuditSink
	Clock Clock
	Log   zerolog.Logger
}

// CleanupReport summarizes one approved-leave cleanup sweep.
type CleanupReport struct {
	Deleted []string
	Total   int
}

// RequestCompanyLeave opens a company-leave chain: the employee moves to
// company_leave_pending, a LeaveRequest is recorded, and a pending
// Notification enters the approval queue.
func (le *LeaveEngine) RequestCompanyLeave(ctx context.Context, employeeID string, reason LeaveReason, date Date, actor Actor) (*LeaveRequest, *Notification, error) {
	if !reason.ValidFor(LeaveCompany) {
		return nil, nil, fmt.Errorf("%w: %q is not a company leave reason", ErrInvalidState, reason)
	}

	emp, err := le.Store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, nil, err
	}
	if emp.Status != StatusActive && emp.Status != StatusPenalized {
		return nil, nil, &InvalidStateError{EmployeeID: employeeID, Current: emp.Status, Requested: "request company leave"}
	}
	before := emp.Clone()
	now := le.Clock.Now()

	emp.Status = StatusCompanyLeavePending
	if _, err := le.Store.UpdateEmployee(ctx, *emp, before.UpdatedAt); err != nil {
		return nil, nil, err
	}

	leave, err := le.Store.CreateLeaveRequest(ctx, LeaveRequest{
		ID:            uuid.NewString(),
		EmployeeID:    employeeID,
		Kind:          LeaveCompany,
		Reason:        reason,
		RequestedDate: date,
		RequestedBy:   actor.ID,
		Status:        LeavePending,
	})
	if err != nil {
		return nil, nil, err
	}

	notif, err := le.Store.CreateNotification(ctx, Notification{
		ID:          uuid.NewString(),
		LeaveID:     leave.ID,
		EmployeeID:  employeeID,
		Title:       "Solicitud de Baja Empresa",
		Message:     fmt.Sprintf("%s %s - %s", emp.FirstName, emp.LastName, reason),
		RequestedBy: actor.ID,
		Status:      NotificationPending,
	})
	if err != nil {
		return nil, nil, err
	}

	emitAudit(ctx, le.Audit, le.Log, AuditEntry{
		Actor:       actor.ID,
		Role:        actor.Role,
		Action:      AuditLeaveRequested,
		EntityType:  "employee",
		EntityID:    employeeID,
		Description: fmt.Sprintf("company leave requested (%s) for %s", reason, date),
		Automatic:   actor.Automatic,
		Payload:     LeaveRequested{Leave: leave, Notification: notif.ID},
		CreatedAt:   now,
	})

	le.Log.Info().
		Str("employee_id", employeeID).
		Str("leave_id", leave.ID).
		Str("reason", string(reason)).
		Msg("company leave requested")

	return leave, notif, nil
}

// ProcessNotification applies a privileged decision to an open
// notification and propagates it to the linked employee and leave
// request. This is the only path that resolves a company-leave chain.
func (le *LeaveEngine) ProcessNotification(ctx context.Context, notificationID string, action NotificationAction, processingDate Date, actor Actor) (*Employee, error) {
	notif, err := le.Store.GetNotification(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if !notif.Status.Open() {
		return nil, fmt.Errorf("%w: notification %s already resolved (%s)", ErrInvalidState, notificationID, notif.Status)
	}
	if notif.Status == NotificationPendingLaboral &&
		(action == ActionPendingLaboral || action == ActionProcessed) {
		return nil, fmt.Errorf("%w: notification %s awaits approve or reject", ErrInvalidState, notificationID)
	}

	switch action {
	case ActionApprove:
		return le.decide(ctx, notif, action, StatusCompanyLeaveApproved, LeaveApproved, processingDate, actor)
	case ActionReject:
		return le.decide(ctx, notif, action, StatusActive, LeaveRejected, processingDate, actor)
	case ActionPendingLaboral:
		return le.moveToPendingLaboral(ctx, notif, processingDate, actor)
	case ActionProcessed:
		// Generic resolution for non-leave notification kinds.
		if _, err := le.Store.UpdateNotificationStatus(ctx, notif.ID, NotificationProcessed); err != nil {
			return nil, err
		}
		if notif.LeaveID != "" {
			if _, err := le.Store.UpdateLeaveRequestStatus(ctx, notif.LeaveID, LeaveProcessed); err != nil {
				return nil, err
			}
		}
		le.auditDecision(ctx, notif, action, "", processingDate, nil, nil, actor)
		return le.Store.GetEmployee(ctx, notif.EmployeeID)
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidState, action)
	}
}

// decide is the shared approve/reject path: employee status, leave
// status, and notification status move together.
func (le *LeaveEngine) decide(ctx context.Context, notif *Notification, action NotificationAction, target Status, leaveStatus LeaveStatus, processingDate Date, actor Actor) (*Employee, error) {
	emp, err := le.Store.GetEmployee(ctx, notif.EmployeeID)
	if err != nil {
		return nil, err
	}
	before := emp.Clone()

	emp.Status = target
	updated, err := le.Store.UpdateEmployee(ctx, *emp, before.UpdatedAt)
	if err != nil {
		return nil, err
	}

	notifStatus := NotificationApproved
	if action == ActionReject {
		notifStatus = NotificationRejected
	}
	if _, err := le.Store.UpdateNotificationStatus(ctx, notif.ID, notifStatus); err != nil {
		return nil, err
	}
	if _, err := le.Store.UpdateLeaveRequestStatus(ctx, notif.LeaveID, leaveStatus); err != nil {
		return nil, err
	}

	le.auditDecision(ctx, notif, action, "", processingDate, before, updated, actor)

	le.Log.Info().
		Str("notification_id", notif.ID).
		Str("employee_id", notif.EmployeeID).
		Str("action", string(action)).
		Str("status", string(target)).
		Msg("leave notification processed")

	return updated, nil
}

// moveToPendingLaboral resolves the current notification and spawns the
// follow-up carrying the same leave reference.
func (le *LeaveEngine) moveToPendingLaboral(ctx context.Context, notif *Notification, processingDate Date, actor Actor) (*Employee, error) {
	emp, err := le.Store.GetEmployee(ctx, notif.EmployeeID)
	if err != nil {
		return nil, err
	}
	before := emp.Clone()

	emp.Status = StatusPendingLaboral
	updated, err := le.Store.UpdateEmployee(ctx, *emp, before.UpdatedAt)
	if err != nil {
		return nil, err
	}

	// The processed notification is resolved, not left dangling; the
	// spawned one keeps the approval queue alive.
	if _, err := le.Store.UpdateNotificationStatus(ctx, notif.ID, NotificationApproved); err != nil {
		return nil, err
	}
	spawned, err := le.Store.CreateNotification(ctx, Notification{
		ID:          uuid.NewString(),
		ParentID:    notif.ID,
		LeaveID:     notif.LeaveID,
		EmployeeID:  notif.EmployeeID,
		Title:       notif.Title,
		Message:     notif.Message,
		RequestedBy: notif.RequestedBy,
		Status:      NotificationPendingLaboral,
	})
	if err != nil {
		return nil, err
	}

	le.auditDecision(ctx, notif, ActionPendingLaboral, spawned.ID, processingDate, before, updated, actor)

	le.Log.Info().
		Str("notification_id", notif.ID).
		Str("spawned_id", spawned.ID).
		Str("employee_id", notif.EmployeeID).
		Msg("leave moved to pending laboral")

	return updated, nil
}

func (le *LeaveEngine) auditDecision(ctx context.Context, notif *Notification, action NotificationAction, spawnedID string, processingDate Date, before, after *Employee, actor Actor) {
	emitAudit(ctx, le.Audit, le.Log, AuditEntry{
		Actor:       actor.ID,
		Role:        actor.Role,
		Action:      AuditLeaveDecided,
		EntityType:  "notification",
		EntityID:    notif.ID,
		Description: fmt.Sprintf("notification %s: %s", notif.ID, action),
		Automatic:   actor.Automatic,
		Payload: LeaveDecided{
			NotificationID: notif.ID,
			SpawnedID:      spawnedID,
			Action:         action,
			ProcessingDate: processingDate,
			Before:         before,
			After:          after,
		},
		CreatedAt: le.Clock.Now(),
	})
}

// OpenITLeave puts an employee on IT leave immediately and records the
// incident date. No approval gate.
func (le *LeaveEngine) OpenITLeave(ctx context.Context, employeeID string, reason LeaveReason, incidentDate Date, actor Actor) (*Employee, error) {
	if !reason.ValidFor(LeaveIT) {
		return nil, fmt.Errorf("%w: %q is not an IT leave reason", ErrInvalidState, reason)
	}

	emp, err := le.Store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	before := emp.Clone()

	emp.Status = StatusITLeave
	emp.IncidentDate = &incidentDate
	updated, err := le.Store.UpdateEmployee(ctx, *emp, before.UpdatedAt)
	if err != nil {
		return nil, err
	}

	leave, err := le.Store.CreateLeaveRequest(ctx, LeaveRequest{
		ID:            uuid.NewString(),
		EmployeeID:    employeeID,
		Kind:          LeaveIT,
		Reason:        reason,
		RequestedDate: incidentDate,
		RequestedBy:   actor.ID,
		Status:        LeaveApproved,
	})
	if err != nil {
		return nil, err
	}

	emitAudit(ctx, le.Audit, le.Log, AuditEntry{
		Actor:       actor.ID,
		Role:        actor.Role,
		Action:      AuditITLeaveOpened,
		EntityType:  "employee",
		EntityID:    employeeID,
		Description: fmt.Sprintf("IT leave opened (%s), incident %s", reason, incidentDate),
		Automatic:   actor.Automatic,
		Payload:     ITLeaveOpened{Leave: leave, Before: before, After: updated},
		CreatedAt:   le.Clock.Now(),
	})

	le.Log.Info().
		Str("employee_id", employeeID).
		Str("reason", string(reason)).
		Msg("it leave opened")

	return updated, nil
}

// Reactivate returns an IT-leave employee to active rotation. Restricted
// to the highest privilege tier by the HTTP layer; here only the state
// precondition is enforced.
func (le *LeaveEngine) Reactivate(ctx context.Context, employeeID string, actor Actor) (*Employee, error) {
	emp, err := le.Store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if emp.Status != StatusITLeave {
		return nil, &InvalidStateError{EmployeeID: employeeID, Current: emp.Status, Requested: "reactivate"}
	}
	before := emp.Clone()

	emp.Status = StatusActive
	emp.IncidentDate = nil
	updated, err := le.Store.UpdateEmployee(ctx, *emp, before.UpdatedAt)
	if err != nil {
		return nil, err
	}

	emitAudit(ctx, le.Audit, le.Log, AuditEntry{
		Actor:       actor.ID,
		Role:        actor.Role,
		Action:      AuditEmployeeReactivated,
		EntityType:  "employee",
		EntityID:    employeeID,
		Description: "employee reactivated from IT leave",
		Automatic:   actor.Automatic,
		Payload:     EmployeeReactivated{Before: before, After: updated},
		CreatedAt:   le.Clock.Now(),
	})

	le.Log.Info().Str("employee_id", employeeID).Msg("employee reactivated")

	return updated, nil
}

// CleanupApprovedLeaves hard-deletes every employee whose status is
// company_leave_approved and whose company leave is already on file as a
// terminal record. Shared by the daily sweep and the manual admin
// trigger.
func (le *LeaveEngine) CleanupApprovedLeaves(ctx context.Context, actor Actor) (*CleanupReport, error) {
	approved, err := le.Store.ListEmployees(ctx, func(e *Employee) bool {
		return e.Status == StatusCompanyLeaveApproved
	})
	if err != nil {
		return nil, err
	}
	report := &CleanupReport{}
	if len(approved) == 0 {
		return report, nil
	}

	leaves, err := le.Store.ListLeaveRequests(ctx, LeaveCompany)
	if err != nil {
		return nil, err
	}
	terminal := make(map[string]bool, len(leaves))
	for _, lr := range leaves {
		if lr.Status == LeaveApproved || lr.Status == LeaveProcessed {
			terminal[lr.EmployeeID] = true
		}
	}

	for _, emp := range approved {
		if !terminal[emp.ID] {
			continue
		}
		if err := le.Store.DeleteEmployee(ctx, emp.ID); err != nil {
			le.Log.Error().Err(err).Str("employee_id", emp.ID).Msg("cleanup delete failed")
			continue
		}
		report.Deleted = append(report.Deleted, emp.ID)
	}
	report.Total = len(report.Deleted)

	emitAudit(ctx, le.Audit, le.Log, AuditEntry{
		Actor:       actor.ID,
		Role:        actor.Role,
		Action:      AuditCleanupRun,
		EntityType:  "sweep",
		EntityID:    "cleanup_company_leave",
		Description: fmt.Sprintf("cleanup removed %d approved-leave employees", report.Total),
		Automatic:   actor.Automatic,
		Payload:     CleanupRun{Deleted: report.Deleted, Total: report.Total},
		CreatedAt:   le.Clock.Now(),
	})

	le.Log.Info().Int("deleted", report.Total).Msg("approved-leave cleanup complete")

	return report, nil
}
