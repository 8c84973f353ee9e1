/*
audit.go - Typed audit entries

PURPOSE:
  Every mutation emits exactly one AuditEntry. The payload is a tagged
  union keyed by action: each action has its own concrete payload type,
  so before/after snapshots are statically known instead of loose maps.

SEE ALSO:
  - store.go: AuditSink interface
  - store/sqlite, store/postgres: persistent sinks (payload stored as JSON)
*/
package fleet

import (
	"encoding/json"
	"time"
)

type AuditAction string

const (
	AuditPenalizationApplied AuditAction = "penalization_applied"
	AuditPenalizationRemoved AuditAction = "penalization_removed"
	AuditPenalizationSwept   AuditAction = "penalization_swept"
	AuditLeaveRequested      AuditAction = "leave_requested"
	AuditLeaveDecided        AuditAction = "leave_decided"
	AuditITLeaveOpened       AuditAction = "it_leave_opened"
	AuditEmployeeReactivated AuditAction = "employee_reactivated"
	AuditCleanupRun          AuditAction = "cleanup_run"
	AuditSweepFailed         AuditAction = "sweep_failed"
)

// AuditEntry is immutable and append-only. Automatic distinguishes a
// scheduled sweep from a manual administrative trigger of the same code
// path.
type AuditEntry struct {
	ID          string
	Actor       string
	Role        string
	Action      AuditAction
	EntityType  string
	EntityID    string
	Description string
	Automatic   bool
	Payload     AuditPayload
	CreatedAt   time.Time
}

// AuditPayload is the action-specific snapshot attached to an entry.
type AuditPayload interface {
	AuditAction() AuditAction
}

// PayloadJSON serializes the payload for the SQL sinks. A nil payload
// yields nil.
func PayloadJSON(p AuditPayload) []byte {
	if p == nil {
		return nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	return b
}

// RawPayload carries a payload read back from a SQL sink, where the
// concrete variant is known only by its action tag.
type RawPayload struct {
	Action AuditAction     `json:"action"`
	JSON   json.RawMessage `json:"payload"`
}

func (p RawPayload) AuditAction() AuditAction { return p.Action }

// =============================================================================
// PAYLOAD VARIANTS
// =============================================================================

// PenalizationApplied records an immediate or scheduled penalization.
type PenalizationApplied struct {
	Before    *Employee `json:"before"`
	After     *Employee `json:"after"`
	Reason    string    `json:"reason"`
	Scheduled bool      `json:"scheduled"`
}

func (PenalizationApplied) AuditAction() AuditAction { return AuditPenalizationApplied }

// PenalizationRemoved records a restoration (manual or expiry).
type PenalizationRemoved struct {
	Before        *Employee `json:"before"`
	After         *Employee `json:"after"`
	RestoredHours int       `json:"restored_hours"`
}

func (PenalizationRemoved) AuditAction() AuditAction { return AuditPenalizationRemoved }

// PenalizationSwept is the aggregate summary of one sweep run.
type PenalizationSwept struct {
	Activated int      `json:"activated"`
	Checked   int      `json:"checked"`
	Restored  int      `json:"restored"`
	Failed    int      `json:"failed"`
	Employees []string `json:"employees,omitempty"`
}

func (PenalizationSwept) AuditAction() AuditAction { return AuditPenalizationSwept }

// LeaveRequested records the opening of a company leave chain.
type LeaveRequested struct {
	Leave        *LeaveRequest `json:"leave"`
	Notification string        `json:"notification_id"`
}

func (LeaveRequested) AuditAction() AuditAction { return AuditLeaveRequested }

// LeaveDecided records a privileged decision on a notification.
type LeaveDecided struct {
	NotificationID string             `json:"notification_id"`
	SpawnedID      string             `json:"spawned_id,omitempty"`
	Action         NotificationAction `json:"action"`
	ProcessingDate Date               `json:"processing_date"`
	Before         *Employee          `json:"before,omitempty"`
	After          *Employee          `json:"after,omitempty"`
}

func (LeaveDecided) AuditAction() AuditAction { return AuditLeaveDecided }

// ITLeaveOpened records an immediate IT leave.
type ITLeaveOpened struct {
	Leave  *LeaveRequest `json:"leave"`
	Before *Employee     `json:"before"`
	After  *Employee     `json:"after"`
}

func (ITLeaveOpened) AuditAction() AuditAction { return AuditITLeaveOpened }

// EmployeeReactivated records a return from IT leave.
type EmployeeReactivated struct {
	Before *Employee `json:"before"`
	After  *Employee `json:"after"`
}

func (EmployeeReactivated) AuditAction() AuditAction { return AuditEmployeeReactivated }

// CleanupRun summarizes one approved-leave cleanup sweep.
type CleanupRun struct {
	Deleted []string `json:"deleted"`
	Total   int      `json:"total"`
}

func (CleanupRun) AuditAction() AuditAction { return AuditCleanupRun }

// SweepFailed records an error caught by the sweep coordinator.
type SweepFailed struct {
	Job   string `json:"job"`
	Error string `json:"error"`
}

func (SweepFailed) AuditAction() AuditAction { return AuditSweepFailed }
