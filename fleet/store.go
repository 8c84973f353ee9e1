/*
store.go - Persistence and side-channel interfaces

PURPOSE:
  Defines the boundary between the engines and the outside world.
  RecordStore is the only shared mutable resource; AuditSink and
  AlertChannel are fire-and-forget side channels that must never fail
  a business operation.

CONCURRENCY CONTRACT:
  Every employee mutation is read-then-write. UpdateEmployee takes the
  UpdatedAt the caller observed and must reject the write with
  ErrConcurrentModification when the stored row has moved past it. The
  store bumps UpdatedAt on every successful write.

IMPLEMENTATIONS:
  - fleet/store: in-memory, for tests and development
  - store/sqlite: production single-node deployment
  - store/postgres: production multi-node deployment

SEE ALSO:
  - audit.go: AuditEntry and its typed payloads
*/
package fleet

import (
	"context"
	"time"
)

// =============================================================================
// RECORD STORE
// =============================================================================

// EmployeePredicate filters ListEmployees. A nil predicate matches all.
type EmployeePredicate func(*Employee) bool

// RecordStore is the canonical persistence interface. All operations are
// transactional at single-row granularity.
type RecordStore interface {
	// GetEmployee returns the employee or ErrEmployeeNotFound.
	GetEmployee(ctx context.Context, id string) (*Employee, error)

	// ListEmployees returns employees matching the predicate (all when nil).
	ListEmployees(ctx context.Context, pred EmployeePredicate) ([]Employee, error)

	// CreateEmployee inserts a new record. ErrDuplicateEmployee when the
	// ID exists. CreatedAt/UpdatedAt are set by the store.
	CreateEmployee(ctx context.Context, emp Employee) (*Employee, error)

	// UpdateEmployee writes emp back if the stored row's UpdatedAt still
	// equals expectedUpdatedAt, bumping UpdatedAt. Returns
	// ErrConcurrentModification on a conflict, ErrEmployeeNotFound when
	// the row is gone.
	UpdateEmployee(ctx context.Context, emp Employee, expectedUpdatedAt time.Time) (*Employee, error)

	// DeleteEmployee hard-deletes the record (cleanup sweep only).
	DeleteEmployee(ctx context.Context, id string) error

	// Leave requests.
	CreateLeaveRequest(ctx context.Context, lr LeaveRequest) (*LeaveRequest, error)
	GetLeaveRequest(ctx context.Context, id string) (*LeaveRequest, error)

	// ListLeaveRequests returns leave requests of the given kind; an
	// empty kind matches all kinds.
	ListLeaveRequests(ctx context.Context, kind LeaveKind) ([]LeaveRequest, error)
	UpdateLeaveRequestStatus(ctx context.Context, id string, status LeaveStatus) (*LeaveRequest, error)

	// Notifications.
	CreateNotification(ctx context.Context, n Notification) (*Notification, error)
	GetNotification(ctx context.Context, id string) (*Notification, error)
	ListNotifications(ctx context.Context, onlyOpen bool) ([]Notification, error)
	UpdateNotificationStatus(ctx context.Context, id string, status NotificationStatus) (*Notification, error)
}

// =============================================================================
// SIDE CHANNELS
// =============================================================================

// AuditSink receives one entry per mutation. Implementations are
// append-only; failures must be swallowed by the caller (the engines log
// and continue), auditing never blocks the primary operation.
type AuditSink interface {
	LogAction(ctx context.Context, entry AuditEntry) error
}

// AuditQuerier is implemented by sinks that can also read entries back
// (the SQL stores do; the alert webhook obviously does not).
type AuditQuerier interface {
	QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// AuditFilter narrows QueryAudit. Zero values match everything.
type AuditFilter struct {
	EntityType string
	EntityID   string
	Action     AuditAction
	Limit      int
}

// AlertChannel is the best-effort operational side channel (reports,
// sweep failures). A false return means the message was not delivered;
// callers only log that.
type AlertChannel interface {
	SendMessage(ctx context.Context, text string) bool
}

// NopAlerts discards every message. Used when no webhook is configured.
type NopAlerts struct{}

func (NopAlerts) SendMessage(context.Context, string) bool { return true }
