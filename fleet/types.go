/*
Package fleet provides the employee lifecycle engine.

PURPOSE:
  This package contains the domain types and state-machine logic for a
  courier fleet: the operational status of every employee, the
  penalization window that forces their hours to a policy floor, and the
  leave lifecycle (IT leave and company leave) with its approval workflow.

KEY CONCEPTS IN THIS FILE (types.go):
  - Employee: The aggregate root. The single owner of operational status.
  - Status: Exactly one of six mutually exclusive operational states.
  - LeaveRequest: Append-only record of an IT or company leave event.
  - Notification: Approval-queue projection of a LeaveRequest.
  - Actor: Who is performing a mutation (and whether it is a sweep).

DESIGN PRINCIPLES:
  1. Single state owner: only the engines in this package write Status,
     CurrentHours, OriginalHours, or the penalization window.
  2. Read-then-CAS: every mutation re-reads the record and writes back
     with an updated-at compare-and-swap (see store.go).
  3. Auditability: every mutation emits exactly one audit entry with a
     typed payload (see audit.go).

SEE ALSO:
  - penalization.go: Penalization engine and sweeps
  - leave.go: Leave lifecycle engine and approval workflow
  - store.go: RecordStore, AuditSink, AlertChannel interfaces
*/
package fleet

import (
	"time"
)

// =============================================================================
// STATUS - Operational state of an employee
// =============================================================================

// Status is the operational state of an employee. Exactly one holds at any
// time; all transitions go through PenalizationEngine or LeaveEngine.
type Status string

const (
	// StatusActive means the employee is in normal rotation.
	StatusActive Status = "active"

	// StatusITLeave means a medical/accident leave is open. Applied
	// immediately, no approval gate.
	StatusITLeave Status = "it_leave"

	// StatusCompanyLeavePending means a termination-track request exists
	// and is waiting in the approval queue.
	StatusCompanyLeavePending Status = "company_leave_pending"

	// StatusCompanyLeaveApproved is terminal; the cleanup sweep removes
	// the record once the leave itself is on file.
	StatusCompanyLeaveApproved Status = "company_leave_approved"

	// StatusPendingLaboral means the leave still requires labor-law
	// processing before final approval or rejection.
	StatusPendingLaboral Status = "pending_laboral"

	// StatusPenalized means an active penalization window is forcing the
	// employee's hours to the policy floor.
	StatusPenalized Status = "penalizado"
)

// Valid reports whether s is one of the six defined states.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusITLeave, StatusCompanyLeavePending,
		StatusCompanyLeaveApproved, StatusPendingLaboral, StatusPenalized:
		return true
	}
	return false
}

// =============================================================================
// EMPLOYEE - Aggregate root
// =============================================================================

// Employee is the canonical record. ID is the external business key
// (e.g. "GLV001") and is immutable. The free-text fields are inert with
// respect to the state machine and carried through unchanged.
type Employee struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	City      string
	CityCode  string
	DNI       string
	IBAN      string
	Vehicle   string

	// CurrentHours is what payroll/coverage currently counts.
	// OriginalHours is a snapshot saved only while a penalization is
	// active: Status == StatusPenalized iff OriginalHours != nil.
	CurrentHours  int
	OriginalHours *int

	// Penalization window. Both set or both nil; Start <= End when set.
	// A future Start with Status != StatusPenalized is a scheduled
	// penalization waiting for the daily sweep.
	PenalizationStart *Date
	PenalizationEnd   *Date

	// IncidentDate records when an IT leave incident occurred.
	IncidentDate *Date

	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Penalized reports whether a penalization is currently applied (as
// opposed to merely scheduled).
func (e *Employee) Penalized() bool { return e.Status == StatusPenalized }

// HasPenalizationWindow reports whether a window (active or scheduled)
// is stored on the record.
func (e *Employee) HasPenalizationWindow() bool {
	return e.PenalizationStart != nil && e.PenalizationEnd != nil
}

// Clone returns a deep copy, used for audit before/after snapshots.
func (e *Employee) Clone() *Employee {
	c := *e
	if e.OriginalHours != nil {
		v := *e.OriginalHours
		c.OriginalHours = &v
	}
	if e.PenalizationStart != nil {
		v := *e.PenalizationStart
		c.PenalizationStart = &v
	}
	if e.PenalizationEnd != nil {
		v := *e.PenalizationEnd
		c.PenalizationEnd = &v
	}
	if e.IncidentDate != nil {
		v := *e.IncidentDate
		c.IncidentDate = &v
	}
	return &c
}

// =============================================================================
// LEAVE REQUEST - Append-only leave event
// =============================================================================

type LeaveKind string

const (
	LeaveIT      LeaveKind = "it"
	LeaveCompany LeaveKind = "company"
)

// LeaveReason depends on the kind: IT leaves use enfermedad/accidente,
// company leaves use despido/voluntaria/nspp/anulacion.
type LeaveReason string

const (
	ReasonSickness  LeaveReason = "enfermedad"
	ReasonAccident  LeaveReason = "accidente"
	ReasonDismissal LeaveReason = "despido"
	ReasonVoluntary LeaveReason = "voluntaria"
	ReasonNoShow    LeaveReason = "nspp"
	ReasonAnnulment LeaveReason = "anulacion"
)

// ValidFor reports whether the reason is legal for the given kind.
func (r LeaveReason) ValidFor(kind LeaveKind) bool {
	switch kind {
	case LeaveIT:
		return r == ReasonSickness || r == ReasonAccident
	case LeaveCompany:
		return r == ReasonDismissal || r == ReasonVoluntary ||
			r == ReasonNoShow || r == ReasonAnnulment
	}
	return false
}

type LeaveStatus string

const (
	LeavePending        LeaveStatus = "pending"
	LeavePendingLaboral LeaveStatus = "pending_laboral"
	LeaveApproved       LeaveStatus = "approved"
	LeaveRejected       LeaveStatus = "rejected"
	LeaveProcessed      LeaveStatus = "processed"
)

// LeaveRequest records one leave event. Owned by actions against an
// Employee; never updated except for Status.
type LeaveRequest struct {
	ID            string
	EmployeeID    string
	Kind          LeaveKind
	Reason        LeaveReason
	RequestedDate Date
	RequestedBy   string
	Status        LeaveStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// =============================================================================
// NOTIFICATION - Approval-queue projection of a LeaveRequest
// =============================================================================

type NotificationStatus string

const (
	NotificationPending        NotificationStatus = "pending"
	NotificationPendingLaboral NotificationStatus = "pending_laboral"
	NotificationApproved       NotificationStatus = "approved"
	NotificationRejected       NotificationStatus = "rejected"
	NotificationProcessed      NotificationStatus = "processed"
)

// Open reports whether the notification still requires privileged action.
func (s NotificationStatus) Open() bool {
	return s == NotificationPending || s == NotificationPendingLaboral
}

// Notification is a side-channel projection used by the approval UI.
// Processing one is the trigger that mutates the linked Employee and
// LeaveRequest. The pending_laboral re-spawn sets ParentID to the
// processed notification's ID so the chain is traceable.
type Notification struct {
	ID          string
	ParentID    string // empty for the root of a chain
	LeaveID     string // owning LeaveRequest
	EmployeeID  string
	Title       string
	Message     string
	RequestedBy string
	Status      NotificationStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NotificationAction is the privileged decision applied to an open
// notification.
type NotificationAction string

const (
	ActionApprove        NotificationAction = "approve"
	ActionReject         NotificationAction = "reject"
	ActionPendingLaboral NotificationAction = "pending_laboral"
	ActionProcessed      NotificationAction = "processed"
)

// =============================================================================
// ACTOR - Who performs a mutation
// =============================================================================

// Actor identifies the origin of a mutation for audit purposes.
// Automatic is true when a scheduled sweep (rather than an explicit
// administrative call) triggered it.
type Actor struct {
	ID        string
	Role      string
	Automatic bool
}

// System is the actor recorded for scheduled sweeps.
var System = Actor{ID: "system", Role: "system", Automatic: true}
