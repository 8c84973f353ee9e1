/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DATES:
  All day-granular fields (penalization windows, leave dates, incident
  dates) travel as "2006-01-02" strings. Timestamps are RFC3339.

VALIDATION:
  Validation is done in handlers and the domain engines, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - fleet/types.go: The domain model these project
*/
package api

import (
	"time"

	"github.com/fleetops/roster-engine/fleet"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	City      string `json:"city,omitempty"`
	CityCode  string `json:"city_code,omitempty"`
	DNI       string `json:"dni,omitempty"`
	IBAN      string `json:"iban,omitempty"`
	Vehicle   string `json:"vehicle,omitempty"`

	CurrentHours  int  `json:"current_hours"`
	OriginalHours *int `json:"original_hours,omitempty"`

	PenalizationStart *string `json:"penalization_start,omitempty"`
	PenalizationEnd   *string `json:"penalization_end,omitempty"`
	IncidentDate      *string `json:"incident_date,omitempty"`

	Status    string `json:"status"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func toEmployeeDTO(e *fleet.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:                e.ID,
		FirstName:         e.FirstName,
		LastName:          e.LastName,
		Email:             e.Email,
		Phone:             e.Phone,
		City:              e.City,
		CityCode:          e.CityCode,
		DNI:               e.DNI,
		IBAN:              e.IBAN,
		Vehicle:           e.Vehicle,
		CurrentHours:      e.CurrentHours,
		OriginalHours:     e.OriginalHours,
		PenalizationStart: dateString(e.PenalizationStart),
		PenalizationEnd:   dateString(e.PenalizationEnd),
		IncidentDate:      dateString(e.IncidentDate),
		Status:            string(e.Status),
		CreatedAt:         e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         e.UpdatedAt.Format(time.RFC3339),
	}
}

func dateString(d *fleet.Date) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

// CreateEmployeeRequest is the request to create an employee.
type CreateEmployeeRequest struct {
	ID           string `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	City         string `json:"city"`
	CityCode     string `json:"city_code"`
	DNI          string `json:"dni"`
	IBAN         string `json:"iban"`
	Vehicle      string `json:"vehicle"`
	CurrentHours int    `json:"current_hours"`
}

// UpdateEmployeeRequest carries the mutable profile fields. Hours and
// status are owned by the engines and cannot be set here.
type UpdateEmployeeRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	City      *string `json:"city"`
	CityCode  *string `json:"city_code"`
	DNI       *string `json:"dni"`
	IBAN      *string `json:"iban"`
	Vehicle   *string `json:"vehicle"`
}

// ApplyPenalizationRequest sets a penalization window.
type ApplyPenalizationRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason"`
}

// CompanyLeaveRequest opens a company-leave approval chain.
type CompanyLeaveRequest struct {
	Reason string `json:"reason"`
	Date   string `json:"date"`
}

// ITLeaveRequest opens an IT (temporary incapacity) leave.
type ITLeaveRequest struct {
	Reason       string `json:"reason"`
	IncidentDate string `json:"incident_date"`
}

// ProcessNotificationRequest applies a privileged decision to an open
// notification.
type ProcessNotificationRequest struct {
	Action         string `json:"action"`
	ProcessingDate string `json:"processing_date"`
}

// NotificationDTO represents one approval-queue entry.
type NotificationDTO struct {
	ID          string `json:"id"`
	ParentID    string `json:"parent_id,omitempty"`
	LeaveID     string `json:"leave_id,omitempty"`
	EmployeeID  string `json:"employee_id"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	RequestedBy string `json:"requested_by"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toNotificationDTO(n *fleet.Notification) NotificationDTO {
	return NotificationDTO{
		ID:          n.ID,
		ParentID:    n.ParentID,
		LeaveID:     n.LeaveID,
		EmployeeID:  n.EmployeeID,
		Title:       n.Title,
		Message:     n.Message,
		RequestedBy: n.RequestedBy,
		Status:      string(n.Status),
		CreatedAt:   n.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   n.UpdatedAt.Format(time.RFC3339),
	}
}

// LeaveRequestDTO represents one recorded leave event.
type LeaveRequestDTO struct {
	ID            string `json:"id"`
	EmployeeID    string `json:"employee_id"`
	Kind          string `json:"kind"`
	Reason        string `json:"reason"`
	RequestedDate string `json:"requested_date"`
	RequestedBy   string `json:"requested_by"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
}

func toLeaveRequestDTO(lr *fleet.LeaveRequest) LeaveRequestDTO {
	return LeaveRequestDTO{
		ID:            lr.ID,
		EmployeeID:    lr.EmployeeID,
		Kind:          string(lr.Kind),
		Reason:        string(lr.Reason),
		RequestedDate: lr.RequestedDate.String(),
		RequestedBy:   lr.RequestedBy,
		Status:        string(lr.Status),
		CreatedAt:     lr.CreatedAt.Format(time.RFC3339),
	}
}

// SweepReportDTO summarizes one penalization sweep.
type SweepReportDTO struct {
	Checked   int      `json:"checked"`
	Activated int      `json:"activated"`
	Restored  int      `json:"restored"`
	Failed    int      `json:"failed"`
	Employees []string `json:"employees,omitempty"`
}

// MetricsDTO is the fleet-wide snapshot for dashboards.
type MetricsDTO struct {
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"by_status"`
	CurrentHours   int            `json:"current_hours"`
	SnapshotHours  int            `json:"snapshot_hours"`
	CoveragePct    string         `json:"coverage_pct"`
	PenalizedPct   string         `json:"penalized_pct"`
	ExpiringSoon   int            `json:"expiring_soon"`
	OpenLeaveCount int            `json:"open_leave_count"`
}

func toMetricsDTO(m *fleet.Metrics) MetricsDTO {
	byStatus := make(map[string]int, len(m.ByStatus))
	for k, v := range m.ByStatus {
		byStatus[string(k)] = v
	}
	return MetricsDTO{
		Total:          m.Total,
		ByStatus:       byStatus,
		CurrentHours:   m.CurrentHours,
		SnapshotHours:  m.SnapshotHours,
		CoveragePct:    m.CoveragePct.StringFixed(2),
		PenalizedPct:   m.PenalizedPct.StringFixed(2),
		ExpiringSoon:   m.ExpiringSoon,
		OpenLeaveCount: m.OpenLeaveCount,
	}
}

// AuditEntryDTO represents one audit-log row.
type AuditEntryDTO struct {
	ID          string `json:"id"`
	Actor       string `json:"actor"`
	Role        string `json:"role"`
	Action      string `json:"action"`
	EntityType  string `json:"entity_type"`
	EntityID    string `json:"entity_id"`
	Description string `json:"description"`
	Automatic   bool   `json:"automatic"`
	Payload     any    `json:"payload,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func toAuditEntryDTO(e fleet.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:          e.ID,
		Actor:       e.Actor,
		Role:        e.Role,
		Action:      string(e.Action),
		EntityType:  e.EntityType,
		EntityID:    e.EntityID,
		Description: e.Description,
		Automatic:   e.Automatic,
		Payload:     e.Payload,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
	}
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
