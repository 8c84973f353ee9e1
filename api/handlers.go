/*
handlers.go - HTTP API handlers for the fleet roster engine

PURPOSE:
  Exposes the roster engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the domain engines.

ENDPOINTS:
  Employees:
    GET    /api/employees                      List (optional ?status=)
    POST   /api/employees                      Create employee
    GET    /api/employees/{id}                 Get employee
    PUT    /api/employees/{id}                 Update profile fields
    DELETE /api/employees/{id}                 Hard delete

  Penalizations:
    POST   /api/employees/{id}/penalization    Apply (immediate or scheduled)
    DELETE /api/employees/{id}/penalization    Remove and restore hours
    GET    /api/penalizations/expiring         Windows ending within ?days=

  Leaves:
    POST   /api/employees/{id}/company-leave   Open approval chain
    POST   /api/employees/{id}/it-leave        Immediate IT leave
    POST   /api/employees/{id}/reactivate      IT leave back to active
    GET    /api/leaves                         List (optional ?kind=)

  Notifications:
    GET    /api/notifications                  Approval queue (?open=true)
    POST   /api/notifications/{id}/process     Privileged decision

  Admin:
    POST   /api/admin/sweeps/penalizations     Run activation + expiry now
    POST   /api/admin/sweeps/cleanup           Run approved-leave cleanup now
    GET    /api/metrics                        Fleet snapshot
    GET    /api/audit                          Audit log query

AUTHORIZATION:
  The caller identifies itself with X-Actor-ID and X-Actor-Role headers.
  Notification processing, reactivation and the admin sweeps require the
  super_admin role; everything else accepts any identified actor. There
  is no session layer here, the gateway in front terminates auth.

ERROR HANDLING:
  Domain errors map to status codes via their taxonomy:
  - 400: ErrInvalidRange, ErrInvalidState (client errors)
  - 404: not-found sentinels
  - 409: ErrConcurrentModification, ErrDuplicateEmployee
  - 500: everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - fleet/: The domain engines these delegate to
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/fleetops/roster-engine/fleet"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     fleet.RecordStore
	Penalties *fleet.PenalizationEngine
	Leaves    *fleet.LeaveEngine
	Clock     fleet.Clock

	// ExpiringDays is the default horizon for the expiring report.
	ExpiringDays int

	Log zerolog.Logger
}

// NewHandler wires a handler around the shared store and engines.
func NewHandler(store fleet.RecordStore, penalties *fleet.PenalizationEngine,
	leaves *fleet.LeaveEngine, clock fleet.Clock, expiringDays int, log zerolog.Logger) *Handler {
	return &Handler{
		Store:        store,
		Penalties:    penalties,
		Leaves:       leaves,
		Clock:        clock,
		ExpiringDays: expiringDays,
		Log:          log,
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees, optionally filtered by status.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	var pred fleet.EmployeePredicate
	if s := r.URL.Query().Get("status"); s != "" {
		status := fleet.Status(s)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "Unknown status filter", nil)
			return
		}
		pred = func(e *fleet.Employee) bool { return e.Status == status }
	}

	employees, err := h.Store.ListEmployees(r.Context(), pred)
	if err != nil {
		writeDomainError(w, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i := range employees {
		dtos[i] = toEmployeeDTO(&employees[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// CreateEmployee creates a new employee in active status.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.FirstName == "" {
		writeError(w, http.StatusBadRequest, "id and first_name are required", nil)
		return
	}
	if req.CurrentHours < 0 {
		writeError(w, http.StatusBadRequest, "current_hours must not be negative", nil)
		return
	}

	emp, err := h.Store.CreateEmployee(r.Context(), fleet.Employee{
		ID:           req.ID,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Phone:        req.Phone,
		City:         req.City,
		CityCode:     req.CityCode,
		DNI:          req.DNI,
		IBAN:         req.IBAN,
		Vehicle:      req.Vehicle,
		CurrentHours: req.CurrentHours,
		Status:       fleet.StatusActive,
	})
	if err != nil {
		writeDomainError(w, "Failed to create employee", err)
		return
	}

	h.Log.Info().Str("employee", emp.ID).Msg("api: employee created")
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// UpdateEmployee updates the mutable profile fields. Hours, status and
// penalization windows are owned by the engines and not touchable here.
func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get employee", err)
		return
	}

	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&emp.FirstName, req.FirstName)
	apply(&emp.LastName, req.LastName)
	apply(&emp.Email, req.Email)
	apply(&emp.Phone, req.Phone)
	apply(&emp.City, req.City)
	apply(&emp.CityCode, req.CityCode)
	apply(&emp.DNI, req.DNI)
	apply(&emp.IBAN, req.IBAN)
	apply(&emp.Vehicle, req.Vehicle)

	updated, err := h.Store.UpdateEmployee(r.Context(), *emp, emp.UpdatedAt)
	if err != nil {
		writeDomainError(w, "Failed to update employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(updated))
}

// DeleteEmployee hard-deletes an employee record.
func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Store.DeleteEmployee(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete employee", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// =============================================================================
// PENALIZATION HANDLERS
// =============================================================================

// ApplyPenalization sets a penalization window on an employee.
func (h *Handler) ApplyPenalization(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ApplyPenalizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := fleet.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date", err)
		return
	}
	end, err := fleet.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date", err)
		return
	}

	emp, err := h.Penalties.Apply(r.Context(), id, start, end, req.Reason, actorFrom(r))
	if err != nil {
		writeDomainError(w, "Failed to apply penalization", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// RemovePenalization lifts a penalization and restores original hours.
func (h *Handler) RemovePenalization(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	emp, err := h.Penalties.Remove(r.Context(), id, actorFrom(r))
	if err != nil {
		writeDomainError(w, "Failed to remove penalization", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// ListExpiringPenalizations returns active penalizations ending within
// ?days= (default from config).
func (h *Handler) ListExpiringPenalizations(w http.ResponseWriter, r *http.Request) {
	days := h.ExpiringDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid days parameter", err)
			return
		}
		days = n
	}

	employees, err := h.Penalties.ExpiringSoon(r.Context(), days)
	if err != nil {
		writeDomainError(w, "Failed to list expiring penalizations", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i := range employees {
		dtos[i] = toEmployeeDTO(&employees[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days, "employees": dtos})
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

// RequestCompanyLeave opens a company-leave approval chain.
func (h *Handler) RequestCompanyLeave(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req CompanyLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := fleet.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	leave, notif, err := h.Leaves.RequestCompanyLeave(r.Context(), id,
		fleet.LeaveReason(req.Reason), date, actorFrom(r))
	if err != nil {
		writeDomainError(w, "Failed to request company leave", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"leave":        toLeaveRequestDTO(leave),
		"notification": toNotificationDTO(notif),
	})
}

// OpenITLeave puts an employee on IT leave immediately.
func (h *Handler) OpenITLeave(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ITLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	incident, err := fleet.ParseDate(req.IncidentDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid incident_date", err)
		return
	}

	emp, err := h.Leaves.OpenITLeave(r.Context(), id, fleet.LeaveReason(req.Reason),
		incident, actorFrom(r))
	if err != nil {
		writeDomainError(w, "Failed to open IT leave", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// Reactivate returns an IT-leave employee to active. super_admin only.
func (h *Handler) Reactivate(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireSuperAdmin(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	emp, err := h.Leaves.Reactivate(r.Context(), id, actor)
	if err != nil {
		writeDomainError(w, "Failed to reactivate employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// ListLeaves returns recorded leave events, optionally filtered by kind.
func (h *Handler) ListLeaves(w http.ResponseWriter, r *http.Request) {
	kind := fleet.LeaveKind(r.URL.Query().Get("kind"))
	if kind != "" && kind != fleet.LeaveIT && kind != fleet.LeaveCompany {
		writeError(w, http.StatusBadRequest, "Unknown leave kind", nil)
		return
	}

	leaves, err := h.Store.ListLeaveRequests(r.Context(), kind)
	if err != nil {
		writeDomainError(w, "Failed to list leaves", err)
		return
	}

	dtos := make([]LeaveRequestDTO, len(leaves))
	for i := range leaves {
		dtos[i] = toLeaveRequestDTO(&leaves[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// NOTIFICATION HANDLERS
// =============================================================================

// ListNotifications returns the approval queue. ?open=true restricts to
// notifications still awaiting a decision.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	onlyOpen := r.URL.Query().Get("open") == "true"

	notifs, err := h.Store.ListNotifications(r.Context(), onlyOpen)
	if err != nil {
		writeDomainError(w, "Failed to list notifications", err)
		return
	}

	dtos := make([]NotificationDTO, len(notifs))
	for i := range notifs {
		dtos[i] = toNotificationDTO(&notifs[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ProcessNotification applies a decision to an open notification.
// super_admin only.
func (h *Handler) ProcessNotification(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireSuperAdmin(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	var req ProcessNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	processingDate := fleet.Today(h.Clock)
	if req.ProcessingDate != "" {
		var err error
		processingDate, err = fleet.ParseDate(req.ProcessingDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid processing_date", err)
			return
		}
	}

	emp, err := h.Leaves.ProcessNotification(r.Context(), id,
		fleet.NotificationAction(req.Action), processingDate, actor)
	if err != nil {
		writeDomainError(w, "Failed to process notification", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RunPenalizationSweep manually triggers the activation and expiry
// sweeps. super_admin only.
func (h *Handler) RunPenalizationSweep(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireSuperAdmin(w, r)
	if !ok {
		return
	}

	activated, err := h.Penalties.ActivateScheduled(r.Context(), actor)
	if err != nil {
		writeDomainError(w, "Activation sweep failed", err)
		return
	}
	restored, err := h.Penalties.CheckAndRestoreExpired(r.Context(), actor)
	if err != nil {
		writeDomainError(w, "Expiry sweep failed", err)
		return
	}

	var names []string
	for _, e := range restored.RestoredEmployees {
		names = append(names, e.ID)
	}
	writeJSON(w, http.StatusOK, SweepReportDTO{
		Checked:   activated.Checked + restored.Checked,
		Activated: activated.Activated,
		Restored:  restored.Restored,
		Failed:    activated.Failed + restored.Failed,
		Employees: names,
	})
}

// RunCleanupSweep manually triggers the approved-leave cleanup.
// super_admin only.
func (h *Handler) RunCleanupSweep(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireSuperAdmin(w, r)
	if !ok {
		return
	}

	report, err := h.Leaves.CleanupApprovedLeaves(r.Context(), actor)
	if err != nil {
		writeDomainError(w, "Cleanup sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deleted": report.Deleted,
		"total":   report.Total,
	})
}

// GetMetrics returns the fleet-wide snapshot.
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := fleet.ComputeMetrics(r.Context(), h.Store, h.Clock, h.ExpiringDays)
	if err != nil {
		writeDomainError(w, "Failed to compute metrics", err)
		return
	}
	writeJSON(w, http.StatusOK, toMetricsDTO(m))
}

// QueryAudit returns audit entries, newest first. Supports
// ?entity_type=, ?entity_id=, ?action= and ?limit=.
func (h *Handler) QueryAudit(w http.ResponseWriter, r *http.Request) {
	querier, ok := h.Store.(fleet.AuditQuerier)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Audit querying not supported by this store", nil)
		return
	}

	filter := fleet.AuditFilter{
		EntityType: r.URL.Query().Get("entity_type"),
		EntityID:   r.URL.Query().Get("entity_id"),
		Action:     fleet.AuditAction(r.URL.Query().Get("action")),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit parameter", err)
			return
		}
		filter.Limit = n
	}

	entries, err := querier.QueryAudit(r.Context(), filter)
	if err != nil {
		writeDomainError(w, "Failed to query audit log", err)
		return
	}

	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toAuditEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ACTOR AND ERROR PLUMBING
// =============================================================================

// actorFrom builds the audit actor from the identity headers. Missing
// headers fall back to an anonymous API actor rather than rejecting:
// identification is for the audit trail, authorization is separate.
func actorFrom(r *http.Request) fleet.Actor {
	actor := fleet.Actor{
		ID:   r.Header.Get("X-Actor-ID"),
		Role: r.Header.Get("X-Actor-Role"),
	}
	if actor.ID == "" {
		actor.ID = "api"
	}
	if actor.Role == "" {
		actor.Role = "user"
	}
	return actor
}

// requireSuperAdmin gates privileged endpoints. Writes the 403 itself
// when the role does not match.
func requireSuperAdmin(w http.ResponseWriter, r *http.Request) (fleet.Actor, bool) {
	actor := actorFrom(r)
	if actor.Role != "super_admin" {
		writeError(w, http.StatusForbidden, "super_admin role required", nil)
		return fleet.Actor{}, false
	}
	return actor, true
}

// writeDomainError maps the domain error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case fleet.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, fleet.ErrDuplicateEmployee),
		errors.Is(err, fleet.ErrConcurrentModification):
		writeError(w, http.StatusConflict, message, err)
	case fleet.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
