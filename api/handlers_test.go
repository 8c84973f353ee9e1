/*
handlers_test.go - HTTP-level tests for the roster API

Tests exercise the full router (middleware included) against the
in-memory store, so routing, role gating, JSON shapes and domain error
mapping are all covered from the outside.
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/roster-engine/fleet"
	"github.com/fleetops/roster-engine/fleet/store"
)

// =============================================================================
// TEST INFRASTRUCTURE
// =============================================================================

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) AdvanceDays(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.AddDate(0, 0, n)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func newTestAPI(t *testing.T) (http.Handler, *store.Memory, *fakeClock) {
	t.Helper()

	clock := &fakeClock{t: time.Date(2025, time.May, 5, 12, 0, 0, 0, time.UTC)}
	mem := store.NewMemory()
	mem.Clock = clock

	log := zerolog.Nop()
	penalties := &fleet.PenalizationEngine{Store: mem, Audit: mem, Clock: clock, Log: log}
	leaves := &fleet.LeaveEngine{Store: mem, Audit: mem, Clock: clock, Log: log}

	h := NewHandler(mem, penalties, leaves, clock, 7, log)
	return NewRouter(h), mem, clock
}

// do runs one request through the router. A non-nil body is JSON
// encoded; role sets the X-Actor-Role header.
func do(t *testing.T, router http.Handler, method, path string, body any, role string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", "tester")
	if role != "" {
		req.Header.Set("X-Actor-Role", role)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func seedViaAPI(t *testing.T, router http.Handler, id string, hours int) {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/employees", CreateEmployeeRequest{
		ID:           id,
		FirstName:    "Nora",
		LastName:     "Vidal",
		Email:        id + "@fleet.example",
		CurrentHours: hours,
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
}

// =============================================================================
// EMPLOYEE ENDPOINTS
// =============================================================================

func TestCreateAndGetEmployee(t *testing.T) {
	router, _, _ := newTestAPI(t)

	// GIVEN: a create request with a full profile
	rec := do(t, router, http.MethodPost, "/api/employees", CreateEmployeeRequest{
		ID:           "rider-1",
		FirstName:    "Marta",
		LastName:     "Osei",
		Email:        "marta@fleet.example",
		City:         "Madrid",
		CityCode:     "MAD",
		Vehicle:      "moto",
		CurrentHours: 40,
	}, "")

	// THEN: created with active status
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[EmployeeDTO](t, rec)
	assert.Equal(t, "rider-1", created.ID)
	assert.Equal(t, string(fleet.StatusActive), created.Status)
	assert.Equal(t, 40, created.CurrentHours)
	assert.Nil(t, created.OriginalHours)

	// AND: it reads back identically
	rec = do(t, router, http.MethodGet, "/api/employees/rider-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[EmployeeDTO](t, rec)
	assert.Equal(t, "Marta", got.FirstName)
	assert.Equal(t, "MAD", got.CityCode)
}

func TestCreateEmployeeDuplicateConflicts(t *testing.T) {
	router, _, _ := newTestAPI(t)
	seedViaAPI(t, router, "rider-1", 40)

	rec := do(t, router, http.MethodPost, "/api/employees", CreateEmployeeRequest{
		ID: "rider-1", FirstName: "Other",
	}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateEmployeeValidation(t *testing.T) {
	router, _, _ := newTestAPI(t)

	rec := do(t, router, http.MethodPost, "/api/employees", CreateEmployeeRequest{
		FirstName: "No ID",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/employees", CreateEmployeeRequest{
		ID: "rider-x", FirstName: "Neg", CurrentHours: -1,
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetEmployeeNotFound(t *testing.T) {
	router, _, _ := newTestAPI(t)

	rec := do(t, router, http.MethodGet, "/api/employees/ghost", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.NotEmpty(t, resp.Error)
}

func TestUpdateEmployeeProfile(t *testing.T) {
	router, _, _ := newTestAPI(t)
	seedViaAPI(t, router, "rider-1", 40)

	// WHEN: updating only the phone
	phone := "+34600111222"
	rec := do(t, router, http.MethodPut, "/api/employees/rider-1", UpdateEmployeeRequest{
		Phone: &phone,
	}, "")

	// THEN: phone changed, everything else untouched
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[EmployeeDTO](t, rec)
	assert.Equal(t, phone, got.Phone)
	assert.Equal(t, "Nora", got.FirstName)
	assert.Equal(t, 40, got.CurrentHours)
}

func TestListEmployeesStatusFilter(t *testing.T) {
	router, _, _ := newTestAPI(t)
	seedViaAPI(t, router, "rider-1", 40)
	seedViaAPI(t, router, "rider-2", 30)

	// GIVEN: rider-2 penalized
	rec := do(t, router, http.MethodPost, "/api/employees/rider-2/penalization", ApplyPenalizationRequest{
		StartDate: "2025-05-05", EndDate: "2025-05-10", Reason: "late deliveries",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// THEN: the filter splits them
	rec = do(t, router, http.MethodGet, "/api/employees?status=penalizado", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	penalized := decode[[]EmployeeDTO](t, rec)
	require.Len(t, penalized, 1)
	assert.Equal(t, "rider-2", penalized[0].ID)

	// AND: an unknown status is rejected
	rec = do(t, router, http.MethodGet, "/api/employees?status=bogus", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteEmployee(t *testing.T) {
	router, _, _ := newTestAPI(t)
	seedViaAPI(t, router, "rider-1", 40)

	rec := do(t, router, http.MethodDelete, "/api/employees/rider-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/employees/rider-1", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// PENALIZATION ENDPOINTS
// =============================================================================

func TestPenalizationRoundTrip(t *testing.T) {
	router, _, _ := newTestAPI(t)
	seedViaAPI(t, router, "rider-1", 40)

	// WHEN: applying a window starting today
	rec := do(t, router, http.MethodPost, "/api/employees/rider-1/penalization", ApplyPenalizationRequest{
		StartDate: "2025-05-05", EndDate: "2025-05-12", Reason: "no-show",
	}, "")

	// THEN: hours floored, snapshot kept
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[EmployeeDTO](t, rec)
	assert.Equal(t, string(fleet.StatusPenalized), got.Status)
	assert.Equal(t, 0, got.CurrentHours)
	require.NotNil(t, got.OriginalHours)
	assert.Equal(t, 40, *got.OriginalHours)
	require.NotNil(t, got.PenalizationEnd)
	assert.Equal(t, "2025-05-12", *got.PenalizationEnd)

	// WHEN: removing it
	rec = do(t, router, http.MethodDelete, "/api/employees/rider-1/penalization", nil, "")

	// THEN: hours restored, window cleared
	require.Equal(t, http.StatusOK, rec.Code)
	got = decode[EmployeeDTO](t, rec)
	assert.Equal(t, string(fleet.StatusActive), got.Status)
	assert.Equal(t, 40, got.CurrentHours)
	assert.Nil(t, got.OriginalHours)
	assert.Nil(t, got.PenalizationStart)
}

func TestPenalizationBadRange(t *testing.T) {
	router, _, _ := newTestAPI(t)
	seedViaAPI(t, router, "rider-1", 40)

	// start after end
	rec := do(t, router, http.MethodPost, "/api/employees/rider-1/penalization", ApplyPenalizationRequest{
		StartDate: "2025-05-20", EndDate: "2025-05-10", Reason: "x",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// unparseable date
	rec = do(t, router, http.MethodPost, "/api/employees/rider-1/penalization", ApplyPenalizationRequest{
		StartDate: "05/20/2025", EndDate: "2025-05-21", Reason: "x",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListExpiringPenalizations(t *testing.T) {
	router, _, _ := newTestAPI(t)
	seedViaAPI(t, router, "rider-1", 40)
	seedViaAPI(t, router, "rider-2", 40)

	// rider-1 ends in 3 days, rider-2 in 30
	rec := do(t, router, http.MethodPost, "/api/employees/rider-1/penalization", ApplyPenalizationRequest{
		StartDate: "2025-05-05", EndDate: "2025-05-08", Reason: "a",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, router, http.MethodPost, "/api/employees/rider-2/penalization", ApplyPenalizationRequest{
		StartDate: "2025-05-05", EndDate: "2025-06-04", Reason: "b",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/penalizations/expiring?days=7", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Days      int           `json:"days"`
		Employees []EmployeeDTO `json:"employees"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 7, resp.Days)
	require.Len(t, resp.Employees, 1)
	assert.Equal(t, "rider-1", resp.Employees[0].ID)
}

// =============================================================================
// LEAVE AND NOTIFICATION ENDPOINTS
// =============================================================================

func TestCompanyLeaveApprovalFlow(t *testing.T) {
	router, _, _ := newTestAPI(t)
	seedViaAPI(t, router, "rider-1", 40)

	// GIVEN: an open company-leave chain
	rec := do(t, router, http.MethodPost, "/api/employees/rider-1/company-leave", CompanyLeaveRequest{
		Reason: string(fleet.ReasonVoluntary), Date: "2025-05-15",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var opened struct {
		Leave        LeaveRequestDTO `json:"leave"`
		Notification NotificationDTO `json:"notification"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&opened))
	assert.Equal(t, string(fleet.LeavePending), opened.Leave.Status)
	assert.Equal(t, string(fleet.NotificationPending), opened.Notification.Status)
	assert.Equal(t, opened.Leave.ID, opened.Notification.LeaveID)

	// AND: the employee is now waiting
	rec = do(t, router, http.MethodGet, "/api/employees/rider-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(fleet.StatusCompanyLeavePending), decode[EmployeeDTO](t, rec).Status)

	// WHEN: processing without the privileged role
	path := fmt.Sprintf("/api/notifications/%s/process", opened.Notification.ID)
	rec = do(t, router, http.MethodPost, path, ProcessNotificationRequest{Action: "approve"}, "user")

	// THEN: forbidden, nothing changed
	require.Equal(t, http.StatusForbidden, rec.Code)

	// WHEN: a super_admin approves
	rec = do(t, router, http.MethodPost, path, ProcessNotificationRequest{
		Action: "approve", ProcessingDate: "2025-05-16",
	}, "super_admin")

	// THEN: employee moves to approved leave
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(fleet.StatusCompanyLeaveApproved), decode[EmployeeDTO](t, rec).Status)

	// AND: the queue is empty
	rec = do(t, router, http.MethodGet, "/api/notifications?open=true", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]NotificationDTO](t, rec))
}

func TestCompanyLeaveInvalidReason(t *testing.T) {
	router, _, _ := newTestAPI(t)
	seedViaAPI(t, router, "rider-1", 40)

	rec := do(t, router, http.MethodPost, "/api/employees/rider-1/company-leave", CompanyLeaveRequest{
		Reason: string(fleet.ReasonSickness), Date: "2025-05-15",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestITLeaveAndReactivate(t *testing.T) {
	router, _, _ := newTestAPI(t)
	seedViaAPI(t, router, "rider-1", 40)

	// WHEN: opening an IT leave
	rec := do(t, router, http.MethodPost, "/api/employees/rider-1/it-leave", ITLeaveRequest{
		Reason: string(fleet.ReasonAccident), IncidentDate: "2025-05-04",
	}, "")

	// THEN: immediate, hours untouched
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[EmployeeDTO](t, rec)
	assert.Equal(t, string(fleet.StatusITLeave), got.Status)
	assert.Equal(t, 40, got.CurrentHours)
	require.NotNil(t, got.IncidentDate)
	assert.Equal(t, "2025-05-04", *got.IncidentDate)

	// AND: the leave shows in the history
	rec = do(t, router, http.MethodGet, "/api/leaves?kind=it", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	leaves := decode[[]LeaveRequestDTO](t, rec)
	require.Len(t, leaves, 1)
	assert.Equal(t, string(fleet.LeaveApproved), leaves[0].Status)

	// WHEN: reactivating (super_admin only)
	rec = do(t, router, http.MethodPost, "/api/employees/rider-1/reactivate", nil, "user")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/employees/rider-1/reactivate", nil, "super_admin")
	require.Equal(t, http.StatusOK, rec.Code)
	got = decode[EmployeeDTO](t, rec)
	assert.Equal(t, string(fleet.StatusActive), got.Status)
	assert.Nil(t, got.IncidentDate)
}

// =============================================================================
// ADMIN AND OBSERVABILITY ENDPOINTS
// =============================================================================

func TestManualPenalizationSweep(t *testing.T) {
	router, _, clock := newTestAPI(t)
	seedViaAPI(t, router, "rider-1", 40)

	// GIVEN: a window scheduled for tomorrow
	rec := do(t, router, http.MethodPost, "/api/employees/rider-1/penalization", ApplyPenalizationRequest{
		StartDate: "2025-05-06", EndDate: "2025-05-08", Reason: "scheduled",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// WHEN: the day arrives and a super_admin runs the sweep
	clock.AdvanceDays(1)
	rec = do(t, router, http.MethodPost, "/api/admin/sweeps/penalizations", nil, "super_admin")

	// THEN: one activation, no restores yet
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[SweepReportDTO](t, rec)
	assert.Equal(t, 1, report.Activated)
	assert.Equal(t, 0, report.Restored)

	// AND: the role gate holds
	rec = do(t, router, http.MethodPost, "/api/admin/sweeps/penalizations", nil, "user")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router, _, _ := newTestAPI(t)
	seedViaAPI(t, router, "rider-1", 40)
	seedViaAPI(t, router, "rider-2", 20)

	rec := do(t, router, http.MethodPost, "/api/employees/rider-2/penalization", ApplyPenalizationRequest{
		StartDate: "2025-05-05", EndDate: "2025-05-10", Reason: "x",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	m := decode[MetricsDTO](t, rec)
	assert.Equal(t, 2, m.Total)
	assert.Equal(t, 40, m.CurrentHours)
	assert.Equal(t, 20, m.SnapshotHours)
	assert.Equal(t, 1, m.ByStatus[string(fleet.StatusPenalized)])
	assert.Equal(t, "50.00", m.PenalizedPct)
}

func TestAuditEndpoint(t *testing.T) {
	router, _, _ := newTestAPI(t)
	seedViaAPI(t, router, "rider-1", 40)

	rec := do(t, router, http.MethodPost, "/api/employees/rider-1/penalization", ApplyPenalizationRequest{
		StartDate: "2025-05-05", EndDate: "2025-05-10", Reason: "audit me",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/audit?entity_id=rider-1&limit=10", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]AuditEntryDTO](t, rec)
	require.NotEmpty(t, entries)
	assert.Equal(t, string(fleet.AuditPenalizationApplied), entries[0].Action)
	assert.Equal(t, "tester", entries[0].Actor)
}

func TestHealthz(t *testing.T) {
	router, _, _ := newTestAPI(t)

	rec := do(t, router, http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
}
