package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/roster-engine/fleet"
)

var employeeCols = []string{
	"id", "first_name", "last_name", "email", "phone", "city", "city_code",
	"dni", "iban", "vehicle", "current_hours", "original_hours",
	"penalization_start", "penalization_end", "incident_date",
	"status", "created_at", "updated_at",
}

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return New(mock), mock
}

func TestGetEmployee_ScansNullableColumns(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Now().UTC()
	penStart := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	penEnd := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT (.+) FROM employees\s+WHERE id = \$1`).
		WithArgs("GLV001").
		WillReturnRows(pgxmock.NewRows(employeeCols).AddRow(
			"GLV001", "Ana", "Lopez", nil, nil, "Valencia", nil,
			nil, nil, "moto", 0, int64(40),
			penStart, penEnd, nil,
			string(fleet.StatusPenalized), now, now,
		))

	emp, err := st.GetEmployee(context.Background(), "GLV001")
	require.NoError(t, err)

	assert.Equal(t, "Ana", emp.FirstName)
	assert.Empty(t, emp.Email)
	assert.Equal(t, "Valencia", emp.City)
	assert.Equal(t, fleet.StatusPenalized, emp.Status)
	require.NotNil(t, emp.OriginalHours)
	assert.Equal(t, 40, *emp.OriginalHours)
	require.NotNil(t, emp.PenalizationStart)
	assert.Equal(t, "2025-06-01", emp.PenalizationStart.String())
	assert.Nil(t, emp.IncidentDate)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEmployee_NoRows(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM employees\s+WHERE id = \$1`).
		WithArgs("GLV404").
		WillReturnError(pgx.ErrNoRows)

	_, err := st.GetEmployee(context.Background(), "GLV404")
	assert.ErrorIs(t, err, fleet.ErrEmployeeNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEmployee_UniqueViolation(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO employees`).
		WithArgs(
			"GLV001", "Ana", "Lopez",
			nil, nil, nil, nil, nil, nil, nil,
			40, nil, nil, nil, nil,
			string(fleet.StatusActive),
			pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode})

	_, err := st.CreateEmployee(context.Background(), fleet.Employee{
		ID:           "GLV001",
		FirstName:    "Ana",
		LastName:     "Lopez",
		CurrentHours: 40,
	})
	assert.ErrorIs(t, err, fleet.ErrDuplicateEmployee)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEmployee_StaleTimestamp_Conflict(t *testing.T) {
	// GIVEN: Another writer moved the row past the observed updated_at
	// WHEN: The CAS update matches zero rows but the row still exists
	// THEN: ErrConcurrentModification

	st, mock := newMockStore(t)
	observed := time.Now().UTC()

	mock.ExpectExec(`UPDATE employees`).
		WithArgs(
			"Ana", "Lopez",
			nil, nil, nil, nil, nil, nil, nil,
			20, nil, nil, nil, nil,
			string(fleet.StatusActive),
			pgxmock.AnyArg(), "GLV001", observed,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM employees WHERE id = $1`)).
		WithArgs("GLV001").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	_, err := st.UpdateEmployee(context.Background(), fleet.Employee{
		ID:           "GLV001",
		FirstName:    "Ana",
		LastName:     "Lopez",
		CurrentHours: 20,
		Status:       fleet.StatusActive,
	}, observed)
	assert.ErrorIs(t, err, fleet.ErrConcurrentModification)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEmployee_RowGone_NotFound(t *testing.T) {
	st, mock := newMockStore(t)
	observed := time.Now().UTC()

	mock.ExpectExec(`UPDATE employees`).
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM employees WHERE id = $1`)).
		WithArgs("GLV404").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))

	_, err := st.UpdateEmployee(context.Background(), fleet.Employee{
		ID:     "GLV404",
		Status: fleet.StatusActive,
	}, observed)
	assert.ErrorIs(t, err, fleet.ErrEmployeeNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteEmployee_NotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM employees WHERE id = $1`)).
		WithArgs("GLV404").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := st.DeleteEmployee(context.Background(), "GLV404")
	assert.ErrorIs(t, err, fleet.ErrEmployeeNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateNotificationStatus_ReturnsUpdatedRow(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Now().UTC()
	cols := []string{
		"id", "parent_id", "leave_id", "employee_id", "title", "message",
		"requested_by", "status", "created_at", "updated_at",
	}

	mock.ExpectQuery(`UPDATE notifications`).
		WithArgs(string(fleet.NotificationApproved), pgxmock.AnyArg(), "n-1").
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			"n-1", nil, "lr-1", "GLV001", "Solicitud de Baja Empresa", nil,
			"admin@fleet", string(fleet.NotificationApproved), now, now,
		))

	n, err := st.UpdateNotificationStatus(context.Background(), "n-1", fleet.NotificationApproved)
	require.NoError(t, err)
	assert.Equal(t, fleet.NotificationApproved, n.Status)
	assert.Equal(t, "lr-1", n.LeaveID)
	assert.Empty(t, n.ParentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogAction_SerializesPayload(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs(
			"a-1", "system", "system", string(fleet.AuditCleanupRun),
			"sweep", "cleanup_company_leave", "cleanup removed 1 approved-leave employees",
			true, pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := st.LogAction(context.Background(), fleet.AuditEntry{
		ID:          "a-1",
		Actor:       "system",
		Role:        "system",
		Action:      fleet.AuditCleanupRun,
		EntityType:  "sweep",
		EntityID:    "cleanup_company_leave",
		Description: "cleanup removed 1 approved-leave employees",
		Automatic:   true,
		Payload:     fleet.CleanupRun{Deleted: []string{"GLV001"}, Total: 1},
		CreatedAt:   time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListLeaveRequests_EmptyKindListsAll(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Now().UTC()
	cols := []string{
		"id", "employee_id", "kind", "reason", "requested_date",
		"requested_by", "status", "created_at", "updated_at",
	}
	day := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)

	// No kind filter: the query must not carry a WHERE clause.
	mock.ExpectQuery(`SELECT (.+) FROM leave_requests\s+ORDER BY created_at, id`).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("lr-1", "GLV001", string(fleet.LeaveCompany), string(fleet.ReasonDismissal),
				day, "admin@fleet", string(fleet.LeavePending), now, now).
			AddRow("lr-2", "GLV002", string(fleet.LeaveIT), string(fleet.ReasonSickness),
				day, "admin@fleet", string(fleet.LeaveApproved), now, now))

	all, err := st.ListLeaveRequests(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, fleet.LeaveCompany, all[0].Kind)
	assert.Equal(t, fleet.LeaveIT, all[1].Kind)

	// With a kind the filter is applied as a placeholder.
	mock.ExpectQuery(`SELECT (.+) FROM leave_requests\s+WHERE kind = \$1\s+ORDER BY created_at, id`).
		WithArgs(string(fleet.LeaveIT)).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("lr-2", "GLV002", string(fleet.LeaveIT), string(fleet.ReasonSickness),
				day, "admin@fleet", string(fleet.LeaveApproved), now, now))

	it, err := st.ListLeaveRequests(context.Background(), fleet.LeaveIT)
	require.NoError(t, err)
	require.Len(t, it, 1)
	assert.Equal(t, "lr-2", it[0].ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryAudit_AppliesFilters(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Now().UTC()
	cols := []string{
		"id", "actor", "role", "action", "entity_type", "entity_id",
		"description", "automatic", "payload_json", "created_at",
	}

	mock.ExpectQuery(`SELECT (.+) FROM audit_log\s+WHERE entity_type = \$1 AND entity_id = \$2\s+ORDER BY created_at DESC\s+LIMIT \$3`).
		WithArgs("employee", "GLV001", 10).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			"a-1", "admin@fleet", "admin", string(fleet.AuditPenalizationApplied),
			"employee", "GLV001", "penalization applied", false,
			[]byte(`{"reason":"injury"}`), now,
		))

	entries, err := st.QueryAudit(context.Background(), fleet.AuditFilter{
		EntityType: "employee",
		EntityID:   "GLV001",
		Limit:      10,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, fleet.AuditPenalizationApplied, entries[0].Action)

	raw, ok := entries[0].Payload.(fleet.RawPayload)
	require.True(t, ok)
	assert.JSONEq(t, `{"reason":"injury"}`, string(raw.JSON))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTranslatePgError(t *testing.T) {
	assert.ErrorIs(t,
		translatePgError("get employee", pgx.ErrNoRows, fleet.ErrEmployeeNotFound),
		fleet.ErrEmployeeNotFound)

	other := errors.New("connection reset")
	err := translatePgError("get employee", other, fleet.ErrEmployeeNotFound)
	assert.ErrorIs(t, err, fleet.ErrPersistence)

	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: uniqueViolationCode}))
	assert.False(t, isUniqueViolation(other))
}
