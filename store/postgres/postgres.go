/*
Package postgres provides a PostgreSQL-backed implementation of the
storage interfaces.

PURPOSE:
  Implements fleet.RecordStore, fleet.AuditSink, and fleet.AuditQuerier
  over pgx for multi-node deployments. The updated-at compare-and-swap
  replaces in-process locking: the database arbitrates concurrent writers.

SCHEMA:
  Managed by versioned migrations (migrations/, applied with
  cmd/migrate), not auto-migrated like the SQLite store.

TESTING:
  Store takes a Querier rather than a concrete pool, so tests run
  against pgxmock without a live database.

SEE ALSO:
  - fleet/store.go: Interface definitions
  - store/sqlite: single-node implementation with the same semantics
  - migrations/: Versioned DDL
*/
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetops/roster-engine/fleet"
)

const uniqueViolationCode = "23505"

// Querier is the query surface shared by pgxpool.Pool, pgx.Tx, and
// pgxmock pools.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store implements the fleet storage interfaces on PostgreSQL.
type Store struct {
	q     Querier
	clock fleet.Clock
}

// New wraps an existing pool or transaction.
func New(q Querier) *Store {
	return &Store{q: q, clock: fleet.RealClock{}}
}

// Connect builds a pool from a DSN and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*Store, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return New(pool), pool, nil
}

// SetClock overrides the timestamp source. Test hook.
func (s *Store) SetClock(c fleet.Clock) { s.clock = c }

// =============================================================================
// EMPLOYEES (fleet.RecordStore)
// =============================================================================

const employeeColumns = `id, first_name, last_name, email, phone, city, city_code,
       dni, iban, vehicle, current_hours, original_hours,
       penalization_start, penalization_end, incident_date,
       status, created_at, updated_at`

func (s *Store) GetEmployee(ctx context.Context, id string) (*fleet.Employee, error) {
	row := s.q.QueryRow(ctx, `
        SELECT `+employeeColumns+`
          FROM employees
         WHERE id = $1
    `, id)
	emp, err := scanEmployee(row)
	if err != nil {
		return nil, translatePgError("get employee", err, fleet.ErrEmployeeNotFound)
	}
	return emp, nil
}

func (s *Store) ListEmployees(ctx context.Context, pred fleet.EmployeePredicate) ([]fleet.Employee, error) {
	rows, err := s.q.Query(ctx, `
        SELECT `+employeeColumns+`
          FROM employees
         ORDER BY id
    `)
	if err != nil {
		return nil, translatePgError("list employees", err, fleet.ErrEmployeeNotFound)
	}
	defer rows.Close()

	var employees []fleet.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, translatePgError("scan employee", err, fleet.ErrEmployeeNotFound)
		}
		if pred == nil || pred(emp) {
			employees = append(employees, *emp)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, translatePgError("list employees", err, fleet.ErrEmployeeNotFound)
	}
	return employees, nil
}

func (s *Store) CreateEmployee(ctx context.Context, emp fleet.Employee) (*fleet.Employee, error) {
	if emp.Status == "" {
		emp.Status = fleet.StatusActive
	}
	now := s.clock.Now()
	emp.CreatedAt = now
	emp.UpdatedAt = now

	_, err := s.q.Exec(ctx, `
        INSERT INTO employees (`+employeeColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
    `,
		emp.ID, emp.FirstName, emp.LastName,
		nullable(emp.Email), nullable(emp.Phone),
		nullable(emp.City), nullable(emp.CityCode),
		nullable(emp.DNI), nullable(emp.IBAN), nullable(emp.Vehicle),
		emp.CurrentHours, nullableInt(emp.OriginalHours),
		nullableDate(emp.PenalizationStart), nullableDate(emp.PenalizationEnd),
		nullableDate(emp.IncidentDate),
		string(emp.Status), emp.CreatedAt, emp.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fleet.ErrDuplicateEmployee
		}
		return nil, &fleet.PersistenceError{Op: "postgres create employee", Err: err}
	}
	return &emp, nil
}

func (s *Store) UpdateEmployee(ctx context.Context, emp fleet.Employee, expectedUpdatedAt time.Time) (*fleet.Employee, error) {
	emp.UpdatedAt = s.clock.Now()
	if !emp.UpdatedAt.After(expectedUpdatedAt) {
		emp.UpdatedAt = expectedUpdatedAt.Add(time.Microsecond)
	}

	tag, err := s.q.Exec(ctx, `
        UPDATE employees
           SET first_name = $1, last_name = $2, email = $3, phone = $4,
               city = $5, city_code = $6, dni = $7, iban = $8, vehicle = $9,
               current_hours = $10, original_hours = $11,
               penalization_start = $12, penalization_end = $13, incident_date = $14,
               status = $15, updated_at = $16
         WHERE id = $17 AND updated_at = $18
    `,
		emp.FirstName, emp.LastName,
		nullable(emp.Email), nullable(emp.Phone),
		nullable(emp.City), nullable(emp.CityCode),
		nullable(emp.DNI), nullable(emp.IBAN), nullable(emp.Vehicle),
		emp.CurrentHours, nullableInt(emp.OriginalHours),
		nullableDate(emp.PenalizationStart), nullableDate(emp.PenalizationEnd),
		nullableDate(emp.IncidentDate),
		string(emp.Status), emp.UpdatedAt,
		emp.ID, expectedUpdatedAt,
	)
	if err != nil {
		return nil, &fleet.PersistenceError{Op: "postgres update employee", Err: err}
	}
	if tag.RowsAffected() == 0 {
		var exists int
		if err := s.q.QueryRow(ctx,
			`SELECT COUNT(*) FROM employees WHERE id = $1`, emp.ID).Scan(&exists); err != nil {
			return nil, &fleet.PersistenceError{Op: "postgres update employee", Err: err}
		}
		if exists == 0 {
			return nil, fleet.ErrEmployeeNotFound
		}
		return nil, fleet.ErrConcurrentModification
	}
	return &emp, nil
}

func (s *Store) DeleteEmployee(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		return &fleet.PersistenceError{Op: "postgres delete employee", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return fleet.ErrEmployeeNotFound
	}
	return nil
}

func scanEmployee(row pgx.Row) (*fleet.Employee, error) {
	var (
		emp                fleet.Employee
		email, phone       sql.NullString
		city, cityCode     sql.NullString
		dni, iban, vehicle sql.NullString
		originalHours      sql.NullInt64
		penStart, penEnd   sql.NullTime
		incident           sql.NullTime
		status             string
	)

	if err := row.Scan(
		&emp.ID, &emp.FirstName, &emp.LastName, &email, &phone,
		&city, &cityCode, &dni, &iban, &vehicle,
		&emp.CurrentHours, &originalHours,
		&penStart, &penEnd, &incident,
		&status, &emp.CreatedAt, &emp.UpdatedAt,
	); err != nil {
		return nil, err
	}

	emp.Email = email.String
	emp.Phone = phone.String
	emp.City = city.String
	emp.CityCode = cityCode.String
	emp.DNI = dni.String
	emp.IBAN = iban.String
	emp.Vehicle = vehicle.String
	if originalHours.Valid {
		v := int(originalHours.Int64)
		emp.OriginalHours = &v
	}
	emp.PenalizationStart = datePtr(penStart)
	emp.PenalizationEnd = datePtr(penEnd)
	emp.IncidentDate = datePtr(incident)
	emp.Status = fleet.Status(status)

	return &emp, nil
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

const leaveColumns = `id, employee_id, kind, reason, requested_date, requested_by,
       status, created_at, updated_at`

func (s *Store) CreateLeaveRequest(ctx context.Context, lr fleet.LeaveRequest) (*fleet.LeaveRequest, error) {
	now := s.clock.Now()
	lr.CreatedAt = now
	lr.UpdatedAt = now

	_, err := s.q.Exec(ctx, `
        INSERT INTO leave_requests (`+leaveColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `,
		lr.ID, lr.EmployeeID, string(lr.Kind), string(lr.Reason),
		lr.RequestedDate.Time, lr.RequestedBy, string(lr.Status),
		lr.CreatedAt, lr.UpdatedAt,
	)
	if err != nil {
		return nil, &fleet.PersistenceError{Op: "postgres create leave request", Err: err}
	}
	return &lr, nil
}

func (s *Store) GetLeaveRequest(ctx context.Context, id string) (*fleet.LeaveRequest, error) {
	row := s.q.QueryRow(ctx, `
        SELECT `+leaveColumns+`
          FROM leave_requests
         WHERE id = $1
    `, id)
	lr, err := scanLeaveRequest(row)
	if err != nil {
		return nil, translatePgError("get leave request", err, fleet.ErrLeaveNotFound)
	}
	return lr, nil
}

func (s *Store) ListLeaveRequests(ctx context.Context, kind fleet.LeaveKind) ([]fleet.LeaveRequest, error) {
	query := `
        SELECT ` + leaveColumns + `
          FROM leave_requests
         ORDER BY created_at, id
    `
	var args []any
	if kind != "" {
		query = `
        SELECT ` + leaveColumns + `
          FROM leave_requests
         WHERE kind = $1
         ORDER BY created_at, id
    `
		args = append(args, string(kind))
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, translatePgError("list leave requests", err, fleet.ErrLeaveNotFound)
	}
	defer rows.Close()

	var leaves []fleet.LeaveRequest
	for rows.Next() {
		lr, err := scanLeaveRequest(rows)
		if err != nil {
			return nil, translatePgError("scan leave request", err, fleet.ErrLeaveNotFound)
		}
		leaves = append(leaves, *lr)
	}
	return leaves, rows.Err()
}

func (s *Store) UpdateLeaveRequestStatus(ctx context.Context, id string, status fleet.LeaveStatus) (*fleet.LeaveRequest, error) {
	row := s.q.QueryRow(ctx, `
        UPDATE leave_requests
           SET status = $1, updated_at = $2
         WHERE id = $3
        RETURNING `+leaveColumns+`
    `, string(status), s.clock.Now(), id)
	lr, err := scanLeaveRequest(row)
	if err != nil {
		return nil, translatePgError("update leave request", err, fleet.ErrLeaveNotFound)
	}
	return lr, nil
}

func scanLeaveRequest(row pgx.Row) (*fleet.LeaveRequest, error) {
	var (
		lr                   fleet.LeaveRequest
		kind, reason, status string
		requestedDate        time.Time
	)
	if err := row.Scan(&lr.ID, &lr.EmployeeID, &kind, &reason,
		&requestedDate, &lr.RequestedBy, &status,
		&lr.CreatedAt, &lr.UpdatedAt); err != nil {
		return nil, err
	}
	lr.Kind = fleet.LeaveKind(kind)
	lr.Reason = fleet.LeaveReason(reason)
	lr.Status = fleet.LeaveStatus(status)
	lr.RequestedDate = fleet.DateOf(requestedDate)
	return &lr, nil
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

const notificationColumns = `id, parent_id, leave_id, employee_id, title, message,
       requested_by, status, created_at, updated_at`

func (s *Store) CreateNotification(ctx context.Context, n fleet.Notification) (*fleet.Notification, error) {
	now := s.clock.Now()
	n.CreatedAt = now
	n.UpdatedAt = now

	_, err := s.q.Exec(ctx, `
        INSERT INTO notifications (`+notificationColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `,
		n.ID, nullable(n.ParentID), nullable(n.LeaveID), n.EmployeeID,
		n.Title, nullable(n.Message), n.RequestedBy, string(n.Status),
		n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return nil, &fleet.PersistenceError{Op: "postgres create notification", Err: err}
	}
	return &n, nil
}

func (s *Store) GetNotification(ctx context.Context, id string) (*fleet.Notification, error) {
	row := s.q.QueryRow(ctx, `
        SELECT `+notificationColumns+`
          FROM notifications
         WHERE id = $1
    `, id)
	n, err := scanNotification(row)
	if err != nil {
		return nil, translatePgError("get notification", err, fleet.ErrNotificationNotFound)
	}
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context, onlyOpen bool) ([]fleet.Notification, error) {
	query := `
        SELECT ` + notificationColumns + `
          FROM notifications`
	var args []any
	if onlyOpen {
		query += `
         WHERE status IN ($1, $2)`
		args = append(args,
			string(fleet.NotificationPending),
			string(fleet.NotificationPendingLaboral))
	}
	query += `
         ORDER BY created_at, id
    `

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, translatePgError("list notifications", err, fleet.ErrNotificationNotFound)
	}
	defer rows.Close()

	var notifs []fleet.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, translatePgError("scan notification", err, fleet.ErrNotificationNotFound)
		}
		notifs = append(notifs, *n)
	}
	return notifs, rows.Err()
}

func (s *Store) UpdateNotificationStatus(ctx context.Context, id string, status fleet.NotificationStatus) (*fleet.Notification, error) {
	row := s.q.QueryRow(ctx, `
        UPDATE notifications
           SET status = $1, updated_at = $2
         WHERE id = $3
        RETURNING `+notificationColumns+`
    `, string(status), s.clock.Now(), id)
	n, err := scanNotification(row)
	if err != nil {
		return nil, translatePgError("update notification", err, fleet.ErrNotificationNotFound)
	}
	return n, nil
}

func scanNotification(row pgx.Row) (*fleet.Notification, error) {
	var (
		n                 fleet.Notification
		parentID, leaveID sql.NullString
		message           sql.NullString
		status            string
	)
	if err := row.Scan(&n.ID, &parentID, &leaveID, &n.EmployeeID,
		&n.Title, &message, &n.RequestedBy, &status,
		&n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.ParentID = parentID.String
	n.LeaveID = leaveID.String
	n.Message = message.String
	n.Status = fleet.NotificationStatus(status)
	return &n, nil
}

// =============================================================================
// AUDIT LOG (fleet.AuditSink, fleet.AuditQuerier)
// =============================================================================

func (s *Store) LogAction(ctx context.Context, entry fleet.AuditEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.clock.Now()
	}

	_, err := s.q.Exec(ctx, `
        INSERT INTO audit_log
        (id, actor, role, action, entity_type, entity_id, description, automatic, payload_json, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `,
		entry.ID, entry.Actor, entry.Role, string(entry.Action),
		entry.EntityType, entry.EntityID, entry.Description, entry.Automatic,
		fleet.PayloadJSON(entry.Payload), createdAt,
	)
	if err != nil {
		return &fleet.PersistenceError{Op: "postgres log action", Err: err}
	}
	return nil
}

func (s *Store) QueryAudit(ctx context.Context, filter fleet.AuditFilter) ([]fleet.AuditEntry, error) {
	query := `
        SELECT id, actor, role, action, entity_type, entity_id,
               description, automatic, payload_json, created_at
          FROM audit_log`
	var (
		conds []string
		args  []any
	)
	if filter.EntityType != "" {
		args = append(args, filter.EntityType)
		conds = append(conds, "entity_type = $"+strconv.Itoa(len(args)))
	}
	if filter.EntityID != "" {
		args = append(args, filter.EntityID)
		conds = append(conds, "entity_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Action != "" {
		args = append(args, string(filter.Action))
		conds = append(conds, "action = $"+strconv.Itoa(len(args)))
	}
	if len(conds) > 0 {
		query += `
         WHERE ` + strings.Join(conds, " AND ")
	}
	query += `
         ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += `
         LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, &fleet.PersistenceError{Op: "postgres query audit", Err: err}
	}
	defer rows.Close()

	var entries []fleet.AuditEntry
	for rows.Next() {
		var (
			e       fleet.AuditEntry
			action  string
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.Actor, &e.Role, &action,
			&e.EntityType, &e.EntityID, &e.Description, &e.Automatic,
			&payload, &e.CreatedAt); err != nil {
			return nil, &fleet.PersistenceError{Op: "postgres scan audit", Err: err}
		}
		e.Action = fleet.AuditAction(action)
		if len(payload) > 0 {
			e.Payload = fleet.RawPayload{Action: e.Action, JSON: payload}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableDate(d *fleet.Date) any {
	if d == nil {
		return nil
	}
	t := d.Time
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func datePtr(t sql.NullTime) *fleet.Date {
	if !t.Valid {
		return nil
	}
	d := fleet.DateOf(t.Time.UTC())
	return &d
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

func translatePgError(op string, err error, notFound error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	return &fleet.PersistenceError{Op: "postgres " + op, Err: err}
}
