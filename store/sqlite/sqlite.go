/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements fleet.RecordStore plus the audit interfaces (fleet.AuditSink,
  fleet.AuditQuerier) using SQLite. Suitable for single-node deployments;
  multi-node installations use store/postgres instead.

INTERFACES IMPLEMENTED:
  fleet.RecordStore:   Employees, leave requests, notifications
  fleet.AuditSink:     Append-only audit log (payload stored as JSON)
  fleet.AuditQuerier:  Filtered read-back for the admin audit endpoint

CONCURRENCY:
  Employee writes use an updated-at compare-and-swap: the UPDATE carries
  WHERE updated_at = <observed> and a zero row count is classified as
  either a missing row or a concurrent modification. A sync.RWMutex
  additionally serializes writers within the process, matching SQLite's
  single-writer reality.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  st, err := sqlite.New("./data/roster.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

MIGRATION:
  Schema is auto-migrated on New(). The PostgreSQL store uses versioned
  migrations (cmd/migrate) instead.

SEE ALSO:
  - fleet/store.go: Interface definitions
  - fleet/store/memory.go: In-memory implementation for testing
  - store/postgres: pgx implementation with the same semantics
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fleetops/roster-engine/fleet"
)

// Store implements the fleet storage interfaces using SQLite.
type Store struct {
	db    *sql.DB
	mu    sync.RWMutex
	clock fleet.Clock
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, clock: fleet.RealClock{}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// SetClock overrides the timestamp source. Test hook.
func (s *Store) SetClock(c fleet.Clock) { s.clock = c }

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		city TEXT,
		city_code TEXT,
		dni TEXT,
		iban TEXT,
		vehicle TEXT,
		current_hours INTEGER NOT NULL DEFAULT 0,
		original_hours INTEGER,
		penalization_start TEXT,
		penalization_end TEXT,
		incident_date TEXT,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_status
		ON employees(status);

	-- Sweep hot path: scheduled windows whose start date arrived
	CREATE INDEX IF NOT EXISTS idx_employees_penalization_window
		ON employees(penalization_start, penalization_end)
		WHERE penalization_start IS NOT NULL;

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		reason TEXT NOT NULL,
		requested_date TEXT NOT NULL,
		requested_by TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leave_requests_employee
		ON leave_requests(employee_id);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_kind_status
		ON leave_requests(kind, status);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		parent_id TEXT,
		leave_id TEXT,
		employee_id TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT,
		requested_by TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_status
		ON notifications(status);
	CREATE INDEX IF NOT EXISTS idx_notifications_parent
		ON notifications(parent_id) WHERE parent_id IS NOT NULL;

	-- Append-only: never updated, never deleted
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		actor TEXT NOT NULL,
		role TEXT NOT NULL,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		description TEXT,
		automatic BOOLEAN NOT NULL DEFAULT FALSE,
		payload_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_entity
		ON audit_log(entity_type, entity_id);
	CREATE INDEX IF NOT EXISTS idx_audit_action
		ON audit_log(action);
	CREATE INDEX IF NOT EXISTS idx_audit_created
		ON audit_log(created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EMPLOYEES (fleet.RecordStore)
// =============================================================================

const employeeColumns = `id, first_name, last_name, email, phone, city, city_code,
	dni, iban, vehicle, current_hours, original_hours,
	penalization_start, penalization_end, incident_date,
	status, created_at, updated_at`

// GetEmployee returns the employee or fleet.ErrEmployeeNotFound.
func (s *Store) GetEmployee(ctx context.Context, id string) (*fleet.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+employeeColumns+" FROM employees WHERE id = ?", id)
	emp, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, fleet.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, &fleet.PersistenceError{Op: "sqlite get employee", Err: err}
	}
	return emp, nil
}

// ListEmployees returns employees matching the predicate (all when nil),
// ordered by ID.
func (s *Store) ListEmployees(ctx context.Context, pred fleet.EmployeePredicate) ([]fleet.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+employeeColumns+" FROM employees ORDER BY id")
	if err != nil {
		return nil, &fleet.PersistenceError{Op: "sqlite list employees", Err: err}
	}
	defer rows.Close()

	var employees []fleet.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, &fleet.PersistenceError{Op: "sqlite scan employee", Err: err}
		}
		if pred == nil || pred(emp) {
			employees = append(employees, *emp)
		}
	}
	return employees, rows.Err()
}

// CreateEmployee inserts a new record, defaulting status to active.
func (s *Store) CreateEmployee(ctx context.Context, emp fleet.Employee) (*fleet.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if emp.Status == "" {
		emp.Status = fleet.StatusActive
	}
	now := s.clock.Now()
	emp.CreatedAt = now
	emp.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (`+employeeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		emp.ID, emp.FirstName, emp.LastName,
		nullString(emp.Email), nullString(emp.Phone),
		nullString(emp.City), nullString(emp.CityCode),
		nullString(emp.DNI), nullString(emp.IBAN), nullString(emp.Vehicle),
		emp.CurrentHours, nullInt(emp.OriginalHours),
		nullDate(emp.PenalizationStart), nullDate(emp.PenalizationEnd),
		nullDate(emp.IncidentDate),
		string(emp.Status), ts(emp.CreatedAt), ts(emp.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, fleet.ErrDuplicateEmployee
		}
		return nil, &fleet.PersistenceError{Op: "sqlite create employee", Err: err}
	}
	return &emp, nil
}

// UpdateEmployee writes emp back only if the stored row's updated_at
// still matches expectedUpdatedAt (compare-and-swap).
func (s *Store) UpdateEmployee(ctx context.Context, emp fleet.Employee, expectedUpdatedAt time.Time) (*fleet.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	emp.UpdatedAt = s.clock.Now()
	if !emp.UpdatedAt.After(expectedUpdatedAt) {
		emp.UpdatedAt = expectedUpdatedAt.Add(time.Nanosecond)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE employees SET
			first_name = ?, last_name = ?, email = ?, phone = ?,
			city = ?, city_code = ?, dni = ?, iban = ?, vehicle = ?,
			current_hours = ?, original_hours = ?,
			penalization_start = ?, penalization_end = ?, incident_date = ?,
			status = ?, updated_at = ?
		WHERE id = ? AND updated_at = ?`,
		emp.FirstName, emp.LastName,
		nullString(emp.Email), nullString(emp.Phone),
		nullString(emp.City), nullString(emp.CityCode),
		nullString(emp.DNI), nullString(emp.IBAN), nullString(emp.Vehicle),
		emp.CurrentHours, nullInt(emp.OriginalHours),
		nullDate(emp.PenalizationStart), nullDate(emp.PenalizationEnd),
		nullDate(emp.IncidentDate),
		string(emp.Status), ts(emp.UpdatedAt),
		emp.ID, ts(expectedUpdatedAt),
	)
	if err != nil {
		return nil, &fleet.PersistenceError{Op: "sqlite update employee", Err: err}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, &fleet.PersistenceError{Op: "sqlite update employee", Err: err}
	}
	if affected == 0 {
		// Missing row and stale timestamp both yield zero rows.
		var exists int
		if err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM employees WHERE id = ?", emp.ID).Scan(&exists); err != nil {
			return nil, &fleet.PersistenceError{Op: "sqlite update employee", Err: err}
		}
		if exists == 0 {
			return nil, fleet.ErrEmployeeNotFound
		}
		return nil, fleet.ErrConcurrentModification
	}
	return &emp, nil
}

// DeleteEmployee hard-deletes the record.
func (s *Store) DeleteEmployee(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM employees WHERE id = ?", id)
	if err != nil {
		return &fleet.PersistenceError{Op: "sqlite delete employee", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &fleet.PersistenceError{Op: "sqlite delete employee", Err: err}
	}
	if affected == 0 {
		return fleet.ErrEmployeeNotFound
	}
	return nil
}

func scanEmployee(row interface{ Scan(...any) error }) (*fleet.Employee, error) {
	var (
		emp                       fleet.Employee
		email, phone              sql.NullString
		city, cityCode            sql.NullString
		dni, iban, vehicle        sql.NullString
		originalHours             sql.NullInt64
		penStart, penEnd          sql.NullString
		incident                  sql.NullString
		status                    string
		createdAt, updatedAt      string
	)

	err := row.Scan(
		&emp.ID, &emp.FirstName, &emp.LastName, &email, &phone,
		&city, &cityCode, &dni, &iban, &vehicle,
		&emp.CurrentHours, &originalHours,
		&penStart, &penEnd, &incident,
		&status, &createdAt, &updatedAt,
	)
	if err != nil {
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
	emp.PenalizationStart = parseNullDate(penStart)
	emp.PenalizationEnd = parseNullDate(penEnd)
	emp.IncidentDate = parseNullDate(incident)
	emp.Status = fleet.Status(status)
	emp.CreatedAt = parseTS(createdAt)
	emp.UpdatedAt = parseTS(updatedAt)

	return &emp, nil
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

const leaveColumns = `id, employee_id, kind, reason, requested_date, requested_by,
	status, created_at, updated_at`

func (s *Store) CreateLeaveRequest(ctx context.Context, lr fleet.LeaveRequest) (*fleet.LeaveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	lr.CreatedAt = now
	lr.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leave_requests (`+leaveColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lr.ID, lr.EmployeeID, string(lr.Kind), string(lr.Reason),
		lr.RequestedDate.String(), lr.RequestedBy, string(lr.Status),
		ts(lr.CreatedAt), ts(lr.UpdatedAt),
	)
	if err != nil {
		return nil, &fleet.PersistenceError{Op: "sqlite create leave request", Err: err}
	}
	return &lr, nil
}

func (s *Store) GetLeaveRequest(ctx context.Context, id string) (*fleet.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+leaveColumns+" FROM leave_requests WHERE id = ?", id)
	lr, err := scanLeaveRequest(row)
	if err == sql.ErrNoRows {
		return nil, fleet.ErrLeaveNotFound
	}
	if err != nil {
		return nil, &fleet.PersistenceError{Op: "sqlite get leave request", Err: err}
	}
	return lr, nil
}

func (s *Store) ListLeaveRequests(ctx context.Context, kind fleet.LeaveKind) ([]fleet.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + leaveColumns + " FROM leave_requests"
	var args []any
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, string(kind))
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &fleet.PersistenceError{Op: "sqlite list leave requests", Err: err}
	}
	defer rows.Close()

	var leaves []fleet.LeaveRequest
	for rows.Next() {
		lr, err := scanLeaveRequest(rows)
		if err != nil {
			return nil, &fleet.PersistenceError{Op: "sqlite scan leave request", Err: err}
		}
		leaves = append(leaves, *lr)
	}
	return leaves, rows.Err()
}

func (s *Store) UpdateLeaveRequestStatus(ctx context.Context, id string, status fleet.LeaveStatus) (*fleet.LeaveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE leave_requests SET status = ?, updated_at = ? WHERE id = ?",
		string(status), ts(s.clock.Now()), id)
	if err != nil {
		return nil, &fleet.PersistenceError{Op: "sqlite update leave request", Err: err}
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return nil, fleet.ErrLeaveNotFound
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT "+leaveColumns+" FROM leave_requests WHERE id = ?", id)
	lr, err := scanLeaveRequest(row)
	if err != nil {
		return nil, &fleet.PersistenceError{Op: "sqlite reload leave request", Err: err}
	}
	return lr, nil
}

func scanLeaveRequest(row interface{ Scan(...any) error }) (*fleet.LeaveRequest, error) {
	var (
		lr                   fleet.LeaveRequest
		kind, reason, status string
		requestedDate        string
		createdAt, updatedAt string
	)
	err := row.Scan(&lr.ID, &lr.EmployeeID, &kind, &reason,
		&requestedDate, &lr.RequestedBy, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	lr.Kind = fleet.LeaveKind(kind)
	lr.Reason = fleet.LeaveReason(reason)
	lr.Status = fleet.LeaveStatus(status)
	lr.RequestedDate, _ = fleet.ParseDate(requestedDate)
	lr.CreatedAt = parseTS(createdAt)
	lr.UpdatedAt = parseTS(updatedAt)
	return &lr, nil
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

const notificationColumns = `id, parent_id, leave_id, employee_id, title, message,
	requested_by, status, created_at, updated_at`

func (s *Store) CreateNotification(ctx context.Context, n fleet.Notification) (*fleet.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	n.CreatedAt = now
	n.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, nullString(n.ParentID), nullString(n.LeaveID), n.EmployeeID,
		n.Title, nullString(n.Message), n.RequestedBy, string(n.Status),
		ts(n.CreatedAt), ts(n.UpdatedAt),
	)
	if err != nil {
		return nil, &fleet.PersistenceError{Op: "sqlite create notification", Err: err}
	}
	return &n, nil
}

func (s *Store) GetNotification(ctx context.Context, id string) (*fleet.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+notificationColumns+" FROM notifications WHERE id = ?", id)
	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, fleet.ErrNotificationNotFound
	}
	if err != nil {
		return nil, &fleet.PersistenceError{Op: "sqlite get notification", Err: err}
	}
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context, onlyOpen bool) ([]fleet.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + notificationColumns + " FROM notifications"
	var args []any
	if onlyOpen {
		query += " WHERE status IN (?, ?)"
		args = append(args,
			string(fleet.NotificationPending),
			string(fleet.NotificationPendingLaboral))
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &fleet.PersistenceError{Op: "sqlite list notifications", Err: err}
	}
	defer rows.Close()

	var notifs []fleet.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, &fleet.PersistenceError{Op: "sqlite scan notification", Err: err}
		}
		notifs = append(notifs, *n)
	}
	return notifs, rows.Err()
}

func (s *Store) UpdateNotificationStatus(ctx context.Context, id string, status fleet.NotificationStatus) (*fleet.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET status = ?, updated_at = ? WHERE id = ?",
		string(status), ts(s.clock.Now()), id)
	if err != nil {
		return nil, &fleet.PersistenceError{Op: "sqlite update notification", Err: err}
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return nil, fleet.ErrNotificationNotFound
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT "+notificationColumns+" FROM notifications WHERE id = ?", id)
	n, err := scanNotification(row)
	if err != nil {
		return nil, &fleet.PersistenceError{Op: "sqlite reload notification", Err: err}
	}
	return n, nil
}

func scanNotification(row interface{ Scan(...any) error }) (*fleet.Notification, error) {
	var (
		n                    fleet.Notification
		parentID, leaveID    sql.NullString
		message              sql.NullString
		status               string
		createdAt, updatedAt string
	)
	err := row.Scan(&n.ID, &parentID, &leaveID, &n.EmployeeID,
		&n.Title, &message, &n.RequestedBy, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	n.ParentID = parentID.String
	n.LeaveID = leaveID.String
	n.Message = message.String
	n.Status = fleet.NotificationStatus(status)
	n.CreatedAt = parseTS(createdAt)
	n.UpdatedAt = parseTS(updatedAt)
	return &n, nil
}

// =============================================================================
// AUDIT LOG (fleet.AuditSink, fleet.AuditQuerier)
// =============================================================================

// LogAction appends one audit entry. Never updated, never deleted.
func (s *Store) LogAction(ctx context.Context, entry fleet.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.clock.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log
		(id, actor, role, action, entity_type, entity_id, description, automatic, payload_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Actor, entry.Role, string(entry.Action),
		entry.EntityType, entry.EntityID, entry.Description, entry.Automatic,
		nullBytes(fleet.PayloadJSON(entry.Payload)), ts(createdAt),
	)
	if err != nil {
		return &fleet.PersistenceError{Op: "sqlite log action", Err: err}
	}
	return nil
}

// QueryAudit returns entries newest first. Zero filter values match
// everything; payloads come back as fleet.RawPayload.
func (s *Store) QueryAudit(ctx context.Context, filter fleet.AuditFilter) ([]fleet.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, actor, role, action, entity_type, entity_id,
		description, automatic, payload_json, created_at FROM audit_log`
	var (
		conds []string
		args  []any
	)
	if filter.EntityType != "" {
		conds = append(conds, "entity_type = ?")
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		conds = append(conds, "entity_id = ?")
		args = append(args, filter.EntityID)
	}
	if filter.Action != "" {
		conds = append(conds, "action = ?")
		args = append(args, string(filter.Action))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &fleet.PersistenceError{Op: "sqlite query audit", Err: err}
	}
	defer rows.Close()

	var entries []fleet.AuditEntry
	for rows.Next() {
		var (
			e         fleet.AuditEntry
			action    string
			payload   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Actor, &e.Role, &action,
			&e.EntityType, &e.EntityID, &e.Description, &e.Automatic,
			&payload, &createdAt); err != nil {
			return nil, &fleet.PersistenceError{Op: "sqlite scan audit", Err: err}
		}
		e.Action = fleet.AuditAction(action)
		e.CreatedAt = parseTS(createdAt)
		if payload.Valid && payload.String != "" {
			e.Payload = fleet.RawPayload{Action: e.Action, JSON: []byte(payload.String)}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func ts(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTS(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullDate(d *fleet.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullDate(s sql.NullString) *fleet.Date {
	if !s.Valid || s.String == "" {
		return nil
	}
	d, err := fleet.ParseDate(s.String)
	if err != nil {
		return nil
	}
	return &d
}

func nullBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
