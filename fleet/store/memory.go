// Package store provides RecordStore implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fleetops/roster-engine/fleet"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements fleet.RecordStore, fleet.AuditSink, and
// fleet.AuditQuerier with the same compare-and-swap semantics as the SQL
// stores.
type Memory struct {
	mu            sync.RWMutex
	Clock         fleet.Clock
	employees     map[string]fleet.Employee
	leaves        map[string]fleet.LeaveRequest
	notifications map[string]fleet.Notification
	audit         []fleet.AuditEntry

	// FailUpdate, when set, makes UpdateEmployee fail for the given ID.
	// Used by sweep-isolation tests.
	FailUpdate map[string]error
}

func NewMemory() *Memory {
	return &Memory{
		Clock:         fleet.RealClock{},
		employees:     make(map[string]fleet.Employee),
		leaves:        make(map[string]fleet.LeaveRequest),
		notifications: make(map[string]fleet.Notification),
	}
}

func (m *Memory) now() time.Time { return m.Clock.Now() }

// bump returns a timestamp strictly after prev even under a frozen clock.
func (m *Memory) bump(prev time.Time) time.Time {
	t := m.now()
	if !t.After(prev) {
		t = prev.Add(time.Nanosecond)
	}
	return t
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (m *Memory) GetEmployee(_ context.Context, id string) (*fleet.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	emp, ok := m.employees[id]
	if !ok {
		return nil, fleet.ErrEmployeeNotFound
	}
	return emp.Clone(), nil
}

func (m *Memory) ListEmployees(_ context.Context, pred fleet.EmployeePredicate) ([]fleet.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []fleet.Employee
	for _, emp := range m.employees {
		if pred == nil || pred(&emp) {
			result = append(result, *emp.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) CreateEmployee(_ context.Context, emp fleet.Employee) (*fleet.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.employees[emp.ID]; exists {
		return nil, fleet.ErrDuplicateEmployee
	}
	now := m.now()
	emp.CreatedAt = now
	emp.UpdatedAt = now
	if emp.Status == "" {
		emp.Status = fleet.StatusActive
	}
	m.employees[emp.ID] = *emp.Clone()
	return emp.Clone(), nil
}

func (m *Memory) UpdateEmployee(_ context.Context, emp fleet.Employee, expectedUpdatedAt time.Time) (*fleet.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.FailUpdate[emp.ID]; ok {
		return nil, err
	}

	current, ok := m.employees[emp.ID]
	if !ok {
		return nil, fleet.ErrEmployeeNotFound
	}
	if !current.UpdatedAt.Equal(expectedUpdatedAt) {
		return nil, fleet.ErrConcurrentModification
	}

	emp.CreatedAt = current.CreatedAt
	emp.UpdatedAt = m.bump(current.UpdatedAt)
	m.employees[emp.ID] = *emp.Clone()
	return emp.Clone(), nil
}

func (m *Memory) DeleteEmployee(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.employees[id]; !ok {
		return fleet.ErrEmployeeNotFound
	}
	delete(m.employees, id)
	return nil
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

func (m *Memory) CreateLeaveRequest(_ context.Context, lr fleet.LeaveRequest) (*fleet.LeaveRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	lr.CreatedAt = now
	lr.UpdatedAt = now
	m.leaves[lr.ID] = lr
	out := lr
	return &out, nil
}

func (m *Memory) GetLeaveRequest(_ context.Context, id string) (*fleet.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lr, ok := m.leaves[id]
	if !ok {
		return nil, fleet.ErrLeaveNotFound
	}
	out := lr
	return &out, nil
}

func (m *Memory) ListLeaveRequests(_ context.Context, kind fleet.LeaveKind) ([]fleet.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []fleet.LeaveRequest
	for _, lr := range m.leaves {
		if kind == "" || lr.Kind == kind {
			result = append(result, lr)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *Memory) UpdateLeaveRequestStatus(_ context.Context, id string, status fleet.LeaveStatus) (*fleet.LeaveRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lr, ok := m.leaves[id]
	if !ok {
		return nil, fleet.ErrLeaveNotFound
	}
	lr.Status = status
	lr.UpdatedAt = m.bump(lr.UpdatedAt)
	m.leaves[id] = lr
	out := lr
	return &out, nil
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func (m *Memory) CreateNotification(_ context.Context, n fleet.Notification) (*fleet.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n.CreatedAt = now
	n.UpdatedAt = now
	if n.Status == "" {
		n.Status = fleet.NotificationPending
	}
	m.notifications[n.ID] = n
	out := n
	return &out, nil
}

func (m *Memory) GetNotification(_ context.Context, id string) (*fleet.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.notifications[id]
	if !ok {
		return nil, fleet.ErrNotificationNotFound
	}
	out := n
	return &out, nil
}

func (m *Memory) ListNotifications(_ context.Context, onlyOpen bool) ([]fleet.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []fleet.Notification
	for _, n := range m.notifications {
		if !onlyOpen || n.Status.Open() {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *Memory) UpdateNotificationStatus(_ context.Context, id string, status fleet.NotificationStatus) (*fleet.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.notifications[id]
	if !ok {
		return nil, fleet.ErrNotificationNotFound
	}
	n.Status = status
	n.UpdatedAt = m.bump(n.UpdatedAt)
	m.notifications[id] = n
	out := n
	return &out, nil
}

// =============================================================================
// AUDIT SINK
// =============================================================================

func (m *Memory) LogAction(_ context.Context, entry fleet.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.audit = append(m.audit, entry)
	return nil
}

func (m *Memory) QueryAudit(_ context.Context, filter fleet.AuditFilter) ([]fleet.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []fleet.AuditEntry
	for _, e := range m.audit {
		if filter.EntityType != "" && e.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityID != "" && e.EntityID != filter.EntityID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		result = append(result, e)
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

// AuditEntries returns a copy of everything logged, oldest first.
func (m *Memory) AuditEntries() []fleet.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]fleet.AuditEntry, len(m.audit))
	copy(out, m.audit)
	return out
}
