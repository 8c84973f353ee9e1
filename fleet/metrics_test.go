package fleet_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/roster-engine/fleet"
	"github.com/fleetops/roster-engine/fleet/store"
)

func TestComputeMetrics_CountsAndCoverage(t *testing.T) {
	// GIVEN: 3 employees: one active (40h), one penalized (was 40h, now
	//        floored to 0), one on IT leave (20h)
	// WHEN: Metrics are computed
	// THEN: coverage = 60 / (60+40) = 60.00%, penalized = 33.33%

	mem := store.NewMemory()
	clock := newFakeClock(2025, time.May, 1)
	mem.Clock = clock
	ctx := context.Background()

	seedEmployee(t, mem, "GLV200", 40)
	seedEmployee(t, mem, "GLV201", 40)
	seedEmployee(t, mem, "GLV202", 20)

	pen := &fleet.PenalizationEngine{Store: mem, Audit: mem, Clock: clock, Log: zerolog.Nop()}
	_, err := pen.Apply(ctx, "GLV201", day(clock, 0), day(clock, 3), "metrics", admin())
	require.NoError(t, err)

	leaves := &fleet.LeaveEngine{Store: mem, Audit: mem, Clock: clock, Log: zerolog.Nop()}
	_, err = leaves.OpenITLeave(ctx, "GLV202", fleet.ReasonSickness, day(clock, 0), admin())
	require.NoError(t, err)

	m, err := fleet.ComputeMetrics(ctx, mem, clock, 7)
	require.NoError(t, err)

	assert.Equal(t, 3, m.Total)
	assert.Equal(t, 1, m.ByStatus[fleet.StatusActive])
	assert.Equal(t, 1, m.ByStatus[fleet.StatusPenalized])
	assert.Equal(t, 1, m.ByStatus[fleet.StatusITLeave])
	assert.Equal(t, 60, m.CurrentHours)
	assert.Equal(t, 40, m.SnapshotHours)
	assert.Equal(t, "60.00", m.CoveragePct.StringFixed(2))
	assert.Equal(t, "33.33", m.PenalizedPct.StringFixed(2))
	assert.Equal(t, 1, m.ExpiringSoon)
}

func TestComputeMetrics_EmptyFleet_NoDivisionByZero(t *testing.T) {
	mem := store.NewMemory()
	clock := newFakeClock(2025, time.May, 1)
	mem.Clock = clock

	m, err := fleet.ComputeMetrics(context.Background(), mem, clock, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Total)
	assert.True(t, m.CoveragePct.IsZero())
	assert.True(t, m.PenalizedPct.IsZero())
}

func TestComputeMetrics_OpenLeaveQueue(t *testing.T) {
	mem := store.NewMemory()
	clock := newFakeClock(2025, time.May, 1)
	mem.Clock = clock
	ctx := context.Background()

	seedEmployee(t, mem, "GLV210", 40)
	leaves := &fleet.LeaveEngine{Store: mem, Audit: mem, Clock: clock, Log: zerolog.Nop()}
	_, _, err := leaves.RequestCompanyLeave(ctx, "GLV210", fleet.ReasonVoluntary, day(clock, 1), admin())
	require.NoError(t, err)

	m, err := fleet.ComputeMetrics(ctx, mem, clock, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, m.OpenLeaveCount)
}

func TestReport_MentionsExpiringOnlyWhenPresent(t *testing.T) {
	m := &fleet.Metrics{ByStatus: map[fleet.Status]int{}}
	text := m.Report("daily report")
	assert.Contains(t, text, "daily report")
	assert.NotContains(t, text, "expiring")

	m.ExpiringSoon = 2
	assert.Contains(t, m.Report("daily report"), "penalizations expiring soon: 2")
}
