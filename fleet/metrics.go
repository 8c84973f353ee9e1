/*
metrics.go - Fleet-wide operational metrics

PURPOSE:
  Read-only aggregation over the employee table for dashboards and the
  hourly/daily alert reports. Ratios use decimal arithmetic so report
  percentages never accumulate float error.
*/
package fleet

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Metrics is a point-in-time aggregate of the fleet.
type Metrics struct {
	Total          int
	ByStatus       map[Status]int
	CurrentHours   int
	SnapshotHours  int // hours parked in OriginalHours by active penalizations
	CoveragePct    decimal.Decimal
	PenalizedPct   decimal.Decimal
	ExpiringSoon   int
	OpenLeaveCount int
}

// ComputeMetrics scans the fleet once and derives all counters. Never
// mutates state.
func ComputeMetrics(ctx context.Context, store RecordStore, clock Clock, expiringDays int) (*Metrics, error) {
	employees, err := store.ListEmployees(ctx, nil)
	if err != nil {
		return nil, err
	}

	m := &Metrics{ByStatus: make(map[Status]int)}
	today := Today(clock)
	horizon := today.AddDays(expiringDays)

	for i := range employees {
		e := &employees[i]
		m.Total++
		m.ByStatus[e.Status]++
		m.CurrentHours += e.CurrentHours
		if e.OriginalHours != nil {
			m.SnapshotHours += *e.OriginalHours
		}
		if e.Status == StatusPenalized && e.PenalizationEnd != nil &&
			e.PenalizationEnd.AfterOrEqual(today) && e.PenalizationEnd.BeforeOrEqual(horizon) {
			m.ExpiringSoon++
		}
	}

	open, err := store.ListNotifications(ctx, true)
	if err != nil {
		return nil, err
	}
	m.OpenLeaveCount = len(open)

	// Coverage: hours counted now over hours the fleet would carry with
	// every penalization lifted.
	contracted := decimal.NewFromInt(int64(m.CurrentHours + m.SnapshotHours))
	if contracted.IsPositive() {
		m.CoveragePct = decimal.NewFromInt(int64(m.CurrentHours)).
			Div(contracted).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}
	if m.Total > 0 {
		m.PenalizedPct = decimal.NewFromInt(int64(m.ByStatus[StatusPenalized])).
			Div(decimal.NewFromInt(int64(m.Total))).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}

	return m, nil
}

// Report renders the metrics as the plain-text message sent over the
// alert channel.
func (m *Metrics) Report(title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", title)
	fmt.Fprintf(&b, "fleet: %d employees, %d active, %d penalized, %d on IT leave\n",
		m.Total, m.ByStatus[StatusActive], m.ByStatus[StatusPenalized], m.ByStatus[StatusITLeave])
	fmt.Fprintf(&b, "leave queue: %d open, %d pending laboral, %d leave approved\n",
		m.OpenLeaveCount, m.ByStatus[StatusPendingLaboral], m.ByStatus[StatusCompanyLeaveApproved])
	fmt.Fprintf(&b, "hours: %d counted, coverage %s%%, penalized %s%%\n",
		m.CurrentHours, m.CoveragePct.StringFixed(2), m.PenalizedPct.StringFixed(2))
	if m.ExpiringSoon > 0 {
		fmt.Fprintf(&b, "penalizations expiring soon: %d\n", m.ExpiringSoon)
	}
	return b.String()
}
