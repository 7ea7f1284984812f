package billing

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eringen/panelengine/database"
	"github.com/eringen/panelengine/report"
)

// Stats is the billing dashboard summary for one period.
type Stats struct {
	Period              string                `json:"period"`
	Days                int                   `json:"days"`
	RevenueCents        int64                 `json:"revenueCents"`
	PreviousCents       int64                 `json:"previousCents"`
	Growth              float64               `json:"growth"`
	OutstandingCents    int64                 `json:"outstandingCents"`
	ByStatus            map[InvoiceStatus]int `json:"byStatus"`
	ActiveSubscriptions int                   `json:"activeSubscriptions"`
	RevenueByDay        []report.Point        `json:"revenueByDay"`
}

// Stats computes revenue for period ("today", "week", "month" or "year")
// ending at now, together with the outstanding balance and status counts.
func (s *Store) Stats(ctx context.Context, period string, now time.Time) (Stats, error) {
	name, days, _ := report.Period(period)
	from := report.Since(now, days)
	prevFrom := from.AddDate(0, 0, -days)
	st := Stats{Period: name, Days: days}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(total_cents), 0) FROM invoices WHERE status = ? AND paid_at >= ? AND paid_at <= ?`,
			InvoicePaid, database.FormatTime(from), database.FormatTime(now)).Scan(&st.RevenueCents)
	})
	g.Go(func() error {
		return s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(total_cents), 0) FROM invoices WHERE status = ? AND paid_at >= ? AND paid_at < ?`,
			InvoicePaid, database.FormatTime(prevFrom), database.FormatTime(from)).Scan(&st.PreviousCents)
	})
	g.Go(func() error {
		return s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(total_cents), 0) FROM invoices WHERE status IN (?, ?)`,
			InvoicePending, InvoiceOverdue).Scan(&st.OutstandingCents)
	})
	g.Go(func() error {
		return s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscriptions WHERE status IN (?, ?)`,
			SubscriptionTrial, SubscriptionActive).Scan(&st.ActiveSubscriptions)
	})
	g.Go(func() error {
		counts, err := s.countByStatus(ctx)
		st.ByStatus = counts
		return err
	})
	g.Go(func() error {
		points, err := s.revenueByDay(ctx, from, now)
		if err != nil {
			return err
		}
		st.RevenueByDay = report.FillDaily(points, from, days)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Stats{}, fmt.Errorf("billing stats: %w", err)
	}
	st.Growth = report.Growth(float64(st.RevenueCents), float64(st.PreviousCents))
	return st, nil
}

func (s *Store) countByStatus(ctx context.Context) (map[InvoiceStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM invoices GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[InvoiceStatus]int, len(InvoiceStatuses))
	for _, st := range InvoiceStatuses {
		out[st] = 0
	}
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[InvoiceStatus(st)] = n
	}
	return out, rows.Err()
}

func (s *Store) revenueByDay(ctx context.Context, from, to time.Time) ([]report.Point, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date(paid_at), SUM(total_cents) FROM invoices WHERE status = ? AND paid_at >= ? AND paid_at <= ? GROUP BY date(paid_at)`,
		InvoicePaid, database.FormatTime(from), database.FormatTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []report.Point
	for rows.Next() {
		var p report.Point
		if err := rows.Scan(&p.Label, &p.Value); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
