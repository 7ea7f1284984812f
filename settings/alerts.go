package settings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/eringen/panelengine/audit"
	"github.com/eringen/panelengine/database"
)

// Operator compares a metric against a threshold.
type Operator string

const (
	OpGT  Operator = "gt"
	OpLT  Operator = "lt"
	OpEQ  Operator = "eq"
	OpGTE Operator = "gte"
	OpLTE Operator = "lte"
)

// Severity ranks alerts.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

var ErrInvalidAlert = errors.New("settings: alert needs a metric, a known operator and a known severity")

// Alert is a threshold on a dashboard metric.
type Alert struct {
	ID        int64     `json:"id"`
	Metric    string    `json:"metric"`
	Operator  Operator  `json:"operator"`
	Value     float64   `json:"value"`
	Severity  Severity  `json:"severity"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt"`
}

// Compare applies the operator to a current reading.
func (op Operator) Compare(current, threshold float64) bool {
	switch op {
	case OpGT:
		return current > threshold
	case OpLT:
		return current < threshold
	case OpEQ:
		return current == threshold
	case OpGTE:
		return current >= threshold
	case OpLTE:
		return current <= threshold
	default:
		return false
	}
}

func (op Operator) valid() bool {
	switch op {
	case OpGT, OpLT, OpEQ, OpGTE, OpLTE:
		return true
	}
	return false
}

func (s Severity) valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

// Triggered is an alert that fired with the observed reading.
type Triggered struct {
	Alert   Alert   `json:"alert"`
	Current float64 `json:"current"`
}

// UpsertAlert creates an alert when ID is zero and updates it otherwise.
func (s *Store) UpsertAlert(ctx context.Context, a Alert, actor audit.Actor) (Alert, error) {
	a.Metric = strings.TrimSpace(a.Metric)
	if a.Metric == "" || !a.Operator.valid() || !a.Severity.valid() {
		return Alert{}, ErrInvalidAlert
	}
	if a.ID == 0 {
		a.CreatedAt = s.now().UTC().Truncate(time.Second)
		res, err := s.db.ExecContext(ctx, `INSERT INTO alert_thresholds (metric, operator, value, severity, enabled, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			a.Metric, a.Operator, a.Value, a.Severity, database.Bool(a.Enabled), database.FormatTime(a.CreatedAt))
		if err != nil {
			return Alert{}, fmt.Errorf("insert alert: %w", err)
		}
		a.ID, _ = res.LastInsertId()
	} else {
		res, err := s.db.ExecContext(ctx, `UPDATE alert_thresholds SET metric = ?, operator = ?, value = ?, severity = ?, enabled = ? WHERE id = ?`,
			a.Metric, a.Operator, a.Value, a.Severity, database.Bool(a.Enabled), a.ID)
		if err != nil {
			return Alert{}, fmt.Errorf("update alert: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return Alert{}, ErrNotFound
		}
	}
	return a, s.record(ctx, actor, audit.AlertUpdate, a.Metric, a)
}

// ListAlerts returns every alert.
func (s *Store) ListAlerts(ctx context.Context) ([]Alert, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, metric, operator, value, severity, enabled, created_at FROM alert_thresholds ORDER BY metric, id`)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()
	out := []Alert{}
	for rows.Next() {
		var a Alert
		var op, sev, created string
		var enabled int
		if err := rows.Scan(&a.ID, &a.Metric, &op, &a.Value, &sev, &enabled, &created); err != nil {
			return nil, err
		}
		a.Operator = Operator(op)
		a.Severity = Severity(sev)
		a.Enabled = enabled == 1
		a.CreatedAt = database.ParseTime(created)
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteAlert removes an alert.
func (s *Store) DeleteAlert(ctx context.Context, id int64, actor audit.Actor) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alert_thresholds WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return s.record(ctx, actor, audit.AlertUpdate, fmt.Sprint(id), map[string]bool{"deleted": true})
}

// Evaluate returns the enabled alerts whose metric crosses its threshold,
// most severe first.
func Evaluate(alerts []Alert, metrics map[string]float64) []Triggered {
	var out []Triggered
	for _, a := range alerts {
		if !a.Enabled {
			continue
		}
		cur, ok := metrics[a.Metric]
		if !ok {
			continue
		}
		if a.Operator.Compare(cur, a.Value) {
			out = append(out, Triggered{Alert: a, Current: cur})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Alert.Severity.rank() > out[j].Alert.Severity.rank()
	})
	return out
}

// Evaluate loads the alerts and checks them against metrics.
func (s *Store) Evaluate(ctx context.Context, metrics map[string]float64) ([]Triggered, error) {
	alerts, err := s.ListAlerts(ctx)
	if err != nil {
		return nil, err
	}
	return Evaluate(alerts, metrics), nil
}
