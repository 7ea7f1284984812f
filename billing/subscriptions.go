package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eringen/panelengine/database"
	"github.com/eringen/panelengine/paging"
)

// CreateSubscription starts a subscription. Status defaults to TRIAL when
// trialDays is positive and ACTIVE otherwise; the first renewal falls after
// the trial or one month.
func (s *Store) CreateSubscription(ctx context.Context, orgID, plan string, amountCents int64, cur string, trialDays int) (Subscription, error) {
	if amountCents < 0 {
		return Subscription{}, ErrInvalidAmount
	}
	code, err := NormalizeCurrency(cur)
	if err != nil {
		return Subscription{}, err
	}
	now := s.now().UTC().Truncate(time.Second)
	sub := Subscription{
		ID:          uuid.NewString(),
		OrgID:       orgID,
		Plan:        strings.TrimSpace(plan),
		AmountCents: amountCents,
		Currency:    code,
		Status:      SubscriptionActive,
		RenewsAt:    now.AddDate(0, 1, 0),
		CreatedAt:   now,
	}
	if trialDays > 0 {
		sub.Status = SubscriptionTrial
		sub.RenewsAt = now.AddDate(0, 0, trialDays)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO subscriptions (id, org_id, plan, amount_cents, currency, status, renews_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.OrgID, sub.Plan, sub.AmountCents, sub.Currency, sub.Status, database.FormatTime(sub.RenewsAt), database.FormatTime(sub.CreatedAt))
	if err != nil {
		return Subscription{}, fmt.Errorf("insert subscription: %w", err)
	}
	return sub, nil
}

// ListSubscriptions returns subscriptions, optionally filtered by status,
// soonest renewal first.
func (s *Store) ListSubscriptions(ctx context.Context, status SubscriptionStatus) ([]Subscription, error) {
	q := `SELECT id, org_id, plan, amount_cents, currency, status, renews_at, created_at FROM subscriptions`
	var args []any
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, status)
	}
	rows, err := s.db.QueryContext(ctx, q+` ORDER BY renews_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()
	out := []Subscription{}
	for rows.Next() {
		var sub Subscription
		var st, renews, created string
		if err := rows.Scan(&sub.ID, &sub.OrgID, &sub.Plan, &sub.AmountCents, &sub.Currency, &st, &renews, &created); err != nil {
			return nil, err
		}
		sub.Status = SubscriptionStatus(st)
		sub.RenewsAt = database.ParseTime(renews)
		sub.CreatedAt = database.ParseTime(created)
		out = append(out, sub)
	}
	return out, rows.Err()
}

// SetSubscriptionStatus changes a subscription's status.
func (s *Store) SetSubscriptionStatus(ctx context.Context, id string, status SubscriptionStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	res, err := s.db.ExecContext(ctx, `UPDATE subscriptions SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordTransaction appends a wallet movement. CHARGE amounts are stored
// negative regardless of the sign passed in; DEPOSIT, REFUND and BONUS are
// stored positive. ADJUSTMENT keeps its sign.
func (s *Store) RecordTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	if !t.Type.Valid() {
		return Transaction{}, fmt.Errorf("%w: transaction type %q", ErrInvalidStatus, t.Type)
	}
	if t.AmountCents == 0 {
		return Transaction{}, ErrInvalidAmount
	}
	code, err := NormalizeCurrency(t.Currency)
	if err != nil {
		return Transaction{}, err
	}
	t.Currency = code
	abs := t.AmountCents
	if abs < 0 {
		abs = -abs
	}
	switch t.Type {
	case TxCharge:
		t.AmountCents = -abs
	case TxDeposit, TxRefund, TxBonus:
		t.AmountCents = abs
	}
	t.CreatedAt = s.now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx, `INSERT INTO transactions (org_id, type, amount_cents, currency, description, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		t.OrgID, t.Type, t.AmountCents, t.Currency, strings.TrimSpace(t.Description), database.FormatTime(t.CreatedAt))
	if err != nil {
		return Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	t.ID, _ = res.LastInsertId()
	return t, nil
}

// ListTransactions returns a page of an organization's transactions, newest
// first. An empty orgID lists every organization.
func (s *Store) ListTransactions(ctx context.Context, orgID string, p paging.Page) ([]Transaction, paging.Page, error) {
	where := "1=1"
	var args []any
	if orgID != "" {
		where = "org_id = ?"
		args = append(args, orgID)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE `+where, args...).Scan(&total); err != nil {
		return nil, p, fmt.Errorf("count transactions: %w", err)
	}
	p = p.WithTotal(total)
	rows, err := s.db.QueryContext(ctx, `SELECT id, org_id, type, amount_cents, currency, description, created_at FROM transactions WHERE `+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, p.Size, p.Offset())...)
	if err != nil {
		return nil, p, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()
	out := []Transaction{}
	for rows.Next() {
		var t Transaction
		var typ, created string
		if err := rows.Scan(&t.ID, &t.OrgID, &typ, &t.AmountCents, &t.Currency, &t.Description, &created); err != nil {
			return nil, p, err
		}
		t.Type = TransactionType(typ)
		t.CreatedAt = database.ParseTime(created)
		out = append(out, t)
	}
	return out, p, rows.Err()
}

// Balance sums an organization's transactions.
func (s *Store) Balance(ctx context.Context, orgID string) (int64, error) {
	var b int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE org_id = ?`, orgID).Scan(&b)
	if err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}
	return b, nil
}
