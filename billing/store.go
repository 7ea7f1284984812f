package billing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/eringen/panelengine/database"
	"github.com/eringen/panelengine/paging"
)

// Store is the SQLite-backed billing store.
type Store struct {
	db  *sql.DB
	now func() time.Time

	mu     sync.RWMutex
	prefix string
}

// NewStore wraps db and creates the billing tables. Invoice numbers use
// prefix, "INV" when empty.
func NewStore(db *sql.DB, prefix string) (*Store, error) {
	if prefix == "" {
		prefix = "INV"
	}
	s := &Store{db: db, prefix: prefix, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("billing schema: %w", err)
	}
	return s, nil
}

// SetClock overrides the time source, for tests.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// SetPrefix changes the invoice number prefix for new invoices.
func (s *Store) SetPrefix(prefix string) {
	if prefix == "" {
		return
	}
	s.mu.Lock()
	s.prefix = prefix
	s.mu.Unlock()
}

// Prefix returns the current invoice number prefix.
func (s *Store) Prefix() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefix
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS invoices (
    id TEXT PRIMARY KEY,
    number TEXT NOT NULL UNIQUE,
    org_id TEXT NOT NULL DEFAULT '',
    customer TEXT NOT NULL,
    email TEXT NOT NULL DEFAULT '',
    items TEXT NOT NULL DEFAULT '[]',
    subtotal_cents INTEGER NOT NULL,
    tax_rate REAL NOT NULL DEFAULT 0,
    tax_cents INTEGER NOT NULL DEFAULT 0,
    total_cents INTEGER NOT NULL,
    currency TEXT NOT NULL,
    status TEXT NOT NULL,
    due_at TEXT NOT NULL,
    paid_at TEXT,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices(status);
CREATE INDEX IF NOT EXISTS idx_invoices_paid ON invoices(paid_at);

CREATE TABLE IF NOT EXISTS subscriptions (
    id TEXT PRIMARY KEY,
    org_id TEXT NOT NULL,
    plan TEXT NOT NULL,
    amount_cents INTEGER NOT NULL,
    currency TEXT NOT NULL,
    status TEXT NOT NULL,
    renews_at TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    org_id TEXT NOT NULL,
    type TEXT NOT NULL,
    amount_cents INTEGER NOT NULL,
    currency TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_org ON transactions(org_id, created_at);
`)
	return err
}

const invoiceColumns = `id, number, org_id, customer, email, items, subtotal_cents, tax_rate, tax_cents, total_cents, currency, status, due_at, paid_at, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row scanner) (Invoice, error) {
	var inv Invoice
	var items, status, due, created string
	var paid sql.NullString
	err := row.Scan(&inv.ID, &inv.Number, &inv.OrgID, &inv.Customer, &inv.Email, &items,
		&inv.SubtotalCents, &inv.TaxRate, &inv.TaxCents, &inv.TotalCents, &inv.Currency, &status, &due, &paid, &created)
	if err != nil {
		return Invoice{}, err
	}
	if err := json.Unmarshal([]byte(items), &inv.Items); err != nil {
		return Invoice{}, fmt.Errorf("decode items of %s: %w", inv.Number, err)
	}
	inv.Status = InvoiceStatus(status)
	inv.DueAt = database.ParseTime(due)
	inv.PaidAt = database.ParseNullTime(paid)
	inv.CreatedAt = database.ParseTime(created)
	return inv, nil
}

// nextNumber returns the next "{prefix}-{yyyy}-{seq:05d}" number for year.
func (s *Store) nextNumber(ctx context.Context, tx *sql.Tx, year int) (string, error) {
	head := fmt.Sprintf("%s-%04d-", s.Prefix(), year)
	// Sequences are compared as integers so 100000 sorts after 99999.
	var last sql.NullInt64
	err := tx.QueryRowContext(ctx, `SELECT MAX(CAST(substr(number, ?) AS INTEGER)) FROM invoices WHERE number LIKE ? ESCAPE '\'`,
		utf8.RuneCountInString(head)+1,
		strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(head)+"%").Scan(&last)
	if err != nil {
		return "", err
	}
	seq := int64(1)
	if last.Valid {
		seq = last.Int64 + 1
	}
	return fmt.Sprintf("%s%05d", head, seq), nil
}

// CreateInvoice totals the line items, applies tax and assigns the next
// invoice number for the current year. Status defaults to DRAFT.
func (s *Store) CreateInvoice(ctx context.Context, in NewInvoice) (Invoice, error) {
	customer := strings.TrimSpace(in.Customer)
	if customer == "" || len(in.Items) == 0 {
		return Invoice{}, ErrInvalidInvoice
	}
	cur, err := NormalizeCurrency(in.Currency)
	if err != nil {
		return Invoice{}, err
	}
	var subtotal int64
	for _, it := range in.Items {
		if it.Quantity <= 0 || it.UnitCents < 0 || strings.TrimSpace(it.Description) == "" {
			return Invoice{}, ErrInvalidInvoice
		}
		subtotal += it.Total()
	}
	status := in.Status
	if status == "" {
		status = InvoiceDraft
	}
	if status != InvoiceDraft && status != InvoicePending {
		return Invoice{}, ErrInvalidStatus
	}
	dueDays := in.DueDays
	if dueDays <= 0 {
		dueDays = 14
	}
	now := s.now().UTC().Truncate(time.Second)
	inv := Invoice{
		ID:            uuid.NewString(),
		OrgID:         in.OrgID,
		Customer:      customer,
		Email:         strings.ToLower(strings.TrimSpace(in.Email)),
		Items:         in.Items,
		SubtotalCents: subtotal,
		TaxRate:       in.TaxRate,
		TaxCents:      TaxCents(subtotal, in.TaxRate),
		Currency:      cur,
		Status:        status,
		DueAt:         now.AddDate(0, 0, dueDays),
		CreatedAt:     now,
	}
	inv.TotalCents = inv.SubtotalCents + inv.TaxCents
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return Invoice{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Invoice{}, err
	}
	defer tx.Rollback()
	if inv.Number, err = s.nextNumber(ctx, tx, now.Year()); err != nil {
		return Invoice{}, fmt.Errorf("invoice number: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO invoices (`+invoiceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Number, inv.OrgID, inv.Customer, inv.Email, string(items), inv.SubtotalCents, inv.TaxRate, inv.TaxCents,
		inv.TotalCents, inv.Currency, inv.Status, database.FormatTime(inv.DueAt), nil, database.FormatTime(inv.CreatedAt))
	if err != nil {
		return Invoice{}, fmt.Errorf("insert invoice: %w", err)
	}
	return inv, tx.Commit()
}

// GetInvoice returns an invoice by ID or number.
func (s *Store) GetInvoice(ctx context.Context, idOrNumber string) (Invoice, error) {
	inv, err := scanInvoice(s.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ? OR number = ?`, idOrNumber, idOrNumber))
	return inv, database.NotFound(err, ErrNotFound)
}

// ListInvoices returns a page of invoices, newest first. Search matches the
// invoice number, customer name or email.
func (s *Store) ListInvoices(ctx context.Context, f InvoiceFilter, p paging.Page) ([]Invoice, paging.Page, error) {
	where := []string{"1=1"}
	var args []any
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.OrgID != "" {
		where = append(where, "org_id = ?")
		args = append(args, f.OrgID)
	}
	if f.Search != "" {
		where = append(where, `(lower(number) LIKE ? ESCAPE '\' OR lower(customer) LIKE ? ESCAPE '\' OR email LIKE ? ESCAPE '\')`)
		pat := database.LikePattern(f.Search)
		args = append(args, pat, pat, pat)
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, p, fmt.Errorf("count invoices: %w", err)
	}
	p = p.WithTotal(total)
	rows, err := s.db.QueryContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE `+clause+` ORDER BY created_at DESC, number DESC LIMIT ? OFFSET ?`,
		append(args, p.Size, p.Offset())...)
	if err != nil {
		return nil, p, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()
	out := []Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, p, err
		}
		out = append(out, inv)
	}
	return out, p, rows.Err()
}

// UpdateInvoiceStatus moves an invoice along the transition table. Moving to
// PAID stamps PaidAt.
func (s *Store) UpdateInvoiceStatus(ctx context.Context, id string, to InvoiceStatus) (Invoice, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Invoice{}, err
	}
	defer tx.Rollback()
	inv, err := scanInvoice(tx.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	if err != nil {
		return Invoice{}, err
	}
	if !CanTransition(inv.Status, to) {
		return Invoice{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, inv.Status, to)
	}
	inv.Status = to
	if to == InvoicePaid {
		inv.PaidAt = s.now().UTC().Truncate(time.Second)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE invoices SET status = ?, paid_at = ? WHERE id = ?`, inv.Status, database.NullTime(inv.PaidAt), id); err != nil {
		return Invoice{}, fmt.Errorf("update invoice: %w", err)
	}
	return inv, tx.Commit()
}

// MarkOverdue moves PENDING invoices whose due date has passed to OVERDUE and
// returns how many changed.
func (s *Store) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE invoices SET status = ? WHERE status = ? AND due_at < ?`,
		InvoiceOverdue, InvoicePending, database.FormatTime(now))
	if err != nil {
		return 0, fmt.Errorf("mark overdue: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
