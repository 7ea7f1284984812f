// Package billing stores invoices, subscriptions and wallet transactions and
// computes the revenue figures shown on the billing dashboard.
package billing

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "DRAFT"
	InvoicePending   InvoiceStatus = "PENDING"
	InvoicePaid      InvoiceStatus = "PAID"
	InvoiceOverdue   InvoiceStatus = "OVERDUE"
	InvoiceCancelled InvoiceStatus = "CANCELLED"
	InvoiceRefunded  InvoiceStatus = "REFUNDED"
)

// InvoiceStatuses lists every invoice status in display order.
var InvoiceStatuses = []InvoiceStatus{InvoiceDraft, InvoicePending, InvoicePaid, InvoiceOverdue, InvoiceCancelled, InvoiceRefunded}

var transitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceDraft:   {InvoicePending, InvoiceCancelled},
	InvoicePending: {InvoicePaid, InvoiceOverdue, InvoiceCancelled},
	InvoiceOverdue: {InvoicePaid, InvoiceCancelled},
	InvoicePaid:    {InvoiceRefunded},
}

// CanTransition reports whether an invoice may move from one status to
// another.
func CanTransition(from, to InvoiceStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from s.
func NextStatuses(s InvoiceStatus) []InvoiceStatus {
	return append([]InvoiceStatus(nil), transitions[s]...)
}

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionTrial     SubscriptionStatus = "TRIAL"
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionPastDue   SubscriptionStatus = "PAST_DUE"
	SubscriptionPaused    SubscriptionStatus = "PAUSED"
	SubscriptionCancelled SubscriptionStatus = "CANCELLED"
	SubscriptionExpired   SubscriptionStatus = "EXPIRED"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionTrial, SubscriptionActive, SubscriptionPastDue, SubscriptionPaused, SubscriptionCancelled, SubscriptionExpired:
		return true
	}
	return false
}

// TransactionType classifies wallet movements.
type TransactionType string

const (
	TxDeposit    TransactionType = "DEPOSIT"
	TxCharge     TransactionType = "CHARGE"
	TxRefund     TransactionType = "REFUND"
	TxAdjustment TransactionType = "ADJUSTMENT"
	TxBonus      TransactionType = "BONUS"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxDeposit, TxCharge, TxRefund, TxAdjustment, TxBonus:
		return true
	}
	return false
}

var (
	ErrNotFound          = errors.New("billing: not found")
	ErrInvalidTransition = errors.New("billing: invalid status transition")
	ErrInvalidInvoice    = errors.New("billing: invoice needs a customer and at least one line item")
	ErrInvalidCurrency   = errors.New("billing: unknown currency")
	ErrInvalidStatus     = errors.New("billing: invalid status")
	ErrInvalidAmount     = errors.New("billing: invalid amount")
)

// LineItem is one row on an invoice.
type LineItem struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitCents   int64  `json:"unitCents"`
}

// Total is quantity times unit price.
func (l LineItem) Total() int64 { return int64(l.Quantity) * l.UnitCents }

// Invoice is a bill issued to an organization.
type Invoice struct {
	ID            string        `json:"id"`
	Number        string        `json:"number"`
	OrgID         string        `json:"orgId"`
	Customer      string        `json:"customer"`
	Email         string        `json:"email"`
	Items         []LineItem    `json:"items"`
	SubtotalCents int64         `json:"subtotalCents"`
	TaxRate       float64       `json:"taxRate"`
	TaxCents      int64         `json:"taxCents"`
	TotalCents    int64         `json:"totalCents"`
	Currency      string        `json:"currency"`
	Status        InvoiceStatus `json:"status"`
	DueAt         time.Time     `json:"dueAt"`
	PaidAt        time.Time     `json:"paidAt,omitzero"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// NewInvoice is the input to CreateInvoice.
type NewInvoice struct {
	OrgID    string
	Customer string
	Email    string
	Items    []LineItem
	TaxRate  float64
	Currency string
	DueDays  int
	Status   InvoiceStatus
}

// InvoiceFilter narrows ListInvoices.
type InvoiceFilter struct {
	Status InvoiceStatus
	Search string
	OrgID  string
}

// Subscription is a recurring plan charge.
type Subscription struct {
	ID          string             `json:"id"`
	OrgID       string             `json:"orgId"`
	Plan        string             `json:"plan"`
	AmountCents int64              `json:"amountCents"`
	Currency    string             `json:"currency"`
	Status      SubscriptionStatus `json:"status"`
	RenewsAt    time.Time          `json:"renewsAt"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// Transaction is one wallet movement. Charges are negative.
type Transaction struct {
	ID          int64           `json:"id"`
	OrgID       string          `json:"orgId"`
	Type        TransactionType `json:"type"`
	AmountCents int64           `json:"amountCents"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// InvoicePageSize is the admin invoice list page size.
const InvoicePageSize = 20

// NormalizeCurrency upper-cases and validates an ISO 4217 code.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = "USD"
	}
	u, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	return u.String(), nil
}

var printer = message.NewPrinter(language.English)

// FormatMoney renders cents as "$1,234.50". Unknown currencies fall back to
// the raw code.
func FormatMoney(cents int64, code string) string {
	sym := strings.ToUpper(code)
	if u, err := currency.ParseISO(code); err == nil {
		sym = printer.Sprint(currency.Symbol(u))
	}
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%s%s.%02d", sign, sym, printer.Sprintf("%d", cents/100), cents%100)
}

// ParseCents reads a decimal amount such as "19.9" or "1,250.00" as cents.
// Negative amounts and more than two decimals are rejected.
func ParseCents(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, ErrInvalidAmount
	}
	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > 2 || whole == "" && frac == "" {
		return 0, ErrInvalidAmount
	}
	frac += strings.Repeat("0", 2-len(frac))
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w < 0 || strings.HasPrefix(whole, "+") {
		return 0, ErrInvalidAmount
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil || f < 0 || strings.HasPrefix(frac, "+") {
		return 0, ErrInvalidAmount
	}
	if w > (math.MaxInt64-f)/100 {
		return 0, ErrInvalidAmount
	}
	return w*100 + f, nil
}

// TaxCents applies a percentage rate to a subtotal, rounding half up.
func TaxCents(subtotal int64, rate float64) int64 {
	if rate <= 0 {
		return 0
	}
	return int64(float64(subtotal)*rate/100 + 0.5)
}
