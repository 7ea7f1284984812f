package products

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/eringen/panelengine/billing"
	"github.com/eringen/panelengine/database"
)

// Billing periods accepted for subscription variants.
var BillingPeriods = []string{"MONTHLY", "QUARTERLY", "YEARLY"}

const variantColumns = `id, product_id, sku, name, price_cents, currency, stock_type, stock_qty, billing_period, sort_order, is_default, active`

func scanVariant(row scanner) (Variant, error) {
	var v Variant
	var stock string
	var def, active int
	if err := row.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Name, &v.PriceCents, &v.Currency, &stock, &v.StockQty,
		&v.BillingPeriod, &v.SortOrder, &def, &active); err != nil {
		return Variant{}, err
	}
	v.StockType = StockType(stock)
	v.Default = def == 1
	v.Active = active == 1
	return v, nil
}

// Variants lists a product's variants by sort order.
func (s *Store) Variants(ctx context.Context, productID string) ([]Variant, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+variantColumns+` FROM product_variants WHERE product_id = ? ORDER BY sort_order, name`, productID)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()
	out := []Variant{}
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Variant returns one variant of a product.
func (s *Store) Variant(ctx context.Context, productID, id string) (Variant, error) {
	v, err := scanVariant(s.db.QueryRowContext(ctx, `SELECT `+variantColumns+` FROM product_variants WHERE id = ? AND product_id = ?`, id, productID))
	return v, database.NotFound(err, ErrNotFound)
}

func checkVariant(in VariantInput, p Product) (VariantInput, error) {
	in.SKU = strings.ToUpper(strings.TrimSpace(in.SKU))
	in.Name = strings.TrimSpace(in.Name)
	if in.SKU == "" || len(in.SKU) > 64 || in.Name == "" || in.PriceCents < 0 {
		return in, ErrInvalidVariant
	}
	if in.StockType == "" {
		in.StockType = StockUnlimited
	}
	if !in.StockType.Valid() {
		return in, fmt.Errorf("%w: unknown stock type %q", ErrInvalidVariant, in.StockType)
	}
	if in.StockType == StockUnlimited {
		in.StockQty = 0
	} else if in.StockQty < 0 {
		return in, fmt.Errorf("%w: stock cannot be negative", ErrInvalidVariant)
	}
	in.BillingPeriod = strings.ToUpper(strings.TrimSpace(in.BillingPeriod))
	if in.BillingPeriod != "" {
		ok := false
		for _, bp := range BillingPeriods {
			ok = ok || bp == in.BillingPeriod
		}
		if !ok {
			return in, fmt.Errorf("%w: unknown billing period %q", ErrInvalidVariant, in.BillingPeriod)
		}
	}
	if p.Type == TypeSubscription && in.BillingPeriod == "" {
		return in, fmt.Errorf("%w: subscription variants need a billing period", ErrInvalidVariant)
	}
	if in.Currency == "" {
		in.Currency = p.Currency
	}
	cur, err := billing.NormalizeCurrency(in.Currency)
	if err != nil {
		return in, err
	}
	in.Currency = cur
	return in, nil
}

// withTx runs fn in a transaction, committing when it returns nil.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// saveVariant inserts or updates a variant. A default variant clears the
// flag on its siblings, and a product's first variant is always the default.
func (s *Store) saveVariant(ctx context.Context, productID, id string, in VariantInput, insert bool) (Variant, error) {
	p, err := s.Get(ctx, productID)
	if err != nil {
		return Variant{}, err
	}
	if in, err = checkVariant(in, p); err != nil {
		return Variant{}, err
	}
	if insert && len(p.Variants) == 0 {
		in.Default = true
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if in.Default {
			if _, err := tx.ExecContext(ctx, `UPDATE product_variants SET is_default = 0 WHERE product_id = ? AND id <> ?`, p.ID, id); err != nil {
				return err
			}
		}
		var res sql.Result
		var err error
		if insert {
			res, err = tx.ExecContext(ctx, `INSERT INTO product_variants (`+variantColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id, p.ID, in.SKU, in.Name, in.PriceCents, in.Currency, in.StockType, in.StockQty, in.BillingPeriod, in.SortOrder,
				database.Bool(in.Default), database.Bool(in.Active))
		} else {
			res, err = tx.ExecContext(ctx, `UPDATE product_variants SET sku = ?, name = ?, price_cents = ?, currency = ?, stock_type = ?, stock_qty = ?,
    billing_period = ?, sort_order = ?, is_default = ?, active = ? WHERE id = ? AND product_id = ?`,
				in.SKU, in.Name, in.PriceCents, in.Currency, in.StockType, in.StockQty, in.BillingPeriod, in.SortOrder,
				database.Bool(in.Default), database.Bool(in.Active), id, p.ID)
		}
		if database.IsUniqueViolation(err) {
			return ErrSKUTaken
		}
		if err != nil {
			return fmt.Errorf("save variant: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		_, err = tx.ExecContext(ctx, `UPDATE products SET updated_at = ? WHERE id = ?`, database.FormatTime(s.now()), p.ID)
		return err
	})
	if err != nil {
		return Variant{}, err
	}
	return s.Variant(ctx, p.ID, id)
}

// CreateVariant adds a variant to a product.
func (s *Store) CreateVariant(ctx context.Context, productID string, in VariantInput) (Variant, error) {
	return s.saveVariant(ctx, productID, uuid.NewString(), in, true)
}

// UpdateVariant replaces a variant's fields.
func (s *Store) UpdateVariant(ctx context.Context, productID, id string, in VariantInput) (Variant, error) {
	return s.saveVariant(ctx, productID, id, in, false)
}

// DeleteVariant removes a variant. When it was the default, the next variant
// by sort order takes over.
func (s *Store) DeleteVariant(ctx context.Context, productID, id string) error {
	v, err := s.Variant(ctx, productID, id)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM product_variants WHERE id = ?`, id); err != nil {
			return err
		}
		if !v.Default {
			return nil
		}
		_, err := tx.ExecContext(ctx, `UPDATE product_variants SET is_default = 1 WHERE id = (
    SELECT id FROM product_variants WHERE product_id = ? ORDER BY sort_order, name LIMIT 1)`, productID)
		return err
	})
}
