package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/toko-bundles/internal/db"
	"github.com/noah-isme/toko-bundles/internal/submission"
)

// Store persists orders. UpdateOrder runs fn against the locked current
// state inside one transaction; the changes fn makes are written only when it
// returns nil. Lines are append-only: lines beyond the loaded count are
// inserted.
type Store interface {
	CreateOrder(ctx context.Context, o Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, fn func(*Order) error) (Order, error)
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *pgStore) CreateOrder(ctx context.Context, o Order) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO orders (id, customer, status, currency, tax_total, grand_total, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, o.Customer, string(o.Status), o.Currency, db.Numeric(o.TaxTotal), db.Numeric(o.GrandTotal), o.CreatedAt)
	return err
}

func (s *pgStore) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	if s == nil || s.pool == nil {
		return Order{}, ErrStoreUnavailable
	}
	return loadOrder(ctx, s.pool, id, false)
}

func (s *pgStore) UpdateOrder(ctx context.Context, id uuid.UUID, fn func(*Order) error) (Order, error) {
	if s == nil || s.pool == nil {
		return Order{}, ErrStoreUnavailable
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	current, err := loadOrder(ctx, tx, id, true)
	if err != nil {
		return Order{}, err
	}
	persisted := len(current.Lines)
	if err := fn(&current); err != nil {
		return Order{}, err
	}

	_, err = tx.Exec(ctx, `UPDATE orders SET status = $2, tax_total = $3, grand_total = $4, submitted_at = $5 WHERE id = $1`,
		id, string(current.Status), db.Numeric(current.TaxTotal), db.Numeric(current.GrandTotal), current.SubmittedAt)
	if err != nil {
		return Order{}, fmt.Errorf("update order: %w", err)
	}
	if len(current.Lines) > persisted {
		batch := &pgx.Batch{}
		for _, l := range current.Lines[persisted:] {
			batch.Queue(`INSERT INTO order_lines (order_id, position, item_code, uom, qty, rate, price_list_rate,
    discount_percentage, discount_amount, amount, kind, bundle_code)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
				id, l.Position, l.ItemCode, l.UOM, db.Numeric(l.Qty), db.Numeric(l.Rate), db.Numeric(l.PriceListRate),
				db.Numeric(l.DiscountPercentage), db.Numeric(l.DiscountAmount), db.Numeric(l.Amount), string(l.Kind), l.BundleCode)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return Order{}, fmt.Errorf("insert order lines: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return current, nil
}

func loadOrder(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (Order, error) {
	query := `SELECT id, customer, status, currency, tax_total, grand_total, created_at, submitted_at FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var (
		o          Order
		status     string
		tax, grand pgtype.Numeric
	)
	err := q.QueryRow(ctx, query, id).Scan(&o.ID, &o.Customer, &status, &o.Currency, &tax, &grand, &o.CreatedAt, &o.SubmittedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	o.Status = Status(status)
	o.TaxTotal = db.Decimal(tax)
	o.GrandTotal = db.Decimal(grand)

	rows, err := q.Query(ctx, `SELECT position, item_code, uom, qty, rate, price_list_rate, discount_percentage,
    discount_amount, amount, kind, bundle_code
FROM order_lines WHERE order_id = $1 ORDER BY position`, id)
	if err != nil {
		return Order{}, err
	}
	o.Lines, err = pgx.CollectRows(rows, scanLine)
	if err != nil {
		return Order{}, fmt.Errorf("load order lines: %w", err)
	}
	return o, nil
}

func scanLine(row pgx.CollectableRow) (Line, error) {
	var (
		l                              Line
		kind                           string
		qty, rate, listRate, pct, disc pgtype.Numeric
		amount                         pgtype.Numeric
	)
	if err := row.Scan(&l.Position, &l.ItemCode, &l.UOM, &qty, &rate, &listRate, &pct, &disc, &amount, &kind, &l.BundleCode); err != nil {
		return Line{}, err
	}
	l.Qty = db.Decimal(qty)
	l.Rate = db.Decimal(rate)
	l.PriceListRate = db.Decimal(listRate)
	l.DiscountPercentage = db.Decimal(pct)
	l.DiscountAmount = db.Decimal(disc)
	l.Amount = db.Decimal(amount)
	l.Kind = submission.LineKind(kind)
	return l, nil
}
