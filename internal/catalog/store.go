package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/toko-bundles/internal/bundle"
	"github.com/noah-isme/toko-bundles/internal/db"
)

var (
	// ErrNotFound is returned when no active bundle matches.
	ErrNotFound = errors.New("catalog: bundle not found")
	// ErrStoreUnavailable indicates the store dependency is not configured.
	ErrStoreUnavailable = errors.New("catalog: store unavailable")
)

// Store persists bundle definitions.
type Store interface {
	GetBundle(ctx context.Context, code string) (bundle.Definition, error)
	FindByContainer(ctx context.Context, item string) (bundle.Definition, error)
	ListBundles(ctx context.Context) ([]bundle.Definition, error)
	UpsertBundle(ctx context.Context, def bundle.Definition) error
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

const selectBundle = `SELECT code, name, container_item, container_uom, bundle_price FROM bundles`

func (s *pgStore) GetBundle(ctx context.Context, code string) (bundle.Definition, error) {
	if s == nil || s.pool == nil {
		return bundle.Definition{}, ErrStoreUnavailable
	}
	def, err := scanBundle(s.pool.QueryRow(ctx, selectBundle+` WHERE code = $1 AND active`, code))
	if err != nil {
		return bundle.Definition{}, err
	}
	byCode, err := s.constituents(ctx, []string{def.Code})
	if err != nil {
		return bundle.Definition{}, err
	}
	def.Constituents = byCode[def.Code]
	return def, nil
}

func (s *pgStore) FindByContainer(ctx context.Context, item string) (bundle.Definition, error) {
	if s == nil || s.pool == nil {
		return bundle.Definition{}, ErrStoreUnavailable
	}
	var code string
	err := s.pool.QueryRow(ctx, `SELECT code FROM bundles WHERE container_item = $1 AND active ORDER BY code LIMIT 1`, item).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return bundle.Definition{}, ErrNotFound
		}
		return bundle.Definition{}, err
	}
	return s.GetBundle(ctx, code)
}

func (s *pgStore) ListBundles(ctx context.Context) ([]bundle.Definition, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, selectBundle+` WHERE active ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (bundle.Definition, error) {
		return scanBundle(row)
	})
	if err != nil {
		return nil, err
	}
	codes := make([]string, len(defs))
	for i, d := range defs {
		codes[i] = d.Code
	}
	byCode, err := s.constituents(ctx, codes)
	if err != nil {
		return nil, err
	}
	for i := range defs {
		defs[i].Constituents = byCode[defs[i].Code]
	}
	return defs, nil
}

func (s *pgStore) UpsertBundle(ctx context.Context, def bundle.Definition) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `INSERT INTO bundles (code, name, container_item, container_uom, bundle_price, active)
VALUES ($1, $2, $3, $4, $5, TRUE)
ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, container_item = EXCLUDED.container_item,
    container_uom = EXCLUDED.container_uom, bundle_price = EXCLUDED.bundle_price, active = TRUE, updated_at = now()`,
		def.Code, def.Name, def.ContainerItem, def.ContainerUOM, db.Numeric(def.Price))
	if err != nil {
		return fmt.Errorf("upsert bundle: %w", err)
	}

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM bundle_constituents WHERE bundle_code = $1`, def.Code)
	for i, c := range def.Constituents {
		batch.Queue(`INSERT INTO bundle_constituents (bundle_code, position, item_code, regular_rate, qty, uom)
VALUES ($1, $2, $3, $4, $5, $6)`, def.Code, i, c.ItemCode, db.Numeric(c.RegularRate), db.Numeric(c.Qty), c.UOM)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("replace constituents: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *pgStore) constituents(ctx context.Context, codes []string) (map[string][]bundle.Constituent, error) {
	out := make(map[string][]bundle.Constituent, len(codes))
	if len(codes) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT bundle_code, item_code, regular_rate, qty, uom
FROM bundle_constituents WHERE bundle_code = ANY($1) ORDER BY bundle_code, position`, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			code      string
			c         bundle.Constituent
			rate, qty pgtype.Numeric
		)
		if err := rows.Scan(&code, &c.ItemCode, &rate, &qty, &c.UOM); err != nil {
			return nil, err
		}
		c.RegularRate = db.Decimal(rate)
		c.Qty = db.Decimal(qty)
		out[code] = append(out[code], c)
	}
	return out, rows.Err()
}

func scanBundle(row pgx.Row) (bundle.Definition, error) {
	var (
		def   bundle.Definition
		price pgtype.Numeric
	)
	if err := row.Scan(&def.Code, &def.Name, &def.ContainerItem, &def.ContainerUOM, &price); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return bundle.Definition{}, ErrNotFound
		}
		return bundle.Definition{}, err
	}
	def.Price = db.Decimal(price)
	return def, nil
}
