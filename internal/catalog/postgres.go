package catalog

import (
	"context"
	"errors"
	"fmt"

	"commerce-basket/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Postgres reads prices straight from catalog tables. Each target type maps to
// a table; the price is read from the configured column.
type Postgres struct {
	pool    *pgxpool.Pool
	queries map[string]string
}

func NewPostgres(pool *pgxpool.Pool, priceField string, tables map[string]string) (*Postgres, error) {
	if !validIdentifier(priceField) {
		return nil, fmt.Errorf("%w: price field %q", domain.ErrConfiguration, priceField)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("%w: no catalog tables configured", domain.ErrConfiguration)
	}
	queries := make(map[string]string, len(tables))
	for typ, table := range tables {
		if !validIdentifier(table) {
			return nil, fmt.Errorf("%w: catalog table %q", domain.ErrConfiguration, table)
		}
		queries[typ] = fmt.Sprintf(
			`SELECT COALESCE(%s, 0)::text FROM %s WHERE id = $1`,
			pgx.Identifier{priceField}.Sanitize(),
			pgx.Identifier{table}.Sanitize(),
		)
	}
	return &Postgres{pool: pool, queries: queries}, nil
}

func (p *Postgres) Price(ctx context.Context, ref domain.TargetRef) (decimal.Decimal, error) {
	q, ok := p.queries[ref.Type]
	if !ok {
		return decimal.Zero, fmt.Errorf("catalog type %q: %w", ref.Type, domain.ErrNotFound)
	}
	if _, err := uuid.Parse(ref.ID); err != nil {
		return decimal.Zero, fmt.Errorf("catalog record %s: %w", ref, domain.ErrNotFound)
	}
	var raw string
	if err := p.pool.QueryRow(ctx, q, ref.ID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("catalog record %s: %w", ref, domain.ErrNotFound)
		}
		return decimal.Zero, &domain.StorageError{Op: "price lookup", Err: err}
	}
	return decimal.NewFromString(raw)
}
