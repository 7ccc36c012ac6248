package product

import (
	"context"
	"errors"
	"fmt"

	"commerce-basket/internal/domain"
	"commerce-basket/internal/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type postgresRepo struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func NewPostgres(pool *pgxpool.Pool, log *logger.Logger) Repository {
	return &postgresRepo{pool: pool, log: logger.OrNop(log).With("repo", "product")}
}

const selectColumns = `id::text, key, sku, name, COALESCE(description, ''), price::text, currency, attributes, created_at`

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p     domain.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Key, &p.SKU, &p.Name, &p.Description, &price, &p.Currency, &p.Attributes, &p.CreatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("product %s price %q: %w", p.ID, price, err)
	}
	p.Price = d
	return &p, nil
}

func (r *postgresRepo) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+selectColumns+` FROM products ORDER BY created_at DESC, key`)
	if err != nil {
		r.log.Warn("list products failed", "error", err)
		return nil, &domain.StorageError{Op: "list_products", Err: err}
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "list_products", Err: err}
	}
	r.log.Debug("listed products", "count", len(result))
	return result, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM products WHERE id::text = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.log.Warn("get product failed", "id", id, "error", err)
		return nil, &domain.StorageError{Op: "get_product", Err: err}
	}
	return p, nil
}

// Upsert inserts product or updates the row with the same key. A non-empty ID
// must match the stored row's id.
func (r *postgresRepo) Upsert(ctx context.Context, product domain.Product) (*domain.Product, error) {
	const q = `
INSERT INTO products (id, key, sku, name, description, price, currency, attributes)
VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, NULLIF($5, ''), $6::numeric, $7, COALESCE($8, '{}'::jsonb))
ON CONFLICT (key) DO UPDATE SET
    sku = EXCLUDED.sku,
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    price = EXCLUDED.price,
    currency = EXCLUDED.currency,
    attributes = EXCLUDED.attributes
RETURNING id::text, created_at
`
	currency := product.Currency
	if currency == "" {
		currency = "USD"
	}
	res := product
	res.Currency = currency
	err := r.pool.QueryRow(ctx, q,
		product.ID,
		product.Key,
		product.SKU,
		product.Name,
		product.Description,
		product.Price.String(),
		currency,
		product.Attributes,
	).Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		r.log.Warn("upsert product failed", "key", product.Key, "error", err)
		return nil, &domain.StorageError{Op: "upsert_product", Err: err}
	}
	if product.ID != "" && res.ID != product.ID {
		return nil, fmt.Errorf("%w: product key %s already has id %s, import id %s", domain.ErrInvalidInput, product.Key, res.ID, product.ID)
	}
	r.log.Debug("upserted product", "key", res.Key, "id", res.ID)
	return &res, nil
}
