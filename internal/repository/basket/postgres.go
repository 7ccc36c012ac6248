package basket

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"commerce-basket/internal/domain"
	"commerce-basket/internal/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const basketColumns = `id::text, session_key, owner_id, total_price::text, metadata, created_at, updated_at`

const itemColumns = `i.id::text, i.kind, i.target_type, i.target_id, i.quantity, i.unit_price::text, i.price::text, i.attributes, i.created_at`

var predicateColumns = map[Field]string{
	FieldSessionKey: "session_key",
	FieldOwnerID:    "owner_id",
}

type postgresStore struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func NewPostgres(pool *pgxpool.Pool, log *logger.Logger) Store {
	return &postgresStore{pool: pool, log: logger.OrNop(log)}
}

func (s *postgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return storageErr("begin", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		s.log.Debug("basket tx rolled back", "error", err)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return storageErr("commit", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) CreateBasket(ctx context.Context, in CreateBasketInput) (*domain.Basket, error) {
	q := `
INSERT INTO baskets (session_key, owner_id, total_price, metadata)
VALUES ($1, $2, 0, $3)
RETURNING ` + basketColumns
	b, err := scanBasket(t.tx.QueryRow(ctx, q, in.SessionKey, in.OwnerID, nonNilMap(in.Metadata)))
	if err != nil {
		return nil, storageErr("create basket", err)
	}
	return b, nil
}

func (t *pgTx) GetBasket(ctx context.Context, id string) (*domain.Basket, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	q := `SELECT ` + basketColumns + ` FROM baskets WHERE id = $1 FOR UPDATE`
	b, err := scanBasket(t.tx.QueryRow(ctx, q, id))
	if err != nil {
		return nil, storageErr("get basket", err)
	}
	if err := t.loadItems(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (t *pgTx) FindMatching(ctx context.Context, preds ...Predicate) ([]*domain.Basket, error) {
	if len(preds) == 0 {
		return nil, nil
	}
	conds := make([]string, 0, len(preds))
	args := make([]any, 0, len(preds))
	for _, p := range preds {
		col, ok := predicateColumns[p.Field]
		if !ok {
			return nil, fmt.Errorf("%w: unknown basket field %q", domain.ErrInvalidInput, p.Field)
		}
		args = append(args, p.Value)
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	q := `SELECT ` + basketColumns + ` FROM baskets WHERE ` + strings.Join(conds, " OR ") +
		` ORDER BY created_at ASC, id ASC FOR UPDATE`

	rows, err := t.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, storageErr("find baskets", err)
	}
	var result []*domain.Basket
	for rows.Next() {
		b, err := scanBasket(rows)
		if err != nil {
			rows.Close()
			return nil, storageErr("find baskets", err)
		}
		result = append(result, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, storageErr("find baskets", err)
	}

	for _, b := range result {
		if err := t.loadItems(ctx, b); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (t *pgTx) UpdateBasket(ctx context.Context, b *domain.Basket) error {
	const q = `
UPDATE baskets
SET session_key = $2,
    owner_id = $3,
    total_price = $4::numeric,
    metadata = $5,
    updated_at = now()
WHERE id = $1
RETURNING updated_at
`
	err := t.tx.QueryRow(ctx, q, b.ID, b.SessionKey, b.OwnerID, b.TotalPrice.String(), nonNilMap(b.Metadata)).Scan(&b.UpdatedAt)
	if err != nil {
		return storageErr("update basket", err)
	}
	return nil
}

func (t *pgTx) DeleteBasket(ctx context.Context, id string) error {
	rows, err := t.tx.Query(ctx, `DELETE FROM basket_item_links WHERE basket_id = $1 RETURNING item_id::text`, id)
	if err != nil {
		return storageErr("delete basket links", err)
	}
	itemIDs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return storageErr("delete basket links", err)
	}

	if len(itemIDs) > 0 {
		if _, err := t.tx.Exec(ctx, `
DELETE FROM basket_items i
WHERE i.id = ANY($1::text[]::uuid[])
  AND i.kind = 'reference'
  AND NOT EXISTS (SELECT 1 FROM basket_item_links l WHERE l.item_id = i.id)
`, itemIDs); err != nil {
			return storageErr("delete orphaned items", err)
		}
	}

	cmd, err := t.tx.Exec(ctx, `DELETE FROM baskets WHERE id = $1`, id)
	if err != nil {
		return storageErr("delete basket", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *pgTx) InsertItems(ctx context.Context, items []domain.Item) ([]domain.Item, error) {
	const q = `
INSERT INTO basket_items (kind, target_type, target_id, quantity, unit_price, price, attributes)
VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7)
RETURNING id::text, created_at
`
	out := make([]domain.Item, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			it.Quantity = 1
		}
		if err := t.tx.QueryRow(ctx, q,
			string(it.Kind),
			it.Target.Type,
			it.Target.ID,
			it.Quantity,
			it.UnitPrice.String(),
			it.Price.String(),
			nonNilMap(it.Attributes),
		).Scan(&it.ID, &it.CreatedAt); err != nil {
			return nil, storageErr("insert item", err)
		}
		out = append(out, it)
	}
	return out, nil
}

func (t *pgTx) GetItems(ctx context.Context, ids []string) ([]domain.Item, error) {
	valid := validUUIDs(ids)
	if len(valid) == 0 {
		return nil, nil
	}
	q := `SELECT ` + itemColumns + ` FROM basket_items i WHERE i.id = ANY($1::text[]::uuid[]) ORDER BY i.created_at ASC, i.id ASC`
	items, err := t.queryItems(ctx, q, valid)
	if err != nil {
		return nil, storageErr("get items", err)
	}
	return items, nil
}

func (t *pgTx) UpdateItem(ctx context.Context, item domain.Item) error {
	const q = `
UPDATE basket_items
SET quantity = $2,
    unit_price = $3::numeric,
    price = $4::numeric,
    attributes = $5
WHERE id = $1
`
	cmd, err := t.tx.Exec(ctx, q, item.ID, item.Quantity, item.UnitPrice.String(), item.Price.String(), nonNilMap(item.Attributes))
	if err != nil {
		return storageErr("update item", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *pgTx) DeleteItems(ctx context.Context, ids []string) error {
	valid := validUUIDs(ids)
	if len(valid) == 0 {
		return nil
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM basket_items WHERE id = ANY($1::text[]::uuid[])`, valid); err != nil {
		return storageErr("delete items", err)
	}
	return nil
}

func (t *pgTx) Associate(ctx context.Context, basketID string, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	if _, err := t.tx.Exec(ctx, `
DELETE FROM basket_item_links l
USING basket_items i
WHERE l.item_id = i.id
  AND i.kind = 'reference'
  AND l.basket_id <> $1
  AND l.item_id = ANY($2::text[]::uuid[])
`, basketID, itemIDs); err != nil {
		return storageErr("detach reference items", err)
	}
	if _, err := t.tx.Exec(ctx, `
INSERT INTO basket_item_links (basket_id, item_id)
SELECT $1, item_id FROM unnest($2::text[]::uuid[]) AS item_id
ON CONFLICT DO NOTHING
`, basketID, itemIDs); err != nil {
		return storageErr("associate items", err)
	}
	return nil
}

func (t *pgTx) Disassociate(ctx context.Context, basketID string, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	if _, err := t.tx.Exec(ctx, `
DELETE FROM basket_item_links
WHERE basket_id = $1 AND item_id = ANY($2::text[]::uuid[])
`, basketID, itemIDs); err != nil {
		return storageErr("disassociate items", err)
	}
	return nil
}

func (t *pgTx) LinkedBaskets(ctx context.Context, itemIDs []string) ([]string, error) {
	valid := validUUIDs(itemIDs)
	if len(valid) == 0 {
		return nil, nil
	}
	rows, err := t.tx.Query(ctx, `
SELECT DISTINCT basket_id::text
FROM basket_item_links
WHERE item_id = ANY($1::text[]::uuid[])
ORDER BY 1
`, valid)
	if err != nil {
		return nil, storageErr("linked baskets", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, storageErr("linked baskets", err)
	}
	return ids, nil
}

func (t *pgTx) SumItemPrices(ctx context.Context, basketID string) (decimal.Decimal, error) {
	const q = `
SELECT COALESCE(SUM(i.price), 0)::text
FROM basket_item_links l
JOIN basket_items i ON i.id = l.item_id
WHERE l.basket_id = $1
`
	var raw string
	if err := t.tx.QueryRow(ctx, q, basketID).Scan(&raw); err != nil {
		return decimal.Zero, storageErr("sum item prices", err)
	}
	total, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, storageErr("sum item prices", err)
	}
	return total, nil
}

func (t *pgTx) loadItems(ctx context.Context, b *domain.Basket) error {
	q := `SELECT ` + itemColumns + `
FROM basket_item_links l
JOIN basket_items i ON i.id = l.item_id
WHERE l.basket_id = $1
ORDER BY i.created_at ASC, i.id ASC`
	items, err := t.queryItems(ctx, q, b.ID)
	if err != nil {
		return storageErr("load items", err)
	}
	b.Items = items
	return nil
}

func (t *pgTx) queryItems(ctx context.Context, q string, args ...any) ([]domain.Item, error) {
	rows, err := t.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.Item{}
	for rows.Next() {
		var (
			it        domain.Item
			kind      string
			unitPrice string
			price     string
		)
		if err := rows.Scan(
			&it.ID,
			&kind,
			&it.Target.Type,
			&it.Target.ID,
			&it.Quantity,
			&unitPrice,
			&price,
			&it.Attributes,
			&it.CreatedAt,
		); err != nil {
			return nil, err
		}
		it.Kind = domain.ItemKind(kind)
		if it.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return nil, err
		}
		if it.Price, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanBasket(row pgx.Row) (*domain.Basket, error) {
	var (
		b     domain.Basket
		total string
	)
	if err := row.Scan(
		&b.ID,
		&b.SessionKey,
		&b.OwnerID,
		&total,
		&b.Metadata,
		&b.CreatedAt,
		&b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	var err error
	if b.TotalPrice, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	b.Items = []domain.Item{}
	return &b, nil
}

func storageErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var se *domain.StorageError
	if errors.As(err, &se) {
		return err
	}
	return &domain.StorageError{Op: op, Err: err}
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func validUUIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			out = append(out, id)
		}
	}
	return out
}
