package postgres

import (
	"context"
	"embed"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/andrewbyteforge/pricecomparison/pkg/database"
	apperrors "github.com/andrewbyteforge/pricecomparison/pkg/errors"
	"github.com/andrewbyteforge/pricecomparison/services/basket/internal/domain"
	"github.com/andrewbyteforge/pricecomparison/services/basket/internal/repository"
)

// Migrations holds the schema for basket_items.
//
//go:embed migrations/*.sql
var Migrations embed.FS

const (
	listItemsSQL = `
		SELECT id, store, name, price::text, added_at
		FROM basket_items
		WHERE user_id = $1
		ORDER BY added_at, id`

	lockBasketSQL = `SELECT pg_advisory_xact_lock(hashtext($1))`

	countItemsSQL = `SELECT COUNT(*) FROM basket_items WHERE user_id = $1 AND id <> $2`

	insertItemSQL = `
		INSERT INTO basket_items (id, user_id, store, name, price, added_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6)
		ON CONFLICT (id) DO UPDATE
		SET store = EXCLUDED.store, name = EXCLUDED.name, price = EXCLUDED.price`

	deleteItemSQL = `DELETE FROM basket_items WHERE user_id = $1 AND id = $2`

	clearItemsSQL = `DELETE FROM basket_items WHERE user_id = $1`
)

// BasketRepository implements repository.BasketRepository using PostgreSQL.
type BasketRepository struct {
	db database.DBTX
}

// NewBasketRepository creates a new PostgreSQL-backed basket repository.
func NewBasketRepository(db database.DBTX) *BasketRepository {
	return &BasketRepository{db: db}
}

var _ repository.BasketRepository = (*BasketRepository)(nil)

// List returns the user's items ordered by the time they were added.
func (r *BasketRepository) List(ctx context.Context, userID string) (items []domain.Item, err error) {
	ctx, end := database.TraceQuery(ctx, "ListBasketItems", listItemsSQL)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, listItemsSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("list basket items: %w", err)
	}
	defer rows.Close()

	items = []domain.Item{}
	for rows.Next() {
		var (
			it    domain.Item
			store string
			price string
		)
		if err := rows.Scan(&it.ID, &store, &it.Name, &price, &it.AddedAt); err != nil {
			return nil, fmt.Errorf("scan basket item row: %w", err)
		}
		it.Store = domain.Store(store)
		if it.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse price of basket item %s: %w", it.ID, err)
		}
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate basket item rows: %w", err)
	}

	return items, nil
}

// Add inserts an item. A per-user advisory lock serialises concurrent adds so
// the size check cannot race.
func (r *BasketRepository) Add(ctx context.Context, userID string, item domain.Item, maxItems int) (err error) {
	ctx, end := database.TraceQuery(ctx, "AddBasketItem", insertItemSQL)
	defer func() { end(err) }()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin add basket item: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, lockBasketSQL, userID); err != nil {
		return fmt.Errorf("lock basket: %w", err)
	}

	var n int
	if err := tx.QueryRow(ctx, countItemsSQL, userID, item.ID).Scan(&n); err != nil {
		return fmt.Errorf("count basket items: %w", err)
	}
	if n >= maxItems {
		return repository.ErrBasketFull
	}

	if _, err := tx.Exec(ctx, insertItemSQL,
		item.ID, userID, string(item.Store), item.Name, item.Price.StringFixed(2), item.AddedAt,
	); err != nil {
		return fmt.Errorf("insert basket item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit add basket item: %w", err)
	}
	return nil
}

// Remove deletes one item from the user's basket.
func (r *BasketRepository) Remove(ctx context.Context, userID, itemID string) (err error) {
	ctx, end := database.TraceQuery(ctx, "RemoveBasketItem", deleteItemSQL)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, deleteItemSQL, userID, itemID)
	if err != nil {
		return fmt.Errorf("delete basket item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("basket item", itemID)
	}
	return nil
}

// Clear deletes every item in the user's basket.
func (r *BasketRepository) Clear(ctx context.Context, userID string) (n int, err error) {
	ctx, end := database.TraceQuery(ctx, "ClearBasket", clearItemsSQL)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, clearItemsSQL, userID)
	if err != nil {
		return 0, fmt.Errorf("clear basket: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
