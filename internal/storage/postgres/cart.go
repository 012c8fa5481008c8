package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-discounts/internal/domain/cart"
)

const (
	createCartSQL = `INSERT INTO carts (id, customer_id, created_at, updated_at) VALUES ($1, $2, $3, $4)`

	getCartSQL = `SELECT id, customer_id, created_at, updated_at FROM carts WHERE id = $1`

	getCartItemsSQL = `SELECT product_id, quantity FROM cart_items WHERE cart_id = $1 ORDER BY position`

	touchCartSQL = `UPDATE carts SET updated_at = $2 WHERE id = $1`

	clearCartItemsSQL = `DELETE FROM cart_items WHERE cart_id = $1`

	insertCartItemSQL = `INSERT INTO cart_items (cart_id, product_id, quantity, position) VALUES ($1, $2, $3, $4)`

	deleteCartSQL = `DELETE FROM carts WHERE id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Create persists a new cart together with its items.
func (r *CartRepository) Create(ctx context.Context, c *cart.Cart) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, createCartSQL, c.ID, c.CustomerID, c.CreatedAt, c.UpdatedAt); err != nil {
			return err
		}
		return insertItems(ctx, tx, c)
	})
	if err != nil {
		return fmt.Errorf("creating cart %q: %w", c.ID, err)
	}
	return nil
}

// Get returns a cart with its items in insertion order.
func (r *CartRepository) Get(ctx context.Context, id string) (*cart.Cart, error) {
	var c cart.Cart
	err := r.pool.QueryRow(ctx, getCartSQL, id).Scan(&c.ID, &c.CustomerID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart %q: %w", id, err)
	}

	rows, err := r.pool.Query(ctx, getCartItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting items of cart %q: %w", id, err)
	}
	c.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Item, error) {
		var (
			item cart.Item
			qty  int32
		)
		err := row.Scan(&item.ProductID, &qty)
		item.Quantity = int(qty)
		return item, err
	})
	if err != nil {
		return nil, fmt.Errorf("getting items of cart %q: %w", id, err)
	}
	return &c, nil
}

// Update replaces the items of a stored cart in one transaction.
func (r *CartRepository) Update(ctx context.Context, c *cart.Cart) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, touchCartSQL, c.ID, c.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return cart.ErrNotFound
		}
		if _, err := tx.Exec(ctx, clearCartItemsSQL, c.ID); err != nil {
			return err
		}
		return insertItems(ctx, tx, c)
	})
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			return cart.ErrNotFound
		}
		return fmt.Errorf("updating cart %q: %w", c.ID, err)
	}
	return nil
}

// Delete removes a cart and its items.
func (r *CartRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteCartSQL, id)
	if err != nil {
		return fmt.Errorf("deleting cart %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrNotFound
	}
	return nil
}

func insertItems(ctx context.Context, tx pgx.Tx, c *cart.Cart) error {
	if len(c.Items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, item := range c.Items {
		batch.Queue(insertCartItemSQL, c.ID, item.ProductID, item.Quantity, i)
	}
	return tx.SendBatch(ctx, batch).Close()
}
