package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-storefront/internal/checkout"
	"github.com/ariefcatur/go-storefront/internal/shop"
)

// Store is the transactional side of the inventory, cart and order tables.
type Store struct{ DB *pgxpool.Pool }

var _ checkout.Store = (*Store)(nil)

var txOptions = pgx.TxOptions{
	IsoLevel:   pgx.ReadCommitted,
	AccessMode: pgx.ReadWrite,
}

func (s *Store) InTx(ctx context.Context, fn func(checkout.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, txOptions)
	if err != nil {
		return shop.Storage("begin transaction", err)
	}
	// no-op once committed
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return shop.Storage("commit transaction", err)
	}
	return nil
}

type txStore struct{ tx pgx.Tx }

func (t *txStore) CreateOrder(ctx context.Context, o *shop.Order) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, address, fullname, phone_number)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		o.UserID, o.Address, o.Fullname, o.PhoneNumber,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return shop.Storage("insert order", err)
	}
	return nil
}

// ReserveStock checks and decrements in one statement. Concurrent
// transactions touching the same row queue on the row lock and re-check the
// predicate against the committed quantity.
func (t *txStore) ReserveStock(ctx context.Context, productID int64, qty int) (shop.Product, error) {
	var p shop.Product
	err := t.tx.QueryRow(ctx, `
		UPDATE products SET quantity = quantity - $2
		WHERE id = $1 AND quantity >= $2
		RETURNING id, name, price, quantity`,
		productID, qty,
	).Scan(&p.ID, &p.Name, &p.Price, &p.Quantity)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return shop.Product{}, shop.Storage("reserve stock", err)
	}

	var (
		name      string
		available int
	)
	err = t.tx.QueryRow(ctx, `SELECT name, quantity FROM products WHERE id = $1`, productID).Scan(&name, &available)
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.Product{}, shop.NotFound("product", productID)
	}
	if err != nil {
		return shop.Product{}, shop.Storage("load product", err)
	}
	return shop.Product{}, shop.InsufficientStock(productID, name, available)
}

func (t *txStore) InsertOrderLine(ctx context.Context, l *shop.OrderLine) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO order_lines (order_id, product_id, unit_price, quantity, subtotal)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		l.OrderID, l.ProductID, l.UnitPrice, l.Quantity, l.Subtotal,
	).Scan(&l.ID)
	if err != nil {
		return shop.Storage("insert order line", err)
	}
	return nil
}

func (t *txStore) CartLineForUpdate(ctx context.Context, userID, cartLineID int64) (shop.CartLine, error) {
	var c shop.CartLine
	err := t.tx.QueryRow(ctx, `
		SELECT id, user_id, product_id, quantity, created_at
		FROM carts WHERE id = $1 AND user_id = $2
		FOR UPDATE`,
		cartLineID, userID,
	).Scan(&c.ID, &c.UserID, &c.ProductID, &c.Quantity, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.CartLine{}, shop.NotFound("cart line", cartLineID)
	}
	if err != nil {
		return shop.CartLine{}, shop.Storage("load cart line", err)
	}
	return c, nil
}

func (t *txStore) DeleteCartLines(ctx context.Context, userID int64, ids []int64) (int64, error) {
	ct, err := t.tx.Exec(ctx, `DELETE FROM carts WHERE user_id = $1 AND id = ANY($2)`, userID, ids)
	if err != nil {
		return 0, shop.Storage("delete cart lines", err)
	}
	return ct.RowsAffected(), nil
}

func (t *txStore) DeleteOrder(ctx context.Context, orderID int64) (shop.Order, error) {
	var o shop.Order
	err := t.tx.QueryRow(ctx, `
		DELETE FROM orders WHERE id = $1
		RETURNING id, user_id, address, fullname, phone_number, created_at`,
		orderID,
	).Scan(&o.ID, &o.UserID, &o.Address, &o.Fullname, &o.PhoneNumber, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.Order{}, shop.NotFound("order", orderID)
	}
	if err != nil {
		return shop.Order{}, shop.Storage("delete order", err)
	}
	return o, nil
}

func (t *txStore) DeleteOrdersByUser(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := t.tx.Query(ctx, `DELETE FROM orders WHERE user_id = $1 RETURNING id`, userID)
	if err != nil {
		return nil, shop.Storage("delete orders", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, shop.Storage("delete orders", err)
	}
	return ids, nil
}

func (t *txStore) EnqueueEvent(ctx context.Context, topic string, key []byte, env shop.Envelope) error {
	if _, err := uuid.Parse(env.EventID); err != nil {
		return fmt.Errorf("event id %q: %w", env.EventID, err)
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO outbox (event_id, topic, key, payload)
		VALUES ($1::text::uuid, $2, $3, $4)`,
		env.EventID, topic, key, body,
	); err != nil {
		return shop.Storage("enqueue event", err)
	}
	return nil
}
