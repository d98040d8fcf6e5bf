package postgres

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-storefront/internal/query"
	"github.com/ariefcatur/go-storefront/internal/shop"
)

type OrderRepo struct {
	DB    DBTX
	Table query.Table
}

func NewOrderRepo(db DBTX, maxPageSize int) *OrderRepo {
	return &OrderRepo{DB: db, Table: query.Orders(maxPageSize)}
}

// List returns order headers matching p. userID 0 lists every user's orders.
func (r *OrderRepo) List(ctx context.Context, userID int64, p query.Params) ([]shop.Order, error) {
	var scope []sq.Sqlizer
	if userID != 0 {
		scope = append(scope, sq.Eq{"o.user_id": userID})
	}
	sql, args, err := r.Table.Build(p, scope...)
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, shop.Storage("list orders", err)
	}
	defer rows.Close()

	out := make([]shop.Order, 0)
	for rows.Next() {
		var o shop.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Address, &o.Fullname, &o.PhoneNumber, &o.CreatedAt); err != nil {
			return nil, shop.Storage("scan order", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, shop.Storage("list orders", err)
	}
	return out, nil
}

// Get loads the header with its lines.
func (r *OrderRepo) Get(ctx context.Context, id int64) (shop.Order, error) {
	var o shop.Order
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, address, fullname, phone_number, created_at
		FROM orders WHERE id = $1`, id,
	).Scan(&o.ID, &o.UserID, &o.Address, &o.Fullname, &o.PhoneNumber, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.Order{}, shop.NotFound("order", id)
	}
	if err != nil {
		return shop.Order{}, shop.Storage("load order", err)
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, unit_price, quantity, subtotal
		FROM order_lines WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return shop.Order{}, shop.Storage("load order lines", err)
	}
	defer rows.Close()

	o.Lines = make([]shop.OrderLine, 0)
	for rows.Next() {
		var l shop.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.UnitPrice, &l.Quantity, &l.Subtotal); err != nil {
			return shop.Order{}, shop.Storage("scan order line", err)
		}
		o.Lines = append(o.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return shop.Order{}, shop.Storage("load order lines", err)
	}
	return o, nil
}
