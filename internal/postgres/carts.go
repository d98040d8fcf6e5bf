package postgres

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/ariefcatur/go-storefront/internal/query"
	"github.com/ariefcatur/go-storefront/internal/shop"
)

type CartRepo struct {
	DB    DBTX
	Table query.Table
}

func NewCartRepo(db DBTX, maxPageSize int) *CartRepo {
	return &CartRepo{DB: db, Table: query.Carts(maxPageSize)}
}

// List returns cart lines matching p. userID 0 lists every user's lines.
func (r *CartRepo) List(ctx context.Context, userID int64, p query.Params) ([]shop.CartLine, error) {
	var scope []sq.Sqlizer
	if userID != 0 {
		scope = append(scope, sq.Eq{"ct.user_id": userID})
	}
	sql, args, err := r.Table.Build(p, scope...)
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, shop.Storage("list carts", err)
	}
	defer rows.Close()

	out := make([]shop.CartLine, 0)
	for rows.Next() {
		var c shop.CartLine
		if err := rows.Scan(&c.ID, &c.UserID, &c.ProductID, &c.Quantity, &c.CreatedAt); err != nil {
			return nil, shop.Storage("scan cart line", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, shop.Storage("list carts", err)
	}
	return out, nil
}

// Upsert adds a line or overwrites the quantity of the existing
// (user, product) line. created reports which happened.
func (r *CartRepo) Upsert(ctx context.Context, userID, productID int64, qty int) (line shop.CartLine, created bool, err error) {
	err = r.DB.QueryRow(ctx, `
		INSERT INTO carts (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity
		RETURNING id, user_id, product_id, quantity, created_at, (xmax = 0)`,
		userID, productID, qty,
	).Scan(&line.ID, &line.UserID, &line.ProductID, &line.Quantity, &line.CreatedAt, &created)
	if err != nil {
		return shop.CartLine{}, false, shop.Storage("upsert cart line", err)
	}
	return line, created, nil
}

func (r *CartRepo) Delete(ctx context.Context, userID, id int64) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM carts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return shop.Storage("delete cart line", err)
	}
	if ct.RowsAffected() == 0 {
		return shop.NotFound("cart line", id)
	}
	return nil
}

func (r *CartRepo) DeleteAll(ctx context.Context, userID int64) (int64, error) {
	ct, err := r.DB.Exec(ctx, `DELETE FROM carts WHERE user_id = $1`, userID)
	if err != nil {
		return 0, shop.Storage("clear cart", err)
	}
	return ct.RowsAffected(), nil
}
