package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ariefcatur/go-storefront/internal/query"
	"github.com/ariefcatur/go-storefront/internal/shop"
)

type ProductRepo struct {
	DB    DBTX
	Table query.Table
}

func NewProductRepo(db DBTX, maxPageSize int) *ProductRepo {
	return &ProductRepo{DB: db, Table: query.Products(maxPageSize)}
}

func (r *ProductRepo) Get(ctx context.Context, id int64) (shop.Product, error) {
	var p shop.Product
	err := r.DB.QueryRow(ctx, `
		SELECT p.id, p.name, p.description, p.price, p.quantity, p.category_id, COALESCE(c.name, ''), p.created_at
		FROM products p LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Quantity, &p.CategoryID, &p.Category, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.Product{}, shop.NotFound("product", id)
	}
	if err != nil {
		return shop.Product{}, shop.Storage("load product", err)
	}
	return p, nil
}

func (r *ProductRepo) List(ctx context.Context, p query.Params) ([]shop.Product, error) {
	sql, args, err := r.Table.Build(p)
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, shop.Storage("list products", err)
	}
	defer rows.Close()

	out := make([]shop.Product, 0)
	for rows.Next() {
		var p shop.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Quantity, &p.CategoryID, &p.Category, &p.CreatedAt); err != nil {
			return nil, shop.Storage("scan product", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, shop.Storage("list products", err)
	}
	return out, nil
}

const pgForeignKeyViolation = "23503"

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

// categoryErr reports a missing category for a write that named one.
func categoryErr(in shop.ProductInput, op string, err error) error {
	if in.CategoryID != nil && isForeignKeyViolation(err) {
		return shop.NotFound("category", *in.CategoryID)
	}
	return shop.Storage(op, err)
}

func (r *ProductRepo) Create(ctx context.Context, in shop.ProductInput) (shop.Product, error) {
	var id int64
	err := r.DB.QueryRow(ctx, `
		INSERT INTO products (name, description, price, quantity, category_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		in.Name, in.Description, in.Price, in.Quantity, in.CategoryID,
	).Scan(&id)
	if err != nil {
		return shop.Product{}, categoryErr(in, "create product", err)
	}
	return r.Get(ctx, id)
}

// Update replaces every writable field. Order lines keep the price they were
// placed at.
func (r *ProductRepo) Update(ctx context.Context, id int64, in shop.ProductInput) (shop.Product, error) {
	tag, err := r.DB.Exec(ctx, `
		UPDATE products
		SET name = $2, description = $3, price = $4, quantity = $5, category_id = $6
		WHERE id = $1`,
		id, in.Name, in.Description, in.Price, in.Quantity, in.CategoryID)
	if err != nil {
		return shop.Product{}, categoryErr(in, "update product", err)
	}
	if tag.RowsAffected() == 0 {
		return shop.Product{}, shop.NotFound("product", id)
	}
	return r.Get(ctx, id)
}

// Delete removes a product and its cart lines. A product that any order line
// references cannot be deleted.
func (r *ProductRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if isForeignKeyViolation(err) {
		return shop.ProductInUse(id)
	}
	if err != nil {
		return shop.Storage("delete product", err)
	}
	if tag.RowsAffected() == 0 {
		return shop.NotFound("product", id)
	}
	return nil
}
