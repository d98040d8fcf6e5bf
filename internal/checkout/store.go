package checkout

import (
	"context"

	"github.com/ariefcatur/go-storefront/internal/shop"
)

// Store runs fn inside one storage transaction. The transaction commits only
// when fn returns nil and is rolled back on every other exit, panics included.
type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error
}

// Tx is the set of writes the engine performs inside a transaction. Reads
// through a Tx observe the transaction's own earlier writes.
type Tx interface {
	// CreateOrder inserts the header and fills ID and CreatedAt.
	CreateOrder(ctx context.Context, o *shop.Order) error
	// ReserveStock decrements the product's quantity by qty if and only if
	// enough is available, returning the product as it was priced. Fails with
	// NotFound or InsufficientStock, never leaving a negative quantity.
	ReserveStock(ctx context.Context, productID int64, qty int) (shop.Product, error)
	InsertOrderLine(ctx context.Context, l *shop.OrderLine) error
	// CartLineForUpdate loads and locks a cart line owned by userID.
	CartLineForUpdate(ctx context.Context, userID, cartLineID int64) (shop.CartLine, error)
	DeleteCartLines(ctx context.Context, userID int64, ids []int64) (int64, error)
	// DeleteOrder removes the header (lines cascade) and returns it.
	DeleteOrder(ctx context.Context, orderID int64) (shop.Order, error)
	// DeleteOrdersByUser removes every order of userID and returns their ids.
	DeleteOrdersByUser(ctx context.Context, userID int64) ([]int64, error)
	EnqueueEvent(ctx context.Context, topic string, key []byte, env shop.Envelope) error
}
