package checkout

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront/internal/metrics"
	"github.com/ariefcatur/go-storefront/internal/shop"
)

// MaxLineQuantity caps a single line so price*qty stays well inside int64.
const MaxLineQuantity = 1_000_000

type PlaceOrderInput struct {
	UserID      int64
	Address     string
	Fullname    string
	PhoneNumber string
	Items       []shop.LineItem
}

type CartCheckoutInput struct {
	UserID      int64
	Address     string
	Fullname    string
	PhoneNumber string
	CartLineIDs []int64
}

// Engine turns a set of requested items into a committed order. Every call
// runs in one transaction: either the header, all lines, every stock
// decrement and the outbox event commit together, or nothing does.
type Engine struct {
	Store    Store
	Log      *zap.Logger
	Metrics  *metrics.Checkout
	Producer string
	Now      func() time.Time
}

func NewEngine(store Store, log *zap.Logger, m *metrics.Checkout, producer string) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{Store: store, Log: log, Metrics: m, Producer: producer, Now: time.Now}
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Engine) PlaceOrder(ctx context.Context, in PlaceOrderInput) (shop.Placed, error) {
	start := time.Now()
	placed, err := e.placeOrder(ctx, in)
	e.finish("items", in.UserID, start, placed, err)
	return placed, err
}

func (e *Engine) placeOrder(ctx context.Context, in PlaceOrderInput) (shop.Placed, error) {
	header, err := newHeader(in.UserID, in.Address, in.Fullname, in.PhoneNumber)
	if err != nil {
		return shop.Placed{}, err
	}
	if err := validateItems(in.Items); err != nil {
		return shop.Placed{}, err
	}

	var placed shop.Placed
	err = e.Store.InTx(ctx, func(tx Tx) error {
		var err error
		placed, err = e.place(ctx, tx, header, in.Items, nil)
		return err
	})
	if err != nil {
		return shop.Placed{}, shop.AsStorage("place order", err)
	}
	return placed, nil
}

func (e *Engine) PlaceOrderFromCart(ctx context.Context, in CartCheckoutInput) (shop.Placed, error) {
	start := time.Now()
	placed, err := e.placeFromCart(ctx, in)
	e.finish("cart", in.UserID, start, placed, err)
	return placed, err
}

func (e *Engine) placeFromCart(ctx context.Context, in CartCheckoutInput) (shop.Placed, error) {
	header, err := newHeader(in.UserID, in.Address, in.Fullname, in.PhoneNumber)
	if err != nil {
		return shop.Placed{}, err
	}
	if err := validateCartIDs(in.CartLineIDs); err != nil {
		return shop.Placed{}, err
	}

	var placed shop.Placed
	err = e.Store.InTx(ctx, func(tx Tx) error {
		items := make([]shop.LineItem, 0, len(in.CartLineIDs))
		for _, id := range in.CartLineIDs {
			line, err := tx.CartLineForUpdate(ctx, in.UserID, id)
			if err != nil {
				return err
			}
			if line.Quantity <= 0 || line.Quantity > MaxLineQuantity {
				return shop.Validation("cart_id", "cart line %d has an invalid quantity %d", id, line.Quantity)
			}
			items = append(items, shop.LineItem{ProductID: line.ProductID, Quantity: line.Quantity})
		}

		var err error
		placed, err = e.place(ctx, tx, header, items, in.CartLineIDs)
		return err
	})
	if err != nil {
		return shop.Placed{}, shop.AsStorage("place order from cart", err)
	}
	return placed, nil
}

// place writes the header, reserves and prices every item in request order,
// consumes the given cart lines and enqueues the OrderPlaced event.
func (e *Engine) place(ctx context.Context, tx Tx, header shop.Order, items []shop.LineItem, cartIDs []int64) (shop.Placed, error) {
	order := header
	if err := tx.CreateOrder(ctx, &order); err != nil {
		return shop.Placed{}, err
	}

	placed := shop.Placed{
		OrderID:   order.ID,
		CreatedAt: order.CreatedAt,
		Lines:     make([]shop.OrderLine, 0, len(items)),
	}
	for _, it := range items {
		p, err := tx.ReserveStock(ctx, it.ProductID, it.Quantity)
		if err != nil {
			return shop.Placed{}, err
		}
		subtotal, ok := mulPrice(p.Price, it.Quantity)
		if !ok || placed.Total > math.MaxInt64-subtotal {
			return shop.Placed{}, shop.Validation("quantity", "order total for product %d is out of range", it.ProductID)
		}
		line := shop.OrderLine{
			OrderID:   order.ID,
			ProductID: p.ID,
			UnitPrice: p.Price,
			Quantity:  it.Quantity,
			Subtotal:  subtotal,
		}
		if err := tx.InsertOrderLine(ctx, &line); err != nil {
			return shop.Placed{}, err
		}
		placed.Lines = append(placed.Lines, line)
		placed.Total += subtotal
	}

	if len(cartIDs) > 0 {
		n, err := tx.DeleteCartLines(ctx, order.UserID, cartIDs)
		if err != nil {
			return shop.Placed{}, err
		}
		if n != int64(len(cartIDs)) {
			return shop.Placed{}, shop.Storage("delete cart lines",
				fmt.Errorf("removed %d of %d locked lines", n, len(cartIDs)))
		}
	}

	env, err := shop.NewEnvelope(shop.EventOrderPlaced, e.Producer, order.ID, shop.OrderPlacedPayload{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Lines:       placed.Lines,
		Total:       placed.Total,
		CartLineIDs: cartIDs,
	}, e.now())
	if err != nil {
		return shop.Placed{}, err
	}
	if err := tx.EnqueueEvent(ctx, shop.TopicOrderPlaced, shop.PartitionKey(order.UserID), env); err != nil {
		return shop.Placed{}, err
	}
	return placed, nil
}

// CancelOrder deletes an order owned by userID. Orders of other users are
// reported as not found. Stock is not returned to inventory.
func (e *Engine) CancelOrder(ctx context.Context, userID, orderID int64) error {
	if userID <= 0 {
		return shop.Validation("user_id", "user_id must be a positive integer")
	}
	return e.cancel(ctx, userID, orderID)
}

// CancelOrderAsAdmin deletes any order regardless of owner.
func (e *Engine) CancelOrderAsAdmin(ctx context.Context, orderID int64) error {
	return e.cancel(ctx, 0, orderID)
}

func (e *Engine) cancel(ctx context.Context, userID, orderID int64) error {
	if orderID <= 0 {
		return shop.Validation("order_id", "order_id must be a positive integer")
	}
	err := e.Store.InTx(ctx, func(tx Tx) error {
		o, err := tx.DeleteOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if userID != 0 && o.UserID != userID {
			return shop.NotFound("order", orderID)
		}
		env, err := shop.NewEnvelope(shop.EventOrderCancelled, e.Producer, o.ID,
			shop.OrderCancelledPayload{OrderID: o.ID, UserID: o.UserID}, e.now())
		if err != nil {
			return err
		}
		return tx.EnqueueEvent(ctx, shop.TopicOrderCancelled, shop.PartitionKey(o.UserID), env)
	})
	if err != nil {
		err = shop.AsStorage("cancel order", err)
		e.logFailure("cancel order", err, zap.Int64("order_id", orderID), zap.Int64("user_id", userID))
		return err
	}
	e.Log.Info("order cancelled", zap.Int64("order_id", orderID))
	return nil
}

// DeleteOrdersForUser removes every order of userID and returns the ids it
// deleted.
func (e *Engine) DeleteOrdersForUser(ctx context.Context, userID int64) ([]int64, error) {
	if userID <= 0 {
		return nil, shop.Validation("user_id", "user_id must be a positive integer")
	}
	var deleted []int64
	err := e.Store.InTx(ctx, func(tx Tx) error {
		ids, err := tx.DeleteOrdersByUser(ctx, userID)
		if err != nil {
			return err
		}
		deleted = ids
		if len(ids) == 0 {
			return nil
		}
		env, err := shop.NewEnvelope(shop.EventOrdersPurged, e.Producer, 0,
			shop.OrdersPurgedPayload{UserID: userID, OrderIDs: ids}, e.now())
		if err != nil {
			return err
		}
		return tx.EnqueueEvent(ctx, shop.TopicOrderCancelled, shop.PartitionKey(userID), env)
	})
	if err != nil {
		err = shop.AsStorage("delete orders", err)
		e.logFailure("delete orders", err, zap.Int64("user_id", userID))
		return nil, err
	}
	e.Log.Info("orders deleted", zap.Int64("user_id", userID), zap.Int("deleted", len(deleted)))
	return deleted, nil
}

func (e *Engine) finish(entry string, userID int64, start time.Time, placed shop.Placed, err error) {
	elapsed := time.Since(start)
	if err != nil {
		e.Metrics.Observe(entry, shop.KindOf(err).String(), elapsed)
		e.logFailure("checkout", err, zap.String("entry", entry), zap.Int64("user_id", userID))
		return
	}
	e.Metrics.Observe(entry, "ok", elapsed)
	e.Log.Info("order placed",
		zap.String("entry", entry),
		zap.Int64("order_id", placed.OrderID),
		zap.Int64("user_id", userID),
		zap.Int("lines", len(placed.Lines)),
		zap.Int64("total", placed.Total),
		zap.Duration("took", elapsed),
	)
}

func (e *Engine) logFailure(op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("kind", shop.KindOf(err).String()), zap.Error(err))
	if shop.KindOf(err) == shop.KindStorage {
		e.Log.Error(op+" failed", fields...)
		return
	}
	e.Log.Warn(op+" rejected", fields...)
}

func newHeader(userID int64, address, fullname, phone string) (shop.Order, error) {
	if userID <= 0 {
		return shop.Order{}, shop.Validation("user_id", "user_id must be a positive integer")
	}
	address = strings.TrimSpace(address)
	fullname = strings.TrimSpace(fullname)
	phone = strings.TrimSpace(phone)
	switch {
	case address == "":
		return shop.Order{}, shop.Validation("address", "address is required")
	case fullname == "":
		return shop.Order{}, shop.Validation("fullname", "fullname is required")
	case phone == "":
		return shop.Order{}, shop.Validation("phone_number", "phone_number is required")
	}
	return shop.Order{UserID: userID, Address: address, Fullname: fullname, PhoneNumber: phone}, nil
}

func validateItems(items []shop.LineItem) error {
	if len(items) == 0 {
		return shop.Validation("items", "at least one item is required")
	}
	for i, it := range items {
		if it.ProductID <= 0 {
			return shop.Validation("product_id", "item %d: product_id must be a positive integer", i+1)
		}
		if err := validateQuantity(i, it.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func validateQuantity(i, qty int) error {
	if qty <= 0 {
		return shop.Validation("quantity", "item %d: quantity must be greater than 0", i+1)
	}
	if qty > MaxLineQuantity {
		return shop.Validation("quantity", "item %d: quantity must not exceed %d", i+1, MaxLineQuantity)
	}
	return nil
}

func validateCartIDs(ids []int64) error {
	if len(ids) == 0 {
		return shop.Validation("cart_id", "at least one cart_id is required")
	}
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return shop.Validation("cart_id", "cart_id must be a positive integer")
		}
		if _, dup := seen[id]; dup {
			return shop.Validation("cart_id", "cart_id %d is listed more than once", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func mulPrice(price int64, qty int) (int64, bool) {
	if price < 0 {
		return 0, false
	}
	if price != 0 && int64(qty) > math.MaxInt64/price {
		return 0, false
	}
	return price * int64(qty), true
}
