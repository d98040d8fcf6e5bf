package checkout_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-storefront/internal/checkout"
	"github.com/ariefcatur/go-storefront/internal/metrics"
	"github.com/ariefcatur/go-storefront/internal/shop"
)

const (
	productP = int64(1)
	productQ = int64(2)
	alice    = int64(7)
	bob      = int64(8)
)

func newEngine(t *testing.T, store *memStore) (*checkout.Engine, *metrics.Checkout) {
	t.Helper()
	m := metrics.NewCheckout(prometheus.NewRegistry())
	e := checkout.NewEngine(store, zaptest.NewLogger(t), m, "storefront-test")
	e.Now = func() time.Time { return store.now }
	return e, m
}

func orderFor(user int64, items ...shop.LineItem) checkout.PlaceOrderInput {
	return checkout.PlaceOrderInput{
		UserID:      user,
		Address:     "Jl. Sudirman 1",
		Fullname:    "Alice Doe",
		PhoneNumber: "0812",
		Items:       items,
	}
}

func item(id int64, qty int) shop.LineItem { return shop.LineItem{ProductID: id, Quantity: qty} }

func TestPlaceOrderReservesStockAndSnapshotsPrice(t *testing.T) {
	store := newMemStore()
	store.addProduct(productP, "Kopi", 1000, 5)
	e, m := newEngine(t, store)

	placed, err := e.PlaceOrder(context.Background(), orderFor(alice, item(productP, 3)))
	require.NoError(t, err)

	state := store.snapshot()
	assert.Equal(t, 2, state.Products[productP].Quantity)
	require.Len(t, placed.Lines, 1)
	assert.Equal(t, int64(3000), placed.Lines[0].Subtotal)
	assert.Equal(t, int64(1000), placed.Lines[0].UnitPrice)
	assert.Equal(t, int64(3000), placed.Total)
	assert.Equal(t, placed.Lines, state.linesOf(placed.OrderID))

	order := state.Orders[placed.OrderID]
	assert.Equal(t, alice, order.UserID)
	assert.Equal(t, "Alice Doe", order.Fullname)

	require.Len(t, state.Outbox, 1)
	ev := state.Outbox[0]
	assert.Equal(t, shop.TopicOrderPlaced, ev.Topic)
	assert.Equal(t, "7", ev.Key)
	payload, err := shop.Decode[shop.OrderPlacedPayload](ev.Env)
	require.NoError(t, err)
	assert.Equal(t, placed.OrderID, payload.OrderID)
	assert.Equal(t, int64(3000), payload.Total)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Outcomes.WithLabelValues("items", "ok")))
}

func TestPlaceOrderInsufficientStockLeavesNothing(t *testing.T) {
	store := newMemStore()
	store.addProduct(productP, "Kopi", 1000, 2)
	e, m := newEngine(t, store)
	before := store.snapshot()

	_, err := e.PlaceOrder(context.Background(), orderFor(alice, item(productP, 5)))

	require.ErrorIs(t, err, shop.ErrInsufficientStock)
	var se *shop.Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, productP, se.ProductID)
	assert.Equal(t, 2, se.Available)
	assert.Equal(t, before, store.snapshot())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Outcomes.WithLabelValues("items", "insufficient_stock")))
}

func TestPlaceOrderAccumulatesDuplicateProducts(t *testing.T) {
	store := newMemStore()
	store.addProduct(productP, "Kopi", 1000, 3)
	e, _ := newEngine(t, store)
	before := store.snapshot()

	_, err := e.PlaceOrder(context.Background(), orderFor(alice, item(productP, 2), item(productP, 2)))

	var se *shop.Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, shop.KindInsufficientStock, se.Kind)
	assert.Equal(t, 1, se.Available)
	assert.Equal(t, before, store.snapshot())
}

func TestPlaceOrderDuplicateProductsWithinStock(t *testing.T) {
	store := newMemStore()
	store.addProduct(productP, "Kopi", 1000, 4)
	e, _ := newEngine(t, store)

	placed, err := e.PlaceOrder(context.Background(), orderFor(alice, item(productP, 2), item(productP, 2)))
	require.NoError(t, err)
	assert.Len(t, placed.Lines, 2)
	assert.Equal(t, 0, store.snapshot().Products[productP].Quantity)
}

func TestPlaceOrderUnknownProductRollsBackEarlierLines(t *testing.T) {
	store := newMemStore()
	store.addProduct(productP, "Kopi", 1000, 5)
	e, _ := newEngine(t, store)
	before := store.snapshot()

	_, err := e.PlaceOrder(context.Background(), orderFor(alice, item(productP, 1), item(99, 1)))

	require.ErrorIs(t, err, shop.ErrNotFound)
	assert.Equal(t, before, store.snapshot())
}

func TestPlaceOrderStorageFailureMidway(t *testing.T) {
	store := newMemStore()
	store.addProduct(productP, "Kopi", 1000, 5)
	store.addProduct(productQ, "Teh", 500, 5)
	store.fail["InsertOrderLine"] = 2
	e, m := newEngine(t, store)
	before := store.snapshot()

	_, err := e.PlaceOrder(context.Background(), orderFor(alice, item(productP, 1), item(productQ, 1)))

	require.ErrorIs(t, err, shop.ErrStorage)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, before, store.snapshot())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Outcomes.WithLabelValues("items", "storage_error")))
}

func TestPlaceOrderValidationTouchesNoStorage(t *testing.T) {
	cases := []struct {
		name  string
		in    checkout.PlaceOrderInput
		field string
	}{
		{"no items", orderFor(alice), "items"},
		{"zero quantity", orderFor(alice, item(productP, 0)), "quantity"},
		{"negative quantity", orderFor(alice, item(productP, -1)), "quantity"},
		{"quantity over cap", orderFor(alice, item(productP, checkout.MaxLineQuantity+1)), "quantity"},
		{"bad product", orderFor(alice, item(0, 1)), "product_id"},
		{"no user", orderFor(0, item(productP, 1)), "user_id"},
		{"blank address", func() checkout.PlaceOrderInput {
			in := orderFor(alice, item(productP, 1))
			in.Address = "   "
			return in
		}(), "address"},
		{"blank fullname", func() checkout.PlaceOrderInput {
			in := orderFor(alice, item(productP, 1))
			in.Fullname = ""
			return in
		}(), "fullname"},
		{"blank phone", func() checkout.PlaceOrderInput {
			in := orderFor(alice, item(productP, 1))
			in.PhoneNumber = "\t"
			return in
		}(), "phone_number"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore()
			store.addProduct(productP, "Kopi", 1000, 5)
			e, _ := newEngine(t, store)

			_, err := e.PlaceOrder(context.Background(), tc.in)

			var se *shop.Error
			require.True(t, errors.As(err, &se))
			assert.Equal(t, shop.KindValidation, se.Kind)
			assert.Equal(t, tc.field, se.Field)
			assert.Zero(t, store.txCount)
		})
	}
}

func TestPlaceOrderTotalOverflow(t *testing.T) {
	store := newMemStore()
	store.addProduct(productP, "Emas", 1<<62, 10)
	e, _ := newEngine(t, store)
	before := store.snapshot()

	_, err := e.PlaceOrder(context.Background(), orderFor(alice, item(productP, 4)))

	require.ErrorIs(t, err, shop.ErrValidation)
	assert.Equal(t, before, store.snapshot())
}

func TestPlaceOrderFromCart(t *testing.T) {
	store := newMemStore()
	store.addProduct(productP, "Kopi", 1000, 5)
	store.addProduct(productQ, "Teh", 500, 3)
	store.addCart(11, alice, productP, 2)
	store.addCart(12, alice, productQ, 1)
	store.addCart(13, alice, productQ, 1)
	e, _ := newEngine(t, store)

	placed, err := e.PlaceOrderFromCart(context.Background(), checkout.CartCheckoutInput{
		UserID: alice, Address: "Jl. Sudirman 1", Fullname: "Alice Doe", PhoneNumber: "0812",
		CartLineIDs: []int64{11, 12},
	})
	require.NoError(t, err)

	state := store.snapshot()
	require.Len(t, placed.Lines, 2)
	assert.Equal(t, productP, placed.Lines[0].ProductID)
	assert.Equal(t, productQ, placed.Lines[1].ProductID)
	assert.Equal(t, int64(2500), placed.Total)
	assert.Equal(t, 3, state.Products[productP].Quantity)
	assert.Equal(t, 2, state.Products[productQ].Quantity)
	assert.NotContains(t, state.Carts, int64(11))
	assert.NotContains(t, state.Carts, int64(12))
	assert.Contains(t, state.Carts, int64(13))

	payload, err := shop.Decode[shop.OrderPlacedPayload](state.Outbox[0].Env)
	require.NoError(t, err)
	assert.Equal(t, []int64{11, 12}, payload.CartLineIDs)
}

func TestPlaceOrderFromForeignCart(t *testing.T) {
	store := newMemStore()
	store.addProduct(productP, "Kopi", 1000, 5)
	store.addCart(11, alice, productP, 1)
	store.addCart(21, bob, productP, 1)
	e, _ := newEngine(t, store)
	before := store.snapshot()

	_, err := e.PlaceOrderFromCart(context.Background(), checkout.CartCheckoutInput{
		UserID: alice, Address: "a", Fullname: "b", PhoneNumber: "c",
		CartLineIDs: []int64{11, 21},
	})

	require.ErrorIs(t, err, shop.ErrNotFound)
	assert.Equal(t, before, store.snapshot())
}

func TestPlaceOrderFromCartRejectsDuplicateIDs(t *testing.T) {
	store := newMemStore()
	e, _ := newEngine(t, store)

	_, err := e.PlaceOrderFromCart(context.Background(), checkout.CartCheckoutInput{
		UserID: alice, Address: "a", Fullname: "b", PhoneNumber: "c",
		CartLineIDs: []int64{11, 11},
	})

	var se *shop.Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, shop.KindValidation, se.Kind)
	assert.Equal(t, "cart_id", se.Field)
	assert.Zero(t, store.txCount)
}

func TestConcurrentCheckoutOfLastUnit(t *testing.T) {
	store := newMemStore()
	store.addProduct(productP, "Kopi", 1000, 1)
	e, _ := newEngine(t, store)

	var (
		mu   sync.Mutex
		errs []error
	)
	var g errgroup.Group
	for _, user := range []int64{alice, bob} {
		g.Go(func() error {
			_, err := e.PlaceOrder(context.Background(), orderFor(user, item(productP, 1)))
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, shop.ErrInsufficientStock):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
	state := store.snapshot()
	assert.Equal(t, 0, state.Products[productP].Quantity)
	assert.Len(t, state.Orders, 1)
}

func TestCancelOrder(t *testing.T) {
	store := newMemStore()
	store.addProduct(productP, "Kopi", 1000, 5)
	e, _ := newEngine(t, store)
	ctx := context.Background()

	placed, err := e.PlaceOrder(ctx, orderFor(alice, item(productP, 2)))
	require.NoError(t, err)

	t.Run("other user sees not found", func(t *testing.T) {
		before := store.snapshot()
		err := e.CancelOrder(ctx, bob, placed.OrderID)
		require.ErrorIs(t, err, shop.ErrNotFound)
		assert.Equal(t, before, store.snapshot())
	})

	t.Run("owner cancels without restock", func(t *testing.T) {
		require.NoError(t, e.CancelOrder(ctx, alice, placed.OrderID))
		state := store.snapshot()
		assert.NotContains(t, state.Orders, placed.OrderID)
		assert.Empty(t, state.linesOf(placed.OrderID))
		assert.Equal(t, 3, state.Products[productP].Quantity)

		last := state.Outbox[len(state.Outbox)-1]
		assert.Equal(t, shop.EventOrderCancelled, last.Env.EventType)
		assert.Equal(t, shop.TopicOrderCancelled, last.Topic)
	})

	t.Run("missing order", func(t *testing.T) {
		require.ErrorIs(t, e.CancelOrder(ctx, alice, placed.OrderID), shop.ErrNotFound)
	})
}

func TestCancelOrderAsAdmin(t *testing.T) {
	store := newMemStore()
	store.addProduct(productP, "Kopi", 1000, 5)
	e, _ := newEngine(t, store)
	ctx := context.Background()

	placed, err := e.PlaceOrder(ctx, orderFor(alice, item(productP, 1)))
	require.NoError(t, err)

	require.NoError(t, e.CancelOrderAsAdmin(ctx, placed.OrderID))
	assert.Empty(t, store.snapshot().Orders)
	require.ErrorIs(t, e.CancelOrderAsAdmin(ctx, 0), shop.ErrValidation)
}

func TestDeleteOrdersForUser(t *testing.T) {
	store := newMemStore()
	store.addProduct(productP, "Kopi", 1000, 10)
	e, _ := newEngine(t, store)
	ctx := context.Background()

	for _, user := range []int64{alice, alice, bob} {
		_, err := e.PlaceOrder(ctx, orderFor(user, item(productP, 1)))
		require.NoError(t, err)
	}

	ids, err := e.DeleteOrdersForUser(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	state := store.snapshot()
	assert.Len(t, state.Orders, 1)
	last := state.Outbox[len(state.Outbox)-1]
	assert.Equal(t, shop.EventOrdersPurged, last.Env.EventType)
	purged, err := shop.Decode[shop.OrdersPurgedPayload](last.Env)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, purged.OrderIDs)

	ids, err = e.DeleteOrdersForUser(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Len(t, store.snapshot().Outbox, len(state.Outbox))
}
