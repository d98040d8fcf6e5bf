package checkout_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-storefront/internal/checkout"
	"github.com/ariefcatur/go-storefront/internal/shop"
)

var errDiskFull = errors.New("disk full")

type outboxRow struct {
	Topic string
	Key   string
	Env   shop.Envelope
}

type memState struct {
	Products map[int64]shop.Product
	Carts    map[int64]shop.CartLine
	Orders   map[int64]shop.Order
	Lines    map[int64]shop.OrderLine
	Outbox   []outboxRow
	NextID   int64
}

func (s memState) clone() memState {
	c := memState{
		Products: make(map[int64]shop.Product, len(s.Products)),
		Carts:    make(map[int64]shop.CartLine, len(s.Carts)),
		Orders:   make(map[int64]shop.Order, len(s.Orders)),
		Lines:    make(map[int64]shop.OrderLine, len(s.Lines)),
		Outbox:   append([]outboxRow(nil), s.Outbox...),
		NextID:   s.NextID,
	}
	for k, v := range s.Products {
		c.Products[k] = v
	}
	for k, v := range s.Carts {
		c.Carts[k] = v
	}
	for k, v := range s.Orders {
		c.Orders[k] = v
	}
	for k, v := range s.Lines {
		c.Lines[k] = v
	}
	return c
}

// memStore serializes transactions and commits a copy of the state only
// when the body succeeds.
type memStore struct {
	mu    sync.Mutex
	state memState
	// fail makes the nth call (1-based) of the named operation return errDiskFull.
	fail    map[string]int
	txCount int
	now     time.Time
}

var _ checkout.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		state: memState{
			Products: map[int64]shop.Product{},
			Carts:    map[int64]shop.CartLine{},
			Orders:   map[int64]shop.Order{},
			Lines:    map[int64]shop.OrderLine{},
			NextID:   100,
		},
		fail: map[string]int{},
		now:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) addProduct(id int64, name string, price int64, qty int) {
	m.state.Products[id] = shop.Product{ID: id, Name: name, Price: price, Quantity: qty}
}

func (m *memStore) addCart(id, userID, productID int64, qty int) {
	m.state.Carts[id] = shop.CartLine{ID: id, UserID: userID, ProductID: productID, Quantity: qty}
}

func (m *memStore) snapshot() memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *memStore) InTx(ctx context.Context, fn func(checkout.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCount++

	work := m.state.clone()
	tx := &memTx{s: &work, store: m, calls: map[string]int{}}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = work
	return nil
}

type memTx struct {
	s     *memState
	store *memStore
	calls map[string]int
}

func (t *memTx) hit(op string) error {
	t.calls[op]++
	if n, ok := t.store.fail[op]; ok && n == t.calls[op] {
		return shop.Storage(op, errDiskFull)
	}
	return nil
}

func (t *memTx) id() int64 {
	t.s.NextID++
	return t.s.NextID
}

func (t *memTx) CreateOrder(_ context.Context, o *shop.Order) error {
	if err := t.hit("CreateOrder"); err != nil {
		return err
	}
	o.ID = t.id()
	o.CreatedAt = t.store.now
	t.s.Orders[o.ID] = *o
	return nil
}

func (t *memTx) ReserveStock(_ context.Context, productID int64, qty int) (shop.Product, error) {
	if err := t.hit("ReserveStock"); err != nil {
		return shop.Product{}, err
	}
	p, ok := t.s.Products[productID]
	if !ok {
		return shop.Product{}, shop.NotFound("product", productID)
	}
	if p.Quantity < qty {
		return shop.Product{}, shop.InsufficientStock(productID, p.Name, p.Quantity)
	}
	p.Quantity -= qty
	t.s.Products[productID] = p
	return p, nil
}

func (t *memTx) InsertOrderLine(_ context.Context, l *shop.OrderLine) error {
	if err := t.hit("InsertOrderLine"); err != nil {
		return err
	}
	l.ID = t.id()
	t.s.Lines[l.ID] = *l
	return nil
}

func (t *memTx) CartLineForUpdate(_ context.Context, userID, cartLineID int64) (shop.CartLine, error) {
	if err := t.hit("CartLineForUpdate"); err != nil {
		return shop.CartLine{}, err
	}
	c, ok := t.s.Carts[cartLineID]
	if !ok || c.UserID != userID {
		return shop.CartLine{}, shop.NotFound("cart line", cartLineID)
	}
	return c, nil
}

func (t *memTx) DeleteCartLines(_ context.Context, userID int64, ids []int64) (int64, error) {
	if err := t.hit("DeleteCartLines"); err != nil {
		return 0, err
	}
	var n int64
	for _, id := range ids {
		if c, ok := t.s.Carts[id]; ok && c.UserID == userID {
			delete(t.s.Carts, id)
			n++
		}
	}
	return n, nil
}

func (t *memTx) DeleteOrder(_ context.Context, orderID int64) (shop.Order, error) {
	if err := t.hit("DeleteOrder"); err != nil {
		return shop.Order{}, err
	}
	o, ok := t.s.Orders[orderID]
	if !ok {
		return shop.Order{}, shop.NotFound("order", orderID)
	}
	delete(t.s.Orders, orderID)
	for id, l := range t.s.Lines {
		if l.OrderID == orderID {
			delete(t.s.Lines, id)
		}
	}
	return o, nil
}

func (t *memTx) DeleteOrdersByUser(_ context.Context, userID int64) ([]int64, error) {
	if err := t.hit("DeleteOrdersByUser"); err != nil {
		return nil, err
	}
	var ids []int64
	for id, o := range t.s.Orders {
		if o.UserID != userID {
			continue
		}
		delete(t.s.Orders, id)
		for lid, l := range t.s.Lines {
			if l.OrderID == id {
				delete(t.s.Lines, lid)
			}
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (t *memTx) EnqueueEvent(_ context.Context, topic string, key []byte, env shop.Envelope) error {
	if err := t.hit("EnqueueEvent"); err != nil {
		return err
	}
	t.s.Outbox = append(t.s.Outbox, outboxRow{Topic: topic, Key: string(key), Env: env})
	return nil
}

// linesOf returns the persisted lines of an order sorted by id.
func (s memState) linesOf(orderID int64) []shop.OrderLine {
	var out []shop.OrderLine
	for _, l := range s.Lines {
		if l.OrderID == orderID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
