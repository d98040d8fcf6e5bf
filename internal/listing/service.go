// Package listing serves the read side of the storefront plus the cart
// mutations that do not go through checkout.
package listing

import (
	"context"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront/internal/query"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/ariefcatur/go-storefront/internal/shop"
)

type Products interface {
	Get(ctx context.Context, id int64) (shop.Product, error)
	List(ctx context.Context, p query.Params) ([]shop.Product, error)
	Create(ctx context.Context, in shop.ProductInput) (shop.Product, error)
	Update(ctx context.Context, id int64, in shop.ProductInput) (shop.Product, error)
	Delete(ctx context.Context, id int64) error
}

type Carts interface {
	List(ctx context.Context, userID int64, p query.Params) ([]shop.CartLine, error)
	Upsert(ctx context.Context, userID, productID int64, qty int) (shop.CartLine, bool, error)
	Delete(ctx context.Context, userID, id int64) error
	DeleteAll(ctx context.Context, userID int64) (int64, error)
}

type Orders interface {
	List(ctx context.Context, userID int64, p query.Params) ([]shop.Order, error)
	Get(ctx context.Context, id int64) (shop.Order, error)
}

type Service struct {
	Products Products
	Carts    Carts
	Orders   Orders
	// Cache is optional; nil reads straight from the stores.
	Cache *redisx.Cache
	Log   *zap.Logger
}

func New(p Products, c Carts, o Orders, cache *redisx.Cache, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Products: p, Carts: c, Orders: o, Cache: cache, Log: log}
}

// ListProducts is cache-aside over the catalog. A Redis failure degrades to
// a direct read.
func (s *Service) ListProducts(ctx context.Context, p query.Params) ([]shop.Product, error) {
	var key string
	if s.Cache != nil {
		k, err := s.Cache.ProductListKey(ctx, p.Fingerprint())
		if err != nil {
			s.Log.Warn("product cache unavailable", zap.Error(err))
		} else {
			key = k
			var cached []shop.Product
			hit, err := s.Cache.GetJSON(ctx, key, &cached)
			if err != nil {
				s.Log.Warn("product cache read failed", zap.String("key", key), zap.Error(err))
			}
			if hit {
				return cached, nil
			}
		}
	}

	out, err := s.Products.List(ctx, p)
	if err != nil {
		return nil, err
	}
	if key != "" {
		if err := s.Cache.SetJSON(ctx, key, out, s.Cache.ProductTTL); err != nil {
			s.Log.Warn("product cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return out, nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (shop.Product, error) {
	if id <= 0 {
		return shop.Product{}, shop.Validation("product_id", "product_id must be a positive integer")
	}
	return s.Products.Get(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, in shop.ProductInput) (shop.Product, error) {
	if err := in.Validate(); err != nil {
		return shop.Product{}, err
	}
	p, err := s.Products.Create(ctx, in)
	if err != nil {
		return shop.Product{}, err
	}
	s.catalogChanged(ctx)
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, in shop.ProductInput) (shop.Product, error) {
	if id <= 0 {
		return shop.Product{}, shop.Validation("product_id", "product_id must be a positive integer")
	}
	if err := in.Validate(); err != nil {
		return shop.Product{}, err
	}
	p, err := s.Products.Update(ctx, id, in)
	if err != nil {
		return shop.Product{}, err
	}
	s.catalogChanged(ctx)
	return p, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if id <= 0 {
		return shop.Validation("product_id", "product_id must be a positive integer")
	}
	if err := s.Products.Delete(ctx, id); err != nil {
		return err
	}
	s.catalogChanged(ctx)
	return nil
}

// catalogChanged retires every cached product page. Stale pages left behind
// by a Redis failure expire on their TTL.
func (s *Service) catalogChanged(ctx context.Context) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.BumpProducts(ctx); err != nil {
		s.Log.Warn("product cache invalidation failed", zap.Error(err))
	}
}

// ListCarts lists the caller's cart; admins see every user's lines.
func (s *Service) ListCarts(ctx context.Context, c shop.Caller, p query.Params) ([]shop.CartLine, error) {
	return s.Carts.List(ctx, scopeOf(c), p)
}

// ListOrders lists the caller's order headers; admins see every order.
func (s *Service) ListOrders(ctx context.Context, c shop.Caller, p query.Params) ([]shop.Order, error) {
	return s.Orders.List(ctx, scopeOf(c), p)
}

// GetOrder returns the order with its lines. Orders of other users are
// reported as not found unless the caller is an admin.
func (s *Service) GetOrder(ctx context.Context, c shop.Caller, id int64) (shop.Order, error) {
	if id <= 0 {
		return shop.Order{}, shop.Validation("order_id", "order_id must be a positive integer")
	}

	var (
		o   shop.Order
		hit bool
	)
	if s.Cache != nil {
		var err error
		hit, err = s.Cache.GetJSON(ctx, s.Cache.OrderKey(id), &o)
		if err != nil {
			s.Log.Warn("order cache read failed", zap.Int64("order_id", id), zap.Error(err))
		}
	}
	if !hit {
		var err error
		if o, err = s.Orders.Get(ctx, id); err != nil {
			return shop.Order{}, err
		}
		if s.Cache != nil {
			if err := s.Cache.SetJSON(ctx, s.Cache.OrderKey(id), o, redisx.TTLOrderDetail); err != nil {
				s.Log.Warn("order cache write failed", zap.Int64("order_id", id), zap.Error(err))
			}
		}
	}

	if !c.IsAdmin() && o.UserID != c.UserID {
		return shop.Order{}, shop.NotFound("order", id)
	}
	return o, nil
}

// ForgetOrders drops cached order detail after a cancellation.
func (s *Service) ForgetOrders(ctx context.Context, ids ...int64) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.InvalidateOrders(ctx, ids...); err != nil {
		s.Log.Warn("order cache invalidation failed", zap.Int64s("order_ids", ids), zap.Error(err))
	}
}

// AddToCart puts qty of a product in the user's cart, replacing the quantity
// of an existing line for the same product. Stock is checked but not held.
func (s *Service) AddToCart(ctx context.Context, userID, productID int64, qty int) (line shop.CartLine, created bool, err error) {
	if userID <= 0 {
		return shop.CartLine{}, false, shop.Validation("user_id", "user_id must be a positive integer")
	}
	if productID <= 0 {
		return shop.CartLine{}, false, shop.Validation("product_id", "product_id must be a positive integer")
	}
	if qty <= 0 {
		return shop.CartLine{}, false, shop.Validation("quantity", "quantity must be greater than 0")
	}

	p, err := s.Products.Get(ctx, productID)
	if err != nil {
		return shop.CartLine{}, false, err
	}
	if p.Quantity < qty {
		return shop.CartLine{}, false, shop.InsufficientStock(p.ID, p.Name, p.Quantity)
	}
	return s.Carts.Upsert(ctx, userID, productID, qty)
}

func (s *Service) RemoveCartLine(ctx context.Context, userID, id int64) error {
	if id <= 0 {
		return shop.Validation("cart_id", "cart_id must be a positive integer")
	}
	return s.Carts.Delete(ctx, userID, id)
}

func (s *Service) ClearCart(ctx context.Context, userID int64) (int64, error) {
	return s.Carts.DeleteAll(ctx, userID)
}

func scopeOf(c shop.Caller) int64 {
	if c.IsAdmin() {
		return 0
	}
	return c.UserID
}
