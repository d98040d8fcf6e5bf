package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront/internal/checkout"
	"github.com/ariefcatur/go-storefront/internal/query"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/ariefcatur/go-storefront/internal/shop"
)

type Checkout interface {
	PlaceOrder(ctx context.Context, in checkout.PlaceOrderInput) (shop.Placed, error)
	PlaceOrderFromCart(ctx context.Context, in checkout.CartCheckoutInput) (shop.Placed, error)
	CancelOrder(ctx context.Context, userID, orderID int64) error
	CancelOrderAsAdmin(ctx context.Context, orderID int64) error
	DeleteOrdersForUser(ctx context.Context, userID int64) ([]int64, error)
}

type OrderReader interface {
	ListOrders(ctx context.Context, c shop.Caller, p query.Params) ([]shop.Order, error)
	GetOrder(ctx context.Context, c shop.Caller, id int64) (shop.Order, error)
	ForgetOrders(ctx context.Context, ids ...int64)
}

type Idempotency interface {
	BeginIdempotent(ctx context.Context, userID int64, key, fingerprint string) (redisx.IdemState, []byte, error)
	CompleteIdempotent(ctx context.Context, userID int64, key, fingerprint string, body []byte) error
	AbortIdempotent(ctx context.Context, userID int64, key string) error
}

type OrdersHandler struct {
	Checkout        Checkout
	Orders          OrderReader
	Idem            Idempotency // optional
	Log             *zap.Logger
	Timeout         time.Duration
	DefaultPageSize int
}

type contact struct {
	Address     string `json:"address"`
	Fullname    string `json:"fullname"`
	PhoneNumber string `json:"phone_number"`
}

type placeOrderReq struct {
	contact
	Items []shop.LineItem `json:"items"`
}

type cartCheckoutReq struct {
	contact
	CartLineIDs []int64 `json:"cart_line_ids"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/orders", h.list)
	r.Get("/orders/{id}", h.get)
	r.Post("/orders", h.placeOrder)
	r.Post("/orders/cart", h.placeFromCart)
	r.Delete("/orders/{id}", h.cancel)
	r.Delete("/orders", h.purge)
}

func (h *OrdersHandler) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	p, err := query.FromValues(r.URL.Query(), h.DefaultPageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	orders, err := h.Orders.ListOrders(r.Context(), caller(r), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "order_id")
	if err != nil {
		writeError(w, err)
		return
	}
	o, err := h.Orders.GetOrder(r.Context(), caller(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderReq
	if isJSON(r) {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, shop.Validation("body", "malformed form body"))
			return
		}
		items, err := formItems(r.PostForm["product_id"], r.PostForm["quantity"])
		if err != nil {
			writeError(w, err)
			return
		}
		req = placeOrderReq{contact: formContact(r), Items: items}
	}

	c := caller(r)
	h.idempotent(w, r, c.UserID, req, func(ctx context.Context) (shop.Placed, error) {
		return h.Checkout.PlaceOrder(ctx, checkout.PlaceOrderInput{
			UserID:      c.UserID,
			Address:     req.Address,
			Fullname:    req.Fullname,
			PhoneNumber: req.PhoneNumber,
			Items:       req.Items,
		})
	})
}

func (h *OrdersHandler) placeFromCart(w http.ResponseWriter, r *http.Request) {
	var req cartCheckoutReq
	if isJSON(r) {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, shop.Validation("body", "malformed form body"))
			return
		}
		ids, err := formIDs("cart_id", r.PostForm["cart_id"])
		if err != nil {
			writeError(w, err)
			return
		}
		req = cartCheckoutReq{contact: formContact(r), CartLineIDs: ids}
	}

	c := caller(r)
	h.idempotent(w, r, c.UserID, req, func(ctx context.Context) (shop.Placed, error) {
		return h.Checkout.PlaceOrderFromCart(ctx, checkout.CartCheckoutInput{
			UserID:      c.UserID,
			Address:     req.Address,
			Fullname:    req.Fullname,
			PhoneNumber: req.PhoneNumber,
			CartLineIDs: req.CartLineIDs,
		})
	})
}

// idempotent runs place at most once per (user, Idempotency-Key). A replay
// returns the stored response; a concurrent duplicate gets 409 and a key
// reused for a different request gets 422. Failed attempts release the key
// so the client can retry. Without a key, or when Redis is unreachable, place
// simply runs.
func (h *OrdersHandler) idempotent(w http.ResponseWriter, r *http.Request, userID int64, req any, place func(context.Context) (shop.Placed, error)) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	var fp string
	if key != "" && h.Idem != nil {
		canon, err := json.Marshal(req)
		if err != nil {
			writeError(w, err)
			return
		}
		fp = redisx.RequestFingerprint([]byte(r.URL.Path), canon)
		state, stored, err := h.Idem.BeginIdempotent(ctx, userID, key, fp)
		switch {
		case err != nil:
			h.log().Warn("idempotency store unavailable", zap.Error(err),
				zap.String("request_id", middleware.GetReqID(r.Context())))
			key = ""
		case state == redisx.IdemMismatch:
			writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "idempotency_key_reused", Message: "this Idempotency-Key was used for a different request"})
			return
		case state == redisx.IdemPending:
			writeJSON(w, http.StatusConflict, errorBody{Error: "request_in_progress", Message: "a request with this Idempotency-Key is still running"})
			return
		case state == redisx.IdemDone:
			w.Header().Set("Idempotent-Replayed", "true")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write(stored)
			return
		}
	} else {
		key = ""
	}

	placed, err := place(ctx)
	if err != nil {
		if key != "" {
			if aerr := h.Idem.AbortIdempotent(context.WithoutCancel(ctx), userID, key); aerr != nil {
				h.log().Warn("idempotency release failed", zap.Error(aerr))
			}
		}
		writeError(w, err)
		return
	}

	body, err := json.Marshal(placed)
	if err != nil {
		writeError(w, err)
		return
	}
	if key != "" {
		if err := h.Idem.CompleteIdempotent(context.WithoutCancel(ctx), userID, key, fp, body); err != nil {
			h.log().Warn("idempotency store failed", zap.Int64("order_id", placed.OrderID), zap.Error(err))
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "order_id")
	if err != nil {
		writeError(w, err)
		return
	}
	c := caller(r)
	if c.IsAdmin() {
		err = h.Checkout.CancelOrderAsAdmin(r.Context(), id)
	} else {
		err = h.Checkout.CancelOrder(r.Context(), c.UserID, id)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	h.Orders.ForgetOrders(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

// purge deletes every order of the caller. Admins may name another user
// with ?user_id=.
func (h *OrdersHandler) purge(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	target := c.UserID
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := shop.ParseID("user_id", raw)
		if err != nil {
			writeError(w, err)
			return
		}
		if id != c.UserID && !c.IsAdmin() {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden", Message: "only admins may delete another user's orders"})
			return
		}
		target = id
	}

	ids, err := h.Checkout.DeleteOrdersForUser(r.Context(), target)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(ids) > 0 {
		h.Orders.ForgetOrders(r.Context(), ids...)
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": len(ids)})
}

func formContact(r *http.Request) contact {
	return contact{
		Address:     r.PostForm.Get("address"),
		Fullname:    r.PostForm.Get("fullname"),
		PhoneNumber: r.PostForm.Get("phone_number"),
	}
}
