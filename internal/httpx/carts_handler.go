package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront/internal/query"
	"github.com/ariefcatur/go-storefront/internal/shop"
)

type CartService interface {
	ListCarts(ctx context.Context, c shop.Caller, p query.Params) ([]shop.CartLine, error)
	AddToCart(ctx context.Context, userID, productID int64, qty int) (shop.CartLine, bool, error)
	RemoveCartLine(ctx context.Context, userID, id int64) error
	ClearCart(ctx context.Context, userID int64) (int64, error)
}

type CartsHandler struct {
	Carts           CartService
	DefaultPageSize int
}

type addToCartReq struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func (h *CartsHandler) Register(r chi.Router) {
	r.Get("/carts", h.list)
	r.Post("/carts", h.add)
	r.Delete("/carts", h.clear)
	r.Delete("/carts/{id}", h.remove)
}

func (h *CartsHandler) list(w http.ResponseWriter, r *http.Request) {
	p, err := query.FromValues(r.URL.Query(), h.DefaultPageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	lines, err := h.Carts.ListCarts(r.Context(), caller(r), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

func (h *CartsHandler) add(w http.ResponseWriter, r *http.Request) {
	var req addToCartReq
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
		if len(items) != 1 {
			writeError(w, shop.Validation("product_id", "exactly one product_id is required"))
			return
		}
		req = addToCartReq{ProductID: items[0].ProductID, Quantity: items[0].Quantity}
	}

	line, created, err := h.Carts.AddToCart(r.Context(), caller(r).UserID, req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	writeJSON(w, code, line)
}

func (h *CartsHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "cart_id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Carts.RemoveCartLine(r.Context(), caller(r).UserID, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartsHandler) clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.Carts.ClearCart(r.Context(), caller(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}
