package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront/internal/query"
	"github.com/ariefcatur/go-storefront/internal/shop"
)

type Catalog interface {
	ListProducts(ctx context.Context, p query.Params) ([]shop.Product, error)
	GetProduct(ctx context.Context, id int64) (shop.Product, error)
}

type CatalogAdmin interface {
	CreateProduct(ctx context.Context, in shop.ProductInput) (shop.Product, error)
	UpdateProduct(ctx context.Context, id int64, in shop.ProductInput) (shop.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

type ProductsHandler struct {
	Catalog Catalog
	// Admin enables the product write routes when set.
	Admin           CatalogAdmin
	DefaultPageSize int
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Get("/products", h.list)
	r.Get("/products/{id}", h.get)
	if h.Admin == nil {
		return
	}
	r.Group(func(r chi.Router) {
		r.Use(Identity, RequireAdmin)
		r.Post("/products", h.create)
		r.Put("/products/{id}", h.update)
		r.Delete("/products/{id}", h.delete)
	})
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	p, err := query.FromValues(r.URL.Query(), h.DefaultPageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	ps, err := h.Catalog.ListProducts(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ProductsHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "product_id")
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := h.Catalog.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) create(w http.ResponseWriter, r *http.Request) {
	in, err := readProduct(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := h.Admin.CreateProduct(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProductsHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "product_id")
	if err != nil {
		writeError(w, err)
		return
	}
	in, err := readProduct(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := h.Admin.UpdateProduct(r.Context(), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "product_id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Admin.DeleteProduct(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func readProduct(w http.ResponseWriter, r *http.Request) (shop.ProductInput, error) {
	var in shop.ProductInput
	if isJSON(r) {
		err := decodeJSON(w, r, &in)
		return in, err
	}
	if err := r.ParseForm(); err != nil {
		return in, shop.Validation("body", "malformed form body")
	}
	return formProduct(r.PostForm)
}
