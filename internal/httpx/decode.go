package httpx

import (
	"encoding/json"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/shop"
)

const maxBody = 1 << 20

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return shop.Validation("body", "invalid json: %v", err)
	}
	return nil
}

// formItems pairs repeated product_id and quantity form fields by position.
func formItems(ids, qtys []string) ([]shop.LineItem, error) {
	if len(ids) != len(qtys) {
		return nil, shop.Validation("quantity", "every product_id needs a matching quantity")
	}
	items := make([]shop.LineItem, 0, len(ids))
	for i := range ids {
		id, err := shop.ParseID("product_id", strings.TrimSpace(ids[i]))
		if err != nil {
			return nil, err
		}
		qty, err := strconv.Atoi(strings.TrimSpace(qtys[i]))
		if err != nil {
			return nil, shop.Validation("quantity", "quantity must be an integer")
		}
		items = append(items, shop.LineItem{ProductID: id, Quantity: qty})
	}
	return items, nil
}

func formIDs(field string, raw []string) ([]int64, error) {
	ids := make([]int64, 0, len(raw))
	for _, s := range raw {
		id, err := shop.ParseID(field, strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// formProduct reads a product from form fields. category_id may be omitted.
func formProduct(form url.Values) (shop.ProductInput, error) {
	in := shop.ProductInput{
		Name:        strings.TrimSpace(form.Get("name")),
		Description: form.Get("description"),
	}
	price, err := strconv.ParseInt(strings.TrimSpace(form.Get("price")), 10, 64)
	if err != nil {
		return shop.ProductInput{}, shop.Validation("price", "price must be an integer")
	}
	in.Price = price
	qty, err := strconv.Atoi(strings.TrimSpace(form.Get("quantity")))
	if err != nil {
		return shop.ProductInput{}, shop.Validation("quantity", "quantity must be an integer")
	}
	in.Quantity = qty
	if raw := strings.TrimSpace(form.Get("category_id")); raw != "" {
		id, err := shop.ParseID("category_id", raw)
		if err != nil {
			return shop.ProductInput{}, err
		}
		in.CategoryID = &id
	}
	return in, nil
}
