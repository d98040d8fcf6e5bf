package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront/internal/shop"
)

type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	ProductID int64  `json:"product_id,omitempty"`
	Available *int   `json:"available,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusOf(k shop.Kind) int {
	switch k {
	case shop.KindValidation:
		return http.StatusBadRequest
	case shop.KindNotFound:
		return http.StatusNotFound
	case shop.KindInsufficientStock, shop.KindConflict:
		return http.StatusConflict
	case shop.KindStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps the error taxonomy onto a status and body. Storage and
// unknown errors never expose their cause.
func writeError(w http.ResponseWriter, err error) {
	var se *shop.Error
	if !errors.As(err, &se) {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal_error", Message: "internal error"})
		return
	}
	body := errorBody{Error: se.Kind.String(), Message: se.Msg, Field: se.Field}
	switch se.Kind {
	case shop.KindStorage:
		body.Message = "storage unavailable"
	case shop.KindInsufficientStock:
		body.ProductID = se.ProductID
		available := se.Available
		body.Available = &available
	case shop.KindConflict:
		body.ProductID = se.ProductID
	case shop.KindNotFound:
		body.Field = ""
	}
	writeJSON(w, statusOf(se.Kind), body)
}

func pathID(r *http.Request, field string) (int64, error) {
	return shop.ParseID(field, chi.URLParam(r, "id"))
}

// caller is only called behind Identity.
func caller(r *http.Request) shop.Caller {
	c, _ := CallerFrom(r.Context())
	return c
}
