package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront/internal/metrics"
)

type RouterDeps struct {
	Log      *zap.Logger
	Metrics  *metrics.ServerMetrics
	Gatherer prometheus.Gatherer
	Products *ProductsHandler
	Carts    *CartsHandler
	Orders   *OrdersHandler
}

func NewRouter(d RouterDeps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(d.Log), middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(instrument(d.Metrics))
	}
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(d.Gatherer))
	}

	if d.Products != nil {
		d.Products.Register(r)
	}
	r.Group(func(r chi.Router) {
		r.Use(Identity)
		if d.Carts != nil {
			d.Carts.Register(r)
		}
		if d.Orders != nil {
			d.Orders.Register(r)
		}
	})
	return r
}
