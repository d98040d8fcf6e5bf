package httpx

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront/internal/metrics"
	"github.com/ariefcatur/go-storefront/internal/shop"
)

const (
	HeaderUserID         = "X-User-ID"
	HeaderUserRole       = "X-User-Role"
	HeaderIdempotencyKey = "Idempotency-Key"
)

type callerKey struct{}

// Identity trusts the gateway-supplied identity headers. Requests without a
// valid user id or with an unknown role are rejected.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.Header.Get(HeaderUserID), 10, 64)
		if err != nil || id <= 0 {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthenticated", Message: "missing or invalid " + HeaderUserID})
			return
		}
		role := shop.Role(r.Header.Get(HeaderUserRole))
		switch role {
		case "":
			role = shop.RoleCustomer
		case shop.RoleCustomer, shop.RoleAdmin:
		default:
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthenticated", Message: "unknown role"})
			return
		}
		ctx := context.WithValue(r.Context(), callerKey{}, shop.Caller{UserID: id, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin runs behind Identity and rejects non-admin callers.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !caller(r).IsAdmin() {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden", Message: "admin role required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func CallerFrom(ctx context.Context) (shop.Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(shop.Caller)
	return c, ok
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func instrument(m *metrics.ServerMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.Requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
			m.LatencyMS.WithLabelValues(route, r.Method).Observe(float64(time.Since(start).Milliseconds()))
		})
	}
}
