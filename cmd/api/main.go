package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront/internal/checkout"
	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/httpx"
	"github.com/ariefcatur/go-storefront/internal/listing"
	"github.com/ariefcatur/go-storefront/internal/logger"
	"github.com/ariefcatur/go-storefront/internal/metrics"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load(nil)
	log, err := logger.New(cfg.Env, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	cfg = config.Load(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.PoolConfig{MaxConns: cfg.PGMaxConns, MinConns: cfg.PGMinConns})
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis is a cache; the API keeps serving from Postgres when it is down.
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		log.Warn("redis unreachable, continuing without cache", zap.Error(err))
	}
	cache := redisx.NewCache(rdb, cfg.ProductCacheTTL)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	engine := checkout.NewEngine(&postgres.Store{DB: db}, log.Named("checkout"), metrics.NewCheckout(reg), cfg.ServiceName)
	svc := listing.New(
		postgres.NewProductRepo(db, cfg.MaxPageSize),
		postgres.NewCartRepo(db, cfg.MaxPageSize),
		postgres.NewOrderRepo(db, cfg.MaxPageSize),
		cache,
		log.Named("listing"),
	)

	router := httpx.NewRouter(httpx.RouterDeps{
		Log:      log.Named("http"),
		Metrics:  metrics.NewServerMetrics(reg),
		Gatherer: reg,
		Products: &httpx.ProductsHandler{Catalog: svc, Admin: svc, DefaultPageSize: cfg.DefaultPageSize},
		Carts:    &httpx.CartsHandler{Carts: svc, DefaultPageSize: cfg.DefaultPageSize},
		Orders: &httpx.OrdersHandler{
			Checkout:        engine,
			Orders:          svc,
			Idem:            cache,
			Log:             log.Named("orders"),
			Timeout:         cfg.CheckoutTimeout,
			DefaultPageSize: cfg.DefaultPageSize,
		},
	})

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Warn("shutdown", zap.Error(err))
	}
}
