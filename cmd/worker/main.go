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
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-storefront/internal/cachesync"
	"github.com/ariefcatur/go-storefront/internal/config"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/logger"
	"github.com/ariefcatur/go-storefront/internal/metrics"
	"github.com/ariefcatur/go-storefront/internal/outbox"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/redisx"
)

// worker relays the outbox to Kafka and keeps the Redis read cache in step
// with the events it publishes.
func main() {
	_ = godotenv.Load()

	cfg := config.Load(nil)
	log, err := logger.New(cfg.Env, cfg.ServiceName+"-worker")
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	cfg = config.Load(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.PoolConfig{MaxConns: 4, MinConns: 1})
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers)
	defer func() { _ = prod.Close() }()

	reg := prometheus.NewRegistry()
	relay := &outbox.Relay{
		Source:    &postgres.OutboxRepo{DB: db},
		Publisher: prod,
		Log:       log.Named("outbox"),
		Metrics:   metrics.NewOutbox(reg),
		Interval:  cfg.RelayInterval,
		Batch:     cfg.RelayBatch,
	}

	syncer := &cachesync.Handler{
		Cache: redisx.NewCache(rdb, cfg.ProductCacheTTL),
		Group: cfg.WorkerGroup,
		Log:   log.Named("cachesync"),
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.WorkerGroup, cachesync.Topics, cfg.WorkerConcurrency, log.Named("consumer"))

	srv := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metrics.Handler(reg), ReadHeaderTimeout: 5 * time.Second}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("outbox relay started", zap.Duration("interval", cfg.RelayInterval), zap.Int("batch", cfg.RelayBatch))
		return relay.Run(ctx)
	})
	g.Go(func() error {
		log.Info("cache sync consumer started",
			zap.String("group", cfg.WorkerGroup),
			zap.Strings("topics", cachesync.Topics),
			zap.Int("workers", cfg.WorkerConcurrency))
		return cons.Start(ctx, syncer.Handle)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("worker stopped", zap.Error(err))
		os.Exit(1)
	}
	log.Info("worker stopped")
}
