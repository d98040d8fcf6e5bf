package main

import (
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/logger"
	"github.com/ariefcatur/go-storefront/internal/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load(nil)
	log, err := logger.New(cfg.Env, cfg.ServiceName+"-migrate")
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	log.Info("migrations applied")
}
