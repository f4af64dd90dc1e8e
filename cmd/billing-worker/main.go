package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-billing-api/internal/gateway"
	"github.com/noah-isme/sma-billing-api/internal/repository"
	"github.com/noah-isme/sma-billing-api/internal/service"
	"github.com/noah-isme/sma-billing-api/internal/worker"
	"github.com/noah-isme/sma-billing-api/pkg/cache"
	"github.com/noah-isme/sma-billing-api/pkg/config"
	"github.com/noah-isme/sma-billing-api/pkg/database"
	"github.com/noah-isme/sma-billing-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, billing cache disabled", "error", err)
		redisClient = nil
	}

	location := time.Local
	if cfg.Worker.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Worker.Timezone)
		if err != nil {
			logr.Sugar().Fatalw("invalid worker timezone", "timezone", cfg.Worker.Timezone, "error", err)
		}
		location = loc
	}

	enrollmentRepo := repository.NewEnrollmentRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	paymentMethodRepo := repository.NewPaymentMethodRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	gatewayClient := gateway.NewHTTPClient(gateway.Config{
		BaseURL: cfg.Gateway.BaseURL,
		APIKey:  cfg.Gateway.APIKey,
		Timeout: cfg.Gateway.Timeout,
	}, logr)

	billingSvc := service.NewBillingService(enrollmentRepo, transactionRepo, paymentMethodRepo, gatewayClient, cacheRepo, cfg.Billing.MetaCacheTTL, nil, validator.New(), logr)
	sweeper := worker.NewAutopaySweeper(enrollmentRepo, billingSvc, logr)

	scheduler := worker.NewScheduler(sweeper, cfg.Worker.CronSpec, location, logr)
	if err := scheduler.Start(); err != nil {
		logr.Sugar().Fatalw("failed to start autopay scheduler", "spec", cfg.Worker.CronSpec, "error", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logr.Sugar().Infow("shutdown signal received, stopping scheduler")
	<-scheduler.Stop().Done()
	logr.Sugar().Infow("scheduler stopped")
}
