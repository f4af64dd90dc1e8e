package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/sma-billing-api/api/swagger"
	"github.com/noah-isme/sma-billing-api/internal/gateway"
	"github.com/noah-isme/sma-billing-api/internal/handler"
	"github.com/noah-isme/sma-billing-api/internal/middleware"
	"github.com/noah-isme/sma-billing-api/internal/repository"
	"github.com/noah-isme/sma-billing-api/internal/service"
	"github.com/noah-isme/sma-billing-api/pkg/cache"
	"github.com/noah-isme/sma-billing-api/pkg/config"
	"github.com/noah-isme/sma-billing-api/pkg/database"
	"github.com/noah-isme/sma-billing-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-billing-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-billing-api/pkg/middleware/requestid"
)

// @title SMA Billing API
// @version 0.1.0
// @description Enrollment billing, installment scheduling and charge dispatch
// @BasePath /
// @schemes http

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
		// The billing view cache is an optimisation; the service runs
		// without it.
		logr.Sugar().Warnw("redis unavailable, billing cache disabled", "error", err)
		redisClient = nil
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

	metricsSvc := service.NewMetricsService()
	tokenSvc := service.NewTokenService(cfg.JWT.Secret)
	billingSvc := service.NewBillingService(enrollmentRepo, transactionRepo, paymentMethodRepo, gatewayClient, cacheRepo, cfg.Billing.MetaCacheTTL, metricsSvc, validator.New(), logr)
	statementSvc := service.NewStatementService(enrollmentRepo, logr)

	billingHandler := handler.NewBillingHandler(billingSvc, statementSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(tokenSvc))

	enrollments := api.Group("/enrollments")
	enrollments.GET("", billingHandler.List)
	enrollments.GET("/:id/billing", billingHandler.GetBilling)
	enrollments.GET("/:id/transactions", billingHandler.Transactions)
	enrollments.GET("/:id/payment-methods", billingHandler.PaymentMethods)
	enrollments.POST("/:id/payment-methods/:methodId/select", billingHandler.SelectMethod)
	enrollments.GET("/:id/statement", billingHandler.Statement)
	enrollments.POST("/:id/charges", middleware.RBAC("admin", "staff", "parent"), billingHandler.Charge)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
