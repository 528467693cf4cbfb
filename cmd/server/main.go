package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"chain-route.backend/internal/config"
	"chain-route.backend/internal/infrastructure/blockchain"
	"chain-route.backend/internal/infrastructure/repositories"
	"chain-route.backend/internal/interfaces/http/handlers"
	"chain-route.backend/internal/interfaces/http/middleware"
	"chain-route.backend/internal/usecases"
	"chain-route.backend/pkg/logger"
	"chain-route.backend/pkg/redis"
)

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(dsn string) (*gorm.DB, error) {
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt: false,
		})
	}
	newRegistry = blockchain.NewRegistry
	runServer   = func(r *gin.Engine, port string) error { return r.Run(":" + port) }
	getStdDB    = func(db *gorm.DB) (*sql.DB, error) { return db.DB() }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()

	initLog(cfg.Server.Env)
	logger.Info(context.Background(), "Logger initialized", zap.String("env", cfg.Server.Env))

	if err := initRedis(cfg.Redis.URL, cfg.Redis.PASSWORD); err != nil {
		logger.Error(context.Background(), "Failed to initialize Redis", zap.Error(err))
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	logger.Info(context.Background(), "Redis initialized")

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := openDB(cfg.Database.URL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := getStdDB(db)
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Printf("⚠️ Database not available: %v (endpoints will return errors)", err)
	} else {
		log.Println("✅ Connected to PostgreSQL via GORM")
	}

	if err := repositories.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	// Repositories
	paymentRepo := repositories.NewPaymentRepository(db)
	routedTxRepo := repositories.NewRoutedTransactionRepository(db)
	mismatchRepo := repositories.NewMismatchRepository(db)
	deliveryRepo := repositories.NewWebhookDeliveryRepository(db)
	pspRepo := repositories.NewPSPRepository(db)
	routeRepo := repositories.NewPaymentRouteRepository(db)

	// Chain adapters and settlement machinery
	registry, err := newRegistry(cfg.Chains)
	if err != nil {
		return fmt.Errorf("failed to dial chain nodes: %w", err)
	}
	bundler := blockchain.NewHTTPBundler(cfg.Chains)
	settler := blockchain.NewSmartWalletSettler(bundler, cfg.Treasury)

	// Usecases
	routeCache := usecases.NewRouteCache(redis.GetClient())
	scorer := usecases.NewRouteScorer(registry, routeCache)
	resolver := usecases.NewRouteResolver(registry, scorer, routeCache, settler)
	splitter := usecases.NewFeeSplitter(cfg.Treasury.FeePercent)
	classifier := usecases.NewRuleClassifier(cfg.Compliance.SanctionedWallets)
	dispatcher := usecases.NewWebhookDispatcher(pspRepo, deliveryRepo, cfg.Webhook)
	orchestrator := usecases.NewSettlementOrchestrator(
		paymentRepo, routedTxRepo, registry, settler, splitter, dispatcher, cfg.Settlement)
	listener := usecases.NewPaymentListener(
		paymentRepo, mismatchRepo, routeRepo, routedTxRepo,
		registry, classifier, orchestrator, dispatcher, cfg.Settlement)
	intake := usecases.NewPaymentIntake(paymentRepo, routeRepo, pspRepo, resolver, registry)

	// Handlers
	healthHandler := handlers.NewHealthHandler(registry)
	paymentHandler := handlers.NewPaymentHandler(intake, paymentRepo, deliveryRepo, routedTxRepo)

	// Background listener
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go listener.Run(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())

	registerHealthRoute(r, healthHandler)
	registerMetricsRoute(r)
	registerAPIV1Routes(r, routeDeps{
		paymentHandler: paymentHandler,
	})

	// Graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("🛑 Shutting down server...")
		cancel()
	}()

	log.Printf("🚀 Chain-Route settlement engine starting on port %s", cfg.Server.Port)
	log.Printf("❤️ Health: http://localhost:%s/health", cfg.Server.Port)

	if err := runServer(r, cfg.Server.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
