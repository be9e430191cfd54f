package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	catalogapp "github.com/library/backend/internal/application/catalog"
	circulationapp "github.com/library/backend/internal/application/circulation"
	identityapp "github.com/library/backend/internal/application/identity"
	"github.com/library/backend/internal/application/operations"
	"github.com/library/backend/internal/domain/shared"
	"github.com/library/backend/internal/infrastructure/broker"
	"github.com/library/backend/internal/infrastructure/cache"
	"github.com/library/backend/internal/infrastructure/config"
	"github.com/library/backend/internal/infrastructure/logger"
	"github.com/library/backend/internal/infrastructure/persistence"
	"github.com/library/backend/internal/infrastructure/pipeline"
	"github.com/library/backend/internal/interfaces/http/handler"
	"github.com/library/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting library loan pipeline",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize database connection
	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	// Dedup store: Redis in shared deployments, in-memory fallback for
	// single-node development runs.
	var dedup shared.DedupStore
	redisStore, err := cache.NewRedisDedupStore(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		if cfg.IsProduction() {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		log.Warn("Redis unavailable, using in-memory dedup store", zap.Error(err))
		dedup = cache.NewInMemoryDedupStore()
	} else {
		dedup = redisStore
		log.Info("Redis dedup store connected")
	}
	defer func() {
		if err := dedup.Close(); err != nil {
			log.Error("Error closing dedup store", zap.Error(err))
		}
	}()

	// Connect to the broker
	amqpBroker, err := broker.NewAMQPBroker(cfg.Broker, log)
	if err != nil {
		log.Fatal("Failed to connect to broker", zap.Error(err))
	}
	defer func() {
		if err := amqpBroker.Close(); err != nil {
			log.Error("Error closing broker", zap.Error(err))
		}
	}()
	log.Info("Broker connected", zap.String("queue", cfg.Broker.Queue))

	// Initialize repositories
	loanRepo := persistence.NewGormLoanRepository(db.DB)
	historyRepo := persistence.NewGormLoanHistoryRepository(db.DB)
	bookRepo := persistence.NewGormBookRepository(db.DB)
	memberRepo := persistence.NewGormMemberRepository(db.DB)
	deadLetterRepo := persistence.NewGormDeadLetterRepository(db.DB)

	// Initialize application services
	eventPublisher := broker.NewEventPublisher(amqpBroker, log)
	scope := persistence.NewGormTransactionScope(db.DB)
	loanCommands := circulationapp.NewLoanCommandService(scope, eventPublisher, circulationapp.Settings{
		LoanPeriodDays: cfg.Circulation.LoanPeriodDays,
		DailyFineRate:  cfg.Circulation.DailyFineRate,
		MaxRenewals:    cfg.Circulation.MaxRenewals,
	}, log)
	bookCommands := catalogapp.NewBookCommandService(bookRepo, eventPublisher, log)
	memberCommands := identityapp.NewMemberService(memberRepo, log).
		WithMaxLoans(cfg.Circulation.MaxLoans)

	// Wire the command pipeline
	ingress := pipeline.NewIngress()
	pipeline.RegisterRoutes(ingress, loanCommands, bookCommands, memberCommands)
	pipe := pipeline.NewPipeline(amqpBroker, ingress, dedup, deadLetterRepo, pipeline.Options{
		Lanes:      cfg.Pipeline.Lanes,
		LaneBuffer: cfg.Pipeline.LaneBuffer,
		Policy: pipeline.RetryPolicy{
			MaxAttempts: cfg.Pipeline.MaxAttempts,
			BaseBackoff: cfg.Pipeline.BaseBackoff,
		},
		DedupTTL: cfg.Pipeline.DedupTTL,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := pipe.Start(ctx); err != nil {
		log.Fatal("Failed to start pipeline", zap.Error(err))
	}
	defer pipe.Stop()
	log.Info("Pipeline started",
		zap.Int("lanes", cfg.Pipeline.Lanes),
		zap.Int("max_attempts", cfg.Pipeline.MaxAttempts))

	// The overdue sweeper feeds pseudo-commands back into the pipeline
	sweeper := pipeline.NewSweeper(loanRepo, pipe, pipeline.SweeperOptions{
		Interval:     cfg.Sweep.Interval,
		RunAtStartup: cfg.Sweep.RunAtStartup,
		BatchSize:    cfg.Sweep.BatchSize,
	}, log).WithProcessedLog(persistence.NewGormProcessedCommandLog(db.DB), cfg.Pipeline.DedupTTL)
	if cfg.Sweep.Enabled {
		sweeper.Start(ctx)
		defer sweeper.Stop()
		log.Info("Overdue sweeper started", zap.Duration("interval", cfg.Sweep.Interval))
	}

	// Read API
	loanQueries := circulationapp.NewLoanQueryService(loanRepo, historyRepo)
	bookQueries := catalogapp.NewBookQueryService(bookRepo)
	deadLetterService := operations.NewDeadLetterService(deadLetterRepo, pipe, log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.New(log).
		Register(
			handler.NewSystemHandler(db.DB),
			handler.NewLoanHandler(loanQueries),
			handler.NewBookHandler(bookQueries),
			handler.NewDeadLetterHandler(deadLetterService),
		).
		Setup()

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Deferred stops drain the sweeper and the lanes before the broker
	// connection and database close.
	log.Info("Shutdown complete")
}
