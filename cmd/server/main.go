package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"

	httpadapter "github.com/campusiq/campusiq/internal/adapter/http"
	"github.com/campusiq/campusiq/internal/adapter/intent"
	"github.com/campusiq/campusiq/internal/adapter/notify"
	"github.com/campusiq/campusiq/internal/adapter/persistence"
	"github.com/campusiq/campusiq/internal/config"
	"github.com/campusiq/campusiq/internal/engine"
	"github.com/campusiq/campusiq/internal/service/auth"
	"github.com/campusiq/campusiq/internal/service/logger"
	"github.com/campusiq/campusiq/internal/service/ratelimit"
	"github.com/campusiq/campusiq/internal/service/secondfactor"
	"github.com/campusiq/campusiq/internal/usecase"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	structuredLogger := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: "campusiq",
	})
	structuredLogger.Info(ctx, "application starting", map[string]interface{}{
		"env": cfg.Environment,
	})

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	structuredLogger.Info(ctx, "database connection established", nil)

	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to parse Redis URL: %v", err)
	}
	redisClient := redis.NewClient(redisOpt)
	defer redisClient.Close()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	// Repositories and collaborators.
	planRepo := persistence.NewPostgresPlanRepository(db)
	execRepo := persistence.NewPostgresExecutionRepository(db)
	auditRepo := persistence.NewPostgresAuditRepository(db)
	domainStore := persistence.NewPostgresDomainStore(db)
	actorDirectory := persistence.NewPostgresActorDirectory(db)

	classifier := intent.NewKeywordClassifier()
	notifier := notify.NewLogNotifier(structuredLogger)
	secondFactor := secondfactor.NewRedisVerifier(redisClient, cfg.SecondFactorTTL)

	// Services.
	jwtService, err := auth.NewJWTService(auth.Config{Secret: cfg.JWTSecret, TokenTTL: cfg.TokenTTL})
	if err != nil {
		log.Fatalf("Failed to initialize JWT service: %v", err)
	}

	var rateLimitService ratelimit.RateLimitService
	if cfg.RateLimitEnabled {
		rateLimitService = ratelimit.NewWithClient(redisClient, structuredLogger)
	} else {
		rateLimitService, _ = ratelimit.New(ratelimit.Config{Enabled: false}, structuredLogger)
	}

	// Use cases.
	governanceCfg := usecase.GovernanceConfig{
		PreviewLimit:        cfg.PreviewLimit,
		BulkThreshold:       cfg.BulkThreshold,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		ClassifierTimeout:   cfg.ClassifierTimeout,
		PreviewTimeout:      cfg.PreviewTimeout,
		GatesEnabled:        cfg.GatesEnabled,
	}
	estimator := usecase.NewImpactEstimator(domainStore, cfg.PreviewLimit, cfg.PreviewTimeout)
	executor := engine.NewExecutor(domainStore, execRepo)

	governanceUseCase := usecase.NewGovernanceUseCase(
		planRepo,
		auditRepo,
		execRepo,
		classifier,
		actorDirectory,
		secondFactor,
		notifier,
		estimator,
		executor,
		governanceCfg,
		structuredLogger,
	)
	auditUseCase := usecase.NewAuditUseCase(auditRepo, planRepo, governanceCfg)

	// HTTP layer.
	authMiddleware := httpadapter.NewAuthMiddleware(jwtService)
	rateLimitMiddleware := httpadapter.NewRateLimitMiddleware(
		rateLimitService, structuredLogger, cfg.RateLimitSubmissions, cfg.RateLimitWindow)

	server := httpadapter.NewServer(
		httpadapter.ServerConfig{
			Port:         cfg.ServerPort,
			ReadTimeout:  cfg.ServerReadTimeout,
			WriteTimeout: cfg.ServerWriteTimeout,
			IdleTimeout:  cfg.ServerIdleTimeout,
		},
		governanceUseCase,
		auditUseCase,
		authMiddleware,
		rateLimitMiddleware,
		structuredLogger,
	)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		structuredLogger.Error(shutdownCtx, "server shutdown failed", err, nil)
	}
	structuredLogger.Info(ctx, "application stopped", nil)
}
