package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-grouping-api/internal/grouping"
	"github.com/noah-isme/sma-grouping-api/internal/handler"
	"github.com/noah-isme/sma-grouping-api/internal/observability"
	"github.com/noah-isme/sma-grouping-api/internal/repository"
	"github.com/noah-isme/sma-grouping-api/internal/service"
	"github.com/noah-isme/sma-grouping-api/pkg/cache"
	"github.com/noah-isme/sma-grouping-api/pkg/config"
	"github.com/noah-isme/sma-grouping-api/pkg/database"
	"github.com/noah-isme/sma-grouping-api/pkg/llm"
	"github.com/noah-isme/sma-grouping-api/pkg/logger"
)

// @title SMA Grouping API
// @version 1.0.0
// @description Student grouping proposals and group performance analytics
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg, logr)
	if err != nil {
		logr.Warn("tracing disabled", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logr.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, analytics cache disabled", zap.Error(err))
		redisClient = nil
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Analytics.CacheTTL, logr, cfg.Analytics.CacheEnabled && cacheRepo.Enabled())

	rosterRepo := repository.NewRosterRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	historyRepo := repository.NewGroupMetricsRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	provider, err := llm.NewProvider(ctx, llm.Config{
		Provider:  cfg.LLM.Provider,
		Gemini:    llm.BackendConfig{APIKey: cfg.LLM.GeminiAPIKey, Model: cfg.LLM.GeminiModel},
		OpenAI:    llm.BackendConfig{APIKey: cfg.LLM.OpenAIAPIKey, Model: cfg.LLM.OpenAIModel, BaseURL: cfg.LLM.OpenAIBaseURL},
		Anthropic: llm.BackendConfig{APIKey: cfg.LLM.AnthropicAPIKey, Model: cfg.LLM.AnthropicModel},
	})
	if err != nil {
		return fmt.Errorf("init llm provider: %w", err)
	}
	logr.Info("llm provider ready", zap.String("provider", cfg.LLM.Provider), zap.String("model", provider.ModelID()))
	provider = llm.WithInstrumentation(provider, logr, metrics)

	aiEngine := grouping.NewAIEngine(provider, grouping.AIConfig{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	}, logr)

	groupingSvc := service.NewGroupingService(rosterRepo, groupRepo, aiEngine, cacheSvc, metrics, validate, logr, service.GroupingServiceConfig{
		ProposalTTL:       cfg.Grouping.ProposalTTL,
		AllowInvalidApply: cfg.Grouping.AllowInvalidApply,
	})
	analyticsSvc := service.NewGroupAnalyticsService(rosterRepo, groupRepo, historyRepo, cacheSvc, validate, logr, service.GroupAnalyticsServiceConfig{
		CacheTTL: cfg.Analytics.CacheTTL,
	})

	if cfg.Analytics.HistoryEnabled {
		historyQueue := service.NewHistoryQueue(analyticsSvc, cfg.Analytics.HistoryWorkers, logr)
		historyQueue.Start(ctx)
		defer historyQueue.Stop()
		analyticsSvc.UseHistoryQueue(historyQueue)
		metrics.TrackQueue(historyQueue)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	tokens := service.NewTokenService(service.TokenConfig{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		Expiration: cfg.JWT.Expiration,
	})

	r := newRouter(cfg, logr, routerDeps{
		tokens:    tokens,
		audit:     auditRepo,
		metrics:   metrics,
		grouping:  handler.NewGroupingHandler(groupingSvc),
		analytics: handler.NewAnalyticsHandler(analyticsSvc),
		system: handler.NewMetricsHandler(metrics, map[string]handler.Pinger{
			"database": db,
			"cache":    handler.PingerFunc(cacheRepo.Ping),
		}),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
