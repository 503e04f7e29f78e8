package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/voxline/sales-ai-platform/internal/agent"
	"github.com/voxline/sales-ai-platform/internal/api/router"
	appconfig "github.com/voxline/sales-ai-platform/internal/config"
	"github.com/voxline/sales-ai-platform/internal/observability/metrics"
	"github.com/voxline/sales-ai-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting sales-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	flowMetrics := metrics.NewFlowMetrics(nil)

	var store agent.SessionStore
	if cfg.UseMemoryStore {
		store = agent.NewMemoryStore()
		logger.Info("using in-memory session store")
	} else {
		opts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		store = agent.NewRedisStore(redis.NewClient(opts), cfg.SessionTTL, nil)
		logger.Info("using redis session store", "addr", cfg.RedisAddr, "ttl", cfg.SessionTTL)
	}

	llm, err := agent.NewCerebrasClient(cfg.CerebrasAPIKey, cfg.CerebrasBaseURL, cfg.ChatModel, cfg.LLMTimeout)
	if err != nil {
		logger.Error("failed to create LLM client", "error", err)
		os.Exit(1)
	}

	var generator agent.LLMClient = llm
	if cfg.FallbackAPIKey != "" {
		fallback, err := agent.NewCerebrasClient(cfg.FallbackAPIKey, cfg.FallbackBaseURL, cfg.FallbackModel, cfg.LLMTimeout)
		if err != nil {
			logger.Error("failed to create fallback LLM client", "error", err)
			os.Exit(1)
		}
		generator = agent.NewFallbackLLMClient(llm, fallback, logger.Component("llm"))
		logger.Info("fallback LLM configured", "model", cfg.FallbackModel)
	}

	analyzer := agent.NewLLMAnalyzer(llm, cfg.AnalyzerModel, cfg.HistoryWindow, logger.Component("analyzer"), flowMetrics)

	salesAgent := agent.NewSalesAgent(store, analyzer, generator, logger.Component("agent"), flowMetrics,
		agent.WithChatModel(cfg.ChatModel),
		agent.WithNudgeThreshold(cfg.NudgeThreshold),
	)

	agentHandler := agent.NewHandler(salesAgent, logger.Component("http"), cfg.AgentMode)

	r := router.New(&router.Config{
		Logger:         logger,
		AgentHandler:   agentHandler,
		MetricsHandler: promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
