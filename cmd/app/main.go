// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-buddy-chat/internal/config"
	"ai-buddy-chat/internal/domain/ports/adapter"
	aiAdapters "ai-buddy-chat/internal/infra/adapters/ai"
	"ai-buddy-chat/internal/infra/logging"
	"ai-buddy-chat/internal/infra/metrics"
	red "ai-buddy-chat/internal/infra/redis"
	"ai-buddy-chat/internal/infra/state"
	"ai-buddy-chat/internal/infra/web"
	"ai-buddy-chat/internal/infra/worker"
	"ai-buddy-chat/internal/infra/ws"
	"ai-buddy-chat/internal/usecase"
)

const shutdownGrace = 10 * time.Second

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (canned AI replies allowed)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	metrics.MustRegister()

	// ---- AI adapter (openai -> gemini -> noop) ----
	var ai adapter.AIServiceAdapter
	switch cfg.AI.Provider {
	case "openai":
		ai, err = aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.OpenAIBaseURL, cfg.AI.Model, cfg.AI.MaxTokens)
		if err != nil {
			log.Fatalf("openai adapter: %v", err)
		}
	case "gemini":
		ai, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.Model, cfg.AI.MaxTokens)
		if err != nil {
			log.Fatalf("gemini adapter: %v", err)
		}
	case "noop":
		ai = aiAdapters.NewNoopAIAdapter()
	default:
		log.Fatalf("unknown AI provider %q", cfg.AI.Provider)
	}
	logger.Info().Str("provider", ai.Provider()).Str("model", cfg.AI.Model).Msg("AI adapter ready")
	ai = aiAdapters.NewLimitedAI(ai, cfg.AI.ConcurrentLimit)

	// ---- Generation worker pool ----
	pool := worker.NewPool(cfg.AI.Workers, logger)
	pool.Start(ctx)

	// ---- State ----
	registry := state.NewSessionRegistry()
	contexts := state.NewContextStore(cfg.Chat.HistoryLimit)

	// ---- Message rate limiter ----
	var limiter ws.MessageLimiter
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisClient.Close()
		limiter = red.NewMessageLimiter(redisClient, cfg.Chat.RateLimit.Burst, cfg.Chat.RateLimit.Window, logger)
		logger.Info().Str("url", cfg.Redis.URL).Msg("redis message limiter active")
	} else {
		limiter = ws.NewTokenBucketLimiter(cfg.Chat.RateLimit.Burst, cfg.Chat.RateLimit.Window)
	}

	// ---- Use cases and transport ----
	responder := usecase.NewResponderUseCase(ai, cfg.AI.Model, cfg.AI.RequestTimeout, cfg.Chat.HistoryLimit, logger)
	hub := ws.NewHub(limiter, logger)
	relay := usecase.NewRelayUseCase(registry, contexts, responder, pool, hub, logger)
	hub.AttachRelay(relay)

	srv := web.NewServer(relay, responder, hub.HandleUpgrade, logger)
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	if err := hub.Shutdown(shutdownGrace); err != nil {
		logger.Warn().Err(err).Msg("hub shutdown")
	}
	cancel()
	pool.Stop()
}
