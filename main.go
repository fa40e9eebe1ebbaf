package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/qdrant/go-client/qdrant"

	appLogger "github.com/tripweaver/tripweaver/app/logger"
	"github.com/tripweaver/tripweaver/app/observability/metrics"
	"github.com/tripweaver/tripweaver/app/tracer"
	"github.com/tripweaver/tripweaver/config"
	"github.com/tripweaver/tripweaver/internal/api/plan"
	"github.com/tripweaver/tripweaver/internal/directions"
	"github.com/tripweaver/tripweaver/internal/embedding"
	"github.com/tripweaver/tripweaver/internal/itinerary"
	"github.com/tripweaver/tripweaver/internal/llm"
	"github.com/tripweaver/tripweaver/internal/places"
	"github.com/tripweaver/tripweaver/internal/poidiscovery"
	"github.com/tripweaver/tripweaver/internal/router"
	"github.com/tripweaver/tripweaver/internal/vectorindex"
	"github.com/tripweaver/tripweaver/internal/websearch"
)

func main() {
	// Use standard log until slog is configured, in case godotenv fails
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	logger := setupLogger()
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tracer.InitTracingAndMetrics(cfg.Handlers.Prometheus.Port)
	metrics.InitAppMetrics()

	// --- Dependency Injection ---
	llmClient, err := newLLMClient(ctx, cfg.Engine.LLM, logger)
	if err != nil {
		logger.Error("Failed to create LLM client", slog.Any("error", err))
		os.Exit(1)
	}

	qdrantClient, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Engine.Vector.Host,
		Port: cfg.Engine.Vector.Port,
	})
	if err != nil {
		logger.Error("Failed to create vector store client", slog.Any("error", err))
		os.Exit(1)
	}

	embedder := embedding.NewHTTPPipeline(
		cfg.Engine.LLM.BaseURL,
		os.Getenv("EMBEDDING_MODEL"),
		os.Getenv("LLM_API_KEY"),
		cfg.Engine.LLM.Timeout,
		logger,
	)
	index := vectorindex.New(qdrantClient, embedder, cfg.Engine.Vector.Collection, cfg.Engine.Vector.Dimension, logger)

	webAdapter := websearch.NewAdapter(os.Getenv("WEB_SEARCH_API_KEY"), "", logger)
	validator := places.NewValidator(os.Getenv("GOOGLE_MAPS_API_KEY"), logger)
	calculator := directions.NewCalculator(os.Getenv("GOOGLE_MAPS_API_KEY"), logger)

	discoverer := poidiscovery.NewGraph(llmClient, webAdapter, index, validator, cfg.Engine.Discovery, logger)
	planAgent := itinerary.NewPlanAgent(llmClient, logger)
	planner := itinerary.NewPlanner(planAgent, calculator, discoverer, cfg.Engine.Planner, logger)

	planHandler := plan.NewHandler(discoverer, planner, logger)

	// --- Router Setup ---
	mainRouter := router.SetupRouter(&router.Config{PlanHandler: planHandler})

	r := chi.NewMux()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appLogger.StructuredLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Timeout(cfg.Server.Timeout))
	r.Use(middleware.Compress(5, "application/json"))
	r.Mount("/", mainRouter)

	serverAddress := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddress,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("address", serverAddress))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server ListenAndServe error", slog.Any("error", err))
			cancel()
		}
	}()

	<-ctx.Done()

	logger.Info("Shutdown signal received, starting graceful shutdown...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", slog.Any("error", err))
	} else {
		logger.Info("HTTP server gracefully stopped")
	}
	logger.Info("Application shut down complete.")
}

// newLLMClient picks the provider variant from config. All variants share
// the same contract; only the request shape differs.
func newLLMClient(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (llm.Client, error) {
	opts := llm.Options{
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		APIKey:      os.Getenv("LLM_API_KEY"),
		Timeout:     cfg.Timeout,
		MaxRetries:  cfg.MaxRetries,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
	}

	switch cfg.Provider {
	case "vllm":
		return llm.NewVllmClient(opts, logger), nil
	case "gemini":
		opts.APIKey = os.Getenv("GEMINI_API_KEY")
		return llm.NewGeminiClient(ctx, opts, logger)
	default:
		return llm.NewOpenAIClient(opts, logger), nil
	}
}

// setupLogger configures and returns the application logger.
func setupLogger() *slog.Logger {
	var logger *slog.Logger
	env := os.Getenv("APP_ENV")

	if env == "development" || env == "" {
		tintOpts := &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}
		logger = slog.New(tint.NewHandler(os.Stdout, tintOpts))
		log.Println("Initialized development logger (tint)")
	} else {
		jsonOpts := &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, jsonOpts))
		log.Println("Initialized production logger (JSON)")
	}
	return logger
}
