// PC Doctor - agent loop server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/pcdoctor/internal/agent"
	"github.com/ashureev/pcdoctor/internal/api"
	"github.com/ashureev/pcdoctor/internal/config"
	"github.com/ashureev/pcdoctor/internal/metrics"
	"github.com/ashureev/pcdoctor/internal/middleware"
	"github.com/ashureev/pcdoctor/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "addr", cfg.Addr(), "max_iterations", cfg.MaxIterations)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metrics.
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Analyzer.
	var analyzer agent.Analyzer
	if cfg.AnalyzerEnabled() {
		llm, err := agent.NewLLMAnalyzer(agent.LLMConfig{
			Provider:    cfg.Analyzer.Provider,
			Model:       cfg.Analyzer.Model,
			APIKey:      cfg.Analyzer.APIKey,
			Temperature: cfg.Analyzer.Temperature,
			MaxTokens:   cfg.Analyzer.MaxTokens,
		})
		if err != nil {
			slog.Error("Failed to initialize LLM analyzer", "error", err)
			os.Exit(1)
		}
		analyzer = llm
	} else {
		slog.Warn("No analyzer API key configured, falling back to keyword analyzer")
		analyzer = agent.NewKeywordAnalyzer()
	}

	opts := []agent.LoopOption{
		agent.WithLogger(logger),
		agent.WithMetrics(m),
		agent.WithAnalyzerTimeout(cfg.Analyzer.Timeout),
		agent.WithPolicy(agent.ProposalPolicy{
			DefaultTimeout: cfg.Proposal.DefaultTimeoutSeconds,
			MaxTimeout:     cfg.Proposal.MaxTimeoutSeconds,
		}),
	}

	// Turn journal (optional).
	var readiness api.Pinger
	if cfg.Journal.Enabled {
		journal, err := store.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			slog.Error("Failed to initialize turn journal", "error", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := journal.Close(); closeErr != nil {
				slog.Error("Failed to close turn journal", "error", closeErr)
			}
		}()

		if err := journal.Ping(ctx); err != nil {
			slog.Error("Journal health check failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Turn journal connected", "db_path", cfg.Journal.DBPath)

		store.StartRetentionWorker(ctx, journal, cfg.Journal.Retention, 0)
		opts = append(opts, agent.WithJournal(journal))
		readiness = journal
	} else {
		slog.Info("Turn journal disabled")
	}

	sessions := store.NewMemoryStore(cfg.MaxIterations)
	loop := agent.NewLoopController(sessions, analyzer, opts...)

	agentHandler := agent.NewHandler(loop, cfg)
	defer agentHandler.Close()
	healthHandler := api.NewHealthHandler(readiness)

	// Setup router.
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/", api.Status)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	healthHandler.RegisterHealth(r)
	agentHandler.RegisterRoutes(r)

	// WriteTimeout must outlast a full analyzer call.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Analyzer.Timeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
