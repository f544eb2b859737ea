package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/remaimber-it/mastery/internal/api"
	"github.com/remaimber-it/mastery/internal/event"
	"github.com/remaimber-it/mastery/internal/generator"
	"github.com/remaimber-it/mastery/internal/grader"
	"github.com/remaimber-it/mastery/internal/infrastructure/config"
	"github.com/remaimber-it/mastery/internal/infrastructure/logger"
	"github.com/remaimber-it/mastery/internal/infrastructure/metrics"
	"github.com/remaimber-it/mastery/internal/infrastructure/tracing"
	"github.com/remaimber-it/mastery/internal/llm"
	"github.com/remaimber-it/mastery/internal/lock"
	"github.com/remaimber-it/mastery/internal/mastery"
	"github.com/remaimber-it/mastery/internal/scheduler"
	"github.com/remaimber-it/mastery/internal/search"
	"github.com/remaimber-it/mastery/internal/service"
	"github.com/remaimber-it/mastery/internal/store"
	"github.com/remaimber-it/mastery/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogMode, cfg.LogFile)
	defer log.Sync()

	metrics.Init()

	shutdownTracing, err := tracing.Init(cfg.TracingEnabled, "mastery")
	if err != nil {
		log.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}

	// ── Dependencies ────────────────────────────────────────────────
	db, err := store.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	searcher, err := search.NewSQLite(db.DB())
	if err != nil {
		log.Error("failed to create chunk index", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var locker lock.Locker = lock.NewLocal()
	if cfg.RedisAddr != "" {
		client, err := lock.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			log.Error("failed to connect to redis", "error", err, "addr", cfg.RedisAddr)
			os.Exit(1)
		}
		defer client.Close()
		locker = lock.NewRedis(client, "mastery:lock:", 30*time.Second)
		log.Info("using redis locks", "addr", cfg.RedisAddr)
	}

	publisher, err := event.NewPublisher(cfg.RabbitMQURI, cfg.RabbitMQExchange, log)
	if err != nil {
		log.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	completer := llm.NewClient(cfg.LLMURL, cfg.LLMModel, cfg.LLMTimeout)

	schedCfg := scheduler.DefaultConfig()
	schedCfg.TopK = cfg.SchedulerTopK

	lifecycle := service.NewQuizLifecycle(service.Deps{
		Store:     db,
		Evaluator: mastery.NewEvaluator(mastery.DefaultCriteria()),
		Scheduler: scheduler.New(schedCfg),
		Searcher:  searcher,
		Generator: generator.NewLLMGenerator(completer.WithTemperature(0.7)),
		Grader:    grader.NewLLMGrader(completer.WithTemperature(0)),
		Locker:    locker,
		Events:    publisher,
		Logger:    log,
	}, service.Options{
		PreparingWindow: cfg.PreparingWindow,
		ConceptTimeout:  cfg.GenerationConceptTimeout,
		Concurrency:     cfg.GenerationConcurrency,
		MaxRetries:      cfg.GenerationMaxRetries,
		RetryBackoff:    2 * time.Second,
	})
	content := service.NewContentService(db, searcher, log)

	pool := worker.NewPool(db, lifecycle.RunGeneration, worker.Config{
		Workers:      cfg.GenerationWorkers,
		PollInterval: cfg.TaskPollInterval,
		Claim: store.ClaimOptions{
			MaxAttempts: cfg.TaskMaxAttempts,
			RetryDelay:  cfg.TaskRetryDelay,
			StaleAfter:  cfg.TaskStaleAfter,
		},
	}, log)
	pool.OnAbandon(lifecycle.HandleAbandoned)
	lifecycle.SetDispatcher(pool)
	pool.Start(ctx)

	// ── Routes ──────────────────────────────────────────────────────
	mux := http.NewServeMux()
	api.RegisterRoutes(mux, api.NewHandler(lifecycle, content, log))

	// ── Middleware chain: Logging → CORS → mux ──────────────────────
	logged := api.Logging(log)(api.CORS(mux))

	// ── Server ──────────────────────────────────────────────────────
	server := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           logged,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		log.Info("shutting down server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server forced to shutdown", "error", err)
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("failed to flush traces", "error", err)
		}
	}()

	log.Info("starting server", "address", cfg.ServerAddress, "workers", cfg.GenerationWorkers)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server failed to start", "error", err)
		os.Exit(1)
	}

	pool.Wait()
	log.Info("server stopped")
}
