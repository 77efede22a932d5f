package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-triage/internal/api/http"
	"github.com/spec-kit/ticket-triage/internal/api/http/handlers"
	"github.com/spec-kit/ticket-triage/internal/ai"
	"github.com/spec-kit/ticket-triage/internal/assignment"
	"github.com/spec-kit/ticket-triage/internal/auth"
	"github.com/spec-kit/ticket-triage/internal/config"
	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/notification"
	"github.com/spec-kit/ticket-triage/internal/observability"
	"github.com/spec-kit/ticket-triage/internal/persistence"
	"github.com/spec-kit/ticket-triage/internal/repository"
	"github.com/spec-kit/ticket-triage/internal/scheduler"
	"github.com/spec-kit/ticket-triage/internal/triage"
	"github.com/spec-kit/ticket-triage/internal/worker"
	"github.com/spec-kit/ticket-triage/internal/workflow"
	"github.com/spec-kit/ticket-triage/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	if pg.PoolHandle() == nil {
		logger.Fatal("POSTGRES_DSN is required: tickets and users live in postgres")
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), migrations.FS, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	dependencies := map[string]handlers.Pinger{"postgres": pg}

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	userRepo := repository.NewUserRepository(pool)

	var runRepo repository.WorkflowRunRepository
	switch cfg.RunStore.Driver {
	case "sqlite":
		db, err := persistence.NewSQLite(ctx, cfg.RunStore.SQLitePath, logger)
		if err != nil {
			logger.Fatal("failed to open sqlite run store", zap.Error(err))
		}
		defer db.Close()
		dependencies["sqlite"] = handlers.PingFunc(db.PingContext)
		runRepo = repository.NewSQLiteWorkflowRunRepository(db)
	case "memory":
		logger.Warn("workflow runs kept in memory; runs are lost on restart")
		runRepo = repository.NewInMemoryWorkflowRunRepository()
	default:
		runRepo = repository.NewWorkflowRunRepository(pool)
	}

	var queue events.Queue
	switch cfg.Events.Driver {
	case "memory":
		logger.Warn("events queued in memory; undelivered events are lost on restart")
		queue = events.NewMemoryQueue(cfg.Events.BufferSize)
	default:
		redis := persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redis.Close()
		dependencies["redis"] = redis
		redisQueue := events.NewRedisQueue(redis.Client, cfg.Events.QueueKey)
		if n, err := redisQueue.Requeue(ctx); err != nil {
			logger.Warn("failed to requeue in-flight events", zap.Error(err))
		} else if n > 0 {
			logger.Info("requeued in-flight events", zap.Int("count", n))
		}
		queue = redisQueue
	}
	defer queue.Close() //nolint:errcheck

	classifier, err := ai.NewClassifier(ai.NewGenerator(cfg.AI, logger), logger)
	if err != nil {
		logger.Fatal("failed to build classifier", zap.Error(err))
	}
	resolver := assignment.NewResolver(assignment.RepositoryPool(userRepo))
	notifier := notification.NewDispatcher(cfg.Notification, cfg.App.PublicURL, logger)

	engine := workflow.NewEngine(runRepo, workflow.Options{
		Policy: workflow.RetryPolicy{
			MaxAttempts: cfg.Workflow.StepMaxAttempts,
			Backoff:     cfg.Workflow.StepBackoff,
			Delay:       cfg.Workflow.StepDelay,
			MaxDelay:    cfg.Workflow.StepMaxDelay,
		},
		Logger:  logger,
		Metrics: metrics,
	})

	router := events.NewRouter()
	triage.Register(engine, router,
		triage.NewTicketWorkflow(classifier, resolver, ticketRepo, notifier).Definition(),
		triage.NewSignupWorkflow(notifier, cfg.App.PublicURL).Definition(),
	)

	workerPool := worker.NewPool(cfg.Worker.Concurrency, logger)
	consumer := worker.NewConsumer(queue, router, workerPool, logger)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Run(ctx); err != nil {
			logger.Error("consumer stopped", zap.Error(err))
		}
	}()

	redriver := scheduler.NewRedriver(runRepo, queue, cfg.Workflow.MaxExecutions, cfg.Workflow.RedriveBatchSize, logger)
	sched, err := scheduler.NewScheduler(redriver, cfg.Workflow.RedriveSchedule, logger)
	if err != nil {
		logger.Fatal("failed to build redrive scheduler", zap.Error(err))
	}
	sched.Start()

	var tokens *auth.TokenManager
	if cfg.Events.SigningKey != "" {
		tokens = auth.NewTokenManager(cfg.Events.SigningKey, 0)
	} else {
		logger.Warn("EVENT_SIGNING_KEY not set; event publishing is unauthenticated")
	}

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:   handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies, metrics),
		Events:   handlers.NewEventsHandler(queue, router.Names()),
		Runs:     handlers.NewRunsHandler(engine, redriver),
		Tickets:  handlers.NewTicketsHandler(ticketRepo),
		EventKey: auth.NewEventKeyMiddleware(tokens),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	_ = app.ShutdownWithContext(shutdownCtx)
	sched.Stop(shutdownCtx)
	cancel()

	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		logger.Warn("workflows still running at shutdown deadline")
	}
	workerPool.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
