package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/case-workflow-service/internal/api/http"
	"github.com/spec-kit/case-workflow-service/internal/api/http/handlers"
	"github.com/spec-kit/case-workflow-service/internal/auth"
	"github.com/spec-kit/case-workflow-service/internal/cache"
	"github.com/spec-kit/case-workflow-service/internal/config"
	"github.com/spec-kit/case-workflow-service/internal/events"
	"github.com/spec-kit/case-workflow-service/internal/observability"
	"github.com/spec-kit/case-workflow-service/internal/persistence"
	"github.com/spec-kit/case-workflow-service/internal/repository"
	"github.com/spec-kit/case-workflow-service/internal/service"
	"github.com/spec-kit/case-workflow-service/internal/worker"
	"github.com/spec-kit/case-workflow-service/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var caseRepo repository.CaseRepository
	var auditRepo repository.AuditRepository
	if pg.Enabled() {
		caseRepo = repository.NewCaseRepository(pg.PoolHandle())
		auditRepo = repository.NewAuditRepository(pg.PoolHandle())
	} else {
		caseRepo = repository.NewMemoryCaseRepository()
		auditRepo = repository.NewMemoryAuditRepository()
	}

	queue := workflow.NewQueueIndex()
	if err := queue.Rebuild(ctx, caseRepo); err != nil {
		logger.Fatal("failed to rebuild queue index", zap.Error(err))
	}
	locks := workflow.NewLockTable()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	queueCache := cache.NewWorkQueueCache(redis.Client, cfg.Workflow.WorkQueueCacheTTL(), logger)

	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		CaseRepo:   caseRepo,
		AuditRepo:  auditRepo,
		Queue:      queue,
		QueueCache: queueCache,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Config:     cfg.Workflow,
	})
	workflowService := service.NewWorkflowService(service.WorkflowDependencies{
		CaseRepo:   caseRepo,
		AuditRepo:  auditRepo,
		Queue:      queue,
		Locks:      locks,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Config:     cfg.Workflow,
	})
	intakeService := service.NewIntakeService(service.IntakeDependencies{
		CaseRepo:   caseRepo,
		AuditRepo:  auditRepo,
		Queue:      queue,
		Dispatcher: dispatcher,
		Metrics:    metrics,
	})
	reportingService := service.NewReportingService(caseRepo, auditRepo, queue)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret)
	authMiddleware := auth.NewAuthMiddleware(tokenManager)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Workflows:      handlers.NewWorkflowHandler(assignmentService, workflowService),
		Cases:          handlers.NewCasesHandler(intakeService, reportingService),
		Dashboard:      handlers.NewDashboardHandler(reportingService),
		AuthMiddleware: authMiddleware,
	})

	if cfg.Metrics.Enabled {
		go func() {
			addr := cfg.Metrics.Addr(cfg.App.Host)
			logger.Info("metrics listener started", zap.String("addr", addr))
			if err := http.ListenAndServe(addr, metrics.Handler()); err != nil {
				logger.Error("metrics listener stopped", zap.Error(err))
			}
		}()
	}

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
