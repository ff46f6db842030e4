package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	countingapp "github.com/cyclecount/backend/internal/application/counting"
	"github.com/cyclecount/backend/internal/domain/counting"
	"github.com/cyclecount/backend/internal/infrastructure/auth"
	"github.com/cyclecount/backend/internal/infrastructure/config"
	"github.com/cyclecount/backend/internal/infrastructure/event"
	"github.com/cyclecount/backend/internal/infrastructure/logger"
	"github.com/cyclecount/backend/internal/infrastructure/persistence"
	"github.com/cyclecount/backend/internal/infrastructure/scheduler"
	"github.com/cyclecount/backend/internal/infrastructure/telemetry"
	"github.com/cyclecount/backend/internal/interfaces/http/handler"
	"github.com/cyclecount/backend/internal/interfaces/http/middleware"
	"github.com/cyclecount/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting cycle count service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Tracing first so the DB plugin and HTTP middleware pick up the global
	// provider
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		if err := telemetry.EnableDBTracing(db.DB, log); err != nil {
			log.Fatal("Failed to enable database tracing", zap.Error(err))
		}
	}

	// Report cache is optional; reports fall back to fresh computation when
	// redis is absent
	var reportCache *redis.Client
	if cfg.Redis.Enabled && cfg.Report.CacheEnabled {
		reportCache = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := reportCache.Close(); err != nil {
				log.Error("Error closing redis client", zap.Error(err))
			}
		}()
		if err := reportCache.Ping(context.Background()).Err(); err != nil {
			log.Warn("Redis unreachable, report caching disabled", zap.Error(err))
			reportCache = nil
		}
	}

	// Repositories and ports
	planRepo := persistence.NewGormPlanRepository(db.DB)
	sessionRepo := persistence.NewGormSessionRepository(db.DB)
	itemRepo := persistence.NewGormItemRepository(db.DB)
	catalog := persistence.NewGormProductCatalog(db.DB)
	ledger := persistence.NewGormStockLedger(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Event bus with the audit-trail subscriber
	eventBus := event.NewInMemoryBus(log)
	eventBus.Subscribe(event.LoggingHandler(log),
		counting.EventTypePlanCreated,
		counting.EventTypePlanActivated,
		counting.EventTypeSessionScheduled,
		counting.EventTypeSessionStarted,
		counting.EventTypeSessionCompleted,
		counting.EventTypeSessionCancelled,
		counting.EventTypeItemCounted,
		counting.EventTypeItemAdjusted,
	)

	// Application services
	planService := countingapp.NewPlanService(planRepo, sessionRepo, eventBus, log)
	sessionService := countingapp.NewSessionService(planRepo, sessionRepo, itemRepo, catalog, ledger, txScope, eventBus, log)
	itemService := countingapp.NewItemService(planRepo, sessionRepo, itemRepo, txScope, eventBus, log)
	schedulerService := countingapp.NewSchedulerService(planRepo, sessionRepo, catalog, ledger, eventBus, log)
	reconciliationService := countingapp.NewReconciliationService(planRepo, sessionRepo, itemRepo, txScope, eventBus, log)
	reportService := countingapp.NewReportService(planRepo, sessionRepo, itemRepo, catalog, reportCache, cfg.Report.CacheTTL, log)

	jwtService := auth.NewJWTService(cfg.JWT)

	// HTTP handlers
	planHandler := handler.NewPlanHandler(planService, reportService)
	sessionHandler := handler.NewSessionHandler(sessionService, itemService, reconciliationService, reportService)
	itemHandler := handler.NewItemHandler(itemService)
	systemHandler := handler.NewSystemHandler(db)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.SetupValidator()

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	if cfg.Telemetry.Enabled {
		engine.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Health check outside API versioning and authentication
	engine.GET("/health", systemHandler.Health)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		JWTService: jwtService,
		SkipPaths: []string{
			"/api/v1/system/ping",
			"/api/v1/system/info",
		},
	}))
	r.Register(planHandler).
		Register(sessionHandler).
		Register(itemHandler).
		Register(systemHandler)
	r.Setup()

	// Scheduler ticks generate sessions for due plans
	if cfg.Scheduler.Enabled {
		cron := scheduler.NewCronScheduler(schedulerService, cfg.Scheduler.CronSchedule, cfg.Scheduler.TickTimeout, log)
		if err := cron.Start(); err != nil {
			log.Fatal("Failed to start counting scheduler", zap.Error(err))
		}
		defer cron.Stop()
		log.Info("Counting scheduler started",
			zap.String("schedule", cfg.Scheduler.CronSchedule),
			zap.Duration("tick_timeout", cfg.Scheduler.TickTimeout),
		)
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
