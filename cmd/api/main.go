package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pramodsurya033/Insuredmine/auth"
	"github.com/pramodsurya033/Insuredmine/cache"
	"github.com/pramodsurya033/Insuredmine/config"
	"github.com/pramodsurya033/Insuredmine/customer"
	"github.com/pramodsurya033/Insuredmine/db"
	"github.com/pramodsurya033/Insuredmine/ingest"
	"github.com/pramodsurya033/Insuredmine/logging"
	"github.com/pramodsurya033/Insuredmine/monitor"
	"github.com/pramodsurya033/Insuredmine/policy"
	"github.com/pramodsurya033/Insuredmine/reference"
	"github.com/pramodsurya033/Insuredmine/schedule"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "insuredmine api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, shutdown := context.WithCancel(ctx)
	defer shutdown()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(cfg.Database.URL, logger); err != nil {
			return err
		}
	}

	pool, err := db.NewPool(ctx, cfg.Database.URL, db.PoolOptions{
		MaxConns:       cfg.Database.MaxConns,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	}, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	refRepo := reference.NewRepository(pool)
	customerRepo := customer.NewRepository(pool)
	policyRepo := policy.NewRepository(pool)
	messageRepo := schedule.NewRepository(pool)

	policyService := policy.NewService(customerRepo, policyRepo, logger)
	if cfg.Redis.IsEnabled() {
		reportCache, err := cache.NewReportCache(ctx, cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.ReportTTL,
		}, logger)
		if err != nil {
			logger.Warn("report cache disabled", zap.Error(err))
		} else {
			defer reportCache.Close()
			policyService.WithReportCache(reportCache)
		}
	}

	delimiter := []rune(cfg.Ingest.Delimiter)[0]
	ingestService := ingest.NewService(
		ingest.NewParser(delimiter, cfg.Ingest.MaxParseWorkers, logger),
		ingest.NewResolver(refRepo, customerRepo, logger),
		ingest.NewLinker(customerRepo, policyRepo, logger),
		logger,
	).WithReportInvalidator(policyService)

	scheduleService := schedule.NewService(messageRepo, loc, logger)
	dispatcher := schedule.NewDispatcher(messageRepo, schedule.NewLogSender(logger), schedule.DispatcherConfig{
		Interval:  cfg.Scheduler.Interval,
		BatchSize: cfg.Scheduler.BatchSize,
	}, logger)

	server := &Server{
		ingestService:   ingestService,
		policyService:   policyService,
		scheduleService: scheduleService,
		uploadDir:       cfg.Ingest.UploadDir,
		maxUpload:       cfg.Ingest.MaxUploadBytes,
		logger:          logger.Named("http"),
	}
	if cfg.Auth.JWTSecret != "" {
		server.tokens = auth.NewService(cfg.Auth.JWTSecret)
	} else {
		logger.Warn("JWT_SECRET not set; API is unauthenticated")
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if err := dispatcher.Start(gctx); err != nil {
		return err
	}

	cpuMonitor := monitor.New(monitor.CPUSampler{}, monitor.Config{
		Threshold: cfg.Monitor.Threshold,
		Interval:  cfg.Monitor.Interval,
	}, logger)
	if cfg.Monitor.Enabled {
		if err := cpuMonitor.Start(gctx, overloadHandler(cfg.Monitor, shutdown, logger)); err != nil {
			return err
		}
	}

	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		cpuMonitor.Stop()
		if err := dispatcher.Stop(shutdownCtx); err != nil {
			logger.Warn("dispatcher stop", zap.Error(err))
		}
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// overloadHandler logs every overloaded sample and, when configured,
// schedules one graceful shutdown after the grace period.
func overloadHandler(cfg config.MonitorConfig, shutdown context.CancelFunc, logger *zap.Logger) func(float64) {
	var once sync.Once
	return func(usage float64) {
		logger.Error("cpu overload detected", zap.Float64("usage", usage))
		if !cfg.ShutdownOnOverload {
			return
		}
		once.Do(func() {
			logger.Error("shutting down after cpu overload", zap.Duration("grace", cfg.ShutdownGrace))
			time.AfterFunc(cfg.ShutdownGrace, shutdown)
		})
	}
}
