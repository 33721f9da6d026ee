package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alfredai/landing-leads/cmd/mainconfig"
	"github.com/alfredai/landing-leads/internal/api/router"
	"github.com/alfredai/landing-leads/internal/app/bootstrap"
	"github.com/alfredai/landing-leads/internal/audit"
	appconfig "github.com/alfredai/landing-leads/internal/config"
	"github.com/alfredai/landing-leads/internal/health"
	"github.com/alfredai/landing-leads/internal/leads"
	"github.com/alfredai/landing-leads/internal/notify"
	"github.com/alfredai/landing-leads/internal/observability/metrics"
	"github.com/alfredai/landing-leads/internal/ratelimit"
	"github.com/alfredai/landing-leads/internal/tracking"
	"github.com/alfredai/landing-leads/pkg/logging"
)

func main() {
	if err := appconfig.LoadDotEnv(".env.local", ".env"); err != nil {
		fmt.Fprintf(os.Stderr, "load dotenv: %v\n", err)
		os.Exit(1)
	}

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting landing leads API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)
	if missing := cfg.MissingRequired(); len(missing) > 0 {
		logger.Warn("missing environment variables", "keys", missing)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	metricsHandler, leadMetrics := setupMetrics()

	// Storage
	db, err := bootstrap.BuildDatabase(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	var repo leads.Repository
	auditor := audit.NewService(nil, logger)
	if db != nil {
		repo = leads.NewPostgresRepository(db.Pool)
		auditor = audit.NewService(db.SQL, logger)
	} else {
		logger.Warn("DATABASE_URL not set, storing leads in memory")
		repo = leads.NewInMemoryRepository()
	}
	retentionDone := auditor.StartRetention(ctx, cfg.AuditRetention, cfg.AuditPurgeInterval)

	// Attribution
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}
	geo := bootstrap.BuildGeoLocator(cfg, redisClient, leadMetrics, logger)
	extractor := tracking.NewExtractor(geo, logger)

	// Notifications
	sesClient, err := setupSESClient(ctx, cfg)
	if err != nil {
		return err
	}
	sender, provider, err := bootstrap.BuildEmailSender(cfg, sesClient, logger)
	if err != nil {
		return err
	}
	logger.Info("email provider selected", "provider", provider)
	notifier := notify.NewLeadNotifier(sender, notify.Config{
		AdminEmail: cfg.AdminEmail,
		AppURL:     cfg.AppURL,
	}, leadMetrics, logger)

	dispatcher := notify.NewDispatcher(notify.DispatcherConfig{
		QueueSize:   cfg.NotifyQueueSize,
		Workers:     cfg.NotifyWorkers,
		TaskTimeout: cfg.NotifyTimeout,
	}, logger)
	dispatcher.Start(ctx)
	go drainTaskErrors(dispatcher.Errors(), logger)

	// Rate limiting
	submitLimiter := ratelimit.New(cfg.RateLimitMax, cfg.RateLimitWindow,
		ratelimit.WithSweepInterval(cfg.RateLimitSweepInterval))
	submitLimiter.Start(ctx)
	defer submitLimiter.Stop()

	reportLimiter := ratelimit.New(cfg.ReportRateLimitMax, cfg.ReportRateLimitWindow,
		ratelimit.WithSweepInterval(cfg.RateLimitSweepInterval))
	reportLimiter.Start(ctx)
	defer reportLimiter.Stop()

	intake := leads.NewIntake(leads.IntakeDeps{
		Limiter:       submitLimiter,
		Extractor:     extractor,
		Repo:          repo,
		Notifier:      notifier,
		Queue:         dispatcher,
		Auditor:       auditor,
		Metrics:       leadMetrics,
		HoneypotField: cfg.HoneypotField,
		Logger:        logger,
	})

	// Setup router
	r := router.New(&router.Config{
		Logger:             logger,
		LeadsHandler:       leads.NewHandler(intake, repo, leadMetrics, logger),
		HealthHandler:      health.NewHandler(repo, cfg.MissingRequired, logger),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		ReportAuthSecret:   cfg.ReportJWTSecret,
		ReportLimiter:      reportLimiter,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		logger.Warn("pending notifications dropped", "error", err)
	}
	select {
	case <-retentionDone:
	case <-shutdownCtx.Done():
	}
	return nil
}

// setupMetrics registers the lead collectors plus runtime collectors on a
// dedicated registry.
func setupMetrics() (http.Handler, *metrics.LeadMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewLeadMetrics(reg)
}

// setupSESClient returns nil unless SES is the selected provider.
func setupSESClient(ctx context.Context, cfg *appconfig.Config) (notify.SESAPI, error) {
	if cfg.EmailProviderName() != appconfig.EmailProviderSES {
		return nil, nil
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return mainconfig.NewSESClient(awsCfg, cfg), nil
}

func drainTaskErrors(errs <-chan notify.TaskError, logger *logging.Logger) {
	for te := range errs {
		logger.Error("background task failed", "task", te.Task, "error", te.Err)
	}
}
