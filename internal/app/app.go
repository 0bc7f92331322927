// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyellow/nycu-course-go/internal/api"
	"github.com/garyellow/nycu-course-go/internal/buildinfo"
	"github.com/garyellow/nycu-course-go/internal/cache"
	"github.com/garyellow/nycu-course-go/internal/config"
	"github.com/garyellow/nycu-course-go/internal/department"
	"github.com/garyellow/nycu-course-go/internal/kvstore"
	"github.com/garyellow/nycu-course-go/internal/logger"
	"github.com/garyellow/nycu-course-go/internal/metrics"
	"github.com/garyellow/nycu-course-go/internal/nameindex"
	"github.com/garyellow/nycu-course-go/internal/nycuapi"
	"github.com/garyellow/nycu-course-go/internal/r2client"
	"github.com/garyellow/nycu-course-go/internal/ratelimit"
	"github.com/garyellow/nycu-course-go/internal/search"
	"github.com/garyellow/nycu-course-go/internal/sentry"
	"github.com/garyellow/nycu-course-go/internal/snapshot"
	"github.com/garyellow/nycu-course-go/internal/suggest"
	"github.com/garyellow/nycu-course-go/internal/warmup"
)

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg            *config.Config
	logger         *logger.Logger
	store          kvstore.Store
	metrics        *metrics.Metrics
	registry       *prometheus.Registry
	upstream       *nycuapi.Client
	service        *search.Service
	warmer         *warmup.DepartmentWarmer
	snapshots      *snapshot.Manager       // nil unless R2 is configured
	limiter        *ratelimit.KeyedLimiter // nil when API rate limiting is off
	readinessState *warmup.ReadinessState
	router         *gin.Engine
	server         *http.Server
	wg             sync.WaitGroup // Background jobs, waited for on shutdown
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logger.Options{
		BetterStackToken:    cfg.BetterStackToken,
		BetterStackEndpoint: cfg.BetterStackEndpoint,
	})
	log = log.WithField("service", "nycu-course-go")
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}

	// Package-level slog.*Context calls pick up request IDs through the
	// context handler.
	slog.SetDefault(log.Logger)

	log.WithField("version", buildinfo.Version).Info("Initializing application...")

	if err := sentry.Initialize(sentry.Config{
		Token:       cfg.SentryToken,
		Host:        cfg.SentryHost,
		Environment: cfg.SentryEnvironment,
		Release:     buildinfo.Release(),
		SampleRate:  cfg.SentrySampleRate,
	}); err != nil {
		log.WithError(err).Warn("Sentry initialization failed")
	} else if cfg.SentryEnabled() {
		log.WithField("environment", cfg.SentryEnvironment).Info("Sentry error tracking enabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	snapshots, err := restoreSnapshot(ctx, cfg, m, log)
	if err != nil {
		log.WithError(err).Warn("Snapshot restore failed, starting with an empty store")
	}

	store, err := kvstore.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	log.WithField("backend", cfg.StoreBackend).Info("Store connected")

	gin.SetMode(gin.ReleaseMode)
	a := newApplication(cfg, log, store, registry, m)
	a.snapshots = snapshots
	return a, nil
}

// newApplication wires every component on top of an open store.
func newApplication(cfg *config.Config, log *logger.Logger, store kvstore.Store, registry *prometheus.Registry, m *metrics.Metrics) *Application {
	upstream := nycuapi.NewClient(nycuapi.Config{
		Endpoint: cfg.UpstreamEndpoint,
		Timeout:  cfg.UpstreamTimeout,
		Throttle: cfg.UpstreamThrottle,
		Metrics:  m,
	})

	index := nameindex.New(store, m)
	departments := department.NewRepository(store)
	warmer := warmup.NewDepartmentWarmer(department.NewResolver(upstream), departments,
		log, m, config.DepartmentWarmup)

	service := search.New(search.Options{
		Upstream:      upstream,
		Cache:         cache.New(store, m),
		Index:         index,
		Departments:   departments,
		Warmer:        warmer,
		Suggester:     suggest.New(index, suggest.FuzzyMatcher{}, cfg.SuggestionLimit),
		WaitForWarmup: cfg.WaitForWarmup,
	})

	a := &Application{
		cfg:            cfg,
		logger:         log,
		store:          store,
		metrics:        m,
		registry:       registry,
		upstream:       upstream,
		service:        service,
		warmer:         warmer,
		readinessState: warmup.NewReadinessState(cfg.WarmupGracePeriod),
	}
	if cfg.APIRateLimit > 0 {
		a.limiter = ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
			PerMinute: cfg.APIRateLimit,
			Burst:     float64(cfg.APIRateBurst),
			Metrics:   m,
		})
	}
	a.router = a.newRouter()
	a.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.router,
		ReadTimeout:       config.HTTPRead,
		ReadHeaderTimeout: config.HTTPRead,
		WriteTimeout:      config.HTTPWrite,
		IdleTimeout:       config.HTTPIdle,
	}
	return a
}

// restoreSnapshot downloads the last published store file before the store
// is opened. It returns nil when snapshots are not configured.
func restoreSnapshot(ctx context.Context, cfg *config.Config, m *metrics.Metrics, log *logger.Logger) (*snapshot.Manager, error) {
	if !cfg.R2Enabled() {
		return nil, nil
	}
	client, err := r2client.New(ctx, r2client.Config{
		Endpoint:    cfg.R2Endpoint,
		AccessKeyID: cfg.R2AccessKeyID,
		SecretKey:   cfg.R2SecretAccessKey,
		BucketName:  cfg.R2BucketName,
	})
	if err != nil {
		return nil, err
	}
	mgr := snapshot.New(client, snapshot.Config{
		Key:      cfg.R2SnapshotKey,
		Interval: cfg.SnapshotInterval,
		TempDir:  cfg.DataDir,
	}, m)

	ctx, cancel := context.WithTimeout(ctx, config.SnapshotTransfer)
	defer cancel()
	restored, err := mgr.Restore(ctx, cfg.SQLitePath())
	if err != nil {
		return mgr, err
	}
	if restored {
		log.WithField("etag", mgr.LastETag()).Info("Store restored from R2 snapshot")
	}
	return mgr, nil
}

func (a *Application) newRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if sentry.IsEnabled() {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(api.RequestID(), api.SecurityHeaders(), api.Logging(a.logger))

	router.GET("/livez", a.livenessCheck)
	router.GET("/readyz", a.readinessCheck)
	router.GET("/metrics",
		api.BasicAuth("metrics", a.cfg.MetricsUsername, a.cfg.MetricsPassword),
		gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	apiGroup := router.Group("", a.readinessMiddleware())
	if a.limiter != nil {
		apiGroup.Use(api.RateLimit(a.limiter))
	}
	apiGroup.Use(api.Timeout(config.HTTPWrite))
	api.NewHandler(a.service, sentry.Report).Register(apiGroup)
	return router
}

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (a *Application) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.ReadinessCheckTimeout)
	defer cancel()

	if a.cfg.WaitForWarmup && !a.readinessState.IsReady() {
		status := a.readinessState.Status()
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": status.Reason,
			"progress": gin.H{
				"elapsed_seconds": status.ElapsedSeconds,
				"timeout_seconds": status.TimeoutSeconds,
			},
		})
		return
	}

	body := gin.H{
		"status":    "ready",
		"store":     a.cfg.StoreBackend,
		"warmed_up": a.readinessState.WarmupCompleted(),
	}
	// Requests still reach the catalog API without the store, so an
	// unreachable store degrades the service instead of taking it out.
	if err := a.store.Ping(ctx); err != nil {
		a.logger.WithError(err).Warn("Readiness check: store unavailable")
		body["status"] = "degraded"
		body["reason"] = "store unavailable"
		c.JSON(http.StatusOK, body)
		return
	}
	if counter, ok := a.store.(interface {
		Count(context.Context) (int, error)
	}); ok {
		if n, err := counter.Count(ctx); err == nil {
			body["keys"] = n
		}
	}
	c.JSON(http.StatusOK, body)
}

// readinessMiddleware rejects API calls while the startup warm-up is still
// running, when the service is configured to wait for it.
func (a *Application) readinessMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.cfg.WaitForWarmup && !a.readinessState.IsReady() {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "service warming up",
			})
			return
		}
		c.Next()
	}
}

// Run starts the HTTP server and background jobs and blocks until SIGINT or
// SIGTERM. Background jobs are stopped and waited for before the store is
// closed.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.startBackgroundJobs(ctx)
	serverErr := a.startHTTPServer()

	select {
	case sig := <-a.shutdownSignal():
		a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-serverErr:
		a.logger.WithError(err).Error("HTTP server stopped unexpectedly")
	}

	cancel()
	a.warmer.Close()

	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("All background jobs completed")

	return a.shutdown()
}

func (a *Application) startBackgroundJobs(ctx context.Context) {
	a.wg.Go(func() {
		a.departmentRefresh(ctx)
	})
	if a.snapshots != nil {
		if src, ok := a.store.(snapshot.Source); ok {
			a.wg.Go(func() {
				a.snapshots.Run(ctx, src)
			})
		}
	}
}

func (a *Application) startHTTPServer() <-chan error {
	errc := make(chan error, 1)
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	return errc
}

func (a *Application) shutdownSignal() <-chan os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return quit
}

// shutdown stops the HTTP server, lets detached name index writes finish
// and closes the store. Background jobs must already be stopped.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.service.Wait()
	if a.limiter != nil {
		a.limiter.Stop()
	}

	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "store").Error("Component close error")
	}

	sentry.Flush(2 * time.Second)
	a.logger.Info("Shutdown complete")
	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "logger shutdown: %v\n", err)
	}
	return nil
}

// departmentRefresh warms the most recent periods at startup and then on
// every refresh interval. The period list is refetched each time so a new
// semester is picked up without a restart.
func (a *Application) departmentRefresh(ctx context.Context) {
	a.refreshDepartments(ctx, a.readinessState)

	if a.cfg.DepartmentRefreshInterval <= 0 {
		return
	}
	ticker := time.NewTicker(a.cfg.DepartmentRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.refreshDepartments(ctx, nil)
		}
	}
}

func (a *Application) refreshDepartments(ctx context.Context, readiness *warmup.ReadinessState) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.WithField("panic", r).Error("Panic in department refresh")
			if readiness != nil {
				readiness.MarkReady()
			}
		}
	}()

	periods, err := a.service.RefreshAcademicPeriods(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Academic period refresh failed")
		sentry.Report(ctx, err)
		if readiness != nil {
			readiness.MarkReady()
		}
		return
	}

	_, err = warmup.Run(ctx, periodList(periods), a.warmer, a.logger, warmup.Options{
		Latest:    a.cfg.WarmupPeriods,
		Readiness: readiness,
	})
	if err != nil && ctx.Err() == nil {
		a.logger.WithError(err).Warn("Department refresh finished with errors")
		sentry.Report(ctx, err)
	}
}

// periodList serves an already fetched period list to warmup.Run.
type periodList []string

func (p periodList) FetchAcademicPeriods(context.Context) ([]string, error) {
	return p, nil
}
