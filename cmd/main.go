package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "github.com/okian/oppsuggest/internal/adapters/crm/acrm"
	_ "github.com/okian/oppsuggest/internal/adapters/crm/pivotal"
	_ "github.com/okian/oppsuggest/internal/adapters/crm/salesforce"
	"github.com/okian/oppsuggest/internal/adapters/http/api"
	"github.com/okian/oppsuggest/internal/adapters/http/swagger"
	service "github.com/okian/oppsuggest/internal/app"
	"github.com/okian/oppsuggest/internal/config"
	"github.com/okian/oppsuggest/pkg/logger"
	"github.com/okian/oppsuggest/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	writeTimeoutSlack         = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Our own system gauges replace the default Go collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return errors.New("failed to load config: " + err.Error())
	}

	if err := logger.InitWithFormat(cfg.LogFormat, os.Stdout); err != nil {
		return errors.New("failed to initialize logging: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.Configure(metricsOptions(cfg.Metrics)...)

	svc, err := service.FromConfig(ctx, cfg, log)
	if err != nil {
		return errors.New("failed to build service: " + err.Error())
	}
	if err := svc.Start(ctx); err != nil {
		return errors.New("failed to start service: " + err.Error())
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := newHTTPServer(ctx, cfg, svc)

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return errors.New("HTTP server failed: " + err.Error())
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// metricsOptions maps the metrics section of the config onto collector options.
func metricsOptions(cfg config.MetricsConfig) []metrics.Option {
	return []metrics.Option{
		metrics.WithMetricsEnabled(cfg.Enabled),
		metrics.WithNamespace(cfg.Namespace),
		metrics.WithSubsystem(cfg.Subsystem),
		metrics.WithHistogramBuckets(cfg.HistogramBuckets),
		metrics.WithRefreshInterval(time.Duration(cfg.RefreshIntervalSeconds) * time.Second),
		metrics.WithCustomLabels(cfg.Labels),
	}
}

// newHTTPServer registers docs and API routes. The write timeout follows the
// request timeout so slow CRM calls can still answer.
func newHTTPServer(ctx context.Context, cfg *config.Config, svc *service.Service) *http.Server {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc).Register(ctx, mux)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      time.Duration(cfg.RequestTimeoutSeconds)*time.Second + writeTimeoutSlack,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()
	queueLen, _ := stats["queueLength"].(int)
	capacity, _ := stats["queueSize"].(int)
	metrics.UpdateQueueSize(queueLen, capacity)
}
