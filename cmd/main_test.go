package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/oppsuggest/internal/adapters/crm"
	"github.com/okian/oppsuggest/internal/adapters/lookup"
	service "github.com/okian/oppsuggest/internal/app"
	"github.com/okian/oppsuggest/internal/config"
	"github.com/okian/oppsuggest/pkg/logger"
	"github.com/okian/oppsuggest/pkg/metrics"
)

func TestConnectorsRegistered(t *testing.T) {
	convey.Convey("Given the server binary imports", t, func() {
		convey.So(crm.ListFactories(), convey.ShouldResemble, []string{"acrm", "pivotal", "salesforce"})
	})
}

func TestServerWiring(t *testing.T) {
	convey.Convey("Given configuration from the environment", t, func() {
		dir := t.TempDir()
		convey.So(os.WriteFile(filepath.Join(dir, lookup.UsersFile), []byte("Id,Email\nu1,rep@example.com\n"), 0o600), convey.ShouldBeNil)

		t.Setenv("OPPSUGGEST_ADDR", ":8181")
		t.Setenv("OPPSUGGEST_WORKER_COUNT", "2")
		t.Setenv("OPPSUGGEST_REQUEST_TIMEOUT_SECONDS", "7")
		t.Setenv("OPPSUGGEST_LOOKUP__DATA_DIR", dir)
		t.Setenv("OPPSUGGEST_CONFIG", "")
		t.Setenv("ANTHROPIC_API_KEY", "")

		ctx := context.Background()
		cfg, err := config.Load(ctx)
		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg.Addr, convey.ShouldEqual, ":8181")

		svc, err := service.FromConfig(ctx, cfg, logger.Nop())
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		srv := newHTTPServer(ctx, cfg, svc)

		convey.Convey("When inspecting the server", func() {
			convey.So(srv.Addr, convey.ShouldEqual, ":8181")
			convey.So(srv.WriteTimeout, convey.ShouldEqual, 7*time.Second+writeTimeoutSlack)
		})

		convey.Convey("When calling the registered routes", func() {
			for _, path := range []string{"/healthz", "/stats", "/platforms", "/api-docs", "/openapi.yaml"} {
				req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
				w := httptest.NewRecorder()
				srv.Handler.ServeHTTP(w, req)
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			}

			body := `{"data":{"transcript":"x","opportunities":[{"id":"o1","stage":"engaged"}]}}`
			req := httptest.NewRequest(http.MethodPost, "/rank", strings.NewReader(body))
			w := httptest.NewRecorder()
			srv.Handler.ServeHTTP(w, req)
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Body.String(), convey.ShouldContainSubstring, `"suggested":true`)
		})

		convey.Convey("When the default platform is not configured", func() {
			body := `{"data":{"transcript":"x","email":"rep@example.com","account_id":"a"}}`
			req := httptest.NewRequest(http.MethodPost, "/opportunity_suggestion", strings.NewReader(body))
			w := httptest.NewRecorder()
			srv.Handler.ServeHTTP(w, req)
			convey.So(w.Code, convey.ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given a started service", t, func() {
		svc := service.New(service.WithLogger(logger.Nop()), service.WithWorkerCount(1))
		convey.So(svc.Start(context.Background()), convey.ShouldBeNil)
		defer svc.Stop()

		convey.So(func() { updateSystemMetrics() }, convey.ShouldNotPanic)
		convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		convey.So(func() {
			startSystemMetricsUpdater(ctx)
			startServiceMetricsUpdater(ctx, svc)
		}, convey.ShouldNotPanic)
	})
}

func TestMetricsOptions(t *testing.T) {
	convey.Convey("Given the metrics section of the config", t, func() {
		cfg := config.New(context.Background()).Metrics
		cfg.Namespace = "crm"
		cfg.RefreshIntervalSeconds = 3
		cfg.HistogramBuckets = []float64{1, 10, 100}
		cfg.Labels = map[string]string{"env": "test"}

		convey.Convey("When configuring the collectors from it", func() {
			registry := metrics.Configure(metricsOptions(cfg)...)
			defer metrics.Configure()

			convey.So(metrics.RefreshInterval(), convey.ShouldEqual, 3*time.Second)
			families, err := registry.Gather()
			convey.So(err, convey.ShouldBeNil)
			names := make([]string, 0, len(families))
			for _, f := range families {
				names = append(names, f.GetName())
			}
			convey.So(names, convey.ShouldContain, "crm_ranking_queue_size")
		})
	})
}
