package crm_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okian/oppsuggest/internal/adapters/crm"
	"github.com/okian/oppsuggest/internal/config"
	"github.com/okian/oppsuggest/internal/domain/model"
	"github.com/okian/oppsuggest/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeConnector struct {
	platform string
	opps     []model.Opportunity
	err      error
}

func (f *fakeConnector) Platform() string   { return f.platform }
func (f *fakeConnector) StageTable() string { return "general" }
func (f *fakeConnector) FetchOpportunities(context.Context, string) ([]model.Opportunity, error) {
	return f.opps, f.err
}
func (f *fakeConnector) FetchLineItems(context.Context, string, model.Filter) ([]model.LineItem, error) {
	return nil, f.err
}

func init() {
	crm.Register("fake", func(key string, cfg config.PlatformConfig, _ logger.Logger) (crm.Connector, error) {
		if cfg.BaseURL == "broken" {
			return nil, errors.New("boom")
		}
		return &fakeConnector{platform: "fake", opps: []model.Opportunity{{ID: key}}}, nil
	})
}

func TestFactories(t *testing.T) {
	Convey("Given the factory registry", t, func() {
		Convey("Registered types are listed", func() {
			So(crm.ListFactories(), ShouldContain, "fake")
			_, ok := crm.GetFactory("fake")
			So(ok, ShouldBeTrue)
		})

		Convey("A nil factory panics", func() {
			So(func() { crm.Register("nil", nil) }, ShouldPanic)
		})
	})
}

func TestPlatformRegistry(t *testing.T) {
	Convey("Given platform entries", t, func() {
		log := logger.Nop()

		Convey("When every type is registered", func() {
			reg, err := crm.NewPlatformRegistry(map[string]config.PlatformConfig{
				"fake":  {BaseURL: "http://a"},
				"other": {Type: "fake", BaseURL: "http://b"},
			}, log)
			So(err, ShouldBeNil)

			Convey("Then connectors are reachable by name", func() {
				So(reg.Platforms(), ShouldResemble, []string{"fake", "other"})
				So(reg.Len(), ShouldEqual, 2)
				conn, err := reg.Get("other")
				So(err, ShouldBeNil)
				opps, err := conn.FetchOpportunities(context.Background(), "acc")
				So(err, ShouldBeNil)
				So(opps[0].ID, ShouldEqual, "other")
			})

			Convey("Then an unknown name fails with ErrUnknownPlatform", func() {
				_, err := reg.Get("hubspot")
				So(errors.Is(err, crm.ErrUnknownPlatform), ShouldBeTrue)
			})
		})

		Convey("When a type has no factory", func() {
			_, err := crm.NewPlatformRegistry(map[string]config.PlatformConfig{
				"x": {Type: "nope", BaseURL: "http://a"},
			}, log)
			So(errors.Is(err, crm.ErrUnknownPlatform), ShouldBeTrue)
		})

		Convey("When a factory fails", func() {
			_, err := crm.NewPlatformRegistry(map[string]config.PlatformConfig{
				"fake": {BaseURL: "broken"},
			}, log)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "boom")
		})

		Convey("A static registry wraps given connectors", func() {
			reg := crm.NewStaticRegistry(map[string]crm.Connector{"s": &fakeConnector{platform: "fake"}})
			conn, err := reg.Get("s")
			So(err, ShouldBeNil)
			So(conn.Platform(), ShouldEqual, "fake")
		})
	})
}

func TestInstrument(t *testing.T) {
	Convey("Given an instrumented connector", t, func() {
		inner := &fakeConnector{platform: "fake", err: crm.ErrUpstream}
		conn := crm.Instrument("fake", inner)

		Convey("Errors pass through unchanged", func() {
			_, err := conn.FetchOpportunities(context.Background(), "acc")
			So(errors.Is(err, crm.ErrUpstream), ShouldBeTrue)
			_, err = conn.FetchLineItems(context.Background(), "acc", model.Filter{})
			So(errors.Is(err, crm.ErrUpstream), ShouldBeTrue)
			So(conn.Platform(), ShouldEqual, "fake")
		})
	})
}

func TestHTTPClient(t *testing.T) {
	Convey("Given the connector HTTP client", t, func() {
		client := crm.NewHTTPClient(config.PlatformConfig{TimeoutSeconds: 5}, logger.Nop())

		Convey("Gzip responses are decoded", func() {
			var encoding string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				encoding = r.Header.Get("Accept-Encoding")
				var buf bytes.Buffer
				zw := gzip.NewWriter(&buf)
				_, _ = zw.Write([]byte(`{"ok":true}`))
				_ = zw.Close()
				w.Header().Set("Content-Encoding", "gzip")
				_, _ = w.Write(buf.Bytes())
			}))
			defer srv.Close()

			req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
			body, err := crm.Do(client, req)
			So(err, ShouldBeNil)
			So(string(body), ShouldEqual, `{"ok":true}`)
			So(encoding, ShouldEqual, "gzip")
		})

		Convey("Non-2xx statuses become ErrUpstream", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "token expired", http.StatusUnauthorized)
			}))
			defer srv.Close()

			req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
			_, err := crm.Do(client, req)
			So(errors.Is(err, crm.ErrUpstream), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "401")
			So(err.Error(), ShouldContainSubstring, "token expired")
		})

		Convey("An unparsable proxy is ignored", func() {
			c := crm.NewHTTPClient(config.PlatformConfig{Proxy: "://bad"}, logger.Nop())
			So(c, ShouldNotBeNil)
		})
	})
}
