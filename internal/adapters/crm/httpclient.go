package crm

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/okian/oppsuggest/internal/config"
	"github.com/okian/oppsuggest/pkg/logger"
)

const (
	defaultTimeout = 30 * time.Second
	// maxBodyBytes caps how much of a CRM response is read.
	maxBodyBytes = 32 << 20
	// maxErrorSnippet caps how much of an error body ends up in an error message.
	maxErrorSnippet = 256
)

// NewHTTPClient builds the client shared by connectors: optional proxy,
// per-platform timeout and transparent gzip decoding.
func NewHTTPClient(cfg config.PlatformConfig, log logger.Logger) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		// Decoding is done by gzipTransport so it also covers explicit Accept-Encoding.
		DisableCompression: true,
	}

	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			log.Warn(context.Background(), "ignoring unparsable proxy url",
				logger.String("proxy", cfg.Proxy), logger.Error(err))
		} else {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: &gzipTransport{next: transport},
	}
}

type gzipTransport struct {
	next http.RoundTripper
}

func (t *gzipTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", "gzip")
	}
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.Header.Get("Content-Encoding") != "gzip" {
		return resp, nil
	}
	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: gzip body: %v", ErrDecode, err)
	}
	resp.Body = &gzipReadCloser{Reader: zr, body: resp.Body}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

type gzipReadCloser struct {
	*gzip.Reader
	body io.ReadCloser
}

func (g *gzipReadCloser) Close() error {
	if err := g.Reader.Close(); err != nil {
		_ = g.body.Close()
		return err
	}
	return g.body.Close()
}

// Do sends req and returns the body of a 2xx response. Any other status is
// reported as ErrUpstream with a short body snippet.
func Do(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUpstream, req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := body
		if len(snippet) > maxErrorSnippet {
			snippet = snippet[:maxErrorSnippet]
		}
		return nil, fmt.Errorf("%w: %s %s: status %d: %s", ErrUpstream, req.Method, req.URL.Path, resp.StatusCode, snippet)
	}
	return body, nil
}
