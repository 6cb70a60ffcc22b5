package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// maxReplyBytes bounds a response body read.
const maxReplyBytes = 8 << 20

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST with a JSON body and a fresh X-Request-ID.
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (*http.Response, string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	id := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", id)
	resp, err := c.client.Do(req)
	return resp, id, err
}

func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
}

// submitFixture posts one fixture to /rank and decodes the reply.
func submitFixture(ctx context.Context, client *HTTPClient, url string, f Fixture) Outcome {
	start := time.Now()
	out := Outcome{Fixture: f.Name, Expected: f.ExpectSuggested}

	resp, id, err := client.Post(ctx, url, rankBody{Data: f.Data, Config: f.Config})
	out.RequestID = id
	if err != nil {
		out.Err = err
		return out
	}
	out.Status = resp.StatusCode

	body, err := readResponseBody(resp)
	out.Latency = time.Since(start)
	if err != nil {
		out.Err = fmt.Errorf("read reply: %w", err)
		return out
	}

	var reply rankReply
	if err := json.Unmarshal(body, &reply); err != nil {
		out.Err = fmt.Errorf("decode reply (status %d): %w", resp.StatusCode, err)
		return out
	}
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if reply.Error != nil {
			msg = *reply.Error
		}
		out.Err = fmt.Errorf("status %d: %s", resp.StatusCode, msg)
		return out
	}
	for _, r := range reply.Result {
		if r.Suggested {
			out.Suggested = r.ID
			break
		}
	}
	return out
}
