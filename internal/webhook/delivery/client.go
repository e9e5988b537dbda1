// Package delivery performs single-shot webhook POSTs and reports the
// per-endpoint outcome. It deliberately has no retry or backoff; delivery
// policy beyond one attempt per endpoint belongs to the caller.
package delivery

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"time"
)

// requestTimeout bounds the whole request: connect, write and read.
const requestTimeout = 10 * time.Second

// Outcome is the result of one delivery attempt against one endpoint.
// HTTPStatus is zero when no response was received (connection error,
// timeout, malformed URL).
type Outcome struct {
	URL        string `json:"url"`
	Succeeded  bool   `json:"succeeded"`
	HTTPStatus int    `json:"httpStatus,omitempty"`
}

// Client posts JSON payloads to webhook endpoints.
type Client struct {
	http *http.Client
}

// NewClient creates a Client with the default 10 second timeout.
func NewClient() *Client {
	return &Client{
		http: &http.Client{Timeout: requestTimeout},
	}
}

// Post sends payload to url with Content-Type: application/json plus the
// caller-supplied headers. Caller headers win on key collision. Success is
// an HTTP status in [200, 300); everything else, including transport errors
// and timeouts, is a failed outcome, never an error.
func (c *Client) Post(url string, payload []byte, headers map[string]string) Outcome {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		log.Printf("delivery: invalid request for %s: %v", url, err)
		return Outcome{URL: url}
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("delivery: request to %s failed: %v", url, err)
		return Outcome{URL: url}
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	succeeded := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !succeeded {
		log.Printf("delivery: %s returned status %d", url, resp.StatusCode)
	}
	return Outcome{URL: url, Succeeded: succeeded, HTTPStatus: resp.StatusCode}
}
