// Package gateway is the HTTP client for the dossier backend: the data API
// (connections, entities, findings, jobs) and the SQL API used to test
// connections and run ad-hoc queries.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ashfaaq98/dossier-console/internal/errs"
)

const (
	DefaultBaseURL    = "http://127.0.0.1:8000"
	DefaultSQLBaseURL = "http://127.0.0.1:8001"
	DefaultTimeout    = 30 * time.Second

	// RequestIDHeader carries a per-request uuid for correlating backend logs.
	RequestIDHeader = "X-Request-ID"

	maxBodyBytes = 32 << 20
)

// Config holds the gateway endpoints
type Config struct {
	BaseURL    string
	SQLBaseURL string
	Timeout    time.Duration
	UserAgent  string
}

// Metrics counts requests made by the client
type Metrics struct {
	Requests     int64     `json:"requests"`
	Failures     int64     `json:"failures"`
	LastActivity time.Time `json:"last_activity"`
}

// Client talks to the backend. It never retries; a failed call is reported
// to the caller and the user decides whether to try again.
type Client struct {
	baseURL    string
	sqlBaseURL string
	userAgent  string
	httpClient *http.Client
	logger     *log.Logger

	mu      sync.RWMutex
	metrics Metrics
}

// New creates a gateway client. Empty config fields take the defaults.
func New(cfg Config, logger *log.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.SQLBaseURL == "" {
		cfg.SQLBaseURL = DefaultSQLBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "dossier-console"
	}
	for _, u := range []string{cfg.BaseURL, cfg.SQLBaseURL} {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return nil, fmt.Errorf("invalid gateway URL %q: scheme must be http or https", u)
		}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     30 * time.Second,
		},
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		sqlBaseURL: strings.TrimRight(cfg.SQLBaseURL, "/"),
		userAgent:  cfg.UserAgent,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// BaseURL returns the data API root.
func (c *Client) BaseURL() string { return c.baseURL }

// SQLBaseURL returns the SQL API root.
func (c *Client) SQLBaseURL() string { return c.sqlBaseURL }

func (c *Client) Metrics() Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metrics
}

func (c *Client) record(ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.Requests++
	if !ok {
		c.metrics.Failures++
	}
	c.metrics.LastActivity = time.Now()
}

// response is a fully read HTTP response
type response struct {
	status int
	body   []byte
}

// do sends one request and returns the raw body for 2xx responses.
// Transport failures become NetworkError, other statuses BackendError.
func (c *Client) do(ctx context.Context, op, method, base, path string, body any) (*response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(false)
		c.logger.Printf("%s %s failed after %v [%s]: %v", method, path, time.Since(start).Round(time.Millisecond), requestID, err)
		return nil, errs.Network(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.record(false)
		return nil, errs.Network(op, fmt.Errorf("failed to read response: %w", err))
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	c.record(ok)
	c.logger.Printf("%s %s -> %d (%v) [%s]", method, path, resp.StatusCode, time.Since(start).Round(time.Millisecond), requestID)

	if !ok {
		return nil, errs.Backend(op, resp.StatusCode, errorMessage(data))
	}
	return &response{status: resp.StatusCode, body: data}, nil
}

// errorMessage pulls a human readable message out of an error body.
// The data API uses "message" or "error"; the SQL API answers with
// FastAPI's {"detail": ...}, where detail may also be a list.
func errorMessage(body []byte) string {
	var payload struct {
		Message string          `json:"message"`
		Error   string          `json:"error"`
		Detail  json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}
	switch {
	case payload.Message != "":
		return payload.Message
	case len(payload.Detail) > 0:
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil {
			return s
		}
		return string(payload.Detail)
	case payload.Error != "":
		return payload.Error
	}
	return ""
}

// envelope is the data API's optional {success, data, message} wrapper
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// decodeData decodes either a bare JSON value or an envelope around it.
func decodeData[T any](op string, resp *response) (T, error) {
	var out T
	body := bytes.TrimSpace(resp.body)
	if len(body) == 0 {
		return out, nil
	}

	if body[0] == '{' {
		var env envelope
		if err := json.Unmarshal(body, &env); err == nil && env.Success != nil {
			if !*env.Success {
				msg := env.Message
				if msg == "" {
					msg = env.Error
				}
				return out, errs.Backend(op, resp.status, msg)
			}
			if len(env.Data) == 0 || string(env.Data) == "null" {
				return out, nil
			}
			body = env.Data
		}
	}

	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return out, nil
}
