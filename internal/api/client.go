package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const maxErrorBody = 64 << 10

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Logger     *slog.Logger
	Registerer prometheus.Registerer
	HTTPClient *http.Client
}

// Client talks JSON to the eBudget REST API. Calls are never retried.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	calls      *prometheus.HistogramVec
}

// NewClient constructs a new client.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
	if opts.Registerer != nil {
		calls := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ebudget_api_request_duration_seconds",
			Help:    "Duration of calls to the budget REST API by endpoint and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint", "code"})
		if err := opts.Registerer.Register(calls); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				calls, _ = already.ExistingCollector.(*prometheus.HistogramVec)
			} else {
				logger.Warn("register api metrics", slog.Any("error", err))
				calls = nil
			}
		}
		c.calls = calls
	}
	return c
}

type errorBody struct {
	Message string   `json:"message"`
	Error   string   `json:"error"`
	Errors  []string `json:"errors"`
}

func (c *Client) get(ctx context.Context, token, path string, query url.Values, out any) error {
	return c.do(ctx, token, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, token, path string, in, out any) error {
	return c.do(ctx, token, http.MethodPost, path, nil, in, out)
}

func (c *Client) do(ctx context.Context, token, method, path string, query url.Values, in, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("api: encode %s: %w", path, err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(path, "error", start)
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	c.observe(path, strconv.Itoa(resp.StatusCode), start)

	if resp.StatusCode >= 400 {
		return c.statusError(method, path, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("api: decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) statusError(method, path string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var parsed errorBody
	_ = json.Unmarshal(raw, &parsed)
	message := parsed.Message
	if message == "" {
		message = parsed.Error
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s %s", ErrUnauthorized, method, path)
	case resp.StatusCode == http.StatusForbidden && isLockMessage(message):
		return fmt.Errorf("%w: %s", ErrLocked, message)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	case len(parsed.Errors) > 0 || resp.StatusCode == http.StatusUnprocessableEntity:
		return &ValidationError{Status: resp.StatusCode, Message: message, Errors: parsed.Errors}
	default:
		c.logger.Warn("api request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode))
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Message: message}
	}
}

// isLockMessage treats a bare 403 as a lock rejection as well.
func isLockMessage(message string) bool {
	return message == "" || strings.Contains(strings.ToLower(message), "lock")
}

func (c *Client) observe(path, code string, start time.Time) {
	if c.calls == nil {
		return
	}
	c.calls.WithLabelValues(path, code).Observe(time.Since(start).Seconds())
}
