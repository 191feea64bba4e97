package backend

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
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"github.com/adamavenir/frayfeed/internal/core"
)

// ErrNotFound matches any 404 response.
var ErrNotFound = errors.New("not found")

// codeBadResponse marks a 2xx response whose body could not be decoded. The
// server accepted the request, so the outcome is unknown rather than rejected.
const codeBadResponse = "bad_response"

// APIError represents a non-2xx response from the backend.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" && e.Message != "" {
		return fmt.Sprintf("backend error: %s (%d): %s", e.Code, e.Status, e.Message)
	}
	if e.Code != "" {
		return fmt.Sprintf("backend error: %s (%d)", e.Code, e.Status)
	}
	if e.Message != "" {
		return fmt.Sprintf("backend error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend error (%d)", e.Status)
}

// Retryable reports whether repeating the request could succeed.
func (e *APIError) Retryable() bool {
	switch {
	case e.Code == codeBadResponse:
		return true
	case e.Status == 0, e.Status >= 500:
		return true
	case e.Status == http.StatusRequestTimeout, e.Status == http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

type apiErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Options tunes a Client. Zero values fall back to defaults.
type Options struct {
	Token             string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
	RetryInitial      time.Duration
	Logger            *slog.Logger
	HTTPClient        *http.Client
}

// Client talks to the chat backend over JSON/HTTP.
type Client struct {
	baseURL      string
	token        string
	httpClient   *http.Client
	limiter      *rate.Limiter
	maxRetries   int
	retryInitial time.Duration
	log          *slog.Logger
}

// NewClient constructs a backend client.
func NewClient(baseURL string, opts Options) (*Client, error) {
	normalized, err := NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}
	if opts.RetryInitial <= 0 {
		opts.RetryInitial = 200 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		baseURL:      normalized,
		token:        opts.Token,
		httpClient:   httpClient,
		limiter:      rate.NewLimiter(limit, opts.Burst),
		maxRetries:   opts.MaxRetries,
		retryInitial: opts.RetryInitial,
		log:          opts.Logger,
	}, nil
}

// NewClientFromConfig builds a client from the backend section of the config.
func NewClientFromConfig(cfg core.BackendConfig, log *slog.Logger) (*Client, error) {
	return NewClient(cfg.BaseURL, Options{
		Token:             cfg.Token,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		MaxRetries:        cfg.MaxRetries,
		Logger:            log,
	})
}

// NormalizeBaseURL normalizes a backend base URL and ensures it has a scheme.
func NormalizeBaseURL(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fmt.Errorf("backend url cannot be empty")
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return "", fmt.Errorf("invalid backend url: %w", err)
	}
	if parsed.Scheme == "" {
		return "", fmt.Errorf("backend url must include scheme (https://)")
	}
	return strings.TrimRight(value, "/"), nil
}

// doJSON sends one logical request, retrying transient failures with
// exponential backoff. Non-retryable API errors end the loop immediately.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, reqBody any, respBody any) error {
	endpoint, err := c.buildURL(path, query)
	if err != nil {
		return err
	}

	var payload []byte
	if reqBody != nil {
		payload, err = json.Marshal(reqBody)
		if err != nil {
			return err
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInitial

	attempt := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := c.once(ctx, method, endpoint, payload, respBody)
		var apiErr *APIError
		// A garbled success is not resent: the server already applied it.
		if errors.As(err, &apiErr) && (!apiErr.Retryable() || apiErr.Code == codeBadResponse) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(c.maxRetries)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.log.Debug("backend_retry", "method", method, "path", path, "attempt", attempt, "wait", wait, "error", err)
		}),
	)
	return err
}

func (c *Client) once(ctx context.Context, method, endpoint string, payload []byte, respBody any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload apiErrorPayload
		if err := json.Unmarshal(respData, &payload); err == nil {
			apiErr.Code = payload.Error
			apiErr.Message = payload.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(respData))
		}
		return apiErr
	}

	if respBody == nil || len(respData) == 0 {
		return nil
	}
	if err := json.Unmarshal(respData, respBody); err != nil {
		return &APIError{Status: resp.StatusCode, Code: codeBadResponse, Message: err.Error()}
	}
	return nil
}

func (c *Client) buildURL(path string, query url.Values) (string, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	endpoint := base.ResolveReference(ref)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}
	return endpoint.String(), nil
}
