package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/foundationallm/foundationallm-sub000/internal/auth"
	"github.com/foundationallm/foundationallm-sub000/internal/logging"
)

const (
	defaultTimeout  = 120 * time.Second
	defaultRetries  = 3
	defaultInterval = 500 * time.Millisecond
	maxInterval     = 30 * time.Second
	tracerName      = "github.com/foundationallm/foundationallm-sub000/internal/transport"
)

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Observer receives one callback per finished HTTP attempt.
type Observer interface {
	ObserveRequest(api string, method string, status int, elapsed time.Duration)
}

// Options configures a Client.
type Options struct {
	// Name labels metrics, spans and log lines ("core", "management", ...).
	Name              string
	BaseURL           string
	HTTP              HTTPDoer
	Tokens            auth.TokenSource
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxRetries        int
	InitialInterval   time.Duration
	Logger            *zap.SugaredLogger
	Observer          Observer
	Headers           map[string]string
}

// Client is the shared REST plumbing used by every API client.
type Client struct {
	name       string
	baseURL    *url.URL
	http       HTTPDoer
	tokens     auth.TokenSource
	limiter    *rate.Limiter
	maxRetries int
	interval   time.Duration
	logger     *zap.SugaredLogger
	observer   Observer
	headers    map[string]string
	tracer     trace.Tracer
}

// Request describes a single API call. Body is JSON-encoded unless RawBody is set.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        any
	RawBody     []byte
	ContentType string
}

// New validates options and builds a Client.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf("base url is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseURL)
	}
	doer := opts.HTTP
	if doer == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		doer = &http.Client{Timeout: timeout}
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	retries := opts.MaxRetries
	if retries < 0 {
		retries = 0
	} else if retries == 0 {
		retries = defaultRetries
	}
	interval := opts.InitialInterval
	if interval <= 0 {
		interval = defaultInterval
	}
	name := opts.Name
	if name == "" {
		name = base.Host
	}
	return &Client{
		name:       name,
		baseURL:    base,
		http:       doer,
		tokens:     opts.Tokens,
		limiter:    limiter,
		maxRetries: retries,
		interval:   interval,
		logger:     logging.OrNop(opts.Logger),
		observer:   opts.Observer,
		headers:    opts.Headers,
		tracer:     otel.Tracer(tracerName),
	}, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// JSON sends a request and decodes a JSON response into out (when non-nil).
func (c *Client) JSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	body, err := c.Do(ctx, Request{Method: method, Path: path, Query: query, Body: in})
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

// Do executes a request with rate limiting, retries and a single token
// refresh on 401. It returns the raw response body of a 2xx reply.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	payload, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}
	endpoint := c.endpoint(req.Path, req.Query)
	label := req.Method + " " + req.Path

	ctx, span := c.tracer.Start(ctx, c.name+" "+label, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("fllm.api", c.name),
		attribute.String("fllm.path", req.Path),
	)

	refreshed := false
	attempt := 0
	operation := func() ([]byte, error) {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, backoff.Permanent(err)
			}
		}
		status, body, retryAfter, err := c.attempt(ctx, req.Method, endpoint, payload, contentType)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, fmt.Errorf("%s: %w", label, err)
		}
		if status >= 200 && status < 300 {
			return body, nil
		}
		apiErr := newAPIError(status, label, body)
		if status == http.StatusUnauthorized && !refreshed && c.tokens != nil {
			refreshed = true
			if inv, ok := c.tokens.(auth.Invalidator); ok {
				inv.Invalidate()
			}
			c.logger.Debugw("refreshing token after 401", "api", c.name, "endpoint", label)
			return nil, &backoff.RetryAfterError{Duration: 0}
		}
		if !apiErr.Retryable() {
			return nil, backoff.Permanent(apiErr)
		}
		if retryAfter >= 0 {
			return nil, fmt.Errorf("%w: %w", apiErr, &backoff.RetryAfterError{Duration: retryAfter})
		}
		return nil, apiErr
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.interval
	exp.MaxInterval = maxInterval
	exp.Reset()

	tries := c.maxRetries + 1
	if c.tokens != nil {
		tries++ // one extra attempt for the token refresh
	}
	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(exp),
		backoff.WithMaxTries(uint(tries)), // #nosec G115 -- bounded by config validation
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.logger.Debugw("retrying request", "api", c.name, "endpoint", label, "attempt", attempt, "wait", wait, "error", err)
		}),
	)
	if err != nil {
		var retryAfter *backoff.RetryAfterError
		if errors.As(err, &retryAfter) && !hasAPIError(err) {
			// the refresh retry was the last allowed attempt
			err = newAPIError(http.StatusUnauthorized, label, nil)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return body, nil
}

func hasAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// attempt performs one HTTP round trip. retryAfter is -1 when absent.
func (c *Client) attempt(ctx context.Context, method, endpoint string, payload []byte, contentType string) (int, []byte, time.Duration, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, -1, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	for key, value := range c.headers {
		httpReq.Header.Set(key, value)
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return 0, nil, -1, backoff.Permanent(fmt.Errorf("acquire token: %w", err))
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		c.observe(method, 0, elapsed)
		return 0, nil, -1, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	c.observe(method, resp.StatusCode, elapsed)
	if err != nil {
		return 0, nil, -1, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()), nil
}

func (c *Client) observe(method string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveRequest(c.name, method, status, elapsed)
	}
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func encodeBody(req Request) ([]byte, string, error) {
	if req.RawBody != nil {
		return req.RawBody, req.ContentType, nil
	}
	if req.Body == nil {
		return nil, "", nil
	}
	if raw, ok := req.Body.(json.RawMessage); ok {
		return raw, "application/json", nil
	}
	data, err := json.Marshal(req.Body)
	if err != nil {
		return nil, "", fmt.Errorf("encode request body: %w", err)
	}
	return data, "application/json", nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date. Returns -1 when unset.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return -1
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return -1
		}
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		wait := when.Sub(now)
		if wait < 0 {
			return 0
		}
		return wait
	}
	return -1
}
