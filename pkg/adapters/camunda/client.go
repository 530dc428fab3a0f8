// Package camunda implements ports.ProcessEngine on top of the Camunda 7 REST API.
package camunda

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

	"github.com/aretw0/bpmgate/internal/logging"
	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/jellydator/ttlcache/v3"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultCacheTTL    = 10 * time.Minute
	defaultInitialWait = 200 * time.Millisecond
	tracerName         = "github.com/aretw0/bpmgate/pkg/adapters/camunda"
)

// APIError is a non-2xx answer of the engine.
type APIError struct {
	StatusCode int    `json:"-"`
	Type       string `json:"type"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("camunda: status %d", e.StatusCode)
	}
	return fmt.Sprintf("camunda: status %d: %s", e.StatusCode, e.Message)
}

// Client talks to a Camunda engine. BaseURL includes the REST root, e.g. http://localhost:8080/engine-rest.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	logger      *slog.Logger
	tracer      trace.Tracer
	clock       clock.Clock
	username    string
	password    string
	maxRetries  uint64
	initialWait time.Duration
	cacheTTL    time.Duration
	breaker     *gobreaker.CircuitBreaker[[]byte]
	definitions *ttlcache.Cache[string, domain.ProcessDefinition]
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = tp.Tracer(tracerName)
	}
}

// WithClock drives the retry backoff.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		c.clock = clk
	}
}

// WithBasicAuth authenticates every request.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithRetry sets how often 5xx and transport failures are retried and the first wait.
func WithRetry(maxRetries uint64, initialWait time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.initialWait = initialWait
	}
}

// WithDefinitionCacheTTL sets how long process definitions are cached.
func WithDefinitionCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.cacheTTL = ttl
	}
}

// New creates a client for the engine at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		logger:      logging.NewNop(),
		tracer:      otel.Tracer(tracerName),
		clock:       clock.New(),
		maxRetries:  DefaultMaxRetries,
		initialWait: defaultInitialWait,
		cacheTTL:    DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.definitions = ttlcache.New(
		ttlcache.WithTTL[string, domain.ProcessDefinition](c.cacheTTL),
		ttlcache.WithCapacity[string, domain.ProcessDefinition](1024),
	)
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "camunda",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			return err == nil || (errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// request describes one REST call.
type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	notFound    error
	// idempotent marks a POST that may be sent again after a failure.
	idempotent bool
}

// retryable reports whether a failed attempt may be repeated. POSTs that create
// engine state are sent once.
func (r request) retryable() bool {
	return r.method != http.MethodPost || r.idempotent
}

func jsonBody(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return data, nil
}

// do runs the request inside a span, through the breaker, retrying 5xx and
// transport failures of retryable requests, and decodes the answer into out when given.
func (c *Client) do(ctx context.Context, r request, out any) error {
	ctx, span := c.tracer.Start(ctx, "camunda."+r.op, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(
		attribute.String("http.method", r.method),
		attribute.String("camunda.path", r.path),
	))
	defer span.End()

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var data []byte
	operation := func() error {
		d, err := c.breaker.Execute(func() ([]byte, error) {
			return c.send(ctx, r, target)
		})
		if err == nil {
			data = d
			return nil
		}
		var apiErr *APIError
		switch {
		case errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError:
			return backoff.Permanent(err)
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(err)
		case ctx.Err() != nil:
			return backoff.Permanent(ctx.Err())
		}
		return err
	}

	b := &backoff.ExponentialBackOff{
		InitialInterval:     c.initialWait,
		MaxInterval:         5 * time.Second,
		Multiplier:          2,
		RandomizationFactor: 0.2,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               c.clock,
	}
	b.Reset()

	retries := c.maxRetries
	if !r.retryable() {
		retries = 0
	}
	err := backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx), func(err error, wait time.Duration) {
		c.logger.Warn("Engine request failed, retrying", "op", r.op, "wait", wait, "error", err)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		var apiErr *APIError
		if r.notFound != nil && errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", r.notFound, apiErr.Message)
		}
		return fmt.Errorf("%s: %w", r.op, err)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", r.op, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, r request, target string) ([]byte, error) {
	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		ct := r.contentType
		if ct == "" {
			ct = "application/json"
		}
		req.Header.Set("Content-Type", ct)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return nil, apiErr
	}
	return data, nil
}
