package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/advisord/internal/config"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout     = 2 * time.Minute
	defaultRateLimit   = 1.0 // requests per second
	defaultBurst       = 2
	defaultMaxRetries  = 3
	defaultBaseBackoff = 1 * time.Second
)

// generator produces a reply for prompt under the given system instruction.
type generator interface {
	generate(ctx context.Context, system, prompt string) (string, error)
}

// Client is the Agent backed by a hosted language model.
type Client struct {
	provider string
	model    string
	gen      generator
	system   string

	limiter     *rate.Limiter
	maxRetries  int
	timeout     time.Duration
	baseBackoff time.Duration

	logger  *zap.Logger
	metrics *Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger for request and retry events.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records request outcomes in m.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// withGenerator replaces the model backend.
func withGenerator(gen generator) Option {
	return func(c *Client) {
		c.gen = gen
	}
}

// withBackoff sets the base retry delay.
func withBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.baseBackoff = d
	}
}

// New creates a Client for the provider named in cfg.
func New(ctx context.Context, cfg config.AgentConfig, opts ...Option) (*Client, error) {
	c := newClient(cfg, opts...)
	if c.gen != nil {
		return c, nil
	}

	var err error
	switch c.provider {
	case config.ProviderGemini:
		c.gen, err = newGeminiGenerator(ctx, cfg.APIKey.Value(), c.model, cfg.BaseURL)
	case config.ProviderOpenAI:
		c.gen, err = newOpenAIGenerator(cfg.APIKey.Value(), c.model, cfg.BaseURL)
	default:
		err = fmt.Errorf("unknown agent provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s agent: %w", c.provider, err)
	}
	return c, nil
}

func newClient(cfg config.AgentConfig, opts ...Option) *Client {
	c := &Client{
		provider:    strings.ToLower(cfg.Provider),
		model:       cfg.Model,
		system:      coordinatorInstruction,
		timeout:     defaultTimeout,
		maxRetries:  defaultMaxRetries,
		baseBackoff: defaultBaseBackoff,
		logger:      zap.NewNop(),
	}
	if cfg.Timeout > 0 {
		c.timeout = cfg.Timeout.Duration()
	}
	if cfg.MaxRetries >= 0 {
		c.maxRetries = cfg.MaxRetries
	}

	limit, burst := defaultRateLimit, defaultBurst
	if cfg.RateLimit > 0 {
		limit = cfg.RateLimit
	}
	if cfg.Burst > 0 {
		burst = cfg.Burst
	}
	c.limiter = rate.NewLimiter(rate.Limit(limit), burst)

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.provider
}

// Model returns the model the client queries.
func (c *Client) Model() string {
	return c.model
}

// Consult sends query to the model with the coordinator instruction and
// returns the reply text.
//
// Each attempt is bounded by the configured timeout. Timeouts, rate limiting
// and server errors are retried with exponential backoff; anything else is
// returned immediately.
func (c *Client) Consult(ctx context.Context, query string) (string, error) {
	start := time.Now()
	reply, attempts, err := c.consult(ctx, query)
	c.metrics.observe(c.provider, err, attempts, time.Since(start))

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("agent.provider", c.provider),
		attribute.String("agent.model", c.model),
		attribute.Int("agent.attempts", attempts),
	)

	if err != nil {
		c.logger.Warn("agent request failed",
			zap.String("provider", c.provider),
			zap.String("model", c.model),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return "", err
	}

	c.logger.Debug("agent request completed",
		zap.String("provider", c.provider),
		zap.Int("attempts", attempts),
		zap.Int("reply_length", len(reply)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return reply, nil
}

func (c *Client) consult(ctx context.Context, query string) (string, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", 0, fmt.Errorf("rate limiter error: %w", err)
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.baseBackoff * time.Duration(1<<(attempt-1))
			trace.SpanFromContext(ctx).AddEvent("agent.retry", trace.WithAttributes(
				attribute.Int("attempt", attempt),
				attribute.String("error", lastErr.Error()),
			))
			c.logger.Info("retrying agent request",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", attempts, ctx.Err()
			}
		}

		attempts++
		reply, err := c.attempt(ctx, query)
		if err == nil {
			return reply, attempts, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			return "", attempts, err
		}
	}

	return "", attempts, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// attempt performs a single bounded request.
func (c *Client) attempt(ctx context.Context, query string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reply, err := c.gen.generate(attemptCtx, c.system, query)
	if err != nil {
		// A deadline of our own making is transient; the caller's is not.
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return "", &retryableError{err: fmt.Errorf("attempt timed out after %s: %w", c.timeout, err)}
		}
		return "", err
	}

	if strings.TrimSpace(reply) == "" {
		return "", ErrEmptyResponse
	}
	return reply, nil
}

type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryableError checks if an error should be retried.
func isRetryableError(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// retryableStatus reports whether an HTTP status from a model API is worth
// retrying.
func retryableStatus(code int) bool {
	return code == 429 || code >= 500
}
