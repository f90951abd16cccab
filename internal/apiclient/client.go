// Package apiclient builds the outbound HTTP client shared by the market data
// sources and the decision provider: optional proxy, a token-bucket limiter and
// a circuit breaker.
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Options configures a Client. Zero fields take the defaults below.
type Options struct {
	Timeout       time.Duration
	ProxyURL      string
	RatePerSecond float64
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
}

// WithDefaults fills unset fields.
func (o Options) WithDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.RatePerSecond <= 0 {
		o.RatePerSecond = 2
	}
	if o.FailureThreshold == 0 {
		o.FailureThreshold = 5
	}
	if o.OpenTimeout <= 0 {
		o.OpenTimeout = 30 * time.Second
	}
	return o
}

// Client rate-limits outbound calls and trips a breaker after repeated failures.
type Client struct {
	name    string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// New creates a Client named for logs and breaker state.
func New(name string, opts Options) *Client {
	opts = opts.WithDefaults()

	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if opts.ProxyURL != "" {
		if u, err := url.Parse(opts.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		} else {
			log.Warn().Err(err).Str("client", name).Msg("ignoring invalid proxy url")
		}
	}

	threshold := opts.FailureThreshold
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// Client-side cancellation says nothing about the remote's health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("client", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})

	return &Client{
		name:    name,
		http:    &http.Client{Timeout: opts.Timeout, Transport: transport},
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1),
		breaker: breaker,
	}
}

// Name returns the client's name.
func (c *Client) Name() string { return c.name }

// Execute waits for the limiter, then runs call through the breaker.
// An open breaker returns gobreaker.ErrOpenState without calling.
func (c *Client) Execute(ctx context.Context, call func(*http.Client) ([]byte, error)) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return call(c.http)
	})
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

// State reports the breaker state.
func (c *Client) State() gobreaker.State { return c.breaker.State() }
