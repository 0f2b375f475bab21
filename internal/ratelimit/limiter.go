// Package ratelimit gates outbound requests to a provider API.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultPerSecond is the request ceiling used for both providers. It sits
// just under the limits the providers document so bursts are not rejected.
const DefaultPerSecond = 9

// Limiter grants at most n slots in any trailing window of length per.
//
// Grants are spaced evenly (burst of one), so a window can never hold more
// than n of them no matter where it starts.
type Limiter struct {
	name string
	n    int
	per  time.Duration
	lim  *rate.Limiter
}

// New creates a limiter for the named provider. Non-positive values fall back
// to DefaultPerSecond per second.
func New(name string, n int, per time.Duration) *Limiter {
	if n <= 0 {
		n = DefaultPerSecond
	}
	if per <= 0 {
		per = time.Second
	}

	return &Limiter{
		name: name,
		n:    n,
		per:  per,
		lim:  rate.NewLimiter(rate.Every(per/time.Duration(n)), 1),
	}
}

// Name returns the provider name the limiter was created for.
func (l *Limiter) Name() string { return l.name }

// String describes the configured ceiling.
func (l *Limiter) String() string {
	return fmt.Sprintf("%s: %d per %s", l.name, l.n, l.per)
}

// Wait blocks until a slot is available and counts the call against it.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.lim.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limit: %w", l.name, err)
	}
	return nil
}

// Transport is an http.RoundTripper that waits for a limiter slot before
// every request it forwards.
type Transport struct {
	Base    http.RoundTripper
	Limiter *Limiter
}

// NewTransport wraps base (http.DefaultTransport when nil) with l.
func NewTransport(base http.RoundTripper, l *Limiter) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, Limiter: l}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.Limiter.Wait(req.Context()); err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}
	return t.Base.RoundTrip(req)
}
