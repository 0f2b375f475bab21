// Package graph is a Microsoft Graph client for the planner, group
// conversation and drive endpoints used by a migration.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/colonyops/tsync/internal/ratelimit"
	"github.com/colonyops/tsync/pkg/kv"
)

// DefaultBaseURL is the Graph v1.0 root.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0/"

var (
	ErrUnknownPlan   = errors.New("plan is not in the discovered plan catalog")
	ErrMissingField  = errors.New("response is missing a required field")
	ErrNoTokenSource = errors.New("no token source configured")
)

// APIError is a non-success response from Graph.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 from Graph.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Options configures a Client.
type Options struct {
	BaseURL     string
	TokenSource oauth2.TokenSource
	Limiter     *ratelimit.Limiter
	Transport   http.RoundTripper

	// TaskAttempts bounds how often a task POST is tried.
	TaskAttempts int
	// RetryDelay is the pause between task POST attempts.
	RetryDelay time.Duration
	// ReplyRetryDelay is the pause before the single retry of a reply that
	// hit a not-yet-visible thread.
	ReplyRetryDelay time.Duration

	Clock clock.Clock
}

// Client is a rate-limited, authenticated Graph client. The plan catalog
// discovered by EnumeratePlans is cached on the client.
type Client struct {
	base *url.URL
	http *http.Client
	ts   oauth2.TokenSource
	log  zerolog.Logger

	taskAttempts    int
	retryDelay      time.Duration
	replyRetryDelay time.Duration
	clock           clock.Clock

	planGroups *kv.Store[string, string]

	mu    sync.RWMutex
	plans []GroupPlan
}

// New creates a Client. Every request, retries included, passes through the
// limiter before the bearer token is attached.
func New(opts Options, log zerolog.Logger) (*Client, error) {
	raw := opts.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}

	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	if opts.TokenSource == nil {
		return nil, ErrNoTokenSource
	}

	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.New("graph", ratelimit.DefaultPerSecond, 0)
	}

	c := &Client{
		base: base,
		ts:   opts.TokenSource,
		http: &http.Client{
			Transport: &oauth2.Transport{
				Source: opts.TokenSource,
				Base:   ratelimit.NewTransport(opts.Transport, limiter),
			},
		},
		log:             log,
		taskAttempts:    opts.TaskAttempts,
		retryDelay:      opts.RetryDelay,
		replyRetryDelay: opts.ReplyRetryDelay,
		clock:           opts.Clock,
		planGroups:      kv.New[string, string](),
	}

	if c.taskAttempts < 1 {
		c.taskAttempts = 10
	}
	if c.retryDelay <= 0 {
		c.retryDelay = time.Second
	}
	if c.replyRetryDelay <= 0 {
		c.replyRetryDelay = 2 * time.Second
	}
	if c.clock == nil {
		c.clock = clock.WallClock
	}

	return c, nil
}

// request describes one Graph call.
type request struct {
	method string
	path   string

	// body is JSON encoded unless raw is set.
	body   any
	raw    io.Reader
	length int64

	contentType string
	ifMatch     string
}

// do performs r and decodes a JSON response into out when out is non-nil.
// Non-2xx responses are logged with the raw body and returned as *APIError.
func (c *Client) do(ctx context.Context, r request, out any) error {
	u, err := c.base.Parse(r.path)
	if err != nil {
		return fmt.Errorf("parse path %q: %w", r.path, err)
	}

	body := r.raw
	contentType := r.contentType
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", r.method, r.path, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if r.raw != nil {
		req.ContentLength = r.length
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if r.ifMatch != "" {
		req.Header.Set("If-Match", r.ifMatch)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", r.method, r.path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Error().Ctx(ctx).
			Str("method", r.method).
			Str("path", r.path).
			Int("status", resp.StatusCode).
			Str("body", string(data)).
			Msg("graph request failed")
		return &APIError{Method: r.method, Path: r.path, StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out == nil || len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		c.log.Error().Ctx(ctx).
			Str("path", r.path).
			Str("body", string(data)).
			Msg("undecodable graph response")
		return fmt.Errorf("decode %s %s: %w", r.method, r.path, err)
	}

	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, request{method: http.MethodGet, path: path}, out)
}

// listAll follows @odata.nextLink until the collection is exhausted.
func listAll[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var all []T
	for path != "" {
		var page collection[T]
		if err := c.get(ctx, path, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Value...)
		path = page.NextLink
	}
	return all, nil
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (User, error) {
	var u User
	if err := c.get(ctx, "me", &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Token returns the current access token.
func (c *Client) Token() (*oauth2.Token, error) {
	return c.ts.Token()
}

func escape(id string) string {
	return url.PathEscape(id)
}
