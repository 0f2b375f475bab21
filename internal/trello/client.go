// Package trello reads boards, cards, comments, and attachments from the
// Trello REST API.
package trello

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/colonyops/tsync/internal/ratelimit"
)

// DefaultBaseURL is the Trello REST API root.
const DefaultBaseURL = "https://api.trello.com/1/"

// ErrMalformedResponse is returned when a response decodes but does not have
// the expected shape.
var ErrMalformedResponse = errors.New("malformed response")

// APIError is a non-success response from Trello.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("trello %s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Token   string

	// Limiter gates every request, including attachment downloads.
	Limiter *ratelimit.Limiter

	// Transport is the underlying round tripper; defaults to http.DefaultTransport.
	Transport http.RoundTripper
}

// Client is a rate-limited Trello API client.
type Client struct {
	base  *url.URL
	key   string
	token string
	http  *http.Client
	log   zerolog.Logger
}

// New creates a Client.
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

	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.New("trello", ratelimit.DefaultPerSecond, 0)
	}

	return &Client{
		base:  base,
		key:   opts.APIKey,
		token: opts.Token,
		http:  &http.Client{Transport: ratelimit.NewTransport(opts.Transport, limiter)},
		log:   log,
	}, nil
}

// get issues an authenticated GET for endpoint (relative to the base URL) and
// returns the raw body. Non-2xx responses are logged with the server's
// message and returned as *APIError.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	u, err := c.base.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}

	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("key", c.key)
	q.Set("token", c.token)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Error().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("body", string(body)).
			Msg("trello request failed")
		return nil, &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}

func getJSON[T any](ctx context.Context, c *Client, endpoint string, params url.Values) (T, error) {
	var out T

	body, err := c.get(ctx, endpoint, params)
	if err != nil {
		return out, err
	}

	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", endpoint, err)
	}

	return out, nil
}

// Download streams the bytes of a stored attachment into w. Attachment
// downloads authenticate with an OAuth header rather than query parameters.
func (c *Client) Download(ctx context.Context, rawURL string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization",
		fmt.Sprintf(`OAuth oauth_consumer_key="%s", oauth_token="%s"`, c.key, c.token))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Error().
			Str("url", rawURL).
			Int("status", resp.StatusCode).
			Str("body", string(body)).
			Msg("attachment download failed")
		return &APIError{Endpoint: "download", StatusCode: resp.StatusCode, Body: string(body)}
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("download: copy body: %w", err)
	}

	return nil
}
