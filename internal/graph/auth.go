package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

// DefaultScopes are the delegated permissions a migration needs.
var DefaultScopes = []string{
	"offline_access",
	"User.Read",
	"Group.ReadWrite.All",
	"Tasks.ReadWrite",
	"Files.ReadWrite.All",
}

// AuthConfig configures the device-code sign-in.
type AuthConfig struct {
	ClientID string
	TenantID string
	Scopes   []string

	// Authority overrides the login host, e.g. for national clouds.
	Authority string

	// CachePath is where the token is kept between runs. Empty disables caching.
	CachePath string
}

// Endpoint returns the OAuth endpoints for the configured tenant.
func (ac AuthConfig) Endpoint() oauth2.Endpoint {
	if ac.Authority == "" {
		return microsoft.AzureADEndpoint(ac.TenantID)
	}

	tenant := ac.TenantID
	if tenant == "" {
		tenant = "common"
	}
	root := strings.TrimSuffix(ac.Authority, "/") + "/" + tenant + "/oauth2/v2.0/"
	return oauth2.Endpoint{
		AuthURL:       root + "authorize",
		TokenURL:      root + "token",
		DeviceAuthURL: root + "devicecode",
	}
}

// DeviceCodePrompt shows the operator where to enter the user code.
type DeviceCodePrompt func(*oauth2.DeviceAuthResponse)

// Authenticator produces Graph tokens, running the device-code flow only
// when no usable cached token exists.
type Authenticator struct {
	cfg       *oauth2.Config
	cachePath string
	prompt    DeviceCodePrompt
	log       zerolog.Logger
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(ac AuthConfig, prompt DeviceCodePrompt, log zerolog.Logger) *Authenticator {
	scopes := ac.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	return &Authenticator{
		cfg: &oauth2.Config{
			ClientID: ac.ClientID,
			Endpoint: ac.Endpoint(),
			Scopes:   scopes,
		},
		cachePath: ac.CachePath,
		prompt:    prompt,
		log:       log,
	}
}

// TokenSource returns a refreshing token source. ctx is used for refresh
// requests for the lifetime of the source.
func (a *Authenticator) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	tok, err := a.readCache()
	if err != nil {
		a.log.Warn().Err(err).Msg("ignoring unreadable token cache")
	}

	if tok == nil || (!tok.Valid() && tok.RefreshToken == "") {
		tok, err = a.deviceFlow(ctx)
		if err != nil {
			return nil, err
		}
		if err := a.writeCache(tok); err != nil {
			a.log.Warn().Err(err).Msg("cannot write token cache")
		}
	}

	return &cachingTokenSource{
		src:  a.cfg.TokenSource(ctx, tok),
		last: tok.AccessToken,
		save: a.writeCache,
		log:  a.log,
	}, nil
}

// Lazy returns a token source that signs in on its first Token call, so
// steps that never reach Graph do not prompt for a device code.
func (a *Authenticator) Lazy(ctx context.Context) oauth2.TokenSource {
	return &lazyTokenSource{ctx: ctx, auth: a}
}

type lazyTokenSource struct {
	ctx  context.Context
	auth *Authenticator

	mu  sync.Mutex
	src oauth2.TokenSource
}

func (s *lazyTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.src == nil {
		src, err := s.auth.TokenSource(s.ctx)
		if err != nil {
			return nil, err
		}
		s.src = src
	}
	return s.src.Token()
}

func (a *Authenticator) deviceFlow(ctx context.Context) (*oauth2.Token, error) {
	da, err := a.cfg.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("device authorization: %w", err)
	}

	if a.prompt != nil {
		a.prompt(da)
	}

	tok, err := a.cfg.DeviceAccessToken(ctx, da)
	if err != nil {
		return nil, fmt.Errorf("device token: %w", err)
	}

	a.log.Info().Msg("signed in with device code")
	return tok, nil
}

func (a *Authenticator) readCache() (*oauth2.Token, error) {
	if a.cachePath == "" {
		return nil, nil
	}

	data, err := os.ReadFile(a.cachePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decode token cache: %w", err)
	}
	return &tok, nil
}

func (a *Authenticator) writeCache(tok *oauth2.Token) error {
	if a.cachePath == "" {
		return nil
	}

	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(a.cachePath), 0o700); err != nil {
		return err
	}

	tmp := a.cachePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, a.cachePath)
}

// cachingTokenSource persists every newly refreshed token.
type cachingTokenSource struct {
	src  oauth2.TokenSource
	save func(*oauth2.Token) error
	log  zerolog.Logger

	mu   sync.Mutex
	last string
}

func (s *cachingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.save(tok); err != nil {
			s.log.Warn().Err(err).Msg("cannot write token cache")
		}
	}
	return tok, nil
}

// TokenClaims decodes the claims of an access token without verifying its
// signature. It is meant for display only.
func TokenClaims(raw string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return claims, nil
}
