package graph_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/colonyops/tsync/internal/graph"
)

type loginServer struct {
	*httptest.Server
	deviceCalls atomic.Int32
	tokenCalls  atomic.Int32
}

func newLoginServer(t *testing.T) *loginServer {
	t.Helper()

	ls := &loginServer{}
	r := mux.NewRouter()
	r.HandleFunc("/{tenant}/oauth2/v2.0/devicecode", func(w http.ResponseWriter, r *http.Request) {
		ls.deviceCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"device_code":      "dev-code",
			"user_code":        "ABCD-EFGH",
			"verification_uri": "https://microsoft.com/devicelogin",
			"expires_in":       60,
			"interval":         1,
		})
	}).Methods(http.MethodPost)
	r.HandleFunc("/{tenant}/oauth2/v2.0/token", func(w http.ResponseWriter, r *http.Request) {
		ls.tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "fresh-token",
			"token_type":    "Bearer",
			"refresh_token": "refresh",
			"expires_in":    3600,
		})
	}).Methods(http.MethodPost)

	ls.Server = httptest.NewServer(r)
	t.Cleanup(ls.Close)
	return ls
}

func TestAuthConfig_Endpoint(t *testing.T) {
	ep := graph.AuthConfig{TenantID: "contoso"}.Endpoint()
	assert.Equal(t, "https://login.microsoftonline.com/contoso/oauth2/v2.0/devicecode", ep.DeviceAuthURL)

	ep = graph.AuthConfig{Authority: "https://login.example/"}.Endpoint()
	assert.Equal(t, "https://login.example/common/oauth2/v2.0/token", ep.TokenURL)
}

func TestAuthenticator_DeviceFlow(t *testing.T) {
	ls := newLoginServer(t)
	cache := filepath.Join(t.TempDir(), "graph-token.json")

	var shown string
	a := graph.NewAuthenticator(graph.AuthConfig{
		ClientID:  "client",
		TenantID:  "contoso",
		Authority: ls.URL,
		CachePath: cache,
	}, func(da *oauth2.DeviceAuthResponse) { shown = da.UserCode }, zerolog.Nop())

	ts, err := a.TokenSource(context.Background())
	require.NoError(t, err)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", tok.AccessToken)
	assert.Equal(t, "ABCD-EFGH", shown)

	info, err := os.Stat(cache)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	t.Run("cached token skips sign-in", func(t *testing.T) {
		again := graph.NewAuthenticator(graph.AuthConfig{
			ClientID:  "client",
			TenantID:  "contoso",
			Authority: ls.URL,
			CachePath: cache,
		}, func(*oauth2.DeviceAuthResponse) { t.Fatal("device flow should not run") }, zerolog.Nop())

		ts, err := again.TokenSource(context.Background())
		require.NoError(t, err)

		tok, err := ts.Token()
		require.NoError(t, err)
		assert.Equal(t, "fresh-token", tok.AccessToken)
		assert.Equal(t, int32(1), ls.deviceCalls.Load())
	})
}

func TestAuthenticator_LazySignsInOnFirstToken(t *testing.T) {
	ls := newLoginServer(t)

	a := graph.NewAuthenticator(graph.AuthConfig{
		ClientID:  "client",
		Authority: ls.URL,
	}, nil, zerolog.Nop())

	ts := a.Lazy(context.Background())
	assert.Equal(t, int32(0), ls.deviceCalls.Load())

	for range 2 {
		tok, err := ts.Token()
		require.NoError(t, err)
		assert.Equal(t, "fresh-token", tok.AccessToken)
	}
	assert.Equal(t, int32(1), ls.deviceCalls.Load())
}

func TestAuthenticator_RefreshesExpiredCachedToken(t *testing.T) {
	ls := newLoginServer(t)
	cache := filepath.Join(t.TempDir(), "graph-token.json")

	stale, err := json.Marshal(&oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cache, stale, 0o600))

	a := graph.NewAuthenticator(graph.AuthConfig{
		ClientID:  "client",
		Authority: ls.URL,
		CachePath: cache,
	}, nil, zerolog.Nop())

	ts, err := a.TokenSource(context.Background())
	require.NoError(t, err)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", tok.AccessToken)
	assert.Equal(t, int32(0), ls.deviceCalls.Load())

	data, err := os.ReadFile(cache)
	require.NoError(t, err)
	assert.Contains(t, string(data), "fresh-token", "refreshed token is written back")
}

func TestTokenClaims(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"name": "Test Operator",
		"scp":  "Tasks.ReadWrite",
	}).SignedString([]byte("not-verified"))
	require.NoError(t, err)

	claims, err := graph.TokenClaims(raw)
	require.NoError(t, err)
	assert.Equal(t, "Test Operator", claims["name"])

	_, err = graph.TokenClaims("not a token")
	require.Error(t, err)
}
