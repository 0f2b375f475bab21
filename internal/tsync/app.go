// Package tsync wires the migration components from configuration.
package tsync

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/colonyops/tsync/internal/core/config"
	"github.com/colonyops/tsync/internal/core/logging"
	"github.com/colonyops/tsync/internal/filemeta"
	"github.com/colonyops/tsync/internal/graph"
	"github.com/colonyops/tsync/internal/migrate"
	"github.com/colonyops/tsync/internal/ratelimit"
	"github.com/colonyops/tsync/internal/store/jsonfile"
	"github.com/colonyops/tsync/internal/trello"
)

// App is the central entry point for all tsync operations.
// Commands consume App instead of cherry-picking raw dependencies.
type App struct {
	Config  *config.Config
	Trello  *trello.Client
	Graph   *graph.Client
	Auth    *graph.Authenticator
	Files   *filemeta.Registry
	Migrate *migrate.Orchestrator
}

// Options customizes how an App reaches the providers.
type Options struct {
	// DeviceCodePrompt shows the sign-in code to the operator.
	DeviceCodePrompt graph.DeviceCodePrompt

	// TokenSource replaces the device-code sign-in when set.
	TokenSource oauth2.TokenSource

	// Transport is the round tripper under both clients.
	Transport http.RoundTripper
}

// NewApp constructs an App. No network request is made until a command
// needs one; in particular the Graph sign-in happens on the first Graph call.
func NewApp(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	tr, err := trello.New(trello.Options{
		BaseURL:   cfg.Trello.BaseURL,
		APIKey:    cfg.Trello.APIKey,
		Token:     cfg.Trello.Token,
		Limiter:   ratelimit.New("trello", cfg.Trello.RateLimit.Requests, cfg.Trello.RateLimit.Per),
		Transport: opts.Transport,
	}, logging.WithContextHook(logging.Component("trello")))
	if err != nil {
		return nil, fmt.Errorf("trello client: %w", err)
	}

	auth := graph.NewAuthenticator(graph.AuthConfig{
		ClientID:  cfg.Graph.ClientID,
		TenantID:  cfg.Graph.TenantID,
		Scopes:    cfg.Graph.Scopes,
		Authority: cfg.Graph.Authority,
		CachePath: cfg.TokenCachePath(),
	}, opts.DeviceCodePrompt, logging.Component("auth"))

	ts := opts.TokenSource
	if ts == nil {
		ts = auth.Lazy(ctx)
	}

	gr, err := graph.New(graph.Options{
		BaseURL:         cfg.Graph.BaseURL,
		TokenSource:     ts,
		Limiter:         ratelimit.New("graph", cfg.Graph.RateLimit.Requests, cfg.Graph.RateLimit.Per),
		Transport:       opts.Transport,
		TaskAttempts:    cfg.TaskAttempts,
		RetryDelay:      cfg.RetryDelay,
		ReplyRetryDelay: cfg.ReplyRetryDelay,
	}, logging.WithContextHook(logging.Component("graph")))
	if err != nil {
		return nil, fmt.Errorf("graph client: %w", err)
	}

	files := filemeta.NewRegistry(
		cfg.DownloadDir(),
		jsonfile.NewSnapshots(cfg.DataDir, filemeta.SnapshotPrefix),
		logging.Component("filemeta"),
	)

	orch := migrate.New(migrate.NewSession(), migrate.Config{
		Target:          gr,
		Files:           files,
		BoardSnapshots:  jsonfile.NewSnapshots(cfg.DataDir, migrate.BoardSnapshotPrefix),
		UploadSnapshots: jsonfile.NewSnapshots(cfg.DataDir, migrate.UploadSnapshotPrefix),
		UploadWorkers:   cfg.UploadWorkers,
	}, logging.WithContextHook(logging.Component("migrate")))

	return &App{
		Config:  cfg,
		Trello:  tr,
		Graph:   gr,
		Auth:    auth,
		Files:   files,
		Migrate: orch,
	}, nil
}
