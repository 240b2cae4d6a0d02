package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/joho/godotenv"

	"recalld/internal/janitor"
	"recalld/pkg/config"
	"recalld/pkg/llm"
	"recalld/pkg/store"
	"recalld/pkg/turn"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	client llm.Client
	ctrl   *turn.Controller

	janitorCancel context.CancelFunc
	srv           *http.Server
}

// New initializes resources that do not require a running context (DB,
// runtime keys, model client). It does not start the HTTP server; call
// Run to start it and block until shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	// validate effective config early and fail fast
	if err := validateConfig(eff); err != nil {
		return nil, err
	}

	// runtime keys
	runtimeCfg := &config.RuntimeConfig{
		BackendKeys: map[string]struct{}{},
		AskKey:      eff.Config.Security.AskKey,
	}
	for _, k := range eff.Config.Security.APIKeys.Backend {
		runtimeCfg.BackendKeys[k] = struct{}{}
	}
	config.SetRuntime(runtimeCfg)

	// open store
	if err := store.Open(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}

	// model client
	client, err := llm.NewGemini(
		eff.Config.LLM.APIKey,
		eff.Config.LLM.Model,
		eff.Config.LLM.Timeout.Duration(),
		eff.Config.LLM.MaxOutputBytes.Int64(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build model client: %w", err)
	}

	a := &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		client:    client,
		ctrl:      turn.NewController(client, eff.Config.LLM.ReplyStyle),
	}
	return a, nil
}

// Run starts the janitor (if enabled) and the HTTP server, and blocks
// until ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	cancel, err := janitor.Start(ctx, a.eff.Config)
	if err != nil {
		return err
	}
	a.janitorCancel = cancel

	a.printBanner()

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server and closes the store.
func (a *App) Shutdown(ctx context.Context) error {
	if a.janitorCancel != nil {
		a.janitorCancel()
	}
	if a.srv != nil {
		if err := a.srv.Shutdown(ctx); err != nil {
			return err
		}
	}
	return store.Close()
}
