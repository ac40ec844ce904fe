package cli

import (
	"context"
	"fmt"

	"github.com/aretw0/tripflow/internal/config"
)

// Options are the flags shared by every command.
type Options struct {
	ConfigPath string
	Addr       string
	Debug      bool
}

// loadApp reads the configuration, applies flag overrides and wires the app.
func loadApp(ctx context.Context, opts Options, build ...BuildOption) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}
	build = append([]BuildOption{WithDebug(opts.Debug)}, build...)
	app, err := Build(ctx, cfg, build...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tripflow: %w", err)
	}
	return app, nil
}
