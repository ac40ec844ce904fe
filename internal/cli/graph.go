package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/tripflow/internal/presentation/graph"
)

// RunGraph prints the conversation flow as Mermaid. With a phone, the
// caller's resolved slots and current intent are highlighted.
func RunGraph(opts Options, w io.Writer, phone string) error {
	return withApp(opts, func(ctx context.Context, app *App) error {
		return WriteGraph(ctx, app, w, phone)
	})
}

// WriteGraph renders the flow of app, overlaid with phone's session when given.
func WriteGraph(ctx context.Context, app *App, w io.Writer, phone string) error {
	var overlay *graph.Overlay
	if phone != "" {
		record, err := app.Sessions.Load(ctx, phone)
		if err != nil {
			return fmt.Errorf("error loading session '%s': %w", phone, err)
		}
		overlay = graph.OverlayFor(record)
	}
	_, err := fmt.Fprint(w, graph.GenerateMermaid(app.Orchestrator.Dispatcher().Table(), overlay))
	return err
}
