package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/tripflow/pkg/session"
)

// RunSessionList prints the keys of every live session.
func RunSessionList(opts Options, w io.Writer) error {
	return withApp(opts, func(ctx context.Context, app *App) error {
		return ListSessions(ctx, app.Sessions, w)
	})
}

// RunSessionInspect prints the record stored for phone.
func RunSessionInspect(opts Options, w io.Writer, phone string) error {
	return withApp(opts, func(ctx context.Context, app *App) error {
		return InspectSession(ctx, app.Sessions, w, phone)
	})
}

// RunSessionRemove deletes the sessions of every phone given.
func RunSessionRemove(opts Options, w io.Writer, phones []string) error {
	return withApp(opts, func(ctx context.Context, app *App) error {
		return RemoveSessions(ctx, app.Sessions, w, phones)
	})
}

func withApp(opts Options, fn func(context.Context, *App) error) error {
	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	app, err := loadApp(sigCtx, opts)
	if err != nil {
		return err
	}
	defer app.Close()
	return handleExecutionError(fn(sigCtx, app))
}

// ListSessions writes one session key per line.
func ListSessions(ctx context.Context, sessions *session.Manager, w io.Writer) error {
	keys, err := sessions.List(ctx)
	if err != nil {
		return fmt.Errorf("error listing sessions: %w", err)
	}
	if len(keys) == 0 {
		fmt.Fprintln(w, "No active sessions found.")
		return nil
	}
	fmt.Fprintln(w, "Active Sessions:")
	for _, k := range keys {
		fmt.Fprintln(w, "- "+k)
	}
	return nil
}

// InspectSession writes the stored record as indented JSON.
func InspectSession(ctx context.Context, sessions *session.Manager, w io.Writer, phone string) error {
	record, err := sessions.Load(ctx, phone)
	if err != nil {
		return fmt.Errorf("error loading session '%s': %w", phone, err)
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// RemoveSessions deletes each session, reporting every failure.
func RemoveSessions(ctx context.Context, sessions *session.Manager, w io.Writer, phones []string) error {
	var errs []error
	for _, phone := range phones {
		if err := sessions.Delete(ctx, phone); err != nil {
			errs = append(errs, fmt.Errorf("error removing '%s': %w", phone, err))
			continue
		}
		fmt.Fprintf(w, "Removed session '%s'\n", phone)
	}
	return errors.Join(errs...)
}
