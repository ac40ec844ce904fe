package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// RunServe starts the HTTP API and, with Redis, the signal relay. It returns
// after SIGINT or SIGTERM once in-flight requests drain.
func RunServe(opts Options) error {
	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	app, err := loadApp(sigCtx, opts)
	if err != nil {
		return err
	}
	defer app.Close()

	return handleExecutionError(Serve(sigCtx, app))
}

// Serve runs app until ctx is cancelled.
func Serve(ctx context.Context, app *App) error {
	if err := app.Ping(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              app.Config.Server.Addr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		app.Logger.Info("tripflow listening", "addr", srv.Addr, "store", storeKind(app))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if relay := app.Relay(); relay != nil {
		g.Go(func() error {
			err := relay.Run(gctx, nil)
			if gctx.Err() != nil {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		app.Logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.Logger.Warn("graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
			return srv.Close()
		}
		return nil
	})
	return g.Wait()
}

func storeKind(app *App) string {
	switch {
	case app.redis != nil:
		return "redis"
	case app.Config.Session.Dir != "":
		return "file"
	default:
		return "memory"
	}
}
