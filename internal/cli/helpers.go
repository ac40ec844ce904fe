package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/aretw0/tripflow/internal/config"
	"github.com/aretw0/tripflow/internal/logging"
	"github.com/aretw0/tripflow/pkg/domain"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// CreateLogger configures the application logger. Debug forces debug level.
// Logs go to stderr so stdout stays free for the REPL and MCP stdio.
func CreateLogger(cfg config.LoggingConfig, debug bool) *slog.Logger {
	level := logging.ParseLevel(cfg.Level)
	if debug {
		level = slog.LevelDebug
	}
	if strings.EqualFold(cfg.Format, "json") {
		return logging.NewJSON(os.Stderr, level)
	}
	return logging.New(level)
}

func debugHooks(logger *slog.Logger) domain.TurnHooks {
	return domain.TurnHooks{
		OnTurnStart: func(ctx context.Context, sessionKey string) {
			logger.Debug("Turn Start", "session_id", sessionKey)
		},
		OnTurnEnd: func(ctx context.Context, e *domain.TurnEvent) {
			logger.Debug("Turn End", "session_id", e.SessionKey, "outcome", e.Outcome, "duration", e.Duration)
		},
		OnClamp: func(ctx context.Context, e *domain.ClampEvent) {
			logger.Debug("Clamp", "session_id", e.SessionKey, "field", e.Field, "value", e.Value)
		},
		OnNotify: func(ctx context.Context, e *domain.NotifyEvent) {
			if e.Err != nil {
				logger.Debug("Notify (Error)", "session_id", e.SessionKey, "asset", e.AssetID, "err", e.Err)
			} else {
				logger.Debug("Notify", "session_id", e.SessionKey, "asset", e.AssetID)
			}
		},
	}
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, io.EOF)
}

// handleExecutionError turns interruptions into a clean exit.
func handleExecutionError(err error) error {
	if err == nil || isInterrupted(err) {
		return nil
	}
	return err
}
