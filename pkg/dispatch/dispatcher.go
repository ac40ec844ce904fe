package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/tripflow/internal/logging"
	"github.com/aretw0/tripflow/pkg/domain"
	"github.com/aretw0/tripflow/pkg/ports"
)

// Dispatcher turns an intent into a response signal and broadcasts it.
// Delivery is best-effort: errors are reported, never retried.
type Dispatcher struct {
	table     Table
	notifiers []ports.Notifier
	baseURL   string
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithTable replaces the default asset table.
func WithTable(t Table) Option {
	return func(d *Dispatcher) {
		d.table = t
	}
}

// WithNotifier adds a delivery channel. Every notifier receives every signal.
func WithNotifier(n ports.Notifier) Option {
	return func(d *Dispatcher) {
		if n != nil {
			d.notifiers = append(d.notifiers, n)
		}
	}
}

// WithBaseURL makes signals carry an absolute audioUrl under <base>/audio/.
func WithBaseURL(base string) Option {
	return func(d *Dispatcher) {
		d.baseURL = strings.TrimRight(base, "/")
	}
}

// WithTimeout bounds each broadcast.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

// WithLogger configures a logger for delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// New creates a Dispatcher with the default table and no notifiers.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		table:   DefaultTable(),
		timeout: 3 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Table returns the asset table in use.
func (d *Dispatcher) Table() Table {
	return d.table
}

// Signal builds the signal for intent without sending it.
func (d *Dispatcher) Signal(intent domain.Intent) domain.Signal {
	asset := d.table.Asset(intent)
	sig := domain.Signal{
		Type:    domain.SignalAgentResponse,
		Intent:  intent,
		AssetID: asset,
	}
	if d.baseURL != "" {
		sig.AudioURL = d.baseURL + "/audio/" + url.PathEscape(asset)
	}
	return sig
}

// Dispatch broadcasts the signal for intent to room on every notifier.
// The returned error wraps domain.ErrNotificationFailed and joins each channel's failure.
func (d *Dispatcher) Dispatch(ctx context.Context, room string, intent domain.Intent) (domain.Signal, error) {
	sig := d.Signal(intent)

	var errs []error
	for _, n := range d.notifiers {
		if err := d.broadcast(ctx, n, room, sig); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return sig, nil
	}

	err := fmt.Errorf("%w: %w", domain.ErrNotificationFailed, errors.Join(errs...))
	d.logger.Warn("response signal not delivered",
		"room", room,
		"intent", intent,
		"asset", sig.AssetID,
		"err", err,
	)
	return sig, err
}

func (d *Dispatcher) broadcast(ctx context.Context, n ports.Notifier, room string, sig domain.Signal) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return n.Broadcast(ctx, room, sig)
}
