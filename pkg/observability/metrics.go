package observability

import (
	"context"

	"github.com/aretw0/tripflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records turn outcomes, latency, intents, clamps and delivery failures.
type Metrics struct {
	turns         *prometheus.CounterVec
	turnDuration  *prometheus.HistogramVec
	intents       *prometheus.CounterVec
	clamps        *prometheus.CounterVec
	notifyFailure prometheus.Counter
	inflight      prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripflow_turns_total",
				Help: "Total number of turns by outcome",
			},
			[]string{"outcome"},
		),
		turnDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tripflow_turn_duration_seconds",
				Help:    "Duration of turns, including external calls",
				Buckets: []float64{.1, .25, .5, 1, 2, 4, 8, 16},
			},
			[]string{"outcome"},
		),
		intents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripflow_intents_total",
				Help: "Intents chosen by committed turns",
			},
			[]string{"intent"},
		),
		clamps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripflow_clamps_total",
				Help: "Extracted values outside their domain, by field",
			},
			[]string{"field"},
		),
		notifyFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripflow_notifications_failed_total",
			Help: "Response signals that could not be delivered",
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tripflow_turns_inflight",
			Help: "Turns currently being processed",
		}),
	}
	reg.MustRegister(m.turns, m.turnDuration, m.intents, m.clamps, m.notifyFailure, m.inflight)
	return m
}

// Hooks returns the TurnHooks that feed these metrics.
func (m *Metrics) Hooks() domain.TurnHooks {
	return domain.TurnHooks{
		OnTurnStart: func(context.Context, string) {
			m.inflight.Inc()
		},
		OnTurnEnd: func(_ context.Context, e *domain.TurnEvent) {
			m.inflight.Dec()
			outcome := string(e.Outcome)
			m.turns.WithLabelValues(outcome).Inc()
			m.turnDuration.WithLabelValues(outcome).Observe(e.Duration.Seconds())
			if e.Outcome == domain.OutcomeCommitted {
				m.intents.WithLabelValues(string(e.Intent)).Inc()
			}
		},
		OnClamp: func(_ context.Context, e *domain.ClampEvent) {
			m.clamps.WithLabelValues(e.Field).Inc()
		},
		OnNotify: func(_ context.Context, e *domain.NotifyEvent) {
			if e.Err != nil {
				m.notifyFailure.Inc()
			}
		},
	}
}

// Chain combines hooks so that each callback runs in order.
func Chain(hooks ...domain.TurnHooks) domain.TurnHooks {
	return domain.TurnHooks{
		OnTurnStart: func(ctx context.Context, key string) {
			for _, h := range hooks {
				if h.OnTurnStart != nil {
					h.OnTurnStart(ctx, key)
				}
			}
		},
		OnTurnEnd: func(ctx context.Context, e *domain.TurnEvent) {
			for _, h := range hooks {
				if h.OnTurnEnd != nil {
					h.OnTurnEnd(ctx, e)
				}
			}
		},
		OnClamp: func(ctx context.Context, e *domain.ClampEvent) {
			for _, h := range hooks {
				if h.OnClamp != nil {
					h.OnClamp(ctx, e)
				}
			}
		},
		OnNotify: func(ctx context.Context, e *domain.NotifyEvent) {
			for _, h := range hooks {
				if h.OnNotify != nil {
					h.OnNotify(ctx, e)
				}
			}
		},
	}
}
