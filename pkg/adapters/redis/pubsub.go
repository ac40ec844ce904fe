package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aretw0/tripflow/internal/logging"
	"github.com/aretw0/tripflow/pkg/domain"
	"github.com/aretw0/tripflow/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultChannel carries signals between replicas.
const DefaultChannel = "tripflow:signals"

type envelope struct {
	Room   string        `json:"room"`
	Signal domain.Signal `json:"signal"`
}

// Publisher implements ports.Notifier by publishing signals on a Redis channel,
// so listeners attached to any replica receive them.
type Publisher struct {
	client  backend.UniversalClient
	channel string
}

// NewPublisher creates a Pub/Sub notifier. An empty channel uses DefaultChannel.
func NewPublisher(client backend.UniversalClient, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{client: client, channel: channel}
}

// Broadcast publishes the signal for room.
func (p *Publisher) Broadcast(ctx context.Context, room string, signal domain.Signal) error {
	payload, err := json.Marshal(envelope{Room: room, Signal: signal})
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish signal: %w", err)
	}
	return nil
}

// Relay forwards signals published on a channel into a local notifier
// (typically the HTTP stream hub).
type Relay struct {
	client  backend.UniversalClient
	channel string
	target  ports.Notifier
	logger  *slog.Logger
}

// NewRelay creates a relay from channel into target.
func NewRelay(client backend.UniversalClient, channel string, target ports.Notifier, logger *slog.Logger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Relay{client: client, channel: channel, target: target, logger: logger}
}

// Run subscribes and forwards until ctx is canceled.
// ready, if not nil, is closed once the subscription is confirmed.
func (r *Relay) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	if ready != nil {
		close(ready)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.logger.Warn("dropping malformed signal", "err", err)
				continue
			}
			if err := r.target.Broadcast(ctx, env.Room, env.Signal); err != nil {
				r.logger.Warn("relay broadcast failed", "room", env.Room, "err", err)
			}
		}
	}
}
