package livekit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/tripflow/pkg/domain"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
)

// Notifier broadcasts signals to every participant of a LiveKit room.
type Notifier struct {
	rooms *lksdk.RoomServiceClient
	topic string
}

// NotifierOption configures the Notifier.
type NotifierOption func(*Notifier)

// WithTopic tags every packet with a data topic.
func WithTopic(topic string) NotifierOption {
	return func(n *Notifier) {
		n.topic = topic
	}
}

// NewNotifier creates a Notifier for the server at url (http, https, ws or wss),
// authenticating with the issuer's key pair.
func NewNotifier(url string, issuer *Issuer, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		rooms: lksdk.NewRoomServiceClient(url, issuer.apiKey, issuer.apiSecret),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Broadcast implements ports.Notifier with a reliable data packet.
func (n *Notifier) Broadcast(ctx context.Context, room string, signal domain.Signal) error {
	payload, err := json.Marshal(signal)
	if err != nil {
		return err
	}
	req := &livekit.SendDataRequest{
		Room: room,
		Data: payload,
		Kind: livekit.DataPacket_RELIABLE,
	}
	if n.topic != "" {
		req.Topic = &n.topic
	}
	if _, err := n.rooms.SendData(ctx, req); err != nil {
		return fmt.Errorf("livekit send data: %w", err)
	}
	return nil
}
