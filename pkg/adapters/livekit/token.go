// Package livekit issues room access tokens and delivers response signals as
// LiveKit data packets through the server API.
package livekit

import (
	"errors"
	"fmt"
	"time"

	"github.com/livekit/protocol/auth"
)

// DefaultTokenTTL is how long a participant token stays valid.
const DefaultTokenTTL = 6 * time.Hour

// Issuer signs tokens with an API key pair.
type Issuer struct {
	apiKey    string
	apiSecret string
	ttl       time.Duration
}

// IssuerOption configures the Issuer.
type IssuerOption func(*Issuer)

// WithTokenTTL overrides DefaultTokenTTL.
func WithTokenTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.ttl = ttl
	}
}

// NewIssuer creates an Issuer. Both key and secret are required.
func NewIssuer(apiKey, apiSecret string, opts ...IssuerOption) (*Issuer, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, errors.New("livekit: api key and secret are required")
	}
	i := &Issuer{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		ttl:       DefaultTokenTTL,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// ParticipantToken lets identity join room with publish and subscribe rights.
func (i *Issuer) ParticipantToken(room, name, identity string) (string, error) {
	if room == "" || identity == "" {
		return "", errors.New("livekit: room and identity are required")
	}
	grant := &auth.VideoGrant{RoomJoin: true, Room: room}
	grant.SetCanPublish(true)
	grant.SetCanSubscribe(true)

	token, err := auth.NewAccessToken(i.apiKey, i.apiSecret).
		SetVideoGrant(grant).
		SetIdentity(identity).
		SetName(name).
		SetValidFor(i.ttl).
		ToJWT()
	if err != nil {
		return "", fmt.Errorf("livekit: sign token: %w", err)
	}
	return token, nil
}

// Verify parses a token signed by this Issuer and returns its grants.
func (i *Issuer) Verify(token string) (*auth.ClaimGrants, error) {
	v, err := auth.ParseAPIToken(token)
	if err != nil {
		return nil, err
	}
	if v.APIKey() != i.apiKey {
		return nil, fmt.Errorf("livekit: token issued by %q", v.APIKey())
	}
	return v.Verify(i.apiSecret)
}
