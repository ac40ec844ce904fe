package livekit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/tripflow/pkg/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/livekit/protocol/livekit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

const sendDataPath = "/twirp/livekit.RoomService/SendData"

func newIssuer(t *testing.T, opts ...IssuerOption) *Issuer {
	t.Helper()
	i, err := NewIssuer("devkey", "secret-secret-secret-secret-1234", opts...)
	require.NoError(t, err)
	return i
}

func TestIssuer_ParticipantToken(t *testing.T) {
	i := newIssuer(t)

	token, err := i.ParticipantToken(domain.RoomName("9000000007"), "Meera", "9000000007")
	require.NoError(t, err)

	grants, err := i.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "9000000007", grants.Identity)
	assert.Equal(t, "Meera", grants.Name)
	require.NotNil(t, grants.Video)
	assert.True(t, grants.Video.RoomJoin)
	assert.Equal(t, "trip_9000000007", grants.Video.Room)
	assert.True(t, grants.Video.GetCanPublish())
	assert.True(t, grants.Video.GetCanSubscribe())
	assert.False(t, grants.Video.RoomAdmin)
}

func TestIssuer_TokenLifetime(t *testing.T) {
	i := newIssuer(t, WithTokenTTL(time.Hour))
	token, err := i.ParticipantToken("room", "n", "id")
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)

	iss, err := claims.GetIssuer()
	require.NoError(t, err)
	assert.Equal(t, "devkey", iss)
	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp.Time, time.Minute)
}

func TestIssuer_Rejects(t *testing.T) {
	_, err := NewIssuer("", "x")
	assert.Error(t, err)

	i := newIssuer(t)
	_, err = i.ParticipantToken("", "x", "y")
	assert.Error(t, err)

	token, err := i.ParticipantToken("room", "n", "id")
	require.NoError(t, err)

	other, err := NewIssuer("devkey", "another-secret-another-secret-12")
	require.NoError(t, err)
	_, err = other.Verify(token)
	assert.Error(t, err, "wrong secret must not verify")

	stranger, err := NewIssuer("otherkey", "secret-secret-secret-secret-1234")
	require.NoError(t, err)
	_, err = stranger.Verify(token)
	assert.Error(t, err, "another key's token must not verify")
}

func TestNotifier_Broadcast(t *testing.T) {
	i := newIssuer(t)

	var got livekit.SendDataRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, sendDataPath, r.URL.Path)
		auth = r.Header.Get("Authorization")
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, proto.Unmarshal(body, &got))

		out, err := proto.Marshal(&livekit.SendDataResponse{})
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/protobuf")
		_, _ = w.Write(out)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, i, WithTopic("tripflow"))
	sig := domain.Signal{
		Type:     domain.SignalAgentResponse,
		Intent:   domain.IntentAskDate,
		AssetID:  "ask_date.mp3",
		AudioURL: "http://localhost:3000/audio/ask_date.mp3",
	}
	require.NoError(t, n.Broadcast(context.Background(), "trip_9000000007", sig))

	assert.Equal(t, "trip_9000000007", got.Room)
	assert.Equal(t, livekit.DataPacket_RELIABLE, got.Kind)
	assert.Equal(t, "tripflow", got.GetTopic())

	var decoded domain.Signal
	require.NoError(t, json.Unmarshal(got.Data, &decoded))
	assert.Equal(t, sig, decoded)

	require.True(t, strings.HasPrefix(auth, "Bearer "))
	grants, err := i.Verify(strings.TrimPrefix(auth, "Bearer "))
	require.NoError(t, err)
	require.NotNil(t, grants.Video)
	assert.True(t, grants.Video.RoomAdmin)
	assert.Equal(t, "trip_9000000007", grants.Video.Room)
}

func TestNotifier_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"not_found","msg":"room not found"}`))
	}))
	defer srv.Close()

	err := NewNotifier(srv.URL, newIssuer(t)).Broadcast(context.Background(), "trip_1", domain.Signal{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "room not found")
}
