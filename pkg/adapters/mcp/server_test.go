package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/tripflow/pkg/adapters/memory"
	"github.com/aretw0/tripflow/pkg/domain"
	"github.com/aretw0/tripflow/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedExtractor string

func (f fixedExtractor) Classify(context.Context, string, *domain.TripRecord) ([]byte, error) {
	return []byte(f), nil
}

func newServer() *Server {
	orch := session.NewOrchestrator(
		session.NewManager(memory.NewStore()),
		fixedExtractor(`{"source":"Indore","destination":"Rewa","agentResponse":"Round trip or one way?"}`),
	)
	return NewServer(orch, nil)
}

func TestSubmitUtterance(t *testing.T) {
	s := newServer()
	ctx := context.Background()

	out, err := s.handleSubmit(ctx, mcp.CallToolRequest{}, SubmitArgs{Phone: "9000000007", Text: "indore to rewa", Name: "Meera"})
	require.NoError(t, err)
	assert.Equal(t, "Rewa", domain.Value(out.Trip.Destination))
	assert.Equal(t, domain.IntentAskTripType, out.Trip.Intent)
	assert.Equal(t, "ask_trip_type.mp3", out.AssetID)
	assert.Equal(t, "Round trip or one way?", out.AgentResponse)
	assert.Equal(t, "Meera", out.Trip.User.Name)

	_, err = s.handleSubmit(ctx, mcp.CallToolRequest{}, SubmitArgs{Text: "no phone"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidTurn)
}

func TestGetTrip(t *testing.T) {
	s := newServer()
	ctx := context.Background()

	res, err := s.handleGetTrip(ctx, mcp.CallToolRequest{}, TripArgs{Phone: "9000000007"})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	_, err = s.handleSubmit(ctx, mcp.CallToolRequest{}, SubmitArgs{Phone: "9000000007", Text: "indore to rewa"})
	require.NoError(t, err)

	res, err = s.handleGetTrip(ctx, mcp.CallToolRequest{}, TripArgs{Phone: "9000000007"})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)

	var record domain.TripRecord
	require.NoError(t, json.Unmarshal([]byte(text.Text), &record))
	assert.Equal(t, "Indore", domain.Value(record.Source))
}

func TestAssetTableResource(t *testing.T) {
	contents, err := newServer().readAssetTable(context.Background(), mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, AssetTableURI, text.URI)

	var table map[string]string
	require.NoError(t, json.Unmarshal([]byte(text.Text), &table))
	assert.Equal(t, "ask_price.mp3", table["ask_preferences"])
	assert.Equal(t, "ask_date.mp3", table["ask_date"])
}
