package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/aretw0/tripflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChat(t *testing.T, payload string, jsonMode bool) (*chat, *bytes.Buffer) {
	t.Helper()
	app, err := Build(context.Background(), testConfig(), WithExtractor(fixedExtractor(payload)))
	require.NoError(t, err)

	var out bytes.Buffer
	return &chat{
		turns:    app.Orchestrator,
		identity: domain.Identity{ID: "1", Name: "Asha", Phone: "9000000010"},
		out:      &out,
		json:     jsonMode,
	}, &out
}

func TestChat_TextTurns(t *testing.T) {
	c, out := newTestChat(t, `{"intent":"greet","source":"Indore","agentResponse":"Where to?"}`, false)

	err := c.run(context.Background(), strings.NewReader("hello from Indore\n\n/state\n/quit\nnever read\n"))
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Where to?")
	assert.Contains(t, text, "| Source | Indore |")
	assert.Contains(t, text, "Next: **ask_destination**")
}

func TestChat_ResetAndEOF(t *testing.T) {
	c, out := newTestChat(t, `{"source":"Indore"}`, false)

	err := c.run(context.Background(), strings.NewReader("from Indore\n/reset\n/state\n"))
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, handleExecutionError(err))

	text := out.String()
	assert.Contains(t, text, "(ask_destination.mp3)")
	assert.Contains(t, text, ">>> Session reset")
	assert.Contains(t, text, ">>> No trip yet")
}

func TestChat_JSONMode(t *testing.T) {
	c, out := newTestChat(t, `{"destination":"Rewa"}`, true)

	require.NoError(t, c.run(context.Background(), strings.NewReader("to Rewa\n/quit\n")))

	scanner := bufio.NewScanner(out)
	require.True(t, scanner.Scan())
	var line chatLine
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
	assert.Equal(t, "to Rewa", line.Transcript)
	assert.Equal(t, "Rewa", domain.Value(line.TripState.Destination))
	assert.Equal(t, domain.IntentAskSource, line.Signal.Intent)
	assert.False(t, scanner.Scan())
}

func TestChat_ErrorsAreReported(t *testing.T) {
	c, out := newTestChat(t, `not json at all`, true)

	require.NoError(t, c.run(context.Background(), strings.NewReader("hi\n/quit\n")))

	var line chatLine
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &line))
	assert.Equal(t, "extraction_malformed", line.Kind)
	assert.NotEmpty(t, line.Error)
}

func TestChat_RequiresPhone(t *testing.T) {
	c, _ := newTestChat(t, `{}`, false)
	c.identity.Phone = " "
	err := c.run(context.Background(), strings.NewReader("hi\n"))
	assert.ErrorIs(t, err, domain.ErrInvalidTurn)
}
