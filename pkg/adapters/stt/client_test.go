package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "voice.webm", header.Filename)
		assert.Equal(t, "RIFFDATA", string(data))

		_ = json.NewEncoder(w).Encode(Response{ID: "t1", Transcription: "indore se rewa", Chunks: 1})
	}))
	defer srv.Close()

	c := New(srv.URL+"/transcribe", WithAPIKey("k"))
	text, err := c.Transcribe(context.Background(), strings.NewReader("RIFFDATA"), "../../voice.webm")
	require.NoError(t, err)
	assert.Equal(t, "indore se rewa", text)
}

func TestClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Transcribe(context.Background(), strings.NewReader("x"), "a.wav")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stt error 503: model overloaded")

	_, err = c.Transcribe(context.Background(), bytes.NewReader(nil), "a.wav")
	assert.ErrorContains(t, err, "empty audio")

	_, err = c.Transcribe(context.Background(), bytes.NewReader(make([]byte, MaxAudioBytes+1)), "a.wav")
	assert.ErrorContains(t, err, "audio exceeds")
}

func TestClient_HonoursDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(srv.URL).Transcribe(ctx, strings.NewReader("x"), "a.wav")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
