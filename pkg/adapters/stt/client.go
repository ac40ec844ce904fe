// Package stt implements ports.Transcriber against an HTTP transcription service
// that accepts a multipart upload and answers with JSON.
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

// MaxAudioBytes bounds a single upload.
const MaxAudioBytes = 25 << 20

// Response is the service's reply.
type Response struct {
	ID            string `json:"id"`
	Transcription string `json:"transcription"`
	Chunks        int    `json:"chunks"`
}

// Client posts audio to a transcription endpoint.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithAPIKey sends a bearer token with every request.
func WithAPIKey(key string) Option {
	return func(cl *Client) {
		cl.apiKey = key
	}
}

// New creates a Client for the full endpoint URL, e.g. http://stt:8000/transcribe.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:        url,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transcribe implements ports.Transcriber.
func (c *Client) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	audioData, err := io.ReadAll(io.LimitReader(audio, MaxAudioBytes+1))
	if err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	if len(audioData) > MaxAudioBytes {
		return "", fmt.Errorf("audio exceeds %d bytes", MaxAudioBytes)
	}
	if len(audioData) == 0 {
		return "", fmt.Errorf("empty audio")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	name := filepath.Base(filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "audio.webm"
	}
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(audioData); err != nil {
		return "", fmt.Errorf("write audio data: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("stt request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("stt error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	return out.Transcription, nil
}
