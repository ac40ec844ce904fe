// Package mcp exposes trip turns to MCP clients: an agent can submit utterances
// on a caller's behalf and read the resulting trip record.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/tripflow"
	"github.com/aretw0/tripflow/internal/logging"
	"github.com/aretw0/tripflow/pkg/domain"
	"github.com/aretw0/tripflow/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// AssetTableURI is the resource listing which asset answers each intent.
const AssetTableURI = "tripflow://asset-table"

// SubmitArgs are the arguments of submit_utterance.
type SubmitArgs struct {
	Phone          string `json:"phone"`
	Text           string `json:"text"`
	Name           string `json:"name,omitempty"`
	ID             string `json:"id,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// TripArgs are the arguments of get_trip.
type TripArgs struct {
	Phone string `json:"phone"`
}

// TurnOutput is the structured result of submit_utterance.
type TurnOutput struct {
	Trip          *domain.TripRecord `json:"trip" jsonschema_description:"The trip record after the turn"`
	AgentResponse string             `json:"agent_response,omitempty" jsonschema_description:"Suggested reply for the caller"`
	AssetID       string             `json:"asset_id" jsonschema_description:"Response asset played for the intent"`
	Changed       []string           `json:"changed,omitempty" jsonschema_description:"Fields changed by this turn"`
	Replayed      bool               `json:"replayed,omitempty" jsonschema_description:"True when the idempotency key was already applied"`
}

// Server wraps the Orchestrator as an MCP server.
type Server struct {
	turns     *session.Orchestrator
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP Server instance.
func NewServer(turns *session.Orchestrator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		turns:     turns,
		logger:    logger,
		mcpServer: server.NewMCPServer("tripflow-mcp", strings.TrimSpace(tripflow.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	submit := mcp.NewTool("submit_utterance",
		mcp.WithDescription("Run one conversation turn for a caller and return the updated trip."),
		mcp.WithString("phone", mcp.Required(), mcp.Description("Caller phone number; identifies the session")),
		mcp.WithString("text", mcp.Required(), mcp.Description("What the caller said")),
		mcp.WithString("name", mcp.Description("Caller name, used when the session is new")),
		mcp.WithString("id", mcp.Description("Caller id, used when the session is new")),
		mcp.WithString("idempotency_key", mcp.Description("Retry key; a repeated key returns the stored trip")),
		mcp.WithOutputSchema[TurnOutput](),
	)
	s.mcpServer.AddTool(submit, mcp.NewStructuredToolHandler(s.handleSubmit))

	s.mcpServer.AddTool(mcp.NewTool("get_trip",
		mcp.WithDescription("Read the current trip record of a caller."),
		mcp.WithString("phone", mcp.Required(), mcp.Description("Caller phone number")),
	), mcp.NewTypedToolHandler(s.handleGetTrip))
}

func (s *Server) handleSubmit(ctx context.Context, _ mcp.CallToolRequest, args SubmitArgs) (TurnOutput, error) {
	res, err := s.turns.Turn(ctx, session.TurnRequest{
		Identity:       domain.Identity{ID: args.ID, Name: args.Name, Phone: args.Phone},
		Text:           args.Text,
		IdempotencyKey: args.IdempotencyKey,
	})
	if err != nil {
		s.logger.Warn("MCP submit_utterance failed", "kind", domain.ErrorKind(err), "err", err)
		return TurnOutput{}, fmt.Errorf("turn failed (%s): %w", domain.ErrorKind(err), err)
	}
	return TurnOutput{
		Trip:          res.Record,
		AgentResponse: res.AgentResponse,
		AssetID:       res.Signal.AssetID,
		Changed:       res.Diff.Fields(),
		Replayed:      res.Replayed,
	}, nil
}

func (s *Server) handleGetTrip(ctx context.Context, _ mcp.CallToolRequest, args TripArgs) (*mcp.CallToolResult, error) {
	record, err := s.turns.Sessions().Load(ctx, strings.TrimSpace(args.Phone))
	if errors.Is(err, domain.ErrSessionNotFound) {
		return mcp.NewToolResultError("no active trip for " + args.Phone), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
	}
	jsonBytes, _ := json.Marshal(record)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(AssetTableURI, "Intent to response asset table",
		mcp.WithMIMEType("application/json"),
	), s.readAssetTable)
}

func (s *Server) readAssetTable(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	jsonBytes, err := json.Marshal(s.turns.Dispatcher().Table())
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      AssetTableURI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
