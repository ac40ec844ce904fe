package cli

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aretw0/tripflow/pkg/adapters/mcp"
)

// Supported MCP transports.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// RunMCP serves trip turns to MCP clients over transport.
func RunMCP(opts Options, transport string, port int) error {
	if transport != TransportStdio && transport != TransportSSE {
		return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
	}

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	app, err := loadApp(sigCtx, opts)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := mcp.NewServer(app.Orchestrator, app.Logger)
	if transport == TransportStdio {
		// Stdout carries JSON-RPC.
		log.SetOutput(os.Stderr)
		app.Logger.Info("Starting tripflow MCP Server (Stdio)")
		return handleExecutionError(srv.ServeStdio())
	}

	app.Logger.Info("Starting tripflow MCP Server (SSE)", "port", port)
	if err := srv.ServeSSE(sigCtx, port); err != nil {
		return err
	}
	app.Logger.Info("MCP Server stopped gracefully")
	return nil
}
