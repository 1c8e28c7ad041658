package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	ModeOff   = "off"
	ModeStdio = "stdio"
	ModeSSE   = "sse"

	shutdownTimeout = 5 * time.Second
)

type Server interface {
	Run(ctx context.Context) error
}

// MCPServer serves the registered tools over stdio or SSE until its context
// is canceled.
type MCPServer struct {
	Server *server.MCPServer
	mode   string
	addr   string
}

func NewMCPServer(mode, addr string) *MCPServer {
	return &MCPServer{
		Server: server.NewMCPServer("Exhibit Kiosk", "1.0.0",
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
		mode: mode,
		addr: addr,
	}
}

func (s *MCPServer) AddTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.Server.AddTool(tool, handler)
}

func (s *MCPServer) Run(ctx context.Context) error {
	switch s.mode {
	case ModeStdio:
		return s.runStdio(ctx)
	case ModeSSE:
		return s.runSSE(ctx)
	case ModeOff, "":
		return nil
	}
	return fmt.Errorf("unknown MCP mode %q", s.mode)
}

func (s *MCPServer) runStdio(ctx context.Context) error {
	slog.Info("Started stdio MCP server")
	defer func() {
		slog.Info("Shut down stdio MCP server")
	}()
	err := server.NewStdioServer(s.Server).Listen(ctx, os.Stdin, os.Stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *MCPServer) runSSE(ctx context.Context) error {
	sse := server.NewSSEServer(s.Server, server.WithBaseURL("http://"+s.addr))

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Started SSE MCP server", "addr", s.addr)
		errCh <- sse.Start(s.addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down SSE MCP server", "addr", s.addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sse.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
