package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mbocsi/kiosk/proto"
	"github.com/mbocsi/kiosk/services"
)

// Tools exposes the kiosk actions to MCP clients
type Tools struct {
	services *services.ServiceContainer
}

func NewTools(svc *services.ServiceContainer) *Tools {
	return &Tools{services: svc}
}

// Register adds every kiosk tool to s
func (t *Tools) Register(s *MCPServer) {
	s.AddTool(mcp.NewTool("list_artisans",
		mcp.WithDescription("List the artisan cards shown on the kiosk"),
	), t.ListArtisans)

	s.AddTool(mcp.NewTool("list_questions",
		mcp.WithDescription("List the questions a visitor can ask an artisan"),
		mcp.WithString("artisan_id", mcp.Required(), mcp.Description("Artisan id, e.g. erickson")),
	), t.ListQuestions)

	s.AddTool(mcp.NewTool("play_media",
		mcp.WithDescription("Play an artisan's bio or craft video on the exhibit player"),
		mcp.WithString("artisan_id", mcp.Required(), mcp.Description("Artisan id")),
		mcp.WithString("kind", mcp.Required(),
			mcp.Description("Media to play"),
			mcp.Enum(string(proto.MediaBio), string(proto.MediaCraft)),
		),
	), t.PlayMedia)

	s.AddTool(mcp.NewTool("ask_question",
		mcp.WithDescription("Play the answer to one of an artisan's questions"),
		mcp.WithString("artisan_id", mcp.Required(), mcp.Description("Artisan id")),
		mcp.WithString("key", mcp.Required(), mcp.Description("Question key from list_questions")),
	), t.AskQuestion)

	s.AddTool(mcp.NewTool("send_command",
		mcp.WithDescription("Send a raw command string to the exhibit player"),
		mcp.WithString("command", mcp.Required(), mcp.Description("Command text")),
	), t.SendCommand)

	s.AddTool(mcp.NewTool("get_endpoint",
		mcp.WithDescription("Get the host and port commands are sent to"),
	), t.GetEndpoint)

	s.AddTool(mcp.NewTool("get_status",
		mcp.WithDescription("Get the kiosk and sender socket status"),
	), t.GetStatus)
}

func (t *Tools) ListArtisans(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	artisans, err := t.services.Kiosk.ListArtisans()
	return result(artisans, err)
}

func (t *Tools) ListQuestions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("artisan_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	questions, err := t.services.Kiosk.ListQuestions(id)
	return result(questions, err)
}

func (t *Tools) PlayMedia(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("artisan_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := request.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := t.services.Kiosk.PlayMedia(ctx, id, kind)
	return result(res, err)
}

func (t *Tools) AskQuestion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("artisan_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key, err := request.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := t.services.Kiosk.AskQuestion(ctx, id, key)
	return result(res, err)
}

func (t *Tools) SendCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cmd, err := request.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := t.services.Kiosk.SendRaw(ctx, cmd)
	return result(res, err)
}

func (t *Tools) GetEndpoint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ep, err := t.services.Settings.GetEndpoint()
	return result(ep, err)
}

func (t *Tools) GetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := t.services.Status.GetStatus()
	return result(status, err)
}

// result renders v as indented JSON. Service errors become tool errors.
func result(v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		var serviceErr services.ServiceError
		if errors.As(err, &serviceErr) {
			return mcp.NewToolResultError(serviceErr.Code + ": " + serviceErr.Error()), nil
		}
		slog.Error("MCP tool failed", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		}}, nil
}
