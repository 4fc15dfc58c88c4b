// Package mcpserver exposes call placement and lookup as MCP tools over the
// Streamable HTTP transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	sdkserver "github.com/mark3labs/mcp-go/server"

	"github.com/gaspardpetit/callrelay/internal/callstore"
)

// CallService is the subset of calls.Service the tools use.
type CallService interface {
	Queue(to string) error
	Get(ctx context.Context, sid string) (callstore.Call, error)
}

var (
	placeCallTool = mcp.NewTool("place_call",
		mcp.WithDescription("Place an outbound phone call answered by the voice assistant."),
		mcp.WithString("to", mcp.Required(), mcp.Description("Destination number in E.164 format, e.g. +15551234567")),
	)
	getCallTool = mcp.NewTool("get_call",
		mcp.WithDescription("Return the latest known status of a call."),
		mcp.WithString("call_sid", mcp.Required(), mcp.Description("Twilio call SID")),
	)
)

// NewHandler constructs a Streamable HTTP MCP handler serving the call
// tools.
func NewHandler(svc CallService, version string) http.Handler {
	srv := sdkserver.NewMCPServer(
		"callrelay",
		version,
		sdkserver.WithResourceCapabilities(false, false),
		sdkserver.WithToolCapabilities(false),
		sdkserver.WithPromptCapabilities(false),
	)
	srv.AddTool(placeCallTool, placeCall(svc))
	srv.AddTool(getCallTool, getCall(svc))
	return sdkserver.NewStreamableHTTPServer(srv)
}

func placeCall(svc CallService) sdkserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		to, err := req.RequireString("to")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := svc.Queue(to); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("Call request queued."), nil
	}
}

func getCall(svc CallService) sdkserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sid, err := req.RequireString("call_sid")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		c, err := svc.Get(ctx, sid)
		if errors.Is(err, callstore.ErrNotFound) {
			return mcp.NewToolResultError("call " + sid + " not found"), nil
		}
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResultText(string(b)), nil
	}
}
