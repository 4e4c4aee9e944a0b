package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/rxassist/internal/api"
	"github.com/kalambet/rxassist/internal/chat"
)

// serveMCP runs the assistant MCP server over stdio until ctx is cancelled.
func serveMCP(ctx context.Context, ctrl *chat.Controller) error {
	mcpSrv := api.NewMCPServer(ctrl)
	stdioSrv := server.NewStdioServer(mcpSrv)

	slog.Info("MCP server started (stdio transport)")
	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
