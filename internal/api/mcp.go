package api

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/rxassist/internal/attach"
	"github.com/kalambet/rxassist/internal/chat"
)

// Assistant is the slice of the chat controller the MCP layer needs.
type Assistant interface {
	Send(ctx context.Context, text string) (chat.Turn, error)
	Attach(ctx context.Context, f attach.File) (*attach.Attachment, error)
	Turns() []chat.Turn
	Reset()
}

// NewMCPServer creates an MCP server exposing the store assistant as tools,
// so MCP hosts can hold the conversation on the user's behalf.
func NewMCPServer(assistant Assistant) *server.MCPServer {
	s := server.NewMCPServer(
		"rxassist",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("rxassist — conversational store assistant for pharmacy management."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("send_message",
			mcp.WithDescription("Send a message to the store assistant and return its reply."),
			mcp.WithString("message", mcp.Description("The message text"), mcp.Required()),
		),
		mcpSendMessage(assistant),
	)

	s.AddTool(
		mcp.NewTool("upload_document",
			mcp.WithDescription("Upload an invoice image or PDF for analysis and stage it for the next message."),
			mcp.WithString("path", mcp.Description("Path to a JPEG, PNG, or PDF file"), mcp.Required()),
		),
		mcpUploadDocument(assistant),
	)

	s.AddTool(
		mcp.NewTool("list_turns",
			mcp.WithDescription("Return the conversation history as JSON."),
		),
		mcpListTurns(assistant),
	)

	s.AddTool(
		mcp.NewTool("reset_conversation",
			mcp.WithDescription("Clear the conversation and request backend-side history deletion."),
		),
		mcpResetConversation(assistant),
	)

	return s
}

func mcpSendMessage(assistant Assistant) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		turn, err := assistant.Send(ctx, message)
		if err != nil {
			return mcpError(fmt.Sprintf("send failed: %v", err)), nil
		}

		b, err := json.Marshal(turn)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal reply: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpUploadDocument(assistant Assistant) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil {
			return mcpError("path is required"), nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return mcpError(fmt.Sprintf("reading file: %v", err)), nil
		}

		mimeType := mime.TypeByExtension(filepath.Ext(path))
		att, err := assistant.Attach(ctx, attach.File{
			Name:     filepath.Base(path),
			MIMEType: mimeType,
			Data:     data,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("staging failed: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Staged %s (%s): %s", att.Name, att.State, att.AnalysisSummary)), nil
	}
}

func mcpListTurns(assistant Assistant) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		b, err := json.Marshal(assistant.Turns())
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal turns: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResetConversation(assistant Assistant) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		assistant.Reset()
		return mcpText("Conversation cleared."), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
