package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"ragqa/internal/domain"
	"ragqa/internal/usecase"
)

// Handlers serves MCP tool calls from a shared answerer.
type Handlers struct {
	answerer *usecase.Lazy[*usecase.Answerer]
	logger   *log.Logger
}

func NewHandlers(answerer *usecase.Lazy[*usecase.Answerer], logger *log.Logger) *Handlers {
	if logger == nil {
		logger = log.Default()
	}
	return &Handlers{answerer: answerer, logger: logger}
}

// RegisterTools adds the answer tool to server.
func RegisterTools(server *mcpserver.MCPServer, h *Handlers) {
	server.AddTool(mcp.Tool{
		Name:        "answer",
		Description: "Answer a question from the indexed course forum and notes. Returns the best matching passage and links to the top sources.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "The question to answer",
				},
				"image": map[string]interface{}{
					"type":        "string",
					"description": "Optional base64 encoded screenshot whose text is added to the question",
				},
			},
			Required: []string{"question"},
		},
	}, h.Answer)
}

// Answer handles the answer tool.
func (h *Handlers) Answer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question argument is required and must be a string"), nil
	}

	q := domain.Query{
		Question: question,
		Image:    request.GetString("image", ""),
	}

	answerer, err := h.answerer.Get(context.WithoutCancel(ctx))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("service unavailable: %v", err)), nil
	}

	ans, err := answerer.Answer(ctx, q)
	if err != nil {
		h.logger.Error("answer tool failed", "err", err)
		return mcp.NewToolResultError(fmt.Sprintf("answer failed: %v", err)), nil
	}

	body, err := json.Marshal(ans)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode answer: %v", err)), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

// NewServer builds an MCP server with every tool registered.
func NewServer(version string, h *Handlers) *mcpserver.MCPServer {
	server := mcpserver.NewMCPServer("ragqa", version)
	RegisterTools(server, h)
	return server
}
