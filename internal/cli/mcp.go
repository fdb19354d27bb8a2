package cli

import (
	"context"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"ragqa/internal/mcp"
	"ragqa/internal/usecase"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the answer tool over MCP on stdio",
	Long: `Start a Model Context Protocol server on stdin/stdout exposing a single
"answer" tool with "question" and optional base64 "image" arguments.

Logs go to stderr so they never interleave with the protocol stream.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	logger := GetLogger()

	answerer := usecase.NewLazy(func(context.Context) (*usecase.Answerer, error) {
		return usecase.LoadAnswerer(cfg, GetRootDir(), logger)
	})
	if !cfg.Server.LazyLoad {
		if _, err := answerer.Get(cmd.Context()); err != nil {
			return err
		}
	}

	server := mcp.NewServer(Version, mcp.NewHandlers(answerer, logger))
	logger.Info("mcp server starting on stdio")
	return mcpserver.ServeStdio(server)
}
