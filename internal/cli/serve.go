package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ragqa/internal/server"
	"ragqa/internal/usecase"
)

var (
	serveAddr string
	serveLazy bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the question answering HTTP API",
	Long: `Serve POST / and POST /api with JSON bodies of the form
{"question": "...", "image": "<base64>"}. GET /healthz reports readiness.

The corpus is loaded before listening unless --lazy is given, in which case
the first request loads it.

Examples:
  ragqa serve
  ragqa serve --addr :9000 --lazy`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveLazy, "lazy", false, "load the corpus on first request")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	logger := GetLogger()

	srvCfg := cfg.Server
	if serveAddr != "" {
		srvCfg.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	answerer := usecase.NewLazy(func(context.Context) (*usecase.Answerer, error) {
		return usecase.LoadAnswerer(cfg, GetRootDir(), logger)
	})
	if !srvCfg.LazyLoad && !serveLazy {
		if _, err := answerer.Get(ctx); err != nil {
			return err
		}
	}

	return server.New(answerer, srvCfg, logger).ListenAndServe(ctx)
}
