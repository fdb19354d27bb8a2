package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"ragqa/internal/adapter/chunkstore"
	"ragqa/internal/adapter/vectorindex"
	"ragqa/internal/usecase"
)

var (
	indexEngine string
	indexQuiet  bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the vector index from the chunk file",
	Long: `Embed every chunk in the configured chunk file with the configured
encoder and write the vector index, one row per chunk in file order. The
chunk file itself is never modified.

Run this again whenever the chunk file or the embedding settings change;
the server refuses to start on a mismatched index.

Examples:
  ragqa index
  ragqa index --engine bolt`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().StringVar(&indexEngine, "engine", "", "index format: flat or bolt (default from config)")
	indexCmd.Flags().BoolVar(&indexQuiet, "quiet", false, "disable the progress bar")
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	logger := GetLogger()
	root := GetRootDir()

	engine := vectorindex.Engine(cfg.Corpus.IndexEngine)
	if indexEngine != "" {
		engine = vectorindex.Engine(indexEngine)
	}
	if engine != vectorindex.EngineFlat && engine != vectorindex.EngineBolt {
		return fmt.Errorf("unknown index engine %q", engine)
	}
	metric, err := vectorindex.ParseMetric(cfg.Corpus.Metric)
	if err != nil {
		return err
	}

	chunksPath := cfg.ChunksPath(root)
	store, err := chunkstore.Load(chunksPath)
	if err != nil {
		return err
	}

	embedder, err := usecase.NewEmbedder(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Embedding %d chunks from %s with %s (%s)...\n",
		store.Len(), chunksPath, embedder.ModelName(), cfg.Embedding.Provider)

	var progress usecase.ProgressFunc
	if !indexQuiet && store.Len() > 0 {
		progress = newProgress(store.Len())
	}

	start := time.Now()
	idx, err := usecase.NewIndexUseCase(embedder, metric, cfg.Embedding.BatchSize).Build(cmd.Context(), store, progress)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	indexPath := cfg.IndexPath(root)
	if err := vectorindex.Save(indexPath, engine, idx); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}

	logger.Info("index written",
		"path", indexPath,
		"engine", engine,
		"rows", idx.Len(),
		"dim", idx.Dimension(),
		"elapsed", time.Since(start),
	)
	return nil
}

// newProgress returns a progress bar callback with a running ETA.
func newProgress(total int) usecase.ProgressFunc {
	bar := progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
	start := time.Now()

	return func(processed, total int) {
		bar.Set(processed)

		elapsed := time.Since(start)
		rate := float64(processed) / elapsed.Seconds()
		if rate > 0 && processed < total {
			eta := time.Duration(float64(total-processed)/rate) * time.Second
			bar.Describe(fmt.Sprintf("[cyan]Embedding[reset] ETA: %s", formatDuration(eta)))
		}
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
