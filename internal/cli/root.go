package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"ragqa/config"
	"ragqa/internal/logging"
)

// Version is set at build time.
var Version = "dev"

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
	logger  *log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ragqa",
	Short: "Answer questions from a pre-indexed corpus of forum posts and notes",
	Long: `ragqa answers questions, optionally accompanied by a screenshot, by
retrieving the closest passages from a pre-built corpus. Text in the image is
read with tesseract and appended to the question before retrieval.

Example usage:
  ragqa index                          # Embed chunks.jsonl into index.bin
  ragqa ask -q "how do I submit GA1"   # One-shot question
  ragqa serve                          # HTTP API on :8000
  ragqa mcp                            # MCP tool server on stdio`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		rootDir, err = resolveRootDir(rootDir, cfgFile)
		if err != nil {
			return err
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger = logging.New(os.Stderr, cfg.Logging)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./ragqa.yaml); corpus paths resolve next to it unless --dir is set")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory for the corpus files (default is current directory)")
}

// resolveRootDir picks the directory relative corpus paths resolve against:
// --dir when given, else the directory of --config, else the working directory.
func resolveRootDir(dir, configFile string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	if configFile != "" {
		abs, err := filepath.Abs(configFile)
		if err != nil {
			return "", fmt.Errorf("invalid config path: %w", err)
		}
		return filepath.Dir(abs), nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return wd, nil
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}

func GetLogger() *log.Logger {
	return logger
}
