package cli

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"ragqa/internal/domain"
	"ragqa/internal/usecase"
)

var (
	askQuestion string
	askImage    string
	askTopK     int
	askJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a single question",
	Long: `Answer one question against the local corpus and print the result.

Examples:
  ragqa ask -q "which python version is required"
  ragqa ask -q "what does this error mean" --image screenshot.png --json`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askQuestion, "question", "q", "", "question to answer (required)")
	askCmd.Flags().StringVar(&askImage, "image", "", "path to an image whose text is added to the question")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of links (default from config)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	askCmd.MarkFlagRequired("question")
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if askTopK > 0 {
		cfg.Retrieve.TopK = askTopK
	}

	q := domain.Query{Question: askQuestion}
	if askImage != "" {
		raw, err := os.ReadFile(askImage)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		q.Image = base64.StdEncoding.EncodeToString(raw)
	}

	answerer, err := usecase.LoadAnswerer(cfg, GetRootDir(), GetLogger())
	if err != nil {
		return err
	}

	ans, err := answerer.Answer(cmd.Context(), q)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if askJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(ans)
	}

	fmt.Fprintln(out, ans.Answer)
	if len(ans.Links) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Sources:")
	}
	for i, l := range ans.Links {
		text := truncate(strings.ReplaceAll(l.Text, "\n", " "), 80)
		fmt.Fprintf(out, "  [%d] %s\n      %s\n", i+1, l.URL, text)
	}
	return nil
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
