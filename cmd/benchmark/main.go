package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"ragqa/config"
	"ragqa/internal/logging"
	"ragqa/internal/usecase"
)

func main() {
	dir := flag.String("dir", ".", "Directory holding the config, chunk file and index")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	runs := flag.Int("n", 20, "Timed repetitions of the query")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir ./corpus -q \"query\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Corpus and encoder (chunks, dimension, model)")
		fmt.Println("  2. Nearest passages with their distances")
		fmt.Println("  3. Encode and search latency over repeated runs")
		os.Exit(1)
	}

	_ = godotenv.Load()

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.Embedding.CacheSize = 0
	logger := logging.New(os.Stderr, config.LoggingConfig{Level: "warn", Format: cfg.Logging.Format})

	start := time.Now()
	answerer, err := usecase.LoadAnswerer(cfg, *dir, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading corpus: %v\n", err)
		os.Exit(1)
	}
	loadTime := time.Since(start)
	rt := answerer.Runtime()

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Chunks indexed: %d\n", rt.Chunks.Len())
	fmt.Printf("Model: %s (%s)\n", rt.Embedder.ModelName(), cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d, metric: %s\n", rt.Index.Dimension(), cfg.Corpus.Metric)
	fmt.Printf("Load time: %s\n", loadTime.Round(time.Millisecond))
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	ctx := context.Background()
	hits, err := answerer.Retrieve(ctx, *query, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	if len(hits) == 0 {
		fmt.Println("Corpus is empty.")
		return
	}

	fmt.Printf("Top %d matches:\n\n", len(hits))
	for i, h := range hits {
		preview := strings.ReplaceAll(h.Chunk.Text, "\n", " ")
		if r := []rune(preview); len(r) > 150 {
			preview = string(r[:150]) + "..."
		}
		fmt.Printf("%d. [row %d, %.4f] %s\n", i+1, h.Position, h.Distance, h.Chunk.Source)
		fmt.Printf("   %s\n\n", preview)
	}

	latencies := make([]time.Duration, 0, *runs)
	for i := 0; i < *runs; i++ {
		t0 := time.Now()
		if _, err := answerer.Retrieve(ctx, *query, *topK); err != nil {
			log.Fatal("benchmark run failed", "err", err)
		}
		latencies = append(latencies, time.Since(t0))
	}

	var total time.Duration
	worst := time.Duration(0)
	for _, l := range latencies {
		total += l
		worst = max(worst, l)
	}

	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("LATENCY (%d runs):\n", len(latencies))
	if len(latencies) > 0 {
		fmt.Printf("  Mean: %s\n", (total / time.Duration(len(latencies))).Round(time.Microsecond))
		fmt.Printf("  Max:  %s\n", worst.Round(time.Microsecond))
	}
	fmt.Printf("  Top-1 distance: %.4f\n", hits[0].Distance)
	if len(hits) > 1 {
		fmt.Printf("  Margin to #2:   %.4f\n", hits[1].Distance-hits[0].Distance)
	}
}
