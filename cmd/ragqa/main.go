package main

import (
	"github.com/joho/godotenv"

	"ragqa/internal/cli"
)

func main() {
	// API keys may live in .env; a missing file is fine.
	_ = godotenv.Load()

	cli.Execute()
}
