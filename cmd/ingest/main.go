package main

import (
	"context"
	"os"
	"strings"
	"time"

	"rag-agent-be/internal/config"
	"rag-agent-be/internal/pkg/logger"
	"rag-agent-be/pkg/database"
	"rag-agent-be/pkg/embedding"
	"rag-agent-be/pkg/ingestion"
	"rag-agent-be/pkg/vectorstore"

	"github.com/fatih/color"
)

// Bulk document loader. Usage:
//
//	go run ./cmd/ingest file1.pdf file2.md ...
func main() {
	if len(os.Args) < 2 {
		color.Yellow("Usage: ingest <file> [file...]")
		color.Cyan("Supported formats: %s", strings.Join(ingestion.SupportedExtensions(), ", "))
		os.Exit(1)
	}

	cfg := config.Load()

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		color.Red("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	sysLogger := logger.NewIsolatedLogger("logs/ingest.log")
	defer sysLogger.Sync()

	embedder := embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel)
	store := vectorstore.New(db, sysLogger)
	splitter := ingestion.NewSplitter(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	pipeline := ingestion.NewPipeline(embedder, store, splitter, sysLogger)

	color.Cyan("Ingesting %d file(s)\n", len(os.Args)-1)

	failures := 0
	totalChunks := 0
	for _, path := range os.Args[1:] {
		color.Yellow("→ %s", path)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		chunks, err := pipeline.Ingest(ctx, path)
		cancel()

		if err != nil {
			color.Red("  failed: %v", err)
			failures++
			continue
		}
		if chunks == 0 {
			color.Yellow("  no text content, skipped")
			continue
		}
		color.Green("  stored %d chunks", chunks)
		totalChunks += chunks
	}

	color.Cyan("\nDone: %d chunks stored, %d failure(s)", totalChunks, failures)
	if failures > 0 {
		os.Exit(1)
	}
}
