// Package main provides the ingestion CLI that populates the vector store
// from a document collection.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ragbot/docchat/internal/chunker"
	"github.com/ragbot/docchat/internal/config"
	"github.com/ragbot/docchat/internal/embedding"
	"github.com/ragbot/docchat/internal/ingest"
	"github.com/ragbot/docchat/internal/loader"
	"github.com/ragbot/docchat/internal/storage"
)

var (
	flagConfig     string
	flagDocs       string
	flagGitHubRepo string
	flagGitHubPath string
	flagClear      bool
)

var rootCmd = &cobra.Command{
	Use:   "docchat-ingest",
	Short: "Index a document collection into the vector store",
	Long: `Chunks, embeds, and stores documents for retrieval.

Reruns are additive: ingesting the same corpus twice stores every chunk
twice. Pass --clear to drop the collection first.

Environment variables:
  QDRANT_HOST     Qdrant hostname (default: localhost)
  QDRANT_PORT     Qdrant gRPC port (default: 6334)
  OPENAI_API_KEY  OpenAI API key for embeddings (required)
  GITHUB_TOKEN    GitHub token for --github sources (optional)`,
	RunE: runIngest,
}

func init() {
	rootCmd.Flags().StringVar(&flagConfig, "config", "config.yaml", "path to the config file")
	rootCmd.Flags().StringVar(&flagDocs, "docs", "", "directory of txt/markdown/pdf documents to ingest")
	rootCmd.Flags().StringVar(&flagGitHubRepo, "github", "", "GitHub repository to ingest markdown docs from (owner/repo)")
	rootCmd.Flags().StringVar(&flagGitHubPath, "github-path", "", "directory within the GitHub repository")
	rootCmd.Flags().BoolVar(&flagClear, "clear", false, "clear the collection before ingesting")
}

func main() {
	// Load .env if present (local development), ignore if missing.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	source, err := buildSource()
	if err != nil {
		return err
	}

	fmt.Printf("Connecting to Qdrant at %s:%d...\n", cfg.Qdrant.Host, cfg.Qdrant.Port)
	store, err := storage.NewQdrantStore(cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Qdrant.Collection, cfg.Embedding.Dimension)
	if err != nil {
		return fmt.Errorf("connect to Qdrant: %w", err)
	}
	defer store.Close()

	if err := store.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	if flagClear {
		fmt.Println("Clearing existing collection...")
		if err := store.Clear(ctx); err != nil {
			return fmt.Errorf("clear collection: %w", err)
		}
	}

	embeddingClient, err := embedding.NewClient()
	if err != nil {
		return fmt.Errorf("create embedding client: %w", err)
	}
	embedder := embedding.NewEmbedder(embeddingClient, cfg.Embedding.Model, cfg.Embedding.Dimension, cfg.Embedding.BatchSize)

	chunk, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Ingesting documents...")
	pipeline := ingest.NewPipeline(source, chunk, embedder, store, cfg.Ingest.Workers, slog.Default())

	result, err := pipeline.IngestAll(ctx)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Ingestion complete!")
	fmt.Printf("  Documents: %d/%d\n", result.SuccessfulDocs, result.TotalDocs)
	fmt.Printf("  Chunks:    %d\n", result.TotalChunks)
	fmt.Printf("  Duration:  %s\n", result.Duration.Round(time.Second))

	if len(result.Failed) > 0 {
		fmt.Println()
		fmt.Println("Failed documents:")
		for _, failed := range result.Failed {
			fmt.Printf("  - %s: %s\n", failed.Ref, failed.Reason)
		}
	}

	return nil
}

// buildSource picks the document source from flags: a local directory or a
// GitHub repository, but not both.
func buildSource() (loader.Source, error) {
	switch {
	case flagDocs != "" && flagGitHubRepo != "":
		return nil, fmt.Errorf("--docs and --github are mutually exclusive")
	case flagGitHubRepo != "":
		owner, repo, ok := splitRepo(flagGitHubRepo)
		if !ok {
			return nil, fmt.Errorf("--github must be owner/repo, got %q", flagGitHubRepo)
		}
		return loader.NewGitHubSource(owner, repo, flagGitHubPath)
	case flagDocs != "":
		return loader.NewDirSource(flagDocs)
	default:
		return nil, fmt.Errorf("either --docs or --github is required")
	}
}

func splitRepo(s string) (owner, repo string, ok bool) {
	for i := range s {
		if s[i] == '/' {
			owner, repo = s[:i], s[i+1:]
			return owner, repo, owner != "" && repo != ""
		}
	}
	return "", "", false
}
