// Package main provides the interactive chat CLI over an ingested document
// collection.
package main

import (
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ragbot/docchat/internal/chat"
	"github.com/ragbot/docchat/internal/config"
	"github.com/ragbot/docchat/internal/embedding"
	"github.com/ragbot/docchat/internal/prompt"
	"github.com/ragbot/docchat/internal/rag"
	"github.com/ragbot/docchat/internal/retriever"
	"github.com/ragbot/docchat/internal/session"
	"github.com/ragbot/docchat/internal/storage"
	"github.com/ragbot/docchat/internal/tui"
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:   "docchat",
	Short: "Chat with your ingested documents",
	Long: `Interactive question answering over the ingested document collection.

Answers are grounded in retrieved document chunks and streamed as they are
generated.

Environment variables:
  OPENROUTER_API_KEY  API key for the chat gateway (required)
  OPENROUTER_MODEL    Model served by the gateway (default: openai/gpt-3.5-turbo)
  OPENAI_API_KEY      OpenAI API key for query embeddings (required)
  QDRANT_HOST         Qdrant hostname (default: localhost)
  QDRANT_PORT         Qdrant gRPC port (default: 6334)`,
	RunE: runChat,
}

func init() {
	rootCmd.Flags().StringVar(&flagConfig, "config", "config.yaml", "path to the config file")
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	store, err := storage.NewQdrantStore(cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Qdrant.Collection, cfg.Embedding.Dimension)
	if err != nil {
		return fmt.Errorf("connect to Qdrant: %w", err)
	}
	defer store.Close()

	embeddingClient, err := embedding.NewClient()
	if err != nil {
		return fmt.Errorf("create embedding client: %w", err)
	}
	embedder := embedding.NewEmbedder(embeddingClient, cfg.Embedding.Model, cfg.Embedding.Dimension, cfg.Embedding.BatchSize)

	// Warnings only; anything chattier tears the TUI.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	gateway, err := chat.NewClient(chat.Config{
		APIKey:                  cfg.Gateway.APIKey,
		BaseURL:                 cfg.Gateway.BaseURL,
		Model:                   cfg.Gateway.Model,
		MaxConsecutiveMalformed: cfg.Gateway.MaxConsecutiveMalformed,
		Logger:                  logger,
	})
	if err != nil {
		return fmt.Errorf("create gateway client: %w", err)
	}

	builder := prompt.NewBuilder(prompt.Config{
		MaxHistoryTurns:  cfg.Prompt.MaxHistoryTurns,
		MaxContextTokens: cfg.Prompt.MaxContextTokens,
	})

	engine := rag.New(retriever.New(embedder, store), builder, gateway, cfg.Retrieval.TopK, logger)

	model := tui.New(engine, session.New())
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run chat: %w", err)
	}
	return nil
}
