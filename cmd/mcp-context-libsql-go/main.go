// Package main is the mcp-context-libsql-go CLI: it serves the knowledge
// context engine over MCP and REST, and offers one-shot query and ingest
// commands against the same stores.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/buildinfo"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/config"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/pkg/knowledge"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:     "mcp-context-libsql-go",
	Short:   "Multi-modal knowledge context engine",
	Long:    "Fuses document similarity, relationship graph traversal and recent metrics into one scored context per query.",
	Version: fmt.Sprintf("%s (%s, %s)", buildinfo.Version, buildinfo.Revision, buildinfo.BuildDate),

	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "path to a YAML config file")
	rootCmd.AddCommand(serveCmd, queryCmd, ingestCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config and installs the process logger. Logs always
// go to stderr since stdout may carry the MCP stdio stream.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := cfg.App.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func openService(ctx context.Context) (*knowledge.Service, *config.Config, *slog.Logger, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	svc, err := knowledge.NewService(ctx, cfg, knowledge.WithLogger(logger))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init service: %w", err)
	}
	return svc, cfg, logger, nil
}
