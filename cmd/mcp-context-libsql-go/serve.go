package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/config"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/httpapi"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/metrics"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/server"
)

var transportFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve MCP tools over stdio, or MCP plus the REST API over HTTP",
	Long: `Starts the context engine.

With --transport stdio (the default) MCP is spoken on stdin/stdout and, when
metrics are enabled, Prometheus is served on metrics.addr.

With --transport http a single listener on app.http.addr serves:
  /api/v1/...   REST API
  /mcp          MCP streamable HTTP
  /healthz      health report
  /metrics      Prometheus scrape endpoint, when enabled

When --config names a file, edits to its engine section are applied live.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&transportFlag, "transport", "t", "", "transport to use: stdio or http (overrides app.transport)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, cfg, logger, err := openService(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("close service", slog.String("error", err.Error()))
		}
	}()
	if transportFlag != "" {
		cfg.App.Transport = transportFlag
	}

	promHandler := metrics.Init(cfg.Metrics)
	mcpServer := server.NewMCPServer(cfg.App.Name, svc, server.WithLogger(logger))

	g, gCtx := errgroup.WithContext(ctx)
	if configPath != "" {
		g.Go(func() error {
			return config.Watch(gCtx, configPath, logger, func(c *config.Config) {
				svc.Reconfigure(c.Engine)
			})
		})
	}

	switch cfg.App.Transport {
	case config.TransportStdio:
		if promHandler != nil {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promHandler)
			serveHTTP(gCtx, g, logger, &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}, cfg.App.HTTP.ShutdownTimeout)
		}
		g.Go(func() error {
			err := mcpServer.Run(gCtx)
			logger.Info("stdio session ended")
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("mcp stdio: %w", err)
			}
			// the client hung up; stop the remaining goroutines
			return context.Canceled
		})
	case config.TransportHTTP:
		router := httpapi.NewRouter(svc, httpapi.Options{
			MCP:     mcpServer.HTTPHandler(gCtx),
			MCPPath: cfg.App.HTTP.MCPPath,
			Metrics: promHandler,
			Logger:  logger,
		})
		serveHTTP(gCtx, g, logger, &http.Server{Addr: cfg.App.HTTP.Addr, Handler: router}, cfg.App.HTTP.ShutdownTimeout)
	default:
		return fmt.Errorf("unknown transport: %s (expected: stdio or http)", cfg.App.Transport)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server error", slog.String("error", err.Error()))
		return err
	}
	logger.Info("server stopped")
	return nil
}

// serveHTTP runs srv in g and shuts it down when ctx ends.
func serveHTTP(ctx context.Context, g *errgroup.Group, logger *slog.Logger, srv *http.Server, grace time.Duration) {
	g.Go(func() error {
		logger.Info("starting HTTP server", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})
}
