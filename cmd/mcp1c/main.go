// Copyright (C) 2025 smirnov0ser
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command mcp1c serves 1C:Enterprise configuration metadata search over
// HTTP, or runs one-shot searches from the command line.
//
// Usage:
//
//	mcp1c serve
//	mcp1c serve --config mcp1c.yaml
//	mcp1c search "Справочники.Номенклатура"
//	mcp1c search --usages --limit 10 "Валюты"
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8000/mcp/v1/metadata/health
//
//	# Search metadata objects
//	curl -X POST http://localhost:8000/mcp/v1/metadata/search \
//	  -H "Content-Type: application/json" \
//	  -d '{"query": "Справочники.Номенклатура", "limit": 3}'
//
//	# List available configurations
//	curl http://localhost:8000/mcp/v1/metadata/configs
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/smirnov0ser/mcp1c-metadata/cmd/mcp1c/config"
	"github.com/smirnov0ser/mcp1c-metadata/pkg/logging"
	"github.com/smirnov0ser/mcp1c-metadata/services/metadata"
	"github.com/smirnov0ser/mcp1c-metadata/services/metadata/observability"
)

// shutdownTimeout bounds graceful HTTP server shutdown.
const shutdownTimeout = 10 * time.Second

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "mcp1c",
		Short: "1C configuration metadata search server",
		Long: "mcp1c indexes 1C:Enterprise configuration metadata " +
			"(JSON exports and text reports) and answers search and " +
			"usage queries over HTTP or from the command line.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "mcp1c.yaml", "Path to the YAML configuration file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newSearchCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the metadata search HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level := logging.ParseLevel(cfg.Logging.Level)
	logCfg := logging.Config{
		Level:   level,
		Service: "mcp1c",
	}
	if cfg.Logging.ToFile {
		logCfg.LogDir = cfg.Logging.Dir
	}
	appLogger := logging.New(logCfg)
	defer appLogger.Close()
	logger := appLogger.Slog()
	slog.SetDefault(logger)

	if level == logging.LevelDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	catalog := metadata.NewCatalog(metadata.CatalogConfig{
		InputDir: cfg.Metadata.InputDir,
		DistDir:  cfg.Metadata.DistDir,
		Logger:   logger,
	})
	defer catalog.Stop()

	var cache *metadata.TreeCache
	if cfg.Metadata.CacheDir != "" {
		cache, err = metadata.OpenTreeCache(metadata.CacheConfig{
			Path:    cfg.Metadata.CacheDir,
			Logger:  logger,
			Metrics: metrics,
		})
		if err != nil {
			return fmt.Errorf("open tree cache: %w", err)
		}
		defer cache.Close()
	}

	svc, err := metadata.NewService(metadata.ServiceConfig{
		Catalog: catalog,
		Cache:   cache,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metadata.Watch {
		if err := catalog.Watch(ctx, svc.InvalidateCaches); err != nil {
			logger.Warn("source watching disabled", "error", err)
		}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if level == logging.LevelDebug {
		router.Use(gin.Logger())
	}

	base := router.Group(cfg.Server.BasePath)
	v1 := base.Group("/v1")
	metadata.RegisterRoutes(v1, metadata.NewHandlers(svc))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started",
			"addr", server.Addr,
			"base_path", cfg.Server.BasePath,
			"input_dir", cfg.Metadata.InputDir,
			"configs", len(svc.Configs()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newSearchCmd() *cobra.Command {
	var (
		findUsages     bool
		limit          int
		configSelector string
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run one metadata search and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(args[0], findUsages, limit, configSelector)
		},
	}
	cmd.Flags().BoolVar(&findUsages, "usages", false, "Find objects using the matched ones")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of matched objects")
	cmd.Flags().StringVar(&configSelector, "target", "", "Configuration selector (file base name, file name, Имя or Синоним)")
	return cmd
}

func runSearch(query string, findUsages bool, limit int, configSelector string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	appLogger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		Service: "mcp1c",
		Quiet:   true,
	})
	defer appLogger.Close()
	logger := appLogger.Slog()

	catalog := metadata.NewCatalog(metadata.CatalogConfig{
		InputDir: cfg.Metadata.InputDir,
		DistDir:  cfg.Metadata.DistDir,
		Logger:   logger,
	})
	defer catalog.Stop()

	// One-shot runs keep the tree in memory only.
	cache, err := metadata.OpenTreeCache(metadata.CacheConfig{
		InMemory: true,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer cache.Close()

	svc, err := metadata.NewService(metadata.ServiceConfig{
		Catalog: catalog,
		Cache:   cache,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	outcome := svc.Search(context.Background(), metadata.SearchRequest{
		Query:      query,
		FindUsages: findUsages,
		Limit:      limit,
		Config:     configSelector,
	})

	payload, err := json.MarshalIndent(metadata.NewSearchResponse(outcome), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(payload))
	if outcome.Status == metadata.StatusError {
		return errors.New(outcome.Message)
	}
	return nil
}
