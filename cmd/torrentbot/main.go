// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ppotepa/torrent-bot/internal/acquisition"
	"github.com/ppotepa/torrent-bot/internal/api"
	"github.com/ppotepa/torrent-bot/internal/buildinfo"
	"github.com/ppotepa/torrent-bot/internal/config"
	"github.com/ppotepa/torrent-bot/internal/database"
	"github.com/ppotepa/torrent-bot/internal/indexer"
	"github.com/ppotepa/torrent-bot/internal/metrics"
	"github.com/ppotepa/torrent-bot/internal/qbittorrent"
	"github.com/ppotepa/torrent-bot/internal/search"
)

func main() {
	config.InitDefaultLogger(buildinfo.Version)

	var rootCmd = &cobra.Command{
		Use:   "torrentbot",
		Short: "Search aggregation and download fallback engine",
		Long: `torrentbot - fans searches out over Jackett indexers, ranks the merged
results, and hands selections to qBittorrent with a multi-strategy
acquisition fallback chain.`,
	}

	rootCmd.Version = buildinfo.Version

	rootCmd.AddCommand(RunServeCommand())
	rootCmd.AddCommand(RunVersionCommand(buildinfo.Version))
	rootCmd.AddCommand(RunGenerateConfigCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func RunServeCommand() *cobra.Command {
	var (
		configDir string
		dataDir   string
		logPath   string
	)

	var command = &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
	}

	command.Flags().StringVar(&configDir, "config-dir", "", "config directory path (default is OS-specific: ~/.config/torrent-bot/ or %APPDATA%\\torrent-bot\\). Can also be a direct path to a .toml file")
	command.Flags().StringVar(&dataDir, "data-dir", "", "data directory for database and other files (default is next to config file)")
	command.Flags().StringVar(&logPath, "log-path", "", "log file path (default is stdout)")

	command.Run = func(cmd *cobra.Command, args []string) {
		runServer(configDir, dataDir, logPath)
	}

	return command
}

func RunVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of torrentbot",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

func RunGenerateConfigCommand() *cobra.Command {
	var configDir string

	command := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate a default configuration file",
		Long: `Generate a default configuration file without starting the server.

If no --config-dir is specified, uses the OS-specific default location:
- Linux/macOS: ~/.config/torrent-bot/config.toml
- Windows: %APPDATA%\torrent-bot\config.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var configPath string
			if configDir != "" {
				if strings.HasSuffix(strings.ToLower(configDir), ".toml") {
					configPath = configDir
				} else if info, err := os.Stat(configDir); err == nil && !info.IsDir() {
					configPath = configDir
				} else {
					configPath = filepath.Join(configDir, "config.toml")
				}
			} else {
				configPath = filepath.Join(config.GetDefaultConfigDir(), "config.toml")
			}

			if _, err := os.Stat(configPath); err == nil {
				cmd.Printf("Configuration file already exists at: %s\n", configPath)
				cmd.Println("Skipping generation to avoid overwriting existing configuration.")
				return nil
			}

			if err := config.WriteDefaultConfig(configPath); err != nil {
				return fmt.Errorf("failed to create configuration file: %w", err)
			}

			cmd.Printf("Configuration file created successfully at: %s\n", configPath)
			return nil
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "",
		"config directory or file path (defaults to OS-specific location)")

	return command
}

func runServer(configDir, dataDir, logPath string) {
	cfg, err := config.New(configDir, buildinfo.Version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize configuration")
	}

	if dataDir != "" {
		os.Setenv("TORRENTBOT__DATA_DIR", dataDir)
		cfg.SetDataDir(dataDir)
	}
	if logPath != "" {
		os.Setenv("TORRENTBOT__LOG_PATH", logPath)
		cfg.Config.LogPath = logPath
	}

	cfg.ApplyLogConfig()

	log.Info().Str("version", buildinfo.Version).Msg("Starting torrentbot")

	db, err := database.Open(cfg.GetDatabasePath())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Indexer aggregator side
	jackettClient := indexer.NewClient(
		cfg.Config.Jackett.URL,
		cfg.Config.Jackett.APIKey,
		cfg.Config.Jackett.TimeoutSeconds,
	)
	registry, err := indexer.NewRegistry(cfg.Config.Search.Indexers, cfg.Config.Search.CatalogPath, jackettClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize backend registry")
	}
	gateway := indexer.NewGateway(jackettClient, jackettClient.Timeout())

	sessionTTL := time.Duration(cfg.Config.Search.SessionTTLMinutes) * time.Minute
	sessions := search.NewSessionStore(sessionTTL)
	searchService := search.NewService(registry, gateway, sessions, db, cfg.Config.Search)

	// Download client side
	qbGateway := qbittorrent.NewGateway(cfg.Config.QBittorrent, 60*time.Second)

	alternates := acquisition.NewAlternateSource(registry, gateway,
		time.Duration(cfg.Config.Search.Broad.TimeoutSeconds)*time.Second)
	engine, err := acquisition.NewEngine(qbGateway, jackettClient, alternates, cfg.Config.Fallback)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize acquisition engine")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Config.Monitor.Enabled {
		monitor := acquisition.NewMonitor(qbGateway, db, func(task qbittorrent.Task) {
			log.Info().Str("module", "monitor").
				Str("name", task.Name).
				Str("savePath", task.SavePath).
				Msg("download finished")
		}, time.Duration(cfg.Config.Monitor.IntervalSeconds)*time.Second)
		go monitor.Run(ctx)
	}

	if cfg.Config.MetricsEnabled {
		go func() {
			if err := metrics.Serve(cfg.Config.MetricsHost, cfg.Config.MetricsPort); err != nil {
				log.Error().Err(err).Msg("Metrics listener stopped")
			}
		}()
	}

	server := api.NewServer(&api.Dependencies{
		Config:        cfg.Config,
		Version:       buildinfo.Version,
		SearchService: searchService,
		Engine:        engine,
		Gateway:       qbGateway,
		DB:            db,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("API server stopped unexpectedly")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
