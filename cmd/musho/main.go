// Package main provides the Musho service entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"musho/internal/catalog"
	"musho/internal/core"
	"musho/internal/history"
	httpserver "musho/internal/http"
	"musho/internal/media"
	"musho/internal/pipeline"
	"musho/internal/resolver"
	"musho/internal/voice"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "musho",
	Short: "Musho - per-guild voice playback service",
	Long: `Musho schedules per-guild music playback: requests are resolved against
the Spotify catalog and a media search backend, downloaded through a shared
bounded pipeline, and streamed to each guild's voice channel.`,
	RunE: runMusho,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, console)")
	rootCmd.PersistentFlags().String("catalog-client-id", "", "Spotify client ID")
	rootCmd.PersistentFlags().String("catalog-client-secret", "", "Spotify client secret")
	rootCmd.PersistentFlags().String("download-dir", "./media", "directory for downloaded media files")
	rootCmd.PersistentFlags().Int("download-workers", 2, "concurrent download limit")
	rootCmd.PersistentFlags().Int("max-buffer", 10, "per-guild queue capacity")
	rootCmd.PersistentFlags().Int("collection-import-limit", 25, "max tracks imported from one playlist or album")
	rootCmd.PersistentFlags().Duration("ready-wait", 15*time.Second, "max wait for the next track's download")
	rootCmd.PersistentFlags().Duration("idle-timeout", 30*time.Second, "leave voice after this long with no listeners")
	rootCmd.PersistentFlags().Int("default-volume", 100, "playback volume new sessions start with (percent)")
	rootCmd.PersistentFlags().Int("max-volume", 200, "highest volume a session accepts (percent)")
	rootCmd.PersistentFlags().String("history-path", "./musho.db", "play history database path")
	rootCmd.PersistentFlags().String("server-host", "0.0.0.0", "HTTP server host")
	rootCmd.PersistentFlags().Int("server-port", 8080, "HTTP server port")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(".env")
		viper.SetConfigType("env")
	}

	viper.SetEnvPrefix("MUSHO")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}

	config = buildConfig()
	logger = buildLogger(config.Log)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	cfg.Playback.MaxBuffer = viper.GetInt("max-buffer")
	cfg.Playback.CollectionImportLimit = viper.GetInt("collection-import-limit")
	cfg.Playback.ReadyWait = viper.GetDuration("ready-wait")
	cfg.Playback.IdleTimeout = viper.GetDuration("idle-timeout")
	cfg.Playback.DefaultVolume = viper.GetInt("default-volume")
	cfg.Playback.MaxVolume = viper.GetInt("max-volume")

	cfg.Download.Workers = viper.GetInt("download-workers")
	cfg.Download.Dir = viper.GetString("download-dir")

	cfg.Catalog.ClientID = viper.GetString("catalog-client-id")
	cfg.Catalog.ClientSecret = viper.GetString("catalog-client-secret")

	cfg.History.Path = viper.GetString("history-path")

	cfg.Server.Host = viper.GetString("server-host")
	cfg.Server.Port = viper.GetInt("server-port")

	cfg.Log.Level = viper.GetString("log-level")
	cfg.Log.Format = viper.GetString("log-format")

	return cfg
}

func buildLogger(cfg core.LogConfig) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	if strings.ToLower(cfg.Format) == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := zapCfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runMusho(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting Musho",
		zap.Int("maxBuffer", config.Playback.MaxBuffer),
		zap.Int("downloadWorkers", config.Download.Workers))

	if err := config.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if config.Catalog.ClientID == "" || config.Catalog.ClientSecret == "" {
		return fmt.Errorf("catalog client ID and secret are required")
	}

	historyStore, err := history.Open(config.History, logger)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer historyStore.Close()

	catalogClient, err := catalog.New(ctx, config.Catalog, logger)
	if err != nil {
		return fmt.Errorf("failed to create catalog client: %w", err)
	}

	metrics := httpserver.NewMetrics()
	searcher := media.NewSearcher(config.Media, logger)
	fetcher := media.NewFetcher(config.Download, config.Media, logger)
	pool := pipeline.New(config.Download, fetcher, metrics, logger)
	defer pool.Close()

	registry := core.NewRegistry(core.RegistryOptions{
		Config:   config.Playback,
		Logger:   logger,
		Resolver: resolver.New(config.Playback, catalogClient, searcher, logger),
		Pool:     pool,
		Gateway:  voice.NewGateway(1, logger),
		Stats:    metrics,
		History:  historyStore,
	})

	httpServer := httpserver.NewServer(config.Server, registry, historyStore, metrics, logger)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return httpServer.Start(gCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()
		registry.Close()
		return nil
	})

	logger.Info("Musho started",
		zap.String("httpAddr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if err := g.Wait(); err != nil {
		logger.Error("Musho stopped with error", zap.Error(err))
		return err
	}

	logger.Info("Musho stopped gracefully")
	return nil
}
