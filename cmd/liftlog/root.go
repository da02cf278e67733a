package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hyperengineering/liftlog/internal/config"
	"github.com/hyperengineering/liftlog/pkg/liftlog"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var (
	configPath string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:          "liftlog",
	Short:        "LiftLog - offline-first workout log",
	Long:         "Log workouts in free text, review sessions and sync them with the remote store.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file path (overrides LIFTLOG_CONFIG_PATH)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output in JSON format")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(drainCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(entriesCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(statusCmd)
}

// loadConfig reads .env, then the config file and environment.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

// openClient loads configuration, installs the logger and returns an
// initialized client. The caller must call Shutdown.
func openClient(ctx context.Context, errOut io.Writer) (*liftlog.Client, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(newLogger(cfg.Log, errOut))

	client, err := liftlog.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := client.Initialize(ctx); err != nil {
		client.Shutdown(ctx)
		return nil, nil, err
	}
	return client, cfg, nil
}

// withClient runs fn against an initialized client and shuts it down after.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *liftlog.Client) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	client, _, err := openClient(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Shutdown(context.Background()); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()
	return fn(ctx, client)
}

// newLogger builds the process logger. Output goes to a rotating file when
// cfg.File is set, otherwise to errOut.
func newLogger(cfg config.LogConfig, errOut io.Writer) *slog.Logger {
	out := errOut
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
	}
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
