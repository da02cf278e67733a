package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local API and background workers",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	// 1. Signal handling
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// 2. Configuration, logger, store, services
	client, cfg, err := openClient(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.Info("client initialized",
		"path", cfg.Database.Path,
		"interpreter", cfg.Interpreter.Provider,
		"sync", client.SyncEnabled(),
	)

	// 3. Sync lock, held for the life of the server so CLI syncs stand aside
	lock := flock.New(syncLockPath(cfg.Database.Path))
	locked, err := lock.TryLock()
	if err != nil || !locked {
		client.Shutdown(context.Background())
		if err == nil {
			err = errSyncLocked
		}
		return fmt.Errorf("acquiring sync lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	// 4. Background workers (queue drain, periodic sync)
	if err := client.Start(ctx); err != nil {
		client.Shutdown(context.Background())
		return err
	}

	// 5. HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      client.Handler(Version),
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected error when Shutdown() is called gracefully.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	// 6. Block until signal received
	<-ctx.Done()
	slog.Info("shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout.Std())
	defer shutdownCancel()

	// 6a. Stop HTTP server (drains in-flight requests)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// 6b. Stop workers, push scheduled changes, close store
	if err := client.Shutdown(shutdownCtx); err != nil {
		slog.Error("client shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
