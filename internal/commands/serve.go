package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/keihiworks/keihi/internal/archive"
	"github.com/keihiworks/keihi/internal/config"
	"github.com/keihiworks/keihi/internal/core"
	"github.com/keihiworks/keihi/internal/database"
	"github.com/keihiworks/keihi/internal/web"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the expense dataset HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

func runServe(cfg *config.Config) error {
	slog.Info("configuration loaded",
		"addr", cfg.Server.Addr(),
		"db_max_conns", cfg.Database.MaxConns,
		"upload_dir", cfg.Upload.Dir,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
	)

	ctx := context.Background()
	pool, err := database.NewPool(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	slog.Info("connected to database")

	store := database.New(pool)

	arch, err := archive.New(cfg.Upload.Dir)
	if err != nil {
		return err
	}

	service := core.NewService(store, arch, core.ServiceConfig{
		MaxFileSize:          cfg.Upload.MaxFileSize,
		AmountColumn:         cfg.Validation.AmountColumn,
		DateColumn:           cfg.Validation.DateColumn,
		MaxConcurrentUploads: cfg.Upload.MaxConcurrent,
		UploadWaitTime:       cfg.Upload.MaxWaitTime,
	})

	server := web.NewServer(service, store, cfg)

	// Background cleanup of abandoned archive temp files.
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	go arch.RunJanitor(jobCtx, cfg.Upload.CleanupInterval, cfg.Upload.TempMaxAge)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if active := service.ActiveUploads(); active > 0 {
			slog.Info("waiting for uploads to complete", "active", active)
			if err := service.WaitForUploads(shutdownCtx); err != nil {
				slog.Warn("uploads did not complete in time", "error", err)
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("server stopped")
	return nil
}
