package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vegasq/dataview/convert"
	"github.com/vegasq/dataview/internal/config"
	"github.com/vegasq/dataview/internal/dataset"
	"github.com/vegasq/dataview/internal/logging"
	"github.com/vegasq/dataview/internal/server"
	"github.com/vegasq/dataview/query"
	"github.com/vegasq/dataview/storage"
)

func newServeCmd() *cobra.Command {
	var (
		addr       string
		storageDir string
		endpoint   string
		bucket     string
		logLevel   string
		logFile    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dataset API",
		Long: `Serve the dataset API.

Settings come from DATAVIEW_* and LOG_* environment variables; flags
override them. With --storage-dir uploads are kept on local disk, otherwise
in MinIO.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Addr = addr
			}
			if flags.Changed("storage-dir") {
				cfg.Storage.LocalDir = storageDir
			}
			if flags.Changed("minio-endpoint") {
				cfg.Storage.Endpoint = endpoint
			}
			if flags.Changed("bucket") {
				cfg.Storage.Bucket = bucket
			}
			if flags.Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			if flags.Changed("log-file") {
				cfg.Log.File = logFile
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&addr, "addr", "", "listen address (default :8000)")
	flags.StringVar(&storageDir, "storage-dir", "", "keep uploads in this directory instead of MinIO")
	flags.StringVar(&endpoint, "minio-endpoint", "", "MinIO endpoint host:port")
	flags.StringVar(&bucket, "bucket", "", "bucket receiving uploads")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&logFile, "log-file", "", "also log to this file, rotated by size")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := logging.New(cfg.Log)
	defer func() { _ = logger.Sync() }()

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	datasets, err := dataset.NewService(store, cfg.Dataset.CacheSize,
		dataset.WithFolder(cfg.Dataset.Folder),
		dataset.WithPreviewRows(cfg.Dataset.PreviewRows),
		dataset.WithValidator(query.NewValidator(cfg.Limits.MaxQueryLength)),
		dataset.WithConvertOptions(convert.Options{InferenceRows: cfg.Dataset.InferenceRows}),
		dataset.WithLogger(logger.Named("dataset")))
	if err != nil {
		return err
	}
	sessions, err := dataset.NewSessions(cfg.Dataset.Sessions)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, datasets, sessions, logger.Named("http"))
	if err != nil {
		return err
	}

	logger.Info("starting",
		zap.String("addr", cfg.Addr),
		zap.Bool("local_storage", cfg.Storage.LocalDir != ""),
		zap.String("bucket", cfg.Storage.Bucket))
	return srv.Run(ctx)
}

// openStore returns the configured store with the upload bucket created.
func openStore(ctx context.Context, cfg config.Storage) (storage.Store, error) {
	if cfg.LocalDir != "" {
		if err := os.MkdirAll(cfg.LocalDir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
		local, err := storage.NewLocal(cfg.LocalDir)
		if err != nil {
			return nil, err
		}
		if err := local.MakeBucket(cfg.Bucket); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		return local, nil
	}

	remote, err := storage.NewMinIO(storage.MinIOConfig{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Secure:    cfg.Secure,
		URLExpiry: cfg.URLExpiry,
	})
	if err != nil {
		return nil, err
	}
	if err := remote.EnsureBucket(ctx, cfg.Bucket); err != nil {
		return nil, err
	}
	return remote, nil
}
