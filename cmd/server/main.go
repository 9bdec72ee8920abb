// Command server runs the file upload gateway: an HTTP service that
// validates, scans, and stores untrusted uploads, and serves accepted
// files back with hardened headers.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/filegate/filegate/api"
	"github.com/filegate/filegate/pkg/config"
	"github.com/filegate/filegate/pkg/httpserver"
	"github.com/filegate/filegate/pkg/logger"
	pkgredis "github.com/filegate/filegate/pkg/redis"
	"github.com/filegate/filegate/pkg/requestid"
	"github.com/filegate/filegate/scan"
	"github.com/filegate/filegate/storage"
	"github.com/filegate/filegate/upload"
)

type appConfig struct {
	Log    logger.Config
	Server httpserver.Config
	Upload upload.Config
	Scan   scan.Config
	Redis  pkgredis.Config
	API    api.Config
}

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(
		logger.WithLevel(cfg.Log.Level),
		logger.WithFormat(cfg.Log.Format),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)

	store, err := storage.NewLocalStorage(cfg.Upload.Dir)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	policy, err := loadPolicy(cfg.Upload.PolicyFile)
	if err != nil {
		return fmt.Errorf("load type policy: %w", err)
	}

	scanner, handlerOpts, err := buildScanner(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("init scanner: %w", err)
	}

	pipeline := upload.NewPipeline(store, policy, scanner,
		upload.WithMaxFileSize(cfg.Upload.MaxFileSize),
		upload.WithLogger(log),
	)

	handlerOpts = append(handlerOpts, api.WithLogger(log))
	handler := api.NewHandler(pipeline, store, handlerOpts...)
	router := api.NewRouter(handler, cfg.API, log)

	log.InfoContext(ctx, "gateway configured",
		slog.String("upload_dir", store.Root()),
		slog.Int64("max_file_size", pipeline.MaxFileSize()),
		slog.Any("allowed_extensions", policy.AllowedExtensions()),
		slog.Any("allowed_mime_types", policy.AllowedMIMETypes()),
		slog.String("scanner", cfg.Scan.Backend),
	)

	srv := httpserver.New(cfg.Server, httpserver.WithLogger(log))
	return srv.Run(ctx, router)
}

// loadPolicy reads the allow-list from the configured YAML file, falling
// back to the built-in table when no file is configured.
func loadPolicy(path string) (*upload.Policy, error) {
	if path == "" {
		return upload.DefaultPolicy(), nil
	}
	return upload.LoadPolicy(path)
}

// buildScanner selects the scan backend and, when the verdict cache is
// enabled, wraps it with Redis and registers the Redis health check.
func buildScanner(ctx context.Context, cfg appConfig, log *slog.Logger) (scan.Scanner, []api.HandlerOption, error) {
	var scanner scan.Scanner
	switch cfg.Scan.Backend {
	case "clamd":
		scanner = scan.NewClamdScanner(cfg.Scan.ClamdAddr, cfg.Scan.Timeout)
	case "", "noop":
		scanner = scan.NoopScanner{}
	default:
		return nil, nil, fmt.Errorf("unknown scanner backend %q", cfg.Scan.Backend)
	}

	if !cfg.Scan.CacheEnabled {
		return scanner, nil, nil
	}

	client, err := pkgredis.Connect(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}

	scanner = scan.NewCachedScanner(scanner, client, cfg.Scan.CacheTTL, log)
	opts := []api.HandlerOption{
		api.WithHealthCheck("redis", pkgredis.Healthcheck(client)),
	}
	return scanner, opts, nil
}
