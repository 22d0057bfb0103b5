// Package main wires together the link audit service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/linkaudit/linkaudit/internal/api"
	gcsartifact "github.com/linkaudit/linkaudit/internal/artifact/gcs"
	localartifact "github.com/linkaudit/linkaudit/internal/artifact/local"
	"github.com/linkaudit/linkaudit/internal/clock/system"
	"github.com/linkaudit/linkaudit/internal/config"
	"github.com/linkaudit/linkaudit/internal/controller"
	"github.com/linkaudit/linkaudit/internal/crawl"
	memorydataset "github.com/linkaudit/linkaudit/internal/dataset/memory"
	postgresdataset "github.com/linkaudit/linkaudit/internal/dataset/postgres"
	"github.com/linkaudit/linkaudit/internal/domain"
	"github.com/linkaudit/linkaudit/internal/fetch"
	"github.com/linkaudit/linkaudit/internal/logging"
	"github.com/linkaudit/linkaudit/internal/metrics"
	"github.com/linkaudit/linkaudit/internal/pool"
	pubsubpublisher "github.com/linkaudit/linkaudit/internal/publisher/pubsub"
	"github.com/linkaudit/linkaudit/internal/render"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	artifacts, cleanup, err := buildArtifactStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	dataset, closeDataset, err := buildDataset(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDataset()

	var publisher crawl.Publisher
	if cfg.PubSub.ProjectID != "" && cfg.PubSub.Topic != "" {
		p, err := pubsubpublisher.New(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return fmt.Errorf("init pubsub publisher: %w", err)
		}
		defer func() {
			if cerr := p.Close(); cerr != nil {
				logger.Warn("pubsub close failed", zap.Error(cerr))
			}
		}()
		publisher = p
		logger.Info("completion events enabled", zap.String("topic", cfg.PubSub.Topic))
	}

	renderer, err := render.New(render.Config{
		MaxParallel:       cfg.Render.MaxParallel,
		UserAgent:         cfg.Crawler.UserAgent,
		NavigationTimeout: cfg.NavTimeout(),
	})
	if err != nil {
		return fmt.Errorf("init renderer: %w", err)
	}
	defer renderer.Close()

	fetcher := fetch.New(fetch.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.FallbackTimeout(),
	})

	ctrl := controller.New(
		controller.Config{
			Pool: pool.Config{
				MinConcurrency: cfg.Crawler.MinConcurrency,
				MaxConcurrency: cfg.Crawler.MaxConcurrency,
				RatePerMinute:  cfg.Crawler.RatePerMinute,
			},
			Recursive:       cfg.Crawler.Recursive,
			FallbackTimeout: cfg.FallbackTimeout(),
			CompletionTopic: cfg.PubSub.Topic,
		},
		domain.New(),
		dataset,
		artifacts,
		renderer,
		fetcher,
		publisher,
		system.New(),
		logger.Named("controller"),
	)

	apiServer := api.NewServer(ctrl, dataset, artifacts, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	// Let an in-flight job persist its artifacts before exit.
	ctrl.Wait()
	logger.Info("shutdown complete")
	return nil
}

func buildArtifactStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawl.ArtifactStore, func(), error) {
	switch cfg.Storage.Provider {
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("init gcs client: %w", err)
		}
		store, err := gcsartifact.New(ctx, client, gcsartifact.Config{
			Bucket: cfg.Storage.GCS.Bucket,
			Prefix: cfg.Storage.GCS.Prefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init gcs store: %w", err)
		}
		logger.Info("using gcs artifact store", zap.String("bucket", cfg.Storage.GCS.Bucket))
		cleanup := func() {
			if cerr := client.Close(); cerr != nil {
				logger.Warn("gcs client close failed", zap.Error(cerr))
			}
		}
		return store, cleanup, nil
	case "local":
		store, err := localartifact.New(localartifact.Config{BaseDir: cfg.Storage.BaseDir})
		if err != nil {
			return nil, nil, fmt.Errorf("init local store: %w", err)
		}
		logger.Info("using local artifact store", zap.String("base_dir", cfg.Storage.BaseDir))
		return store, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage provider: %s", cfg.Storage.Provider)
	}
}

func buildDataset(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawl.Dataset, func(), error) {
	switch cfg.Dataset.Provider {
	case "postgres":
		ds, err := postgresdataset.New(ctx, postgresdataset.Config{
			DSN:      cfg.Dataset.Postgres.DSN,
			Table:    cfg.Dataset.Postgres.Table,
			MaxConns: int32(cfg.Dataset.Postgres.MaxConns),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init postgres dataset: %w", err)
		}
		logger.Info("using postgres dataset", zap.String("table", cfg.Dataset.Postgres.Table))
		return ds, ds.Close, nil
	case "memory":
		logger.Info("using in-memory dataset")
		return memorydataset.New(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown dataset provider: %s", cfg.Dataset.Provider)
	}
}
