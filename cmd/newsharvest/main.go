// Package main wires together the acquisition service binary.
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

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tidewire/newsharvest/internal/api"
	"github.com/tidewire/newsharvest/internal/archive"
	"github.com/tidewire/newsharvest/internal/clock/system"
	"github.com/tidewire/newsharvest/internal/config"
	"github.com/tidewire/newsharvest/internal/dedup"
	"github.com/tidewire/newsharvest/internal/extract"
	"github.com/tidewire/newsharvest/internal/fetch"
	"github.com/tidewire/newsharvest/internal/id/uuid"
	"github.com/tidewire/newsharvest/internal/logging"
	"github.com/tidewire/newsharvest/internal/metrics"
	notifymemory "github.com/tidewire/newsharvest/internal/notify/memory"
	notifypubsub "github.com/tidewire/newsharvest/internal/notify/pubsub"
	"github.com/tidewire/newsharvest/internal/orchestrator"
	"github.com/tidewire/newsharvest/internal/pipeline"
	"github.com/tidewire/newsharvest/internal/ratelimit"
	"github.com/tidewire/newsharvest/internal/scheduler"
	"github.com/tidewire/newsharvest/internal/source"
	memorystorage "github.com/tidewire/newsharvest/internal/storage/memory"
	"github.com/tidewire/newsharvest/internal/storage/postgres"
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

	clock := system.New()
	idGen := uuid.New()

	var (
		docStore pipeline.DocumentStore
		jobStore pipeline.JobStore
		durable  pipeline.Deduplicator
		pool     *pgxpool.Pool
	)
	if cfg.DB.DSN != "" {
		pool, err = postgres.NewPool(ctx, postgres.PoolConfig{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			logger.Fatal("postgres pool init failed", zap.Error(err))
		}
		defer pool.Close()

		docStore, err = postgres.NewDocumentStore(pool, cfg.DB.DocumentsTable)
		if err != nil {
			logger.Fatal("document store init failed", zap.Error(err))
		}
		jobStore, err = postgres.NewJobStore(pool, cfg.DB.JobsTable)
		if err != nil {
			logger.Fatal("job store init failed", zap.Error(err))
		}
		durable, err = postgres.NewDedupStore(pool, cfg.DB.HashesTable, clock)
		if err != nil {
			logger.Fatal("dedup store init failed", zap.Error(err))
		}
	} else {
		logger.Warn("db.dsn is empty, using in-memory stores")
		docStore = memorystorage.NewDocumentStore()
		jobStore = memorystorage.NewJobStore()
		durable = dedup.NewMemory(cfg.RetentionWindow())
	}
	deduper := dedup.NewLayered(durable, cfg.RetentionWindow())

	archiveStore := buildArchive(ctx, cfg, logger)
	publisher := buildPublisher(ctx, cfg, logger)

	limiter := ratelimit.New(ratelimit.Config{}, cfg.Sources)
	fetcher := fetch.New(fetch.Config{
		UserAgent:     cfg.Pipeline.UserAgent,
		Timeout:       cfg.FetchTimeout(),
		MaxRedirects:  cfg.HTTP.MaxRedirects,
		RespectRobots: cfg.Pipeline.RespectRobots,
		Clock:         clock,
	})
	chain := extract.NewChain(clock)

	adapters := make([]orchestrator.SourceAdapter, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		adapter, err := source.New(src, fetcher, limiter, chain, logger.Named("source"))
		if err != nil {
			logger.Fatal("source adapter init failed", zap.String("source", src.Name), zap.Error(err))
		}
		adapters = append(adapters, adapter)
	}

	retryPolicy := orchestrator.NewRetryPolicy(
		cfg.Pipeline.MaxRetries,
		time.Duration(cfg.Pipeline.RetryBaseMs)*time.Millisecond,
		time.Duration(cfg.Pipeline.RetryMaxMs)*time.Millisecond,
	)
	orch := orchestrator.New(
		fetcher,
		limiter,
		deduper,
		docStore,
		archiveStore,
		publisher,
		retryPolicy,
		clock,
		idGen,
		orchestrator.Config{
			Concurrency:        cfg.Pipeline.Concurrency,
			ArchivePrefix:      cfg.Archive.Prefix,
			ArchiveContentType: cfg.Archive.ContentType,
			Topic:              cfg.PubSub.TopicName,
		},
		logger.Named("orchestrator"),
	)

	sched, err := scheduler.New(jobStore, orch, adapters, clock, scheduler.Config{
		DefaultTrigger: cfg.Pipeline.DefaultTrigger,
		MisfireGrace:   time.Duration(cfg.Pipeline.MisfireGraceSecs) * time.Second,
		CleanupTrigger: cfg.Dedup.CleanupTrigger,
		Retention:      cfg.RetentionWindow(),
	}, logger.Named("scheduler"))
	if err != nil {
		logger.Fatal("scheduler init failed", zap.Error(err))
	}
	if err := sched.Start(ctx); err != nil {
		logger.Fatal("scheduler start failed", zap.Error(err))
	}

	var srv *http.Server
	if cfg.Server.Enabled {
		apiServer := api.NewServer(sched, docStore, api.Config{
			APIKey:      cfg.Server.APIKey,
			AuthEnabled: cfg.Server.APIKey != "",
		}, logger.Named("api"))

		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           apiServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("http server started", zap.Int("port", cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", zap.Error(err))
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown initiated")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}
	sched.Stop()
	logger.Info("shutdown complete")
}

func buildArchive(ctx context.Context, cfg config.Config, logger *zap.Logger) pipeline.Archive {
	switch cfg.Archive.Backend {
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			logger.Fatal("gcs client init failed", zap.Error(err))
		}
		store, err := archive.NewGCS(client, archive.GCSConfig{Bucket: cfg.Archive.GCSBucket})
		if err != nil {
			logger.Fatal("gcs archive init failed", zap.Error(err))
		}
		return store
	case "local":
		store, err := archive.NewLocal(archive.LocalConfig{BaseDir: cfg.Archive.LocalDir})
		if err != nil {
			logger.Fatal("local archive init failed", zap.Error(err))
		}
		return store
	case "memory":
		return archive.NewMemory()
	case "", "off":
		return nil
	default:
		logger.Fatal("unknown archive backend", zap.String("backend", cfg.Archive.Backend))
		return nil
	}
}

func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) pipeline.Publisher {
	if cfg.PubSub.TopicName == "" {
		return nil
	}
	if cfg.PubSub.ProjectID == "" {
		logger.Warn("pubsub.project_id is empty, using in-memory publisher")
		return notifymemory.New()
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		logger.Fatal("pubsub client init failed", zap.Error(err))
	}
	return notifypubsub.New(client)
}
