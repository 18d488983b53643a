package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"newsrag/loader/internal"
	"newsrag/loader/service"
	"newsrag/logger"
	"newsrag/model"
	"newsrag/store"
	"newsrag/types"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.WithError(err).Error("loader failed")
		os.Exit(1)
	}
}

type loaderApp struct {
	cfg    types.Config
	logger *logrus.Entry
}

func newRootCmd() *cobra.Command {
	app := &loaderApp{}

	root := &cobra.Command{
		Use:           "newsrag-loader",
		Short:         "Chunk, embed and index news articles",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				logrus.WithError(err).Warn("error loading .env file")
			}
			cfg, err := types.LoadConfig()
			if err != nil {
				return err
			}
			logger.Init(cfg.LogLevel)
			app.cfg = cfg
			app.logger = logger.New("newsrag-loader")
			return nil
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "ingest FILE...",
			Short: "Ingest JSON document batches once",
			Args:  cobra.MinimumNArgs(1),
			RunE:  app.runIngest,
		},
		&cobra.Command{
			Use:   "watch",
			Short: "Ingest batch files dropped into the source directory",
			Args:  cobra.NoArgs,
			RunE:  app.runWatch,
		},
		&cobra.Command{
			Use:   "bootstrap",
			Short: "Create the vector collection if it does not exist",
			Args:  cobra.NoArgs,
			RunE:  app.runBootstrap,
		},
	)
	return root
}

// pipeline opens the embedder and index and returns the ingestion service
// with a func releasing both.
func (a *loaderApp) pipeline(ctx context.Context) (*service.Service, func(), error) {
	chunker, err := internal.NewChunker(a.cfg.Chunking.ChunkSize, a.cfg.Chunking.ChunkOverlap)
	if err != nil {
		return nil, nil, err
	}
	ids, err := service.ParseIDStrategy(a.cfg.Loader.IDStrategy)
	if err != nil {
		return nil, nil, err
	}

	embedder, closeEmbedder, err := model.NewFromConfig(ctx, a.cfg.Embedding, a.logger.WithField("component", "embedder"))
	if err != nil {
		return nil, nil, err
	}
	index, err := store.Open(ctx, a.cfg.Index, a.cfg.Embedding.Dimension, a.logger.WithField("component", "index"))
	if err != nil {
		closeEmbedder()
		return nil, nil, err
	}

	svc := service.New(chunker, embedder, index,
		service.WithIDStrategy(ids),
		service.WithConcurrency(a.cfg.Loader.Concurrency),
		service.WithLogger(a.logger.WithField("component", "ingest")),
	)
	release := func() {
		if err := index.Close(); err != nil {
			a.logger.WithError(err).Warn("error closing vector index")
		}
		if err := closeEmbedder(); err != nil {
			a.logger.WithError(err).Warn("error closing embedder")
		}
	}
	return svc, release, nil
}

func (a *loaderApp) runIngest(cmd *cobra.Command, files []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, release, err := a.pipeline(ctx)
	if err != nil {
		return err
	}
	defer release()

	total := 0
	for _, path := range files {
		n, err := svc.IngestFile(ctx, path)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		total += n
	}
	a.logger.WithFields(logrus.Fields{"files": len(files), "points": total}).Info("ingest complete")
	return nil
}

func (a *loaderApp) runWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, release, err := a.pipeline(ctx)
	if err != nil {
		return err
	}
	defer release()

	watcher, err := internal.NewFileWatcher(internal.WatcherConfig{
		SourceDir:      a.cfg.Loader.SourceDir,
		ArchiveDir:     a.cfg.Loader.ArchiveDir,
		BadDir:         a.cfg.Loader.BadDir,
		MonitoringTime: a.cfg.Loader.MonitoringTime,
	}, a.logger.WithField("component", "watcher"))
	if err != nil {
		return err
	}

	svc.Run(ctx, watcher, shutdownTimeout)
	return nil
}

func (a *loaderApp) runBootstrap(cmd *cobra.Command, _ []string) error {
	index, err := store.Open(cmd.Context(), a.cfg.Index, a.cfg.Embedding.Dimension, a.logger.WithField("component", "index"))
	if err != nil {
		return err
	}
	return index.Close()
}
