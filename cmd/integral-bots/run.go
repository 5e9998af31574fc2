package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/DalmoMendonca/integral-bots/pkg/bsky"
	"github.com/DalmoMendonca/integral-bots/pkg/compose"
	"github.com/DalmoMendonca/integral-bots/pkg/config"
	"github.com/DalmoMendonca/integral-bots/pkg/journal"
	"github.com/DalmoMendonca/integral-bots/pkg/learning"
	"github.com/DalmoMendonca/integral-bots/pkg/llm"
	"github.com/DalmoMendonca/integral-bots/pkg/metrics"
	"github.com/DalmoMendonca/integral-bots/pkg/news"
	"github.com/DalmoMendonca/integral-bots/pkg/orchestrator"
	"github.com/DalmoMendonca/integral-bots/pkg/persona"
	"github.com/DalmoMendonca/integral-bots/pkg/state"
	"github.com/DalmoMendonca/integral-bots/pkg/types"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Perform one pass over every configured persona",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd)
		},
	}
}

func runOnce(cmd *cobra.Command) error {
	logger, reg, cfg, err := setup()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	orch, closeAll, err := build(ctx, logger, reg, cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	report, err := orch.Run(ctx)
	if err != nil {
		return err
	}
	report.WriteSummary(cmd.OutOrStdout())
	return nil
}

// build wires the collaborators of a run. The returned func releases the
// learning store and the journal.
func build(ctx context.Context, logger *logrus.Logger, reg *persona.Registry, cfg *config.Config) (*orchestrator.Orchestrator, func(), error) {
	provider, err := llm.New(ctx, cfg.LLM())
	if err != nil {
		return nil, nil, types.Wrap(types.ErrConfiguration, err)
	}
	if provider == nil {
		logger.Info("No language model configured, using templates")
	} else {
		logger.WithField("provider", provider.Name()).Info("Language model ready")
	}

	client := bsky.NewClient(cfg.BskyService,
		bsky.WithPublicAPI(cfg.BskyPublicAPI),
		bsky.WithLogger(logger),
	)

	source := news.NewSource(news.Options{
		Extras:      cfg.FeedExtras,
		Concurrency: cfg.FeedConcurrency,
		FeedTimeout: cfg.FeedTimeout,
		Trending:    client,
		Logger:      logger,
	})

	var learn learning.Store = learning.Nop{}
	if cfg.LearningDB != "" {
		db, err := learning.NewSQLiteStore(cfg.LearningDB)
		if err != nil {
			logger.WithError(err).Warn("Learning store unavailable, continuing without biases")
		} else {
			learn = db
		}
	}

	var events orchestrator.EventLogger
	var j *journal.Journal
	if cfg.JournalDir != "" {
		j, err = journal.Open(cfg.JournalDir, time.Now)
		if err != nil {
			logger.WithError(err).Warn("Activity journal unavailable")
		} else {
			events = j
		}
	}

	store := state.NewStore(cfg.StatePath, state.Options{
		TopicCap:        cfg.SeenTopicCap,
		NotificationCap: cfg.AnsweredNotificationCap,
		Logger:          logger,
	})

	orch := orchestrator.New(orchestrator.Config{
		Budget:                 cfg.Budget(),
		ReplyFloor:             cfg.ReplyFloor,
		NotificationLookback:   cfg.NotificationLookback,
		NotificationFetchLimit: cfg.NotificationFetchLimit,
		CallTimeout:            cfg.CallTimeout,
		PersistEachUnit:        cfg.PersistEachUnit,
		FeedMaxPerFeed:         cfg.FeedMaxPerFeed,
		TrendingLimit:          cfg.TrendingLimit,
		MetricsTextfile:        cfg.MetricsTextfile,
		Credentials:            cfg.Credentials,
	}, orchestrator.Deps{
		Platform:  platform(client),
		Generator: compose.New(reg, compose.Options{Provider: provider, Logger: logger}),
		Source:    source,
		Learning:  learn,
		Events:    events,
		Metrics:   metrics.NewRecorder(),
		State:     store,
		Profiles:  reg,
		Logger:    logger,
	})

	closeAll := func() {
		if err := learn.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close learning store")
		}
		if err := j.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close journal")
		}
	}
	return orch, closeAll, nil
}

func platform(client *bsky.Client) orchestrator.Platform {
	return orchestrator.LoginFunc(func(ctx context.Context, creds types.Credentials) (orchestrator.Session, error) {
		sess, err := client.Login(ctx, creds)
		if err != nil {
			return nil, err
		}
		return sess, nil
	})
}
