package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/bailiff/internal/calendar"
	"github.com/MikeSquared-Agency/bailiff/internal/config"
	"github.com/MikeSquared-Agency/bailiff/internal/notice"
	"github.com/MikeSquared-Agency/bailiff/internal/processor"
	"github.com/MikeSquared-Agency/bailiff/internal/reconciler"
	"github.com/MikeSquared-Agency/bailiff/internal/slack"
	"github.com/MikeSquared-Agency/bailiff/internal/store"
)

// pipeline holds the components shared by every command.
type pipeline struct {
	cfg    config.Config
	loc    *time.Location
	parser *notice.Parser
	proc   *processor.Processor
	db     *store.Store
	poster *slack.Poster
}

// buildPipeline wires parser, calendar, store and Slack from cfg. extra
// options are applied to the processor after the defaults.
func buildPipeline(ctx context.Context, cfg config.Config, extra ...processor.Option) (*pipeline, error) {
	logger := slog.Default()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	rules, err := notice.LoadRules(cfg.NoticeRulesPath)
	if err != nil {
		return nil, err
	}
	ext, err := notice.NewExtractor(rules)
	if err != nil {
		return nil, fmt.Errorf("compile notice rules: %w", err)
	}
	parser := notice.NewParser(ext, loc, logger)

	var gw calendar.Gateway
	switch cfg.CalendarProvider {
	case config.ProviderMemory:
		gw = calendar.NewMemory()
		logger.Warn("using in-memory calendar, events will not persist")
	default:
		gw = calendar.NewClient(cfg.CalendarAPIURL, cfg.CalendarAccessToken, logger, calendar.WithTimeout(cfg.GatewayTimeout))
	}
	rec := reconciler.New(gw, cfg.CalendarID, loc, logger, reconciler.WithSearchWindow(cfg.SearchWindow()))

	p := &pipeline{cfg: cfg, loc: loc, parser: parser}
	opts := []processor.Option{processor.WithGatewayTimeout(cfg.GatewayTimeout)}

	// Database (optional: without it first-ingestion tracking is per process
	// and there is no retry queue)
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		p.db = db
		opts = append(opts, processor.WithStore(db))
		logger.Info("database connected")
	} else {
		logger.Warn("DATABASE_URL not set, running without persistence")
	}

	if cfg.SlackBotToken != "" && cfg.SlackAttentionChannel != "" {
		p.poster = slack.NewPoster(cfg.SlackBotToken, cfg.SlackAttentionChannel, logger)
		opts = append(opts, processor.WithAttentionPoster(p.poster))
		logger.Info("slack poster ready", "channel", cfg.SlackAttentionChannel)
	}

	p.proc = processor.New(parser, rec, logger, append(opts, extra...)...)
	return p, nil
}

func (p *pipeline) Close() {
	if p.db != nil {
		p.db.Close()
	}
}
