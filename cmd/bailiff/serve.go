package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/bailiff/internal/api"
	"github.com/MikeSquared-Agency/bailiff/internal/config"
	"github.com/MikeSquared-Agency/bailiff/internal/hermes"
	"github.com/MikeSquared-Agency/bailiff/internal/processor"
	"github.com/MikeSquared-Agency/bailiff/internal/scheduler"
)

const retrySweepTimeout = 10 * time.Minute

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the NATS consumer, HTTP API and retry scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	cfg := config.Load()
	slog.Info("bailiff starting", "port", cfg.Port, "calendar_provider", cfg.CalendarProvider)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// NATS/Hermes
	hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		return err
	}
	defer hermesClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	p, err := buildPipeline(ctx, cfg, processor.WithPublisher(hermesClient))
	if err != nil {
		return err
	}
	defer p.Close()

	// Notice intake is load-balanced across instances.
	if err := hermesClient.QueueSubscribe(hermes.SubjectNoticeReceived, hermes.QueueGroup, p.proc.HandleNoticeReceived); err != nil {
		return err
	}
	// Reactions go to every instance; only the one that posted the message acts.
	if err := hermesClient.Subscribe("swarm.slack.reaction", p.proc.HandleReaction); err != nil {
		return err
	}

	if p.db != nil {
		sched := scheduler.New(p.loc, retrySweepTimeout, slog.Default())
		if err := sched.ScheduleRetry(cfg.RetryCron, p.proc); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	// HTTP API
	var notices api.NoticeReader
	if p.db != nil {
		notices = p.db
	}
	srv := api.NewServer(cfg.Port, cfg.APIToken, p.proc, p.parser, notices, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	// Announce registration
	if err := hermesClient.Publish("swarm.agent.bailiff.registered", map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"port":      cfg.Port,
		"calendar":  cfg.CalendarID,
	}); err != nil {
		slog.Warn("failed to publish registration", "error", err)
	}

	slog.Info("bailiff ready", "port", cfg.Port)

	// Graceful shutdown on SIGINT/SIGTERM (via the command context) or server failure
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown", "error", err)
	}
	slog.Info("bailiff stopped")
	return nil
}
