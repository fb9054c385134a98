package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/flemzord/threadpilot/internal/bot"
	"github.com/flemzord/threadpilot/internal/config"
	"github.com/flemzord/threadpilot/internal/convo"
	"github.com/flemzord/threadpilot/internal/cron"
	"github.com/flemzord/threadpilot/internal/gateway"
	"github.com/flemzord/threadpilot/internal/history"
	"github.com/flemzord/threadpilot/internal/provider/openaicompat"
	"github.com/flemzord/threadpilot/internal/ratelimit"
	"github.com/flemzord/threadpilot/internal/slack"
	"github.com/flemzord/threadpilot/internal/tracing"
	"github.com/flemzord/threadpilot/internal/transcript"
)

const (
	authTestTimeout = 15 * time.Second
	shutdownTimeout = 30 * time.Second
)

// app is the assembled daemon: every long-running component plus the
// teardown fns to stop them in reverse order.
type app struct {
	logger   *slog.Logger
	socket   *slack.SocketMode
	sched    *cron.Scheduler
	gw       *gateway.Gateway
	log      *transcript.Store // nil when disabled
	shutdown func(context.Context) error
}

// buildApp wires every component from the config. Nothing is started yet.
func buildApp(cfg *config.Config) (*app, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	shutdownTracing, err := tracing.Setup(context.Background(), cfg.Tracing.Endpoint, version)
	if err != nil {
		return nil, err
	}

	client := slack.NewClient(cfg.Slack.BotToken, cfg.Slack.AppToken, cfg.Slack.BaseURL)

	ctx, cancel := context.WithTimeout(context.Background(), authTestTimeout)
	defer cancel()
	selfID, err := client.AuthTest(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving bot identity: %w", err)
	}
	logger.Info("bot identity resolved", "self_id", selfID)

	completer, err := openaicompat.New(cfg.Provider)
	if err != nil {
		return nil, err
	}

	store := convo.NewStore(cfg.Context.TTL, cfg.Context.MaxThreads)
	limiter := ratelimit.NewLimiter(cfg.RateLimit.Window, cfg.RateLimit.MaxRequests)
	assembler := history.NewAssembler(client, selfID, cfg.Context.MaxUserTurns, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := bot.NewMetrics(registry)

	var (
		exchangeLog *transcript.Store
		recorder    bot.Recorder
	)
	if cfg.Transcript.Enabled {
		exchangeLog, err = transcript.Open(cfg.Transcript.Path)
		if err != nil {
			return nil, err
		}
		recorder = exchangeLog
	}

	orch := bot.New(limiter, store, assembler, completer, client, metrics, logger, bot.Options{
		Recorder:     recorder,
		SystemPrompt: cfg.SystemPrompt,
	})

	var transcriptStats gateway.TranscriptStats
	if exchangeLog != nil {
		transcriptStats = exchangeLog
	}
	gw := gateway.New(cfg.Gateway, logger, registry, store, transcriptStats)

	channels := make(map[string]string, len(cfg.Gateway.Webhooks))
	for source, webhook := range cfg.Gateway.Webhooks {
		channels[source] = webhook.Channel
	}
	notify := gateway.NewNotifyHandler(client, channels)
	for source, webhook := range cfg.Gateway.Webhooks {
		gw.Dispatcher.Register(source, notify, webhook.Secret)
	}

	sched := cron.NewScheduler(logger)
	if err := sched.Register(&cron.ContextSweepJob{
		Store:        store,
		Logger:       logger.With("component", "cron"),
		Evictions:    metrics.SweepEvictions,
		ScheduleExpr: cfg.Context.SweepSchedule,
	}); err != nil {
		return nil, err
	}

	socket := slack.NewSocketMode(client, selfID, func(ctx context.Context, ev slack.Event) {
		// Errors are already logged and answered inside Handle.
		_ = orch.Handle(ctx, bot.Request{
			ChannelID: ev.ChannelID,
			UserID:    ev.UserID,
			Text:      ev.Text,
			ThreadTS:  ev.ThreadTS,
		})
	}, logger)

	return &app{
		logger:   logger,
		socket:   socket,
		sched:    sched,
		gw:       gw,
		log:      exchangeLog,
		shutdown: shutdownTracing,
	}, nil
}

// start launches every component.
func (a *app) start() error {
	if err := a.gw.Start(); err != nil {
		return err
	}
	if err := a.sched.Start(); err != nil {
		return err
	}
	a.socket.Start()
	a.logger.Info("threadpilot started")
	return nil
}

// stop tears everything down in reverse order of start.
func (a *app) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.socket.Stop()
	a.sched.Stop()
	if err := a.gw.Stop(ctx); err != nil {
		a.logger.Warn("gateway shutdown", "error", err)
	}
	if a.log != nil {
		if err := a.log.Close(); err != nil {
			a.logger.Warn("transcript close", "error", err)
		}
	}
	if err := a.shutdown(ctx); err != nil {
		a.logger.Warn("tracing shutdown", "error", err)
	}
	a.logger.Info("threadpilot stopped")
}

// loadApp loads and validates config at path, then builds the app.
func loadApp(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return buildApp(cfg)
}
