// Package bot composes the rate limiter, context cache, history assembler
// and completion provider into the per-event conversation flow.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/flemzord/threadpilot/internal/convo"
	"github.com/flemzord/threadpilot/internal/history"
	"github.com/flemzord/threadpilot/internal/provider"
	"github.com/flemzord/threadpilot/internal/ratelimit"
)

var tracer = otel.Tracer("github.com/flemzord/threadpilot/internal/bot")

const (
	rateLimitNotice = "You're sending requests faster than I can take them. Give it a minute and try again."
	failureNotice   = "Something went wrong while thinking about that. Please try again."
)

// Request is one inbound conversation request: who asked, where, and what.
type Request struct {
	ChannelID string
	UserID    string
	Text      string
	ThreadTS  string
}

// Messenger posts replies and notices back to the platform.
type Messenger interface {
	PostMessage(ctx context.Context, channelID, threadTS, text string) error
}

// Recorder appends completed exchanges to an audit log. Recording is best
// effort; failures are logged, never surfaced.
type Recorder interface {
	Record(ctx context.Context, threadKey, userID, prompt, reply string) error
}

// Orchestrator drives the conversation flow for each inbound request:
// admit, load or rebuild context, complete, fold the new exchange back in,
// reply in thread.
type Orchestrator struct {
	limiter   *ratelimit.Limiter
	store     *convo.Store
	assembler *history.Assembler
	completer provider.Completer
	messenger Messenger
	recorder  Recorder // optional
	metrics   *Metrics
	logger    *slog.Logger
	system    string

	// now is injectable for deterministic tests.
	now func() time.Time
}

// Options carries the optional collaborators of an Orchestrator.
type Options struct {
	Recorder     Recorder
	SystemPrompt string
	Now          func() time.Time
}

// New creates an orchestrator over the given collaborators.
func New(limiter *ratelimit.Limiter, store *convo.Store, assembler *history.Assembler,
	completer provider.Completer, messenger Messenger, metrics *Metrics,
	logger *slog.Logger, opts Options) *Orchestrator {

	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		limiter:   limiter,
		store:     store,
		assembler: assembler,
		completer: completer,
		messenger: messenger,
		recorder:  opts.Recorder,
		metrics:   metrics,
		logger:    logger.With("component", "bot"),
		system:    opts.SystemPrompt,
		now:       now,
	}
}

// Handle processes one inbound request end to end. The returned error is for
// logging by the caller; every user-visible outcome (reply, rate-limit
// notice, failure notice) has already been posted when Handle returns.
func (o *Orchestrator) Handle(ctx context.Context, req Request) error {
	ctx, span := tracer.Start(ctx, "bot.handle")
	defer span.End()
	span.SetAttributes(
		attribute.String("slack.channel", req.ChannelID),
		attribute.String("slack.thread_ts", req.ThreadTS),
	)

	o.metrics.Events.Inc()

	if !o.limiter.Admit(req.UserID, o.now()) {
		// Expected under load; not an error.
		o.metrics.RateLimited.Inc()
		o.logger.Info("request rate limited", "user", req.UserID)
		o.post(ctx, req, rateLimitNotice)
		return nil
	}

	key := convo.ThreadKey(req.ChannelID, req.ThreadTS)

	turns, cached := o.store.Get(key, o.now())
	if cached {
		o.metrics.CacheHits.Inc()
	} else {
		o.metrics.CacheMisses.Inc()
		rebuilt, err := o.assembler.Rebuild(ctx, req.ChannelID, req.ThreadTS)
		switch {
		case errors.Is(err, history.ErrUnavailable):
			// Degrade to an empty context rather than failing the request.
			o.metrics.HistoryFailures.Inc()
			o.logger.Warn("proceeding without thread history", "thread", key, "error", err)
		case err != nil:
			o.logger.Error("history rebuild failed", "thread", key, "error", err)
		}
		turns = rebuilt
		// An empty rebuild is not cached: it would mask a later
		// successful fetch of the same thread.
		if len(turns) > 0 {
			o.store.Put(key, turns, o.now())
		}
	}

	resp, err := o.completer.Complete(ctx, provider.Request{
		System:   o.system,
		Turns:    turns,
		UserText: req.Text,
	})
	if err != nil {
		// Context stays exactly as found: no partial turn is persisted.
		o.metrics.CompletionFailures.Inc()
		o.logger.Error("completion failed", "thread", key, "error", err)
		o.post(ctx, req, failureNotice)
		return fmt.Errorf("bot: completion for %s: %w", key, err)
	}

	folded := o.assembler.Fold(turns,
		convo.Turn{Role: convo.RoleUser, Content: req.Text},
		convo.Turn{Role: convo.RoleAssistant, Content: resp.Text},
	)
	o.store.Put(key, folded, o.now())

	if err := o.messenger.PostMessage(ctx, req.ChannelID, req.ThreadTS, resp.Text); err != nil {
		o.logger.Error("posting reply failed", "thread", key, "error", err)
		return fmt.Errorf("bot: reply for %s: %w", key, err)
	}

	o.metrics.Completions.Inc()
	o.record(ctx, key, req, resp.Text)
	return nil
}

// post sends a notice, logging delivery failures. Notices are not replies;
// losing one is not worth failing the request over.
func (o *Orchestrator) post(ctx context.Context, req Request, text string) {
	if err := o.messenger.PostMessage(ctx, req.ChannelID, req.ThreadTS, text); err != nil {
		o.logger.Warn("posting notice failed", "channel", req.ChannelID, "error", err)
	}
}

// record appends the exchange to the transcript if one is configured.
func (o *Orchestrator) record(ctx context.Context, key string, req Request, reply string) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.Record(ctx, key, req.UserID, req.Text, reply); err != nil {
		o.logger.Warn("transcript record failed", "thread", key, "error", err)
	}
}
