// Package gateway exposes the bot's HTTP surface: health, metrics, status,
// and the webhook ingestion endpoint for externally triggered notifications.
package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flemzord/threadpilot/internal/transcript"
)

// ContextStats reports cache occupancy for /health and /status.
type ContextStats interface {
	Len() int
}

// TranscriptStats reports the exchange log's size and most recent entry
// for /status.
type TranscriptStats interface {
	Count(ctx context.Context) (int64, error)
	Recent(ctx context.Context, limit int) ([]transcript.Exchange, error)
}

// Gateway is the HTTP server. Construct with New, wire handlers on the
// Dispatcher, then Start.
type Gateway struct {
	config     Config
	logger     *slog.Logger
	server     *http.Server
	registry   *prometheus.Registry
	contexts   ContextStats
	transcript TranscriptStats // optional
	startedAt  time.Time

	// Dispatcher routes /webhooks/{source} to registered handlers.
	Dispatcher *WebhookDispatcher
}

// New creates a gateway. transcript may be nil.
func New(cfg Config, logger *slog.Logger, registry *prometheus.Registry, contexts ContextStats, transcript TranscriptStats) *Gateway {
	cfg.Defaults()
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "gateway")

	return &Gateway{
		config:     cfg,
		logger:     logger,
		registry:   registry,
		contexts:   contexts,
		transcript: transcript,
		Dispatcher: NewWebhookDispatcher(logger),
	}
}

// Start binds the listener and serves in a background goroutine.
func (g *Gateway) Start() error {
	g.startedAt = time.Now()
	g.server = &http.Server{
		Addr:              g.config.Listen,
		Handler:           g.buildRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("http server failed", "error", err)
		}
	}()

	g.logger.Info("gateway listening", "addr", g.config.Listen)
	return nil
}

// Stop gracefully shuts the server down.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	return g.server.Shutdown(ctx)
}

// Router returns the gateway's HTTP handler. Exposed for tests and for
// mounting the gateway into an existing server.
func (g *Gateway) Router() http.Handler {
	return g.buildRouter()
}

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public.
	r.Get("/health", g.handleHealth())
	r.Handle("/metrics", promhttp.HandlerFor(g.registry, promhttp.HandlerOpts{}))

	// Webhooks carry their own per-source HMAC auth.
	r.Post("/webhooks/{source}", g.Dispatcher.ServeHTTP)

	// Status needs a bearer token; unmounted without one.
	if g.config.BearerToken != "" {
		r.Group(func(r chi.Router) {
			r.Use(bearerAuth(g.config.BearerToken))
			r.Get("/status", g.handleStatus())
		})
	}

	return r
}

// handleHealth returns 200 with cache occupancy.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := map[string]any{
			"status":  "ok",
			"threads": g.contexts.Len(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// handleStatus returns uptime and store/transcript occupancy.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"uptime_seconds": int64(time.Since(g.startedAt).Seconds()),
			"threads":        g.contexts.Len(),
		}
		if g.transcript != nil {
			if n, err := g.transcript.Count(r.Context()); err == nil {
				resp["exchanges"] = n
			}
			if last, err := g.transcript.Recent(r.Context(), 1); err == nil && len(last) > 0 {
				resp["last_exchange_at"] = last[0].CreatedAt.UTC().Format(time.RFC3339)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// bearerAuth validates the Authorization header with a constant-time
// comparison.
func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
				if subtle.ConstantTimeCompare([]byte(after), []byte(token)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}
