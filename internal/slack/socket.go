package slack

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	maxConsecutiveConnectErrors = 5
	connectErrorPause           = 30 * time.Second
)

// Handler consumes inbound events. Called on its own goroutine per event so
// a slow completion never stalls the read loop.
type Handler func(ctx context.Context, ev Event)

// SocketMode maintains a Socket Mode connection to Slack, acknowledging
// envelopes and dispatching message events to the handler. Disconnect frames
// and transport errors trigger a reconnect with a fresh WebSocket URL.
type SocketMode struct {
	client   *Client
	selfID   string
	handler  Handler
	logger   *slog.Logger
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSocketMode creates a Socket Mode listener. selfID must be the identity
// resolved via AuthTest so the bot's own messages are dropped at the edge.
func NewSocketMode(client *Client, selfID string, handler Handler, logger *slog.Logger) *SocketMode {
	if logger == nil {
		logger = slog.Default()
	}
	return &SocketMode{
		client:  client,
		selfID:  selfID,
		handler: handler,
		logger:  logger.With("component", "slack.socket"),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the connection loop in a goroutine.
func (s *SocketMode) Start() {
	go s.loop()
}

// Stop signals the loop to stop and waits for it and all in-flight event
// handlers to finish. Safe to call multiple times.
func (s *SocketMode) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.done
	s.wg.Wait()
}

// loop reconnects until Stop is called.
func (s *SocketMode) loop() {
	defer close(s.done)

	consecutiveErrors := 0
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		if err := s.runConnection(); err != nil {
			consecutiveErrors++
			s.logger.Error("socket mode connection failed",
				"error", err,
				"consecutive_errors", consecutiveErrors,
			)
			if consecutiveErrors >= maxConsecutiveConnectErrors {
				s.logger.Warn("socket mode paused after consecutive errors", "pause", connectErrorPause)
				select {
				case <-s.stopCh:
					return
				case <-time.After(connectErrorPause):
				}
				consecutiveErrors = 0
			}
			continue
		}
		// Clean disconnect (Slack rotates connections); reconnect at once.
		consecutiveErrors = 0
	}
}

// runConnection opens one WebSocket and reads envelopes until the peer
// disconnects, an error occurs, or Stop is called. A nil return means the
// connection ended normally and should be reopened.
func (s *SocketMode) runConnection() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	wsURL, err := s.client.connectionsOpen(ctx)
	if err != nil {
		return err
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "closing") }()
	s.logger.Info("socket mode connected")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			select {
			case <-s.stopCh:
				return nil
			default:
			}
			return err
		}

		var env socketEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.logger.Warn("dropping malformed envelope", "error", err)
			continue
		}

		switch env.Type {
		case "hello":
			s.logger.Debug("socket mode hello received")
		case "disconnect":
			s.logger.Info("socket mode disconnect requested", "reason", env.Reason)
			return nil
		case "events_api":
			s.ack(ctx, conn, env.EnvelopeID)
			s.dispatch(env.Payload)
		default:
			s.ack(ctx, conn, env.EnvelopeID)
			s.logger.Debug("ignoring envelope", "type", env.Type)
		}
	}
}

// ack acknowledges an envelope. Slack redelivers unacknowledged envelopes,
// so acks are sent before the event is processed.
func (s *SocketMode) ack(ctx context.Context, conn *websocket.Conn, envelopeID string) {
	if envelopeID == "" {
		return
	}
	data, err := json.Marshal(socketAck{EnvelopeID: envelopeID})
	if err != nil {
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		s.logger.Warn("envelope ack failed", "error", err)
	}
}

// dispatch converts an Events API payload and hands it to the handler.
func (s *SocketMode) dispatch(payload json.RawMessage) {
	var p eventsAPIPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.logger.Warn("dropping malformed events_api payload", "error", err)
		return
	}

	ev, ok := convertEvent(p.Event, s.selfID)
	if !ok {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.handler(context.Background(), ev)
	}()
}
