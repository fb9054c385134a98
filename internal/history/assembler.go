// Package history reconstructs thread context from the messaging platform
// and enforces the retention bound when new turns are folded in.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/flemzord/threadpilot/internal/convo"
)

// DefaultMaxUserTurns bounds how many user turns one thread context keeps.
const DefaultMaxUserTurns = 100

// ErrUnavailable indicates the message source could not be reached; callers
// proceed without thread context rather than failing the request.
var ErrUnavailable = errors.New("history: thread history unavailable")

// ThreadMessage is one raw message from the platform, before filtering.
type ThreadMessage struct {
	AuthorID  string
	BotID     string
	Subtype   string
	Text      string
	Timestamp time.Time
}

// Fetcher retrieves the raw messages of a thread. Ordering of the returned
// slice is not assumed; the assembler sorts by timestamp.
type Fetcher interface {
	FetchThreadMessages(ctx context.Context, channelID, threadTS string, limit int) ([]ThreadMessage, error)
}

// Assembler turns raw thread messages into role-labelled turns.
type Assembler struct {
	fetcher      Fetcher
	selfID       string
	maxUserTurns int
	logger       *slog.Logger
}

// NewAssembler creates an assembler. selfID is the bot's own user identity,
// used to classify authorship. A non-positive maxUserTurns falls back to the
// default.
func NewAssembler(fetcher Fetcher, selfID string, maxUserTurns int, logger *slog.Logger) *Assembler {
	if maxUserTurns <= 0 {
		maxUserTurns = DefaultMaxUserTurns
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		fetcher:      fetcher,
		selfID:       selfID,
		maxUserTurns: maxUserTurns,
		logger:       logger.With("component", "history"),
	}
}

// MaxTurns returns the retention bound applied by Fold: user turns plus the
// assistant turns paired with them.
func (a *Assembler) MaxTurns() int {
	return 2 * a.maxUserTurns
}

// Rebuild fetches and labels the history of a thread. The fetch requests
// twice the user-turn bound so that filtered-out messages (joins, edits,
// system notices) do not starve the result. Messages are processed in
// chronological order:
//
//   - subtypes other than "" and "bot_message" are dropped
//   - messages authored by the bot become assistant turns
//   - any other message with non-empty text becomes a user turn
//   - intake stops once the user-turn count reaches the bound
//
// A fetch failure returns a nil slice wrapped in ErrUnavailable; Rebuild
// never fails for any other reason.
func (a *Assembler) Rebuild(ctx context.Context, channelID, threadTS string) ([]convo.Turn, error) {
	raw, err := a.fetcher.FetchThreadMessages(ctx, channelID, threadTS, 2*a.maxUserTurns)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	msgs := make([]ThreadMessage, len(raw))
	copy(msgs, raw)
	slices.SortStableFunc(msgs, func(x, y ThreadMessage) int {
		return x.Timestamp.Compare(y.Timestamp)
	})

	var turns []convo.Turn
	userTurns := 0
	for _, m := range msgs {
		if userTurns >= a.maxUserTurns {
			break
		}
		if m.Subtype != "" && m.Subtype != "bot_message" {
			continue
		}
		switch {
		case a.isSelf(m):
			turns = append(turns, convo.Turn{Role: convo.RoleAssistant, Content: m.Text})
		case m.Text != "":
			turns = append(turns, convo.Turn{Role: convo.RoleUser, Content: m.Text})
			userTurns++
		}
	}

	a.logger.Debug("thread history rebuilt",
		"channel", channelID,
		"thread_ts", threadTS,
		"raw", len(raw),
		"turns", len(turns),
	)
	return turns, nil
}

// Fold appends the user/assistant turn pair for a completed exchange to the
// existing history, trimming from the front so the total never exceeds the
// retention bound. Relative order of surviving turns is preserved.
func (a *Assembler) Fold(existing []convo.Turn, userTurn, assistantTurn convo.Turn) []convo.Turn {
	folded := make([]convo.Turn, 0, len(existing)+2)
	folded = append(folded, existing...)
	folded = append(folded, userTurn, assistantTurn)

	if max := a.MaxTurns(); len(folded) > max {
		folded = folded[len(folded)-max:]
	}
	return folded
}

// isSelf reports whether the message was authored by the bot itself, either
// under its user identity or its bot-relay identity.
func (a *Assembler) isSelf(m ThreadMessage) bool {
	return (m.AuthorID != "" && m.AuthorID == a.selfID) ||
		(m.BotID != "" && m.BotID == a.selfID)
}
