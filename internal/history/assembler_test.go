package history_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/flemzord/threadpilot/internal/convo"
	"github.com/flemzord/threadpilot/internal/history"
)

const botID = "U0BOT"

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeFetcher returns canned messages or a canned error, and records the
// limit it was called with.
type fakeFetcher struct {
	msgs      []history.ThreadMessage
	err       error
	gotLimit  int
	callCount int
}

func (f *fakeFetcher) FetchThreadMessages(_ context.Context, _, _ string, limit int) ([]history.ThreadMessage, error) {
	f.callCount++
	f.gotLimit = limit
	return f.msgs, f.err
}

// Compile-time interface guard.
var _ history.Fetcher = (*fakeFetcher)(nil)

func userMsg(i int, text string) history.ThreadMessage {
	return history.ThreadMessage{
		AuthorID:  "U1HUMAN",
		Text:      text,
		Timestamp: epoch.Add(time.Duration(i) * time.Second),
	}
}

func botMsg(i int, text string) history.ThreadMessage {
	return history.ThreadMessage{
		AuthorID:  botID,
		Text:      text,
		Timestamp: epoch.Add(time.Duration(i) * time.Second),
	}
}

// ---------------------------------------------------------------------------
// Rebuild
// ---------------------------------------------------------------------------

func TestRebuild_LabelsAndOrders(t *testing.T) {
	t.Parallel()

	// Delivered out of order; the assembler must sort by timestamp.
	f := &fakeFetcher{msgs: []history.ThreadMessage{
		botMsg(1, "hi, how can I help?"),
		userMsg(0, "hey bot"),
		userMsg(2, "what's the weather?"),
	}}
	a := history.NewAssembler(f, botID, 10, nil)

	turns, err := a.Rebuild(context.Background(), "C1", "1717243200.000100")
	if err != nil {
		t.Fatalf("Rebuild returned error: %v", err)
	}

	want := []convo.Turn{
		{Role: convo.RoleUser, Content: "hey bot"},
		{Role: convo.RoleAssistant, Content: "hi, how can I help?"},
		{Role: convo.RoleUser, Content: "what's the weather?"},
	}
	if len(turns) != len(want) {
		t.Fatalf("got %d turns, want %d", len(turns), len(want))
	}
	for i := range want {
		if turns[i] != want[i] {
			t.Errorf("turn %d = %+v, want %+v", i, turns[i], want[i])
		}
	}
}

func TestRebuild_FiltersSubtypes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		subtype string
		kept    bool
	}{
		{name: "plain_message", subtype: "", kept: true},
		{name: "bot_relay", subtype: "bot_message", kept: true},
		{name: "channel_join", subtype: "channel_join", kept: false},
		{name: "message_changed", subtype: "message_changed", kept: false},
		{name: "thread_broadcast", subtype: "thread_broadcast", kept: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msg := userMsg(0, "text")
			msg.Subtype = tt.subtype
			f := &fakeFetcher{msgs: []history.ThreadMessage{msg}}
			a := history.NewAssembler(f, botID, 10, nil)

			turns, err := a.Rebuild(context.Background(), "C1", "1.2")
			if err != nil {
				t.Fatalf("Rebuild: %v", err)
			}
			if got := len(turns) == 1; got != tt.kept {
				t.Errorf("subtype %q kept = %v, want %v", tt.subtype, got, tt.kept)
			}
		})
	}
}

func TestRebuild_SkipsEmptyUserText(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{msgs: []history.ThreadMessage{
		{AuthorID: "U1", Text: "", Timestamp: epoch},
		userMsg(1, "real content"),
	}}
	a := history.NewAssembler(f, botID, 10, nil)

	turns, _ := a.Rebuild(context.Background(), "C1", "1.2")
	if len(turns) != 1 || turns[0].Content != "real content" {
		t.Errorf("got %v, want just the non-empty user turn", turns)
	}
}

func TestRebuild_StopsAtUserTurnBound(t *testing.T) {
	t.Parallel()

	// 120 raw messages: 100 from a user with 20 bot replies interleaved
	// (one after every fifth user message).
	var msgs []history.ThreadMessage
	seq := 0
	for i := 1; i <= 100; i++ {
		msgs = append(msgs, userMsg(seq, fmt.Sprintf("user %d", i)))
		seq++
		if i%5 == 0 {
			msgs = append(msgs, botMsg(seq, fmt.Sprintf("reply %d", i/5)))
			seq++
		}
	}

	f := &fakeFetcher{msgs: msgs}
	a := history.NewAssembler(f, botID, 100, nil)

	turns, err := a.Rebuild(context.Background(), "C1", "1.2")
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	users, assistants := 0, 0
	for _, turn := range turns {
		switch turn.Role {
		case convo.RoleUser:
			users++
		case convo.RoleAssistant:
			assistants++
		}
	}
	if users != 100 {
		t.Errorf("user turns = %d, want exactly 100", users)
	}
	// The interleaved bot reply following the 100th user message falls
	// after the cutoff.
	if assistants != 19 {
		t.Errorf("assistant turns = %d, want 19 (those preceding the cutoff)", assistants)
	}
	if turns[0].Content != "user 1" {
		t.Errorf("first turn = %q, want chronological order from the start", turns[0].Content)
	}
}

func TestRebuild_FetchesMoreThanBound(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{}
	a := history.NewAssembler(f, botID, 100, nil)

	a.Rebuild(context.Background(), "C1", "1.2")
	if f.gotLimit <= 100 {
		t.Errorf("fetch limit = %d, want more than the user-turn bound to absorb filtering", f.gotLimit)
	}
	if f.callCount != 1 {
		t.Errorf("fetch called %d times, want 1", f.callCount)
	}
}

func TestRebuild_FetchFailure(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{err: errors.New("conn reset")}
	a := history.NewAssembler(f, botID, 10, nil)

	turns, err := a.Rebuild(context.Background(), "C1", "1.2")
	if !errors.Is(err, history.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
	if turns != nil {
		t.Errorf("turns = %v, want nil on fetch failure", turns)
	}
}

func TestRebuild_EmptyThread(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{}
	a := history.NewAssembler(f, botID, 10, nil)

	turns, err := a.Rebuild(context.Background(), "C1", "1.2")
	if err != nil || len(turns) != 0 {
		t.Errorf("empty thread = (%v, %v), want no turns and no error", turns, err)
	}
}

// ---------------------------------------------------------------------------
// Fold
// ---------------------------------------------------------------------------

func TestFold_Appends(t *testing.T) {
	t.Parallel()

	a := history.NewAssembler(&fakeFetcher{}, botID, 10, nil)
	existing := []convo.Turn{{Role: convo.RoleUser, Content: "earlier"}}

	folded := a.Fold(existing,
		convo.Turn{Role: convo.RoleUser, Content: "question"},
		convo.Turn{Role: convo.RoleAssistant, Content: "answer"},
	)

	if len(folded) != 3 {
		t.Fatalf("len = %d, want 3", len(folded))
	}
	if folded[2].Content != "answer" || folded[1].Content != "question" {
		t.Errorf("new turns not appended in order: %v", folded)
	}
}

func TestFold_NeverExceedsBound(t *testing.T) {
	t.Parallel()

	a := history.NewAssembler(&fakeFetcher{}, botID, 3, nil) // bound = 6 turns
	var turns []convo.Turn

	for i := range 50 {
		turns = a.Fold(turns,
			convo.Turn{Role: convo.RoleUser, Content: fmt.Sprintf("q%d", i)},
			convo.Turn{Role: convo.RoleAssistant, Content: fmt.Sprintf("a%d", i)},
		)
		if len(turns) > a.MaxTurns() {
			t.Fatalf("after fold %d: len = %d exceeds bound %d", i, len(turns), a.MaxTurns())
		}
	}

	// Oldest dropped first: the survivors are the most recent exchanges,
	// still in order.
	if turns[0].Content != "q47" || turns[len(turns)-1].Content != "a49" {
		t.Errorf("survivors = %q..%q, want q47..a49", turns[0].Content, turns[len(turns)-1].Content)
	}
	for i := 0; i < len(turns)-1; i += 2 {
		if turns[i].Role != convo.RoleUser || turns[i+1].Role != convo.RoleAssistant {
			t.Errorf("pairing broken at %d: %v", i, turns[i:i+2])
		}
	}
}

func TestFold_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	a := history.NewAssembler(&fakeFetcher{}, botID, 10, nil)
	existing := []convo.Turn{{Role: convo.RoleUser, Content: "keep"}}

	a.Fold(existing, convo.Turn{Role: convo.RoleUser, Content: "u"}, convo.Turn{Role: convo.RoleAssistant, Content: "a"})
	if len(existing) != 1 || existing[0].Content != "keep" {
		t.Errorf("Fold mutated its input: %v", existing)
	}
}
