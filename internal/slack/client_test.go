package slack_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flemzord/threadpilot/internal/history"
	"github.com/flemzord/threadpilot/internal/slack"
)

// Compile-time interface guard: the client is the core's Fetcher.
var _ history.Fetcher = (*slack.Client)(nil)

func newTestClient(t *testing.T, handler http.HandlerFunc) *slack.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return slack.NewClient("xoxb-test", "xapp-test", srv.URL)
}

func TestAuthTest(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth.test" {
			t.Errorf("path = %q, want /auth.test", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer xoxb-test" {
			t.Errorf("Authorization = %q, want bot token", auth)
		}
		_, _ = w.Write([]byte(`{"ok":true,"user_id":"U0BOT","user":"threadpilot"}`))
	})

	selfID, err := client.AuthTest(context.Background())
	if err != nil {
		t.Fatalf("AuthTest: %v", err)
	}
	if selfID != "U0BOT" {
		t.Errorf("selfID = %q, want U0BOT", selfID)
	}
}

func TestAuthTest_APIError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error":"invalid_auth"}`))
	})

	_, err := client.AuthTest(context.Background())
	var apiErr *slack.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Code != "invalid_auth" {
		t.Errorf("code = %q, want invalid_auth", apiErr.Code)
	}
}

func TestPostMessage_ThreadedReply(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("channel"); got != "C42" {
			t.Errorf("channel = %q, want C42", got)
		}
		if got := r.PostForm.Get("thread_ts"); got != "1717243200.000100" {
			t.Errorf("thread_ts = %q", got)
		}
		if got := r.PostForm.Get("text"); got != "on it" {
			t.Errorf("text = %q", got)
		}
		_, _ = w.Write([]byte(`{"ok":true,"ts":"1717243201.000200"}`))
	})

	if err := client.PostMessage(context.Background(), "C42", "1717243200.000100", "on it"); err != nil {
		t.Fatalf("PostMessage: %v", err)
	}
}

func TestFetchThreadMessages(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("limit"); got != "200" {
			t.Errorf("limit = %q, want 200", got)
		}
		_, _ = w.Write([]byte(`{"ok":true,"messages":[
			{"user":"U1","text":"root question","ts":"100.000100","thread_ts":"100.000100"},
			{"user":"U0BOT","bot_id":"B0","text":"an answer","ts":"101.000100","thread_ts":"100.000100"},
			{"subtype":"channel_join","user":"U2","text":"joined","ts":"102.000100"}
		]}`))
	})

	msgs, err := client.FetchThreadMessages(context.Background(), "C42", "100.000100", 200)
	if err != nil {
		t.Fatalf("FetchThreadMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3 (filtering is the assembler's job)", len(msgs))
	}
	if msgs[0].AuthorID != "U1" || msgs[0].Text != "root question" {
		t.Errorf("first message = %+v", msgs[0])
	}
	if msgs[1].BotID != "B0" {
		t.Errorf("bot relay identity not mapped: %+v", msgs[1])
	}
	if msgs[2].Subtype != "channel_join" {
		t.Errorf("subtype not mapped: %+v", msgs[2])
	}
	if !msgs[0].Timestamp.Before(msgs[1].Timestamp) {
		t.Error("timestamps not converted in order")
	}
}

func TestPostMessage_RetriesAfterRateLimit(t *testing.T) {
	t.Parallel()

	var calls int
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"ts":"1717243201.000200"}`))
	})

	if err := client.PostMessage(context.Background(), "C42", "", "hello"); err != nil {
		t.Fatalf("PostMessage: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (one retry after 429)", calls)
	}
}

func TestPostMessage_RateLimitExhaustion(t *testing.T) {
	t.Parallel()

	var calls int
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"ok":false,"error":"ratelimited"}`))
	})

	err := client.PostMessage(context.Background(), "C42", "", "hello")
	var apiErr *slack.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "ratelimited" {
		t.Fatalf("err = %v, want ratelimited APIError", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want all 3 attempts used", calls)
	}
}

func TestFetchThreadMessages_Failure(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error":"thread_not_found"}`))
	})

	if _, err := client.FetchThreadMessages(context.Background(), "C1", "1.1", 10); err == nil {
		t.Error("want error on ok=false response")
	}
}
