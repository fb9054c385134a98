// Package slack implements the Slack Web API and Socket Mode surfaces the
// bot consumes: self identity, thread history, threaded replies, and the
// event stream.
package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/flemzord/threadpilot/internal/history"
)

const (
	defaultBaseURL   = "https://slack.com/api"
	maxResponseBytes = 10 << 20 // bound reads of API responses
	maxRetries       = 3
	initialBackoff   = time.Second
)

// APIError is a Slack Web API "ok": false response.
type APIError struct {
	Method string
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack: %s failed: %s", e.Method, e.Code)
}

// Client is a thin HTTP wrapper around the Slack Web API. botToken is used
// for all methods except apps.connections.open, which needs the app-level
// token.
type Client struct {
	botToken string
	appToken string
	baseURL  string
	http     *http.Client
}

// NewClient creates a Web API client. An empty baseURL selects the public
// Slack endpoint.
func NewClient(botToken, appToken, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		botToken: botToken,
		appToken: appToken,
		baseURL:  baseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// call sends a form-encoded POST to the given Web API method and decodes the
// response into T. T must embed apiEnvelope. HTTP 429 is retried with
// Retry-After (max 3 attempts, exponential backoff when the header is absent).
func call[T any](ctx context.Context, c *Client, token, method string, form url.Values) (*T, error) {
	endpoint := c.baseURL + "/" + method
	encoded := form.Encode()
	backoff := initialBackoff

	for attempt := range maxRetries {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(encoded))
		if err != nil {
			return nil, fmt.Errorf("slack: create %s request: %w", method, err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("slack: %s request failed: %w", method, err)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("slack: read %s response: %w", method, err)
		}

		// Handle rate limiting with retry.
		if resp.StatusCode == http.StatusTooManyRequests && attempt < maxRetries-1 {
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs >= 0 {
				backoff = time.Duration(secs) * time.Second
			}

			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			backoff *= 2
			continue
		}

		var decoded T
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, fmt.Errorf("slack: decode %s response (HTTP %d): %w", method, resp.StatusCode, err)
		}
		return &decoded, nil
	}

	return nil, fmt.Errorf("slack: %s rate limited after %d attempts", method, maxRetries)
}

// AuthTest resolves the bot's own user identity.
func (c *Client) AuthTest(ctx context.Context) (selfID string, err error) {
	resp, err := call[authTestResponse](ctx, c, c.botToken, "auth.test", url.Values{})
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", &APIError{Method: "auth.test", Code: resp.Error}
	}
	return resp.UserID, nil
}

// PostMessage posts text to a channel. A non-empty threadTS makes the post a
// threaded reply.
func (c *Client) PostMessage(ctx context.Context, channelID, threadTS, text string) error {
	form := url.Values{
		"channel": {channelID},
		"text":    {text},
	}
	if threadTS != "" {
		form.Set("thread_ts", threadTS)
	}

	resp, err := call[postMessageResponse](ctx, c, c.botToken, "chat.postMessage", form)
	if err != nil {
		return err
	}
	if !resp.OK {
		return &APIError{Method: "chat.postMessage", Code: resp.Error}
	}
	return nil
}

// FetchThreadMessages implements history.Fetcher over conversations.replies.
// Slack delivers replies oldest-first but the assembler makes no ordering
// assumption, so the slice is passed through as received.
func (c *Client) FetchThreadMessages(ctx context.Context, channelID, threadTS string, limit int) ([]history.ThreadMessage, error) {
	form := url.Values{
		"channel": {channelID},
		"ts":      {threadTS},
		"limit":   {strconv.Itoa(limit)},
	}

	resp, err := call[repliesResponse](ctx, c, c.botToken, "conversations.replies", form)
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, &APIError{Method: "conversations.replies", Code: resp.Error}
	}

	msgs := make([]history.ThreadMessage, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		msgs = append(msgs, history.ThreadMessage{
			AuthorID:  m.User,
			BotID:     m.BotID,
			Subtype:   m.Subtype,
			Text:      m.Text,
			Timestamp: tsToTime(m.TS),
		})
	}
	return msgs, nil
}

// connectionsOpen requests a Socket Mode WebSocket URL using the app token.
func (c *Client) connectionsOpen(ctx context.Context) (string, error) {
	resp, err := call[connectionsOpenResponse](ctx, c, c.appToken, "apps.connections.open", url.Values{})
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", &APIError{Method: "apps.connections.open", Code: resp.Error}
	}
	return resp.URL, nil
}

// tsToTime converts a Slack "seconds.fraction" timestamp into a time.Time.
// A malformed timestamp yields the zero time, which sorts first.
func tsToTime(ts string) time.Time {
	secs, frac, _ := strings.Cut(ts, ".")
	s, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return time.Time{}
	}
	var micros int64
	if frac != "" {
		// Fraction is microseconds, left-aligned; normalize to six digits.
		for len(frac) < 6 {
			frac += "0"
		}
		micros, _ = strconv.ParseInt(frac[:6], 10, 64)
	}
	return time.Unix(s, micros*int64(time.Microsecond))
}
