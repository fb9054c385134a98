package gateway_test

import (
	"context"
	"sync"
	"testing"

	"github.com/flemzord/threadpilot/internal/gateway"
)

// stubMessenger records posted notifications.
type stubMessenger struct {
	mu       sync.Mutex
	channels []string
	texts    []string
}

func (m *stubMessenger) PostMessage(_ context.Context, channelID, threadTS, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if threadTS != "" {
		panic("notifications must be top-level posts")
	}
	m.channels = append(m.channels, channelID)
	m.texts = append(m.texts, text)
	return nil
}

func TestNotifyHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		body        string
		wantErr     bool
		wantChannel string
	}{
		{
			name:        "uses_source_default_channel",
			body:        `{"text":"deploy finished"}`,
			wantChannel: "C0OPS",
		},
		{
			name:        "payload_channel_overrides",
			body:        `{"channel":"C0DEV","text":"build broken"}`,
			wantChannel: "C0DEV",
		},
		{name: "missing_text", body: `{"channel":"C0DEV"}`, wantErr: true},
		{name: "malformed_json", body: `{nope`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			messenger := &stubMessenger{}
			h := gateway.NewNotifyHandler(messenger, map[string]string{"alerts": "C0OPS"})

			err := h.HandleWebhook(context.Background(), "alerts", []byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(messenger.channels) != 1 || messenger.channels[0] != tt.wantChannel {
				t.Errorf("posted to %v, want %q", messenger.channels, tt.wantChannel)
			}
		})
	}
}

func TestNotifyHandler_NoChannelAnywhere(t *testing.T) {
	t.Parallel()

	h := gateway.NewNotifyHandler(&stubMessenger{}, nil)
	if err := h.HandleWebhook(context.Background(), "alerts", []byte(`{"text":"hi"}`)); err == nil {
		t.Error("want error when neither payload nor config names a channel")
	}
}
