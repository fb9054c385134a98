package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flemzord/threadpilot/internal/bot"
)

// notifyPayload is the body accepted on /webhooks/{source}: a notification
// to relay into Slack.
type notifyPayload struct {
	// Channel overrides the source's configured channel when set.
	Channel string `json:"channel,omitempty"`

	// Text is the notification text. Required.
	Text string `json:"text"`
}

// NotifyHandler posts externally triggered notifications into Slack.
type NotifyHandler struct {
	messenger bot.Messenger
	// defaultChannel per source, from config.
	channels map[string]string
}

// Compile-time interface guard.
var _ WebhookHandler = (*NotifyHandler)(nil)

// NewNotifyHandler creates a handler posting through messenger. channels
// maps source names to their default destination channel.
func NewNotifyHandler(messenger bot.Messenger, channels map[string]string) *NotifyHandler {
	return &NotifyHandler{messenger: messenger, channels: channels}
}

// HandleWebhook implements WebhookHandler.
func (h *NotifyHandler) HandleWebhook(ctx context.Context, source string, body []byte) error {
	var payload notifyPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("gateway: decode %s notification: %w", source, err)
	}
	if payload.Text == "" {
		return fmt.Errorf("gateway: %s notification has no text", source)
	}

	channel := payload.Channel
	if channel == "" {
		channel = h.channels[source]
	}
	if channel == "" {
		return fmt.Errorf("gateway: no channel for %s notification", source)
	}

	// Notifications are top-level posts, not threaded replies.
	if err := h.messenger.PostMessage(ctx, channel, "", payload.Text); err != nil {
		return fmt.Errorf("gateway: deliver %s notification: %w", source, err)
	}
	return nil
}
