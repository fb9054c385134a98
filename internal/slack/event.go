package slack

import "strings"

// Event is one inbound request for the bot: an app mention in a channel or
// a direct message.
type Event struct {
	// ChannelID is the conversation the message arrived in.
	ChannelID string

	// UserID is the requester identity.
	UserID string

	// Text is the message text with the bot mention stripped.
	Text string

	// TS is the message's own timestamp.
	TS string

	// ThreadTS is the thread root. For a top-level message it equals TS,
	// so a reply always lands in the thread the message starts.
	ThreadTS string
}

// convertEvent maps a raw Events API event onto an Event, or false when the
// event is not something the bot responds to: non-message types, messages
// with subtypes, the bot's own echo, and channel messages that are not
// mentions.
func convertEvent(ev innerEvent, selfID string) (Event, bool) {
	switch ev.Type {
	case "app_mention":
	case "message":
		// Only direct messages; channel traffic reaches the bot via
		// app_mention (subscribing to both would double-deliver mentions
		// in channels).
		if ev.ChannelType != "im" {
			return Event{}, false
		}
	default:
		return Event{}, false
	}

	if ev.Subtype != "" || ev.User == "" || ev.User == selfID || ev.BotID != "" {
		return Event{}, false
	}

	text := stripMention(ev.Text, selfID)
	if text == "" {
		return Event{}, false
	}

	threadTS := ev.ThreadTS
	if threadTS == "" {
		threadTS = ev.TS
	}

	return Event{
		ChannelID: ev.Channel,
		UserID:    ev.User,
		Text:      text,
		TS:        ev.TS,
		ThreadTS:  threadTS,
	}, true
}

// stripMention removes every <@SELF> tag from text and trims the result.
func stripMention(text, selfID string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "<@"+selfID+">", ""))
}
