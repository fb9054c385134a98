package slack

import "encoding/json"

// apiEnvelope is the common shape of every Web API response.
// Method-specific fields are embedded by the typed response structs.
type apiEnvelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// authTestResponse is the auth.test response.
type authTestResponse struct {
	apiEnvelope
	UserID string `json:"user_id"`
	BotID  string `json:"bot_id"`
	User   string `json:"user"`
	Team   string `json:"team"`
}

// repliesResponse is the conversations.replies response.
type repliesResponse struct {
	apiEnvelope
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
}

// postMessageResponse is the chat.postMessage response.
type postMessageResponse struct {
	apiEnvelope
	TS      string `json:"ts"`
	Channel string `json:"channel"`
}

// connectionsOpenResponse is the apps.connections.open response.
type connectionsOpenResponse struct {
	apiEnvelope
	URL string `json:"url"`
}

// Message is one message as returned by conversations.replies.
type Message struct {
	User     string `json:"user"`
	BotID    string `json:"bot_id,omitempty"`
	Subtype  string `json:"subtype,omitempty"`
	Text     string `json:"text"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

// socketEnvelope is one frame received over a Socket Mode connection.
type socketEnvelope struct {
	Type                   string          `json:"type"`
	EnvelopeID             string          `json:"envelope_id,omitempty"`
	Payload                json.RawMessage `json:"payload,omitempty"`
	AcceptsResponsePayload bool            `json:"accepts_response_payload,omitempty"`
	Reason                 string          `json:"reason,omitempty"` // set on disconnect frames
}

// socketAck acknowledges receipt of an envelope.
type socketAck struct {
	EnvelopeID string `json:"envelope_id"`
}

// eventsAPIPayload is the payload of a type="events_api" envelope.
type eventsAPIPayload struct {
	Event innerEvent `json:"event"`
}

// innerEvent is the platform event inside an Events API payload. Only the
// fields the bot acts on are decoded.
type innerEvent struct {
	Type        string `json:"type"`
	Subtype     string `json:"subtype,omitempty"`
	User        string `json:"user"`
	BotID       string `json:"bot_id,omitempty"`
	Text        string `json:"text"`
	TS          string `json:"ts"`
	ThreadTS    string `json:"thread_ts,omitempty"`
	Channel     string `json:"channel"`
	ChannelType string `json:"channel_type,omitempty"`
}
