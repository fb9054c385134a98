// Package provider defines the completion-service contract consumed by the
// orchestrator, decoupled from any concrete LLM API.
package provider

import (
	"context"

	"github.com/flemzord/threadpilot/internal/convo"
)

// Request carries one completion call: the system prompt, the prior turns of
// the thread, and the new user text that ends the prompt.
type Request struct {
	System    string
	Turns     []convo.Turn
	UserText  string
	MaxTokens int
}

// Response is the assistant's reply plus whatever usage accounting the
// upstream reported.
type Response struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Completer produces an assistant reply for a request. Implementations must
// honor ctx cancellation and deadlines; any returned error aborts the
// request without touching cached context.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
