// Package convo holds the in-memory conversation context cache: a TTL- and
// capacity-bounded mapping from a thread key to the ordered turns exchanged
// in that thread.
package convo

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in assembled thread history. Immutable once created.
type Turn struct {
	Role    Role
	Content string
}

// ThreadKey derives the cache key for a thread from its channel and the
// timestamp of the thread's root message. Unique per thread.
func ThreadKey(channelID, threadTS string) string {
	return channelID + ":" + threadTS
}
