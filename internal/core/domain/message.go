package domain

// Chat roles as they appear on the wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn in an ordered conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SystemMessage returns the content of the first system message in the
// ordered list, or "" if there is none.
func SystemMessage(messages []ChatMessage) string {
	for _, m := range messages {
		if m.Role == RoleSystem {
			return m.Content
		}
	}
	return ""
}

// WithoutSystem returns the ordered messages with every system-role turn
// removed. Used by providers whose wire format carries the system prompt
// in a dedicated field.
func WithoutSystem(messages []ChatMessage) []ChatMessage {
	filtered := make([]ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role != RoleSystem {
			filtered = append(filtered, m)
		}
	}
	return filtered
}
