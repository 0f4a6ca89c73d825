package domain

// Role identifies the author of a turn or chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is the provider-agnostic chat message shape used by the LLM
// integrations that speak a messages API.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
