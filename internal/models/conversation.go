package models

import (
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether the role belongs to the closed set accepted by the store.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count,omitempty"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	ModelUsed      string    `json:"model_used,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Attachment is a payload sent along with a query. Data carries the
// base64-encoded bytes; Type is the declared media type, the only part
// the router inspects.
type Attachment struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

type SearchResult struct {
	Conversation Conversation `json:"conversation"`
	Snippet      string       `json:"snippet"`
}

type UsageStats struct {
	TotalConversations int            `json:"total_conversations"`
	TotalMessages      int            `json:"total_messages"`
	ModelUsage         map[string]int `json:"model_usage"`
	ActiveServers      []string       `json:"active_servers"`
}
