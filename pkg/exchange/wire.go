package exchange

import (
	"github.com/go-go-golems/supportchat/pkg/conversation"
)

const (
	WireRoleUser  = "user"
	WireRoleModel = "model"
)

// HistoryEntry is a transcript message reduced to what the answering service sees.
type HistoryEntry struct {
	Role    string `json:"role" jsonschema:"enum=user,enum=model"`
	Content string `json:"content"`
}

// Request is the body POSTed to the answering service. History never
// contains UserMessage itself.
type Request struct {
	UserMessage string         `json:"user_message"`
	History     []HistoryEntry `json:"history"`
}

type Response struct {
	Response string `json:"response,omitempty"`
}

// WireRole maps a transcript role to the role name the service expects.
func WireRole(role conversation.Role) string {
	if role == conversation.RoleAssistant {
		return WireRoleModel
	}
	return WireRoleUser
}

// TranscriptRole is the inverse of WireRole. Unknown roles are reported as not ok.
func TranscriptRole(role string) (conversation.Role, bool) {
	switch role {
	case WireRoleUser:
		return conversation.RoleUser, true
	case WireRoleModel:
		return conversation.RoleAssistant, true
	}
	return "", false
}

func NewRequest(utterance string, history conversation.Transcript) *Request {
	entries := make([]HistoryEntry, 0, len(history))
	for _, m := range history {
		entries = append(entries, HistoryEntry{
			Role:    WireRole(m.Role),
			Content: m.Content,
		})
	}
	return &Request{
		UserMessage: utterance,
		History:     entries,
	}
}
