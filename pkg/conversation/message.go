package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is a single immutable entry of the transcript.
//
// ID and Time are bookkeeping for the client only; they never leave the process.
type Message struct {
	ID      uuid.UUID `json:"id"`
	Time    time.Time `json:"time"`
	Role    Role      `json:"role"`
	Content string    `json:"content"`
}

type MessageOption func(*Message)

func WithTime(t time.Time) MessageOption {
	return func(m *Message) {
		m.Time = t
	}
}

func WithID(id uuid.UUID) MessageOption {
	return func(m *Message) {
		m.ID = id
	}
}

func NewMessage(role Role, content string, options ...MessageOption) Message {
	ret := Message{
		ID:      uuid.New(),
		Time:    time.Now(),
		Role:    role,
		Content: content,
	}
	for _, option := range options {
		option(&ret)
	}
	return ret
}

func NewUserMessage(content string, options ...MessageOption) Message {
	return NewMessage(RoleUser, content, options...)
}

func NewAssistantMessage(content string, options ...MessageOption) Message {
	return NewMessage(RoleAssistant, content, options...)
}

func (m Message) String() string {
	return fmt.Sprintf("[%s]: %s", m.Role, strings.TrimRight(m.Content, "\n"))
}

// Transcript is the literal conversation history, in insertion order.
type Transcript []Message

// Clone returns a copy that shares no backing array with t.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	ret := make(Transcript, len(t))
	copy(ret, t)
	return ret
}

func (t Transcript) Last() (Message, bool) {
	if len(t) == 0 {
		return Message{}, false
	}
	return t[len(t)-1], true
}

// CountRole returns how many messages in t were authored by role.
func (t Transcript) CountRole(role Role) int {
	n := 0
	for _, m := range t {
		if m.Role == role {
			n++
		}
	}
	return n
}

func (t Transcript) String() string {
	var sb strings.Builder
	for _, m := range t {
		sb.WriteString(m.String())
		sb.WriteString("\n")
	}
	return sb.String()
}
