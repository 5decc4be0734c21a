// ABOUTME: Wire types for the search backend's REST and streaming endpoints
// ABOUTME: Tolerates integer or string ids and naive timestamps as the backend emits them

package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ID identifies a backend resource. The backend uses integers; ID keeps the
// decimal text so callers never depend on the numeric type.
type ID string

// UnmarshalJSON accepts a JSON number, a JSON string, or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes numeric ids as numbers so the backend's integer fields
// validate, other ids as strings, and the empty id as null.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// String returns the id text.
func (id ID) String() string {
	return string(id)
}

// naiveLayout is how the backend serializes datetimes without a zone.
const naiveLayout = "2006-01-02T15:04:05.999999999"

// Timestamp is a time that also parses zone-less ISO-8601 values (read as UTC).
type Timestamp struct {
	time.Time
}

// UnmarshalJSON parses RFC 3339 or naive ISO-8601 strings; null leaves the zero time.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", data, err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed
		return nil
	}
	parsed, err := time.ParseInLocation(naiveLayout, s, time.UTC)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Source is citation metadata attached to an assistant message. The core
// treats it as opaque: the exact JSON received is kept and written back out.
type Source struct {
	ID         ID     `json:"id,omitempty"`
	MessageID  ID     `json:"message_id,omitempty"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Snippet    string `json:"snippet,omitempty"`
	SourceType string `json:"source_type,omitempty"`

	raw json.RawMessage
}

type plainSource Source

// UnmarshalJSON decodes the known fields and keeps the original bytes.
func (s *Source) UnmarshalJSON(data []byte) error {
	var p plainSource
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = Source(p)
	s.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON returns the bytes originally received, if any.
func (s Source) MarshalJSON() ([]byte, error) {
	if len(s.raw) > 0 {
		return s.raw, nil
	}
	return json.Marshal(plainSource(s))
}

// Raw returns the source exactly as the backend sent it, or nil for sources
// built locally.
func (s Source) Raw() json.RawMessage {
	return s.raw
}

// Message is one entry of a conversation.
type Message struct {
	ID                ID        `json:"id"`
	ConversationID    ID        `json:"conversation_id,omitempty"`
	Role              Role      `json:"role"`
	Content           string    `json:"content"`
	CreatedAt         Timestamp `json:"created_at,omitzero"`
	Sources           []Source  `json:"sources,omitempty"`
	FollowUpQuestions []string  `json:"follow_up_questions,omitempty"`
}

// Clone returns a copy that shares no slices with m.
func (m Message) Clone() Message {
	c := m
	if m.Sources != nil {
		c.Sources = append([]Source(nil), m.Sources...)
	}
	if m.FollowUpQuestions != nil {
		c.FollowUpQuestions = append([]string(nil), m.FollowUpQuestions...)
	}
	return c
}

// Conversation is a conversation record. Messages is only populated by the
// detail endpoint.
type Conversation struct {
	ID              ID        `json:"id"`
	Title           string    `json:"title"`
	SelectedModelID ID        `json:"selected_model_id,omitempty"`
	CreatedAt       Timestamp `json:"created_at,omitzero"`
	UpdatedAt       Timestamp `json:"updated_at,omitzero"`
	Messages        []Message `json:"messages,omitempty"`
}

// ChatRequest is the body of both chat endpoints.
type ChatRequest struct {
	Query          string   `json:"query"`
	ConversationID ID       `json:"conversation_id,omitempty"`
	ModelID        ID       `json:"model_id,omitempty"`
	ProMode        bool     `json:"pro_mode"`
	FocusModes     []string `json:"focus_modes"`
}

// ChatResponse is the single-shot chat answer.
type ChatResponse struct {
	ConversationID    ID       `json:"conversation_id"`
	MessageID         ID       `json:"message_id"`
	Content           string   `json:"content"`
	Sources           []Source `json:"sources"`
	FollowUpQuestions []string `json:"follow_up_questions"`
}

// EventType discriminates streaming events.
type EventType string

const (
	EventConversationID    EventType = "conversation_id"
	EventSources           EventType = "sources"
	EventContent           EventType = "content"
	EventFollowUpQuestions EventType = "follow_up_questions"
	EventDone              EventType = "done"
	EventError             EventType = "error"
	EventStatus            EventType = "status"
)

// Event is one decoded frame of the streaming chat response. Which fields are
// set depends on Type.
type Event struct {
	Type           EventType `json:"type"`
	ConversationID ID        `json:"conversation_id,omitempty"`
	Sources        []Source  `json:"sources,omitempty"`
	Content        string    `json:"content,omitempty"`
	Questions      []string  `json:"questions,omitempty"`
	MessageID      ID        `json:"message_id,omitempty"`
	Message        string    `json:"message,omitempty"`
}

// Model is an LLM the backend can route a query to.
type Model struct {
	ID           ID     `json:"id"`
	ModelName    string `json:"model_name"`
	ProviderType string `json:"provider_type,omitempty"`
	IsActive     bool   `json:"is_active"`
}

type suggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

type createConversationRequest struct {
	Title string `json:"title"`
}
