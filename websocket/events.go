package websocket

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Client to server.
const (
	EventAuth       = "auth"
	EventTyping     = "typing"
	EventStopTyping = "stop_typing"
)

// Server to client.
const (
	EventNewMessage     = "new_message"
	EventUserTyping     = "user_typing"
	EventUserStopTyping = "user_stop_typing"
	EventMessagesRead   = "messages_read"
	EventError          = "error"
)

type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Frame is an inbound client frame.
type Frame struct {
	Type           string `json:"type"`
	Token          string `json:"token,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

type TypingPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	UserID         uuid.UUID `json:"userId"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

func ErrorEvent(msg string) Event {
	return Event{Type: EventError, Data: ErrorPayload{Error: msg}}
}

// Envelope is what travels over a Backplane: one already-encoded event for one
// user. Origin is the publishing hub; a hub ignores its own envelopes.
type Envelope struct {
	Origin  string          `json:"origin"`
	UserID  uuid.UUID       `json:"userId"`
	Payload json.RawMessage `json:"payload"`
}
