package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// Message is one chat line of a call session. The JSON form is what the store
// returns and what is pushed to the other peers.
type Message struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// Sender identifies the author of an outgoing message.
type Sender struct {
	ID   string
	Name string
}

// Origin tells where a message event came from.
type Origin int

const (
	OriginFetch Origin = iota // bulk fetch on panel open
	OriginEcho                // optimistic local echo after a send
	OriginPush                // push channel delivery
)

func (o Origin) String() string {
	switch o {
	case OriginFetch:
		return "fetch"
	case OriginEcho:
		return "echo"
	case OriginPush:
		return "push"
	default:
		return "unknown"
	}
}

// Event is a message normalised from any of the three sources.
type Event struct {
	Origin  Origin
	Message Message
}

// Reasons a push payload is dropped.
var (
	ErrDecode          = errors.New("payload is not valid utf-8")
	ErrParse           = errors.New("payload is not a json message")
	ErrMissingField    = errors.New("payload misses a required field")
	ErrSessionMismatch = errors.New("payload belongs to another session")
)

// DecodePayload validates a pushed payload and returns its message. The
// message must carry id, content and sender_id and belong to sessionID.
func DecodePayload(data []byte, sessionID string) (Message, error) {
	var m Message
	if !utf8.Valid(data) {
		return m, ErrDecode
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	switch {
	case m.ID == "":
		return Message{}, fmt.Errorf("%w: id", ErrMissingField)
	case m.Content == "":
		return Message{}, fmt.Errorf("%w: content", ErrMissingField)
	case m.SenderID == "":
		return Message{}, fmt.Errorf("%w: sender_id", ErrMissingField)
	}
	if m.SessionID != sessionID {
		return Message{}, fmt.Errorf("%w: got %q", ErrSessionMismatch, m.SessionID)
	}
	return m, nil
}
