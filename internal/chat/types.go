package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// MessageFlag is a per-message marker set by the server. Unknown flags are
// carried through untouched and ignored by classification.
type MessageFlag string

const (
	FlagRead         MessageFlag = "read"
	FlagMentioned    MessageFlag = "mentioned"
	FlagHasAlertWord MessageFlag = "has_alert_word"
)

// Flags is the flag set attached to a message event.
type Flags []MessageFlag

func (f Flags) Has(flag MessageFlag) bool {
	for _, v := range f {
		if v == flag {
			return true
		}
	}
	return false
}

// EventKind discriminates the event variants the watcher acts on.
type EventKind string

const (
	KindHeartbeat EventKind = "heartbeat"
	KindMessage   EventKind = "message"
	// KindOther covers every wire type we don't interpret. Such events are
	// counted, not rejected; the raw type survives in Event.RawType.
	KindOther EventKind = "other"
)

// Event is one entry of a poll batch. IDs from one queue arrive in ascending
// order. Flags and Message are set only for KindMessage.
type Event struct {
	ID      int64
	Kind    EventKind
	RawType string

	Flags   Flags
	Message *Message
}

func (e *Event) UnmarshalJSON(b []byte) error {
	var wire struct {
		ID      int64    `json:"id"`
		Type    string   `json:"type"`
		Flags   Flags    `json:"flags"`
		Message *Message `json:"message"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}

	e.ID = wire.ID
	e.RawType = wire.Type
	switch wire.Type {
	case "heartbeat":
		e.Kind = KindHeartbeat
	case "message":
		if wire.Message == nil {
			return fmt.Errorf("message event %d: missing message body", wire.ID)
		}
		e.Kind = KindMessage
		e.Flags = wire.Flags
		e.Message = wire.Message
	default:
		e.Kind = KindOther
	}
	return nil
}

// Message is the chat message carried by a message event.
type Message struct {
	Content        string     `json:"content"`
	Recipients     Recipients `json:"display_recipient"`
	SenderFullName string     `json:"sender_full_name"`
	Timestamp      time.Time  `json:"-"`
	// Kind is "stream" or "private".
	Kind string `json:"type"`
}

func (m *Message) UnmarshalJSON(b []byte) error {
	type alias Message
	wire := struct {
		*alias
		Timestamp int64 `json:"timestamp"` // seconds since epoch
	}{alias: (*alias)(m)}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	m.Timestamp = time.Unix(wire.Timestamp, 0).UTC()
	return nil
}

// Recipients is either the stream a message was sent to or the list of users
// on a private message. The wire form is a plain string for streams and an
// object list for users.
type Recipients struct {
	Stream string
	Users  []User

	isStream bool
}

// StreamRecipients and UserRecipients exist mostly for tests and fixtures.
func StreamRecipients(name string) Recipients { return Recipients{Stream: name, isStream: true} }
func UserRecipients(users ...User) Recipients { return Recipients{Users: users} }

func (r *Recipients) IsStream() bool { return r.isStream }

func (r *Recipients) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		r.isStream = true
		r.Users = nil
		return json.Unmarshal(trimmed, &r.Stream)
	}
	r.isStream = false
	r.Stream = ""
	return json.Unmarshal(trimmed, &r.Users)
}

type User struct {
	FullName string `json:"full_name"`
}

// ---- API result envelopes ----

type registerResponse struct {
	QueueID     string `json:"queue_id"`
	LastEventID int64  `json:"last_event_id"`
}

type pollResponse struct {
	Events []Event `json:"events"`
}

// decodeAPI unpacks the server's tagged success/error envelope. A structured
// error becomes *APIError; anything undecodable becomes a plain error the
// caller wraps as a TransportError.
func decodeAPI[T any](body []byte) (T, error) {
	var zero T

	var env struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return zero, fmt.Errorf("decode result envelope: %w", err)
	}

	switch env.Result {
	case "success":
		var out T
		if err := json.Unmarshal(body, &out); err != nil {
			return zero, fmt.Errorf("decode success body: %w", err)
		}
		return out, nil
	case "error":
		payload := map[string]any{}
		if err := json.Unmarshal(body, &payload); err != nil {
			return zero, fmt.Errorf("decode error body: %w", err)
		}
		delete(payload, "result")
		code, _ := payload["code"].(string)
		return zero, &APIError{Code: code, Payload: payload}
	default:
		return zero, fmt.Errorf("unexpected result %q", env.Result)
	}
}
