package chat

import (
	"strings"
	"time"
)

// Console rendering for messages: "{header}: {content}" where header is
// "[local-time] @sender -> recipients".

func (u User) String() string { return "@" + u.FullName }

func (r Recipients) String() string {
	if r.isStream {
		return "#" + r.Stream
	}
	if len(r.Users) == 0 {
		return "<no users>"
	}
	parts := make([]string, len(r.Users))
	for i, u := range r.Users {
		parts[i] = u.String()
	}
	return strings.Join(parts, ",")
}

// Header renders the message header with the timestamp in local time.
func (m *Message) Header() string {
	return m.HeaderIn(time.Local)
}

// HeaderIn is Header with an explicit zone, so rendering is testable without
// touching the process-wide local zone.
func (m *Message) HeaderIn(loc *time.Location) string {
	return "[" + m.Timestamp.In(loc).Format("15:04:05") + "] @" +
		m.SenderFullName + " -> " + m.Recipients.String()
}

func (m *Message) String() string {
	return m.Header() + ": " + m.Content
}
