package chat

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// CodeBadEventQueueID is the one server error code the client recovers from:
// the queue expired or was garbage-collected server-side and must be
// re-registered.
const CodeBadEventQueueID = "BAD_EVENT_QUEUE_ID"

// TransportError wraps a network failure or an undecodable response body.
// It is always fatal to the watcher that owns the transport.
type TransportError struct {
	Op  string // "register", "poll", ...
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a structured error result returned by the server.
//
// The payload shape is not fully specified server-side, so it is kept as an
// opaque key-value bag; only Code is ever inspected by name.
type APIError struct {
	Code    string
	Payload map[string]any
}

func (e *APIError) Error() string {
	if len(e.Payload) == 0 {
		return "api call failed"
	}
	// Stable key order so the same error always renders the same way.
	keys := make([]string, 0, len(e.Payload))
	for k := range e.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("api call failed:")
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Payload[k])
	}
	return b.String()
}

// IsBadQueue reports whether err is the recoverable queue-expired condition.
func IsBadQueue(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeBadEventQueueID
}
