package chat

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"

	"chatwatch/pkg/logx"
)

// registerPath asks for message events only, restricted to the streams the
// user can already see (all_public_streams=false).
const registerPath = `register?event_types=%5B%22message%22%5D&all_public_streams=false`

// EventQueue is one server-side queue plus the client's delivery cursor.
// Owned exclusively by one QueueClient; LastEventID is monotonically
// non-decreasing for the lifetime of a QueueID, and a re-registration swaps
// both for server-assigned fresh values.
type EventQueue struct {
	Site        Site
	QueueID     string
	LastEventID int64
}

// QueueClient owns the register/poll/reconnect state machine for one site.
//
// There are only two states per queue: active, and a transient reconnect
// handled inside LongPoll that callers never observe.
type QueueClient struct {
	site Site
	tr   Transport
	log  logx.Logger

	reconnects atomic.Uint64
}

func NewQueueClient(site Site, tr Transport, log logx.Logger) *QueueClient {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &QueueClient{site: site, tr: tr, log: log}
}

// Reconnects reports how many transparent re-registrations have happened.
func (c *QueueClient) Reconnects() uint64 { return c.reconnects.Load() }

// Register creates a fresh event queue for the site. A structured server
// error surfaces as *APIError; network or decode trouble as *TransportError.
func (c *QueueClient) Register(ctx context.Context) (*EventQueue, error) {
	body, err := c.tr.Post(ctx, registerPath)
	if err != nil {
		return nil, err
	}
	reg, err := decodeAPI[registerResponse](body)
	if err != nil {
		return nil, asClientError("register", err)
	}
	return &EventQueue{
		Site:        c.site,
		QueueID:     reg.QueueID,
		LastEventID: reg.LastEventID,
	}, nil
}

// LongPoll blocks until the server returns at least one event (heartbeats
// included), then advances the cursor and returns the batch in delivery
// order.
//
//   - An empty-but-successful batch is returned as-is with the cursor
//     untouched; the caller just polls again.
//   - A BAD_EVENT_QUEUE_ID error re-registers in place: q gets the fresh
//     queue id and cursor, the batch is empty, and no error is reported.
//   - Everything else is fatal to the caller's loop.
func (c *QueueClient) LongPoll(ctx context.Context, q *EventQueue) ([]Event, error) {
	path := fmt.Sprintf("events?queue_id=%s&last_event_id=%d&dont_block=false",
		url.QueryEscape(q.QueueID), q.LastEventID)

	body, err := c.tr.Get(ctx, path)
	if err != nil {
		return nil, err
	}

	poll, err := decodeAPI[pollResponse](body)
	if err != nil {
		if IsBadQueue(err) {
			fresh, regErr := c.Register(ctx)
			if regErr != nil {
				return nil, regErr
			}
			q.QueueID = fresh.QueueID
			q.LastEventID = fresh.LastEventID
			c.reconnects.Add(1)
			c.log.Info("event queue expired; re-registered",
				logx.String("site", c.site.Name),
				logx.String("queue_id", q.QueueID),
				logx.Int64("last_event_id", q.LastEventID))
			return nil, nil
		}
		return nil, asClientError("poll", err)
	}

	// Cursor tracks the maximum id ever seen, not the last array element,
	// so an out-of-order batch can never move it backwards.
	for i := range poll.Events {
		if poll.Events[i].ID > q.LastEventID {
			q.LastEventID = poll.Events[i].ID
		}
	}
	return poll.Events, nil
}

// asClientError keeps *APIError intact and folds everything else (decode
// failures) into the transport taxonomy.
func asClientError(op string, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &TransportError{Op: op, Err: err}
}
