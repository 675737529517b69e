package watcher

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"chatwatch/internal/chat"
	"chatwatch/internal/notify"
	"chatwatch/internal/storage"
	"chatwatch/pkg/logx"
)

// Notifier is what the watcher needs from the notification pipeline.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification) error
}

// Watcher drives one site: register a queue, then poll forever and dispatch
// every event. It owns its Site, queue client and counters; nothing here is
// shared across sites.
type Watcher struct {
	site   chat.Site
	client *chat.QueueClient
	out    io.Writer
	notif  Notifier
	store  storage.Store // nil when history is disabled
	log    logx.Logger

	events     atomic.Uint64
	messages   atomic.Uint64
	important  atomic.Uint64
	heartbeats atomic.Uint64
	unknown    atomic.Uint64
}

func New(site chat.Site, client *chat.QueueClient, out io.Writer, notif Notifier, store storage.Store, log logx.Logger) *Watcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Watcher{
		site:   site,
		client: client,
		out:    out,
		notif:  notif,
		store:  store,
		log:    log.With(logx.String("site", site.Name)),
	}
}

// Run blocks until ctx is canceled or a fatal error occurs. Queue expiry is
// absorbed inside the client and never surfaces here; everything that does
// surface terminates this site only.
func (w *Watcher) Run(ctx context.Context) error {
	q, err := w.client.Register(ctx)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	w.log.Info("watching",
		logx.String("queue_id", q.QueueID),
		logx.Int64("last_event_id", q.LastEventID))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Batches are strictly sequential: the previous batch is fully
		// dispatched before the next poll goes out.
		events, err := w.client.LongPoll(ctx, q)
		if err != nil {
			return fmt.Errorf("poll: %w", err)
		}
		for i := range events {
			w.dispatch(ctx, &events[i])
		}
	}
}

func (w *Watcher) dispatch(ctx context.Context, ev *chat.Event) {
	w.events.Add(1)

	switch ev.Kind {
	case chat.KindHeartbeat:
		w.heartbeats.Add(1)

	case chat.KindMessage:
		w.messages.Add(1)
		important := Important(ev.Flags)

		mark := " "
		if important {
			mark = "!"
			w.important.Add(1)
		}
		fmt.Fprintf(w.out, "%s %-20s %s\n", mark, w.site.Name, ev.Message)

		w.record(ctx, ev.Message, important)

		if important && w.notif != nil {
			_ = w.notif.Notify(ctx, notify.Notification{
				Site:    w.site.Name,
				Summary: w.site.Name + " " + ev.Message.Header(),
				Body:    ev.Message.Content,
			})
		}

	default:
		w.unknown.Add(1)
		w.log.Warn("unrecognized event type",
			logx.String("type", ev.RawType), logx.Int64("id", ev.ID))
	}
}

func (w *Watcher) record(ctx context.Context, m *chat.Message, important bool) {
	if w.store == nil {
		return
	}
	err := w.store.RecordMessage(ctx, storage.MessageRecord{
		At:         m.Timestamp,
		Site:       w.site.Name,
		Sender:     m.SenderFullName,
		Recipients: m.Recipients.String(),
		Kind:       m.Kind,
		Important:  important,
	})
	if err != nil {
		w.log.Warn("history write failed", logx.Err(err))
	}
}

// Stats is a point-in-time snapshot of one watcher's counters.
type Stats struct {
	Site       string `json:"site"`
	Events     uint64 `json:"events"`
	Messages   uint64 `json:"messages"`
	Important  uint64 `json:"important"`
	Heartbeats uint64 `json:"heartbeats"`
	Unknown    uint64 `json:"unknown"`
	Reconnects uint64 `json:"reconnects"`
}

func (w *Watcher) Stats() Stats {
	return Stats{
		Site:       w.site.Name,
		Events:     w.events.Load(),
		Messages:   w.messages.Load(),
		Important:  w.important.Load(),
		Heartbeats: w.heartbeats.Load(),
		Unknown:    w.unknown.Load(),
		Reconnects: w.client.Reconnects(),
	}
}
