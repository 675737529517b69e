package storage

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the optional message history store.
//
// Driver values:
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	Retention   time.Duration // 0 means keep forever
}

// MessageRecord is one received message, kept for after-the-fact review.
// Queue state is deliberately NOT persisted; queues are process-lifetime.
type MessageRecord struct {
	At         time.Time
	Site       string
	Sender     string
	Recipients string
	Kind       string // "stream" or "private"
	Important  bool
}

// Store is the history API used by the watcher and the stats job.
type Store interface {
	RecordMessage(ctx context.Context, m MessageRecord) error
	CountMessages(ctx context.Context, site string) (total, important int64, err error)
	Prune(ctx context.Context, olderThan time.Time) (removed int64, err error)
	Close() error
}
