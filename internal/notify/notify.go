package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"chatwatch/pkg/logx"
)

var (
	ErrDisabled  = errors.New("notifier disabled")
	ErrQueueFull = errors.New("notifier queue full")
	ErrStopped   = errors.New("notifier stopped")
)

// Notification is one user-facing alert about an important message.
type Notification struct {
	Site    string
	Summary string // site + message header
	Body    string // message content
}

// Sink delivers a notification somewhere (desktop popup, Telegram chat, ...).
type Sink interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

type Config struct {
	Enabled    bool
	QueueSize  int
	RatePerSec int
}

type job struct {
	n Notification
}

// Service is the async notification pipeline: queue + worker + rate limit.
// Delivery is decoupled from the watcher loops so a slow sink can never
// stall a poll cycle; when the queue overflows, notifications are dropped
// (with a warning) rather than blocking.
type Service struct {
	mu sync.Mutex

	log   logx.Logger
	sinks []Sink

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	queue     chan job
	sendWG    sync.WaitGroup // in-flight Notify enqueues

	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
}

func New(cfg Config, log logx.Logger, sinks ...Sink) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{log: log, sinks: sinks}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Apply updates tunables at runtime (config reload). Queue size changes only
// take effect on the next Start.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 2
	}
	s.cfg = cfg
	// Token bucket: burst = rate per sec, so a short spike of mentions
	// doesn't stall delivery too hard.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.queue != nil || !s.cfg.Enabled {
		s.mu.Unlock()
		return
	}
	s.queue = make(chan job, s.cfg.QueueSize)
	s.accepting = true
	runCtx, cancel := context.WithCancel(ctx)
	s.runCancel = cancel
	q := s.queue
	s.mu.Unlock()

	s.workerWG.Add(1)
	go func() {
		defer s.workerWG.Done()
		s.workerLoop(runCtx, q)
	}()
}

// Stop blocks intake, then drains best-effort until ctx expires.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	q := s.queue
	cancel := s.runCancel
	if q == nil {
		s.mu.Unlock()
		return
	}
	s.accepting = false
	s.queue = nil
	s.runCancel = nil
	s.mu.Unlock()

	// Wait for in-flight enqueues before closing, so Notify never races a
	// send against the close.
	s.sendWG.Wait()
	close(q)

	done := make(chan struct{})
	go func() {
		s.workerWG.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		cancel()
		<-done
	case <-done:
		cancel()
	}
}

// Notify enqueues without blocking. The watcher loop calls this inline, so
// queue pressure must never turn into backpressure on polling.
func (s *Service) Notify(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if !s.cfg.Enabled {
		s.mu.Unlock()
		return ErrDisabled
	}
	if !s.accepting || s.queue == nil {
		s.mu.Unlock()
		return ErrStopped
	}
	q := s.queue
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	select {
	case q <- job{n: n}:
		return nil
	default:
		s.log.Warn("notification dropped (queue full)",
			logx.String("site", n.Site), logx.String("summary", n.Summary))
		return ErrQueueFull
	}
}

func (s *Service) workerLoop(ctx context.Context, q <-chan job) {
	for j := range q {
		s.mu.Lock()
		lim := s.limiter
		sinks := s.sinks
		s.mu.Unlock()

		if err := lim.Wait(ctx); err != nil {
			// Shutdown: drop the remainder of the queue.
			return
		}

		for _, sink := range sinks {
			sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := sink.Send(sctx, j.n)
			cancel()
			if err != nil {
				s.log.Warn("notification send failed",
					logx.String("sink", sink.Name()),
					logx.String("site", j.n.Site),
					logx.Err(err))
			} else {
				s.log.Debug("notification sent",
					logx.String("sink", sink.Name()),
					logx.String("site", j.n.Site))
			}
		}
	}
}
