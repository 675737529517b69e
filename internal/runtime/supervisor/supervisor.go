package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"chatwatch/pkg/logx"
)

// Supervisor manages goroutines tied to a shared context.
//   - Named goroutines (one per watched site)
//   - Panic recovery
//   - Per-task outcomes observed the moment each task exits, not only at the
//     final join
//   - Optional restart with exponential backoff for long-running loops
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc

	log      logx.Logger
	observer func(Outcome)

	errOnce  sync.Once
	firstErr atomic.Value // stores error
	doneOnce sync.Once
	doneCh   chan struct{}
	wg       sync.WaitGroup

	mu       sync.Mutex
	outcomes []Outcome
}

// Outcome is the terminal record of one supervised task. Err is nil for a
// clean (canceled) exit.
type Outcome struct {
	Name     string
	Err      error
	StartAt  time.Time
	StopAt   time.Time
	Panicked bool
}

func (o Outcome) Failed() bool { return o.Err != nil }

type Option func(*Supervisor)

func WithLogger(log logx.Logger) Option {
	return func(s *Supervisor) { s.log = log }
}

// WithObserver installs a callback invoked synchronously as each task exits.
// It runs on the exiting task's goroutine; keep it cheap.
func WithObserver(fn func(Outcome)) Option {
	return func(s *Supervisor) { s.observer = fn }
}

func New(parent context.Context, opts ...Option) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	s := &Supervisor{
		ctx:    ctx,
		cancel: cancel,
		doneCh: make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Cancel cancels the supervisor context without waiting for tasks to exit.
func (s *Supervisor) Cancel() { s.cancel() }

// Err returns the first fatal error recorded by any task.
func (s *Supervisor) Err() error {
	v := s.firstErr.Load()
	if v == nil {
		return nil
	}
	if err, ok := v.(error); ok {
		return err
	}
	return nil
}

// Outcomes returns the terminal records collected so far, in exit order.
func (s *Supervisor) Outcomes() []Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Outcome, len(s.outcomes))
	copy(out, s.outcomes)
	return out
}

// Go runs fn as a named task. A non-nil, non-cancellation return is recorded
// as that task's fatal outcome; other tasks keep running.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		startAt := time.Now()

		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("panic in %s: %v", name, r)
				if !s.log.IsZero() {
					s.log.Error("task panicked",
						logx.String("name", name),
						logx.Any("panic", r),
						logx.String("stack", string(debug.Stack())))
				}
				s.finish(Outcome{Name: name, Err: err, StartAt: startAt, StopAt: time.Now(), Panicked: true})
			}
		}()

		if !s.log.IsZero() {
			s.log.Debug("task started", logx.String("name", name))
		}
		err := fn(s.ctx)
		if errors.Is(err, context.Canceled) {
			err = nil
		} else if err != nil {
			err = fmt.Errorf("%s: %w", name, err)
		}
		s.finish(Outcome{Name: name, Err: err, StartAt: startAt, StopAt: time.Now()})
	}()
}

// RestartPolicy tunes GoRestart.
type RestartPolicy struct {
	MinBackoff time.Duration // default 1s
	MaxBackoff time.Duration // default 1m
	// MaxRestarts limits restarts before the task fails for good.
	// <=0 means unlimited.
	MaxRestarts int
}

// GoRestart runs fn like Go, but restarts it with jittered exponential
// backoff when it fails. Intended for poll loops where a transient fatal
// error should not permanently kill one site while the others keep running.
// A clean (nil / canceled) return stops the task.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error, p RestartPolicy) {
	if fn == nil {
		return
	}
	if p.MinBackoff <= 0 {
		p.MinBackoff = time.Second
	}
	if p.MaxBackoff < p.MinBackoff {
		p.MaxBackoff = time.Minute
	}

	s.Go(name, func(ctx context.Context) error {
		backoff := p.MinBackoff
		restarts := 0
		for {
			startedAt := time.Now()

			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						if !s.log.IsZero() {
							s.log.Error("task panicked (will restart)",
								logx.String("name", name),
								logx.Any("panic", r),
								logx.String("stack", string(debug.Stack())))
						}
						err = fmt.Errorf("panic: %v", r)
					}
				}()
				return fn(ctx)
			}()

			if ctx.Err() != nil || errors.Is(err, context.Canceled) || err == nil {
				return nil
			}

			restarts++
			if p.MaxRestarts > 0 && restarts > p.MaxRestarts {
				return fmt.Errorf("gave up after %d restarts: %w", restarts-1, err)
			}

			// A run that survived for a while resets the backoff so rare
			// failures don't accumulate long delays.
			if time.Since(startedAt) >= 30*time.Second {
				backoff = p.MinBackoff
			}
			wait := backoff + jitter(backoff/5)
			if !s.log.IsZero() {
				s.log.Warn("task restarting",
					logx.String("name", name),
					logx.Duration("backoff", wait),
					logx.Err(err))
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			backoff *= 2
			if backoff > p.MaxBackoff {
				backoff = p.MaxBackoff
			}
		}
	})
}

func jitter(span time.Duration) time.Duration {
	if span <= 0 {
		return 0
	}
	return time.Duration(time.Now().UnixNano() % int64(span+1))
}

func (s *Supervisor) finish(o Outcome) {
	s.mu.Lock()
	s.outcomes = append(s.outcomes, o)
	obs := s.observer
	s.mu.Unlock()

	if o.Err != nil {
		s.setErr(o.Err)
	}
	if obs != nil {
		obs(o)
	}
	if !s.log.IsZero() {
		if o.Err != nil {
			s.log.Error("task stopped", logx.String("name", o.Name), logx.Err(o.Err))
		} else {
			s.log.Debug("task stopped", logx.String("name", o.Name))
		}
	}
}

// Stop cancels the context and waits for all tasks to exit (or ctx deadline).
func (s *Supervisor) Stop(ctx context.Context) error {
	s.cancel()
	return s.Wait(ctx)
}

// Wait blocks until every task has exited, returning the first fatal error.
func (s *Supervisor) Wait(ctx context.Context) error {
	s.doneOnce.Do(func() {
		go func() {
			s.wg.Wait()
			close(s.doneCh)
		}()
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.doneCh:
		return s.Err()
	}
}

func (s *Supervisor) setErr(err error) {
	if err == nil {
		return
	}
	s.errOnce.Do(func() { s.firstErr.Store(err) })
}
