package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestFailureIsolation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var exits []Outcome
	s := New(ctx, WithObserver(func(o Outcome) {
		mu.Lock()
		exits = append(exits, o)
		mu.Unlock()
	}))

	failed := errors.New("boom")
	bAlive := make(chan struct{})

	s.Go("watch.a", func(context.Context) error { return failed })
	s.Go("watch.b", func(ctx context.Context) error {
		close(bAlive) // B keeps running while A dies
		<-ctx.Done()
		return ctx.Err()
	})

	select {
	case <-bAlive:
	case <-time.After(time.Second):
		t.Fatal("task b never started")
	}

	// A's failure is observed immediately, long before the final join.
	deadline := time.After(time.Second)
	for {
		mu.Lock()
		n := len(exits)
		mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("a's failure was not observed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	mu.Lock()
	first := exits[0]
	mu.Unlock()
	if first.Name != "watch.a" || !first.Failed() {
		t.Fatalf("unexpected first outcome: %+v", first)
	}

	cancel()
	wctx, wcancel := context.WithTimeout(context.Background(), time.Second)
	defer wcancel()
	err := s.Wait(wctx)
	if !errors.Is(err, failed) {
		t.Fatalf("Wait = %v, want %v", err, failed)
	}

	// B's cancellation is a clean exit, not a failure.
	for _, o := range s.Outcomes() {
		if o.Name == "watch.b" && o.Failed() {
			t.Fatalf("b recorded as failed: %+v", o)
		}
	}
}

func TestPanicRecovery(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	s.Go("panicky", func(context.Context) error { panic("oops") })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.Wait(ctx)
	if err == nil {
		t.Fatal("panic must surface as an error")
	}
	outs := s.Outcomes()
	if len(outs) != 1 || !outs[0].Panicked {
		t.Fatalf("panic not recorded: %+v", outs)
	}
}

func TestGoRestartRecovers(t *testing.T) {
	t.Parallel()
	s := New(context.Background())

	var mu sync.Mutex
	runs := 0
	s.GoRestart("flaky", func(context.Context) error {
		mu.Lock()
		runs++
		n := runs
		mu.Unlock()
		if n < 3 {
			return errors.New("transient")
		}
		return nil
	}, RestartPolicy{MinBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("recovered task must end clean: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if runs != 3 {
		t.Fatalf("runs = %d, want 3", runs)
	}
}

func TestGoRestartGivesUp(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	s.GoRestart("doomed", func(context.Context) error {
		return errors.New("always")
	}, RestartPolicy{MinBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, MaxRestarts: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.Wait(ctx)
	if err == nil {
		t.Fatal("exhausted restarts must fail the task")
	}
}

func TestStopCancelsTasks(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	s.Go("waiter", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
