package loop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	l := New(Config{QueueSize: 8})
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = l.DrainTimeout(time.Second) })
	return l
}

func TestLoop_RunsTasksInOrder(t *testing.T) {
	l := startLoop(t)
	var got []int
	done := make(chan struct{})
	for i := range 5 {
		if err := l.Submit(context.Background(), func(context.Context) error {
			got = append(got, i)
			if i == 4 {
				close(done)
			}
			return nil
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tasks did not run")
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("out of order: %v", got)
		}
	}
}

func TestLoop_SubmitBeforeStartAndAfterStop(t *testing.T) {
	l := New(Config{})
	if err := l.Submit(context.Background(), func(context.Context) error { return nil }); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := l.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
	if err := l.DrainTimeout(time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := l.Submit(context.Background(), func(context.Context) error { return nil }); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestLoop_StopRunsQueuedTasks(t *testing.T) {
	l := New(Config{QueueSize: 4})
	ran := 0
	gate := make(chan struct{})
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_ = l.Submit(context.Background(), func(context.Context) error { <-gate; ran++; return nil })
	_ = l.Submit(context.Background(), func(context.Context) error { ran++; return errors.New("logged only") })
	close(gate)
	if err := l.DrainTimeout(time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if ran != 2 {
		t.Fatalf("ran = %d, want 2", ran)
	}
}

func TestScheduler_RearmReplacesPendingTimer(t *testing.T) {
	l := startLoop(t)
	s := NewScheduler(l, nil)

	var mu sync.Mutex
	var fired []string
	done := make(chan struct{})
	s.Arm(context.Background(), PurposeShop, 20*time.Millisecond, func(context.Context) error {
		mu.Lock()
		fired = append(fired, "first")
		mu.Unlock()
		return nil
	})
	s.Arm(context.Background(), PurposeShop, 30*time.Millisecond, func(context.Context) error {
		mu.Lock()
		fired = append(fired, "second")
		mu.Unlock()
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 1 || fired[0] != "second" {
		t.Fatalf("fired = %v", fired)
	}
	if p := s.Pending(); len(p) != 0 {
		t.Fatalf("pending after fire: %v", p)
	}
}

func TestScheduler_CancelAll(t *testing.T) {
	l := startLoop(t)
	s := NewScheduler(l, nil)

	fired := make(chan Purpose, 4)
	for _, p := range []Purpose{PurposeBot, PurposeRoundDelay, PurposeReconnect} {
		s.Arm(context.Background(), p, 20*time.Millisecond, func(context.Context) error {
			fired <- p
			return nil
		})
	}
	if got := s.Pending(); len(got) != 3 || got[0] != PurposeBot {
		t.Fatalf("pending = %v", got)
	}
	if !s.Armed(PurposeBot) || s.Armed(PurposeShop) {
		t.Fatalf("armed state is wrong: %v", s.Pending())
	}
	s.Cancel(PurposeBot)
	if s.Armed(PurposeBot) {
		t.Fatal("cancelled timer still armed")
	}
	if got := s.Pending(); len(got) != 2 {
		t.Fatalf("pending after cancel = %v", got)
	}
	s.CancelAll()

	select {
	case p := <-fired:
		t.Fatalf("cancelled timer fired: %s", p)
	case <-time.After(60 * time.Millisecond):
	}
}
