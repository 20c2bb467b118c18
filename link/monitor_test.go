package link

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestMonitor(t *testing.T, clock *fakeClock) *Monitor {
	t.Helper()
	m, err := NewMonitor(Config{
		Interval:        3 * time.Second,
		Misses:          3,
		ReconnectWindow: 30 * time.Second,
		Clock:           clock,
	})
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}
	return m
}

func drain(m *Monitor) []EventKind {
	var out []EventKind
	for {
		select {
		case ev := <-m.Events():
			out = append(out, ev.Kind)
		default:
			return out
		}
	}
}

func TestNewMonitor_RejectsZeroValues(t *testing.T) {
	if _, err := NewMonitor(Config{Interval: time.Second}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

// 対局中に猶予以上ハートビートが途絶えると切断になり、次のハートビートで戻る
func TestMonitor_SilenceFlagsOpponentAndHeartbeatClears(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	m := newTestMonitor(t, clock)
	m.Watch("p2")

	clock.advance(9 * time.Second)
	m.Check()
	if m.Snapshot().OpponentDisconnected {
		t.Fatalf("exactly the timeout should not flag yet")
	}

	clock.advance(time.Second)
	m.Check()
	snap := m.Snapshot()
	if !snap.OpponentDisconnected {
		t.Fatalf("expected opponent to be flagged disconnected")
	}
	if snap.Remaining != 30*time.Second {
		t.Fatalf("unexpected countdown: %s", snap.Remaining)
	}

	clock.advance(5 * time.Second)
	if got := m.Snapshot().Remaining; got != 25*time.Second {
		t.Fatalf("countdown did not tick: %s", got)
	}

	m.ObserveHeartbeat("p2")
	if m.Snapshot().OpponentDisconnected {
		t.Fatalf("heartbeat should clear the flag")
	}

	got := drain(m)
	want := []EventKind{EventOpponentDown, EventOpponentBack}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestMonitor_IdleWhenNotWatching(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	m := newTestMonitor(t, clock)

	clock.advance(time.Minute)
	m.Check()
	if m.Snapshot().OpponentDisconnected {
		t.Fatalf("monitor should only flag while watching")
	}
	if evs := drain(m); len(evs) != 0 {
		t.Fatalf("unexpected events: %v", evs)
	}
}

func TestMonitor_ForfeitAfterWindow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	m := newTestMonitor(t, clock)
	m.Watch("p2")

	m.PeerDown("p2")
	clock.advance(29 * time.Second)
	m.Check()
	if m.Snapshot().Forfeited {
		t.Fatalf("forfeit before the window elapsed")
	}
	clock.advance(time.Second)
	m.Check()
	if !m.Snapshot().Forfeited {
		t.Fatalf("expected forfeit")
	}

	// 不戦敗の後に届いたハートビートでは戻らない
	m.ObserveHeartbeat("p2")
	if !m.Snapshot().OpponentDisconnected {
		t.Fatalf("forfeited opponent should stay disconnected")
	}

	got := drain(m)
	if len(got) != 2 || got[0] != EventOpponentDown || got[1] != EventForfeit {
		t.Fatalf("events = %v", got)
	}
}

func TestMonitor_IgnoresOtherPlayers(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	m := newTestMonitor(t, clock)
	m.Watch("p2")

	m.PeerDown("someone")
	if m.Snapshot().OpponentDisconnected {
		t.Fatalf("down event for another player was applied")
	}
}

func TestMonitor_TransportLifecycle(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	m := newTestMonitor(t, clock)

	m.TransportFailed(errors.New("broken pipe"))
	m.TransportFailed(errors.New("again"))
	if got := m.Snapshot().Status; got != StatusReconnecting {
		t.Fatalf("status = %s", got)
	}
	m.TransportRestored()
	if got := m.Snapshot().Status; got != StatusConnected {
		t.Fatalf("status = %s", got)
	}

	m.TransportFailed(errors.New("broken pipe"))
	clock.advance(31 * time.Second)
	m.Check()
	if got := m.Snapshot().Status; got != StatusOffline {
		t.Fatalf("status = %s", got)
	}

	got := drain(m)
	want := []EventKind{EventLinkDown, EventLinkRestored, EventLinkDown, EventLinkLost}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestMonitor_RunSendsHeartbeats(t *testing.T) {
	m, err := NewMonitor(Config{Interval: 10 * time.Millisecond, Misses: 3, ReconnectWindow: time.Second})
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}

	var mu sync.Mutex
	beats := 0
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			beats++
			if beats == 2 {
				return errors.New("write failed")
			}
			return nil
		})
		close(done)
	}()

	deadline := time.After(time.Second)
	for {
		mu.Lock()
		n := beats
		mu.Unlock()
		if n >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for heartbeats")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancel")
	}
	if got := m.Snapshot().Status; got != StatusReconnecting {
		t.Fatalf("failed beat should mark the link down, status=%s", got)
	}
}

func TestIdleReason_String(t *testing.T) {
	if got := (IdleHeartbeat | IdleSend).String(); got != "heartbeat|send" {
		t.Fatalf("got %q", got)
	}
	if got := IdleDisabled.String(); got != "disabled" {
		t.Fatalf("got %q", got)
	}
}

// --- test doubles ---

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Since(t time.Time) time.Duration {
	return f.Now().Sub(t)
}

func (f *fakeClock) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}
