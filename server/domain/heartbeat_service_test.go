package domain_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	domain "dosage/server/domain"
)

type fakePinger struct {
	calls atomic.Int32
	err   error
}

func (f *fakePinger) Ping(context.Context) error {
	f.calls.Add(1)
	return f.err
}

func TestHeartbeatService_PingsOnInterval(t *testing.T) {
	session := domain.NewSession("ABCDEF", "p1", nil)
	pinger := &fakePinger{}

	hb := domain.NewHeartbeatService(10*time.Millisecond, session, pinger)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	go hb.Run(ctx)

	deadline := time.After(time.Second)
	for pinger.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for ping")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestHeartbeatService_StopsOnContextCancel(t *testing.T) {
	session := domain.NewSession("ABCDEF", "p1", nil)
	hb := domain.NewHeartbeatService(50*time.Millisecond, session, &fakePinger{})

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		hb.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
		// 正常終了
	case <-time.After(1 * time.Second):
		t.Fatal("HeartbeatService did not stop after context cancel")
	}
}

func TestHeartbeatService_FailedPingDoesNotTouch(t *testing.T) {
	now := time.Unix(1000, 0)
	var clock atomic.Int64
	clock.Store(now.UnixNano())
	session := domain.NewSession("ABCDEF", "p1", func() time.Time { return time.Unix(0, clock.Load()) })
	pinger := &fakePinger{err: errors.New("closed")}

	hb := domain.NewHeartbeatService(10*time.Millisecond, session, pinger)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	clock.Store(now.Add(time.Minute).UnixNano())
	hb.Run(ctx)

	if pinger.calls.Load() == 0 {
		t.Fatal("expected ping attempts")
	}
	if idle, _ := session.IsIdle(30 * time.Second); !idle {
		t.Fatal("failed pings should not keep the session alive")
	}
}

func TestHeartbeatService_StopsWhenSessionCloses(t *testing.T) {
	session := domain.NewSession("ABCDEF", "p1", nil)
	pinger := &fakePinger{}
	hb := domain.NewHeartbeatService(5*time.Millisecond, session, pinger)
	session.Close()

	done := make(chan struct{})
	go func() {
		hb.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("HeartbeatService kept running after session close")
	}
	if n := pinger.calls.Load(); n != 0 {
		t.Fatalf("pinged a closed session %d times", n)
	}
}
