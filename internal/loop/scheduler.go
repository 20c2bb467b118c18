package loop

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Purpose はタイマーの用途です。用途ごとに保留中のタイマーは1つだけです。
type Purpose string

const (
	PurposeRoundDelay Purpose = "round_delay"
	PurposeShop       Purpose = "shop"
	PurposeBot        Purpose = "bot"
	PurposeReconnect  Purpose = "reconnect"
)

type timer struct {
	t   *time.Timer
	gen uint64
}

// Scheduler は用途ごとに取り消せる遅延タスクを Loop 上で実行します。
// 取り消しや再設定の後に発火した古いタイマーは何もしません。
type Scheduler struct {
	loop   *Loop
	logger *slog.Logger

	mu     sync.Mutex
	gen    uint64
	timers map[Purpose]timer
}

func NewScheduler(l *Loop, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		loop:   l,
		logger: logger,
		timers: make(map[Purpose]timer),
	}
}

// Arm は purpose のタイマーを delay 後に設定し直します。
func (s *Scheduler) Arm(ctx context.Context, purpose Purpose, delay time.Duration, task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.timers[purpose]; ok {
		old.t.Stop()
	}
	s.gen++
	gen := s.gen
	t := time.AfterFunc(delay, func() {
		err := s.loop.Submit(ctx, func(ctx context.Context) error {
			if !s.take(purpose, gen) {
				return nil
			}
			return task(ctx)
		})
		if err != nil {
			s.logger.DebugContext(ctx, "scheduler: timer dropped", "purpose", purpose, "err", err)
		}
	})
	s.timers[purpose] = timer{t: t, gen: gen}
}

// take は発火したタイマーがまだ有効なら登録を外して true を返します。
func (s *Scheduler) take(purpose Purpose, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.timers[purpose]
	if !ok || cur.gen != gen {
		return false
	}
	delete(s.timers, purpose)
	return true
}

// Armed は purpose のタイマーが保留中かどうかです。
func (s *Scheduler) Armed(purpose Purpose) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[purpose]
	return ok
}

func (s *Scheduler) Cancel(purpose Purpose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.timers[purpose]; ok {
		cur.t.Stop()
		delete(s.timers, purpose)
	}
}

// CancelAll はルームを離れるときや終了時に全てのタイマーを止めます。
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for purpose, cur := range s.timers {
		cur.t.Stop()
		delete(s.timers, purpose)
	}
}

func (s *Scheduler) Pending() []Purpose {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Purpose, 0, len(s.timers))
	for p := range s.timers {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}
