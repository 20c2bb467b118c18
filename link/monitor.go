// Package link は対戦相手との接続を監視します。
// ハートビートの送受信、切断の検知、再接続の猶予と不戦敗の判定を行います。
package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var ErrInvalidConfig = errors.New("invalid link config")

// Status は自分側のトランスポートの状態です。
type Status string

const (
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusOffline      Status = "offline"
)

type EventKind string

const (
	EventOpponentDown EventKind = "opponent_down"
	EventOpponentBack EventKind = "opponent_back"
	EventForfeit      EventKind = "forfeit"
	EventLinkDown     EventKind = "link_down"
	EventLinkRestored EventKind = "link_restored"
	EventLinkLost     EventKind = "link_lost"
)

type Event struct {
	Kind     EventKind
	PlayerID string
	Reason   IdleReason
	Err      error
	At       time.Time
}

type Clock interface {
	Now() time.Time
	Since(time.Time) time.Duration
}

type systemClock struct{}

func (systemClock) Now() time.Time                  { return time.Now() }
func (systemClock) Since(t time.Time) time.Duration { return time.Since(t) }

type Config struct {
	Interval        time.Duration
	Misses          int
	ReconnectWindow time.Duration
	Buffer          int
	Clock           Clock
	Logger          *slog.Logger
}

// Snapshot は表示用の接続状態です。
type Snapshot struct {
	Status               Status
	Opponent             string
	OpponentDisconnected bool
	Remaining            time.Duration
	Forfeited            bool
	Idle                 IdleReason
}

type Monitor struct {
	interval time.Duration
	misses   int
	window   time.Duration
	clock    Clock
	logger   *slog.Logger
	act      activity
	events   chan Event

	mu        sync.Mutex
	opponent  string
	active    bool
	down      bool
	downSince time.Time
	forfeited bool
	status    Status
	failedAt  time.Time
}

func NewMonitor(cfg Config) (*Monitor, error) {
	if cfg.Interval <= 0 || cfg.Misses <= 0 || cfg.ReconnectWindow <= 0 {
		return nil, fmt.Errorf("%w: interval=%s misses=%d window=%s", ErrInvalidConfig, cfg.Interval, cfg.Misses, cfg.ReconnectWindow)
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 16
	}
	m := &Monitor{
		interval: cfg.Interval,
		misses:   cfg.Misses,
		window:   cfg.ReconnectWindow,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		events:   make(chan Event, cfg.Buffer),
		status:   StatusConnected,
	}
	m.act.reset(cfg.Clock.Now())
	return m, nil
}

func (m *Monitor) Events() <-chan Event {
	return m.events
}

// Timeout は相手を切断とみなすまでの沈黙時間です。
func (m *Monitor) Timeout() time.Duration {
	return m.interval * time.Duration(m.misses)
}

// Watch は対局中の相手の監視を始めます。
func (m *Monitor) Watch(opponentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active && m.opponent == opponentID {
		return
	}
	m.opponent = opponentID
	m.active = true
	m.down = false
	m.forfeited = false
	m.act.touchHeard(m.clock.Now())
}

// Unwatch は監視をやめ、切断フラグを消します。
func (m *Monitor) Unwatch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = false
	m.down = false
	m.forfeited = false
}

// ObserveHeartbeat は相手から何かが届いたことを記録します。
func (m *Monitor) ObserveHeartbeat(playerID string) {
	now := m.clock.Now()
	m.mu.Lock()
	if m.opponent != "" && playerID != m.opponent {
		m.mu.Unlock()
		return
	}
	m.act.touchHeard(now)
	back := m.down && !m.forfeited
	if back {
		m.down = false
	}
	m.mu.Unlock()
	if back {
		m.emit(Event{Kind: EventOpponentBack, PlayerID: playerID, At: now})
	}
}

// PeerDown はリレーが報告した相手の切断です。沈黙を待たずに猶予を始めます。
func (m *Monitor) PeerDown(playerID string) {
	now := m.clock.Now()
	m.mu.Lock()
	if !m.active || m.down || m.forfeited || (m.opponent != "" && playerID != m.opponent) {
		m.mu.Unlock()
		return
	}
	m.down = true
	m.downSince = now
	m.mu.Unlock()
	m.emit(Event{Kind: EventOpponentDown, PlayerID: playerID, At: now})
}

// Sent は自分の送信が成功したことを記録します。
func (m *Monitor) Sent() {
	m.act.touchSent(m.clock.Now())
}

// TransportFailed は送受信の失敗を再接続中として扱います。
func (m *Monitor) TransportFailed(err error) {
	now := m.clock.Now()
	m.mu.Lock()
	if m.status != StatusConnected {
		m.mu.Unlock()
		return
	}
	m.status = StatusReconnecting
	m.failedAt = now
	m.mu.Unlock()
	m.logger.Warn("link down", "err", err)
	m.emit(Event{Kind: EventLinkDown, Err: err, At: now})
}

func (m *Monitor) TransportRestored() {
	now := m.clock.Now()
	m.mu.Lock()
	if m.status == StatusConnected {
		m.mu.Unlock()
		return
	}
	m.status = StatusConnected
	m.mu.Unlock()
	m.act.touchSent(now)
	m.emit(Event{Kind: EventLinkRestored, At: now})
}

// Check は沈黙と猶予切れを判定します。ハートビート間隔ごとに呼ばれます。
func (m *Monitor) Check() {
	now := m.clock.Now()
	var out []Event

	m.mu.Lock()
	if m.active && !m.forfeited {
		reason := m.act.idle(now, m.Timeout())
		switch {
		case !m.down && reason.Has(IdleHeartbeat):
			m.down = true
			m.downSince = now
			out = append(out, Event{Kind: EventOpponentDown, PlayerID: m.opponent, Reason: reason, At: now})
		case m.down && m.clock.Since(m.downSince) >= m.window:
			m.forfeited = true
			out = append(out, Event{Kind: EventForfeit, PlayerID: m.opponent, At: now})
		}
	}
	if m.status == StatusReconnecting && m.clock.Since(m.failedAt) >= m.window {
		m.status = StatusOffline
		out = append(out, Event{Kind: EventLinkLost, At: now})
	}
	m.mu.Unlock()

	for _, ev := range out {
		m.emit(ev)
	}
}

func (m *Monitor) Snapshot() Snapshot {
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := Snapshot{
		Status:               m.status,
		Opponent:             m.opponent,
		OpponentDisconnected: m.active && m.down,
		Forfeited:            m.forfeited,
		Idle:                 m.act.idle(now, m.Timeout()),
	}
	if snap.OpponentDisconnected && !m.forfeited {
		snap.Remaining = max(m.window-m.clock.Since(m.downSince), 0)
	}
	return snap
}

// Run はハートビート間隔で beat を呼び、その後に Check します。
// ctxがキャンセルされると終了します。
func (m *Monitor) Run(ctx context.Context, beat func(ctx context.Context) error) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := beat(ctx); err != nil {
				m.TransportFailed(err)
			} else {
				m.Sent()
			}
			m.Check()
		}
	}
}

func (m *Monitor) emit(ev Event) {
	select {
	case m.events <- ev:
		m.logger.Debug("link event", "kind", ev.Kind, "playerID", ev.PlayerID)
	default:
		m.logger.Warn("link: events full, event dropped", "kind", ev.Kind, "playerID", ev.PlayerID)
	}
}
