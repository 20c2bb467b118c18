package domain

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Session は1接続の論理的な接続状態を表す構造体です。
// 同じプレイヤーが再接続すると新しい Session になります。
type Session struct {
	ID       string
	PlayerID string
	RoomCode string

	// activity
	lastRead atomic.Int64
	lastPong atomic.Int64

	// lifecycle
	closed atomic.Bool

	now func() time.Time
}

func NewSession(roomCode, playerID string, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	s := &Session{
		ID:       uuid.NewString(),
		PlayerID: playerID,
		RoomCode: roomCode,
		now:      now,
	}
	t := now().UnixNano()
	s.lastRead.Store(t)
	s.lastPong.Store(t)
	return s
}

func (s *Session) TouchRead() {
	s.lastRead.Store(s.now().UnixNano())
}

func (s *Session) TouchPong() {
	s.lastPong.Store(s.now().UnixNano())
}

func (s *Session) Close() bool {
	return s.closed.CompareAndSwap(false, true)
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// IsIdle は読み込みと pong の両方が timeout を超えて途絶えているかを返します。
// ピアのハートビートか websocket の pong のどちらかが届いていれば生きています。
func (s *Session) IsIdle(timeout time.Duration) (bool, IdleReason) {
	if timeout <= 0 {
		return false, IdleDisabled
	}
	var reason IdleReason
	if s.isIdleSince(s.lastRead.Load(), timeout) {
		reason |= IdleRead
	}
	if s.isIdleSince(s.lastPong.Load(), timeout) {
		reason |= IdlePong
	}
	return reason.Has(IdleRead) && reason.Has(IdlePong), reason
}

func (s *Session) isIdleSince(nano int64, timeout time.Duration) bool {
	return s.now().Sub(time.Unix(0, nano)) > timeout
}
