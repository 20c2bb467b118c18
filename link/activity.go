package link

import (
	"fmt"
	"sync/atomic"
	"time"
)

// IdleReason はどの経路が沈黙しているかのビット集合です。
type IdleReason uint8

const (
	IdleNone      IdleReason = 0
	IdleHeartbeat IdleReason = 1 << 0 // 相手のハートビートが届かない
	IdleSend      IdleReason = 1 << 1 // 自分が送れていない
	IdleDisabled  IdleReason = 1 << 7 // timeout<=0 のとき
)

func (r IdleReason) Has(x IdleReason) bool { return r&x != 0 }

func (r IdleReason) String() string {
	switch r {
	case IdleNone:
		return "none"
	case IdleDisabled:
		return "disabled"
	case IdleHeartbeat:
		return "heartbeat"
	case IdleSend:
		return "send"
	case IdleHeartbeat | IdleSend:
		return "heartbeat|send"
	}
	return fmt.Sprintf("unknown(%d)", r)
}

// activity は最後に聞こえた時刻と最後に送れた時刻です。
type activity struct {
	lastHeard atomic.Int64
	lastSent  atomic.Int64
}

func (a *activity) reset(now time.Time) {
	a.lastHeard.Store(now.UnixNano())
	a.lastSent.Store(now.UnixNano())
}

func (a *activity) touchHeard(now time.Time) { a.lastHeard.Store(now.UnixNano()) }
func (a *activity) touchSent(now time.Time)  { a.lastSent.Store(now.UnixNano()) }

func (a *activity) heard() time.Time { return time.Unix(0, a.lastHeard.Load()) }

func (a *activity) idle(now time.Time, timeout time.Duration) IdleReason {
	if timeout <= 0 {
		return IdleDisabled
	}
	var reason IdleReason
	if now.Sub(time.Unix(0, a.lastHeard.Load())) > timeout {
		reason |= IdleHeartbeat
	}
	if now.Sub(time.Unix(0, a.lastSent.Load())) > timeout {
		reason |= IdleSend
	}
	return reason
}
