package domain

import (
	"context"
	"log/slog"
	"time"
)

// Pinger は websocket の ping を送れる接続です。
type Pinger interface {
	Ping(ctx context.Context) error
}

// HeartbeatService はリレーから各ソケットに ping を送り、応答をセッションに記録します。
// 応答のないソケットはセッションの pong が古くなり、オーナーループがアイドルとして閉じます。
type HeartbeatService struct {
	interval time.Duration
	session  *Session
	conn     Pinger
	failures int
}

func NewHeartbeatService(interval time.Duration, session *Session, conn Pinger) *HeartbeatService {
	return &HeartbeatService{interval: interval, session: session, conn: conn}
}

// Run はセッションが閉じるか ctx が終わるまで ping を続けます。
func (h *HeartbeatService) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if h.session.IsClosed() {
			return
		}
		if err := h.ping(ctx); err != nil {
			h.failures++
			level := slog.LevelDebug
			if h.failures == 3 {
				level = slog.LevelWarn
			}
			slog.Log(ctx, level, "ping failed", "sessionID", h.session.ID, "playerID", h.session.PlayerID, "failures", h.failures, "err", err)
			continue
		}
		h.failures = 0
		h.session.TouchPong()
	}
}

func (h *HeartbeatService) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, h.interval)
	defer cancel()
	return h.conn.Ping(ctx)
}
