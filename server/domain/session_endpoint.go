package domain

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"dosage/replication"
)

var (
	// ErrBackpressure は書き込みチャネルが満杯の場合に返されるエラーです。
	ErrBackpressure = errors.New("write channel is full, apply backpressure")
	// ErrInitializationFailed はセッションエンドポイントの初期化に失敗した場合に返されるエラーです。
	ErrInitializationFailed = errors.New("failed to initialize session endpoint")
)

type EndpointConfig struct {
	IdleTimeout  time.Duration
	PingInterval time.Duration
	Now          func() time.Time
}

// SessionEndpoint は1本の websocket をルームのトピックにつなぎます。
// 受信したエンベロープは送信者とルームを確定させてから他のメンバーに配られます。
type SessionEndpoint struct {
	ctx    context.Context
	cancel context.CancelFunc

	session    *Session
	connection *Connection
	pubsub     PubSub
	hub        *Hub
	rejoined   bool
	cfg        EndpointConfig

	ctrlCh  chan endpointEvent // 制御用チャネル
	writeCh chan []byte        // 書き込み用チャネル

	// lifecycle
	closed atomic.Bool
}

func NewSessionEndpoint(session *Session, connection *Connection, pubsub PubSub, hub *Hub, rejoined bool, cfg EndpointConfig) (*SessionEndpoint, error) {
	if session == nil {
		return nil, ErrInitializationFailed
	}
	if connection == nil {
		return nil, ErrInitializationFailed
	}
	if pubsub == nil {
		return nil, ErrInitializationFailed
	}
	if hub == nil {
		return nil, ErrInitializationFailed
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 10 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	se := &SessionEndpoint{
		ctx:        ctx,
		cancel:     cancel,
		session:    session,
		connection: connection,
		pubsub:     pubsub,
		hub:        hub,
		rejoined:   rejoined,
		cfg:        cfg,
		ctrlCh:     make(chan endpointEvent, 16),
		writeCh:    make(chan []byte, 1024),
	}
	return se, nil
}

func (se *SessionEndpoint) Run() error {
	topic := RoomTopic(se.session.RoomCode)
	msgCh := se.pubsub.Subscribe(topic)
	defer se.pubsub.Unsubscribe(topic, msgCh)
	defer se.announceDisconnect()

	if se.rejoined {
		se.announceLink(se.ctx, replication.EventPlayerReconnected)
	}

	heartbeat := NewHeartbeatService(se.cfg.PingInterval, se.session, se.connection)

	eg, ctx := errgroup.WithContext(se.ctx)
	eg.Go(func() error {
		se.ownerLoop(ctx)
		return nil
	})
	eg.Go(func() error {
		se.readLoop(ctx)
		return nil
	})
	eg.Go(func() error {
		se.writeLoop(ctx)
		return nil
	})
	eg.Go(func() error {
		se.subscribeLoop(ctx, msgCh)
		return nil
	})
	eg.Go(func() error {
		heartbeat.Run(ctx)
		return nil
	})

	return eg.Wait()
}

func (se *SessionEndpoint) Send(data []byte) error {
	select {
	case se.writeCh <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

func (se *SessionEndpoint) Close(ctx context.Context) {
	se.sendCtrlEvent(ctx, endpointEvent{kind: evClose, err: nil})
}

func (se *SessionEndpoint) ForceClose() {
	se.close("force close")
}

// ownerLoop は論理セッションの状態を監視し、必要に応じて接続の管理を行います。
func (se *SessionEndpoint) ownerLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-se.ctrlCh:
			se.handleControlEvent(ctx, ev)
		case <-ticker.C:
			ok, reason := se.session.IsIdle(se.cfg.IdleTimeout)
			if ok {
				se.handleControlEvent(ctx, endpointEvent{
					kind: evClose,
					err:  errors.New(reason.String()),
				})
			}
		}
	}
}

func (se *SessionEndpoint) readLoop(ctx context.Context) {
	for {
		data, err := se.connection.Read(ctx)
		if err != nil {
			se.sendCtrlEvent(ctx, endpointEvent{kind: evReadError, err: err})
			return
		}
		se.session.TouchRead()
		se.handleData(ctx, data)
	}
}

func (se *SessionEndpoint) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-se.writeCh:
			if err := se.connection.Write(ctx, data); err != nil {
				se.sendCtrlEvent(ctx, endpointEvent{kind: evWriteError, err: err})
				return
			}
		}
	}
}

// subscribeLoop はルームのトピックから他のメンバーのフレームをwriteChに転送します。
func (se *SessionEndpoint) subscribeLoop(ctx context.Context, msgCh <-chan Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			if msg.From == se.session.PlayerID {
				continue
			}
			select {
			case se.writeCh <- msg.Data:
			default:
				slog.WarnContext(ctx, "subscribeLoop: writeCh full, message dropped", "sessionID", se.session.ID)
			}
		}
	}
}

func (se *SessionEndpoint) close(reason string) {
	if !se.closed.CompareAndSwap(false, true) {
		return
	}
	se.cancel()
	se.session.Close()
	se.connection.Close(reason)
}

func (se *SessionEndpoint) handleData(ctx context.Context, data []byte) {
	env, err := replication.Decode(data)
	if err != nil {
		slog.WarnContext(ctx, "failed to decode envelope", "sessionID", se.session.ID, "err", err)
		return
	}
	// 送信者とルームはリレーが確定させる
	env.PlayerID = se.session.PlayerID
	env.RoomID = se.session.RoomCode
	out, err := replication.Encode(env)
	if err != nil {
		slog.WarnContext(ctx, "failed to encode envelope", "err", err)
		return
	}

	switch env.Type {
	case replication.EventPlayerLeft:
		se.hub.Leave(ctx, se.session.RoomCode, se.session.PlayerID)
	case replication.EventPlayerDisconnected, replication.EventPlayerReconnected:
		// 接続状態はリレーだけが告げる
		slog.DebugContext(ctx, "dropping client link event", "event", env.Type, "playerID", env.PlayerID)
		return
	}
	se.hub.Observe(ctx, se.session.RoomCode, env)
	se.pubsub.Publish(ctx, RoomTopic(se.session.RoomCode), Message{From: se.session.PlayerID, Data: out})
}

// handleControlEvent は制御チャネルからのイベントを処理し論理セッションの状態を更新する唯一の関数です。
func (se *SessionEndpoint) handleControlEvent(ctx context.Context, ev endpointEvent) {
	switch ev.kind {
	case evClose:
		reason := "closed"
		if ev.err != nil {
			reason = "idle: " + ev.err.Error()
			slog.InfoContext(ctx, "closing idle session", "sessionID", se.session.ID, "playerID", se.session.PlayerID, "reason", ev.err)
		}
		se.close(reason)
	case evReadError, evWriteError:
		slog.DebugContext(ctx, "connection error", "sessionID", se.session.ID, "kind", ev.kind, "err", ev.err)
		se.close("connection error")
	default:
		slog.WarnContext(ctx, "unknown endpoint event kind", "kind", ev.kind)
	}
}

func (se *SessionEndpoint) sendCtrlEvent(ctx context.Context, ev endpointEvent) {
	select {
	case se.ctrlCh <- ev:
	case <-ctx.Done():
	}
}

func (se *SessionEndpoint) announceDisconnect() {
	if se.hub.Disconnect(context.Background(), se.session.RoomCode, se.session.PlayerID, se.session.ID) {
		se.announceLink(context.Background(), replication.EventPlayerDisconnected)
	}
}

// announceLink はリレー発の接続状態イベントを同じルームに流します。
func (se *SessionEndpoint) announceLink(ctx context.Context, t replication.EventType) {
	env, err := replication.NewEnvelope(t, se.session.RoomCode, "", 0, se.cfg.Now(), replication.LinkPayload{PlayerID: se.session.PlayerID})
	if err != nil {
		slog.WarnContext(ctx, "failed to build link event", "event", t, "err", err)
		return
	}
	data, err := replication.Encode(env)
	if err != nil {
		return
	}
	se.pubsub.Publish(ctx, RoomTopic(se.session.RoomCode), Message{From: se.session.PlayerID, Data: data})
}
