package replication

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"dosage/game"
)

//go:generate go tool mockgen -destination=./mocks/publisher_mock.go -package=mocks . Publisher

// Publisher はルームのチャネルにイベントを送ります。
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// Hooks は接続状態に関わるイベントの通知先です。nil のものは呼ばれません。
type Hooks struct {
	Heartbeat     func(playerID string)
	PeerDown      func(playerID string)
	PeerBack      func(playerID string)
	PeerLeft      func(role Role)
	RoomChanged   func(room Room)
	PublishFailed func(err error)
}

type Config struct {
	Role      Role
	Room      Room
	Self      game.PlayerSpec
	Store     *game.Store
	Publisher Publisher
	Now       func() time.Time
	Logger    *slog.Logger
	Hooks     Hooks
}

// Replicator は1つのピアの同期プロトコルです。
// ホストは正本を持ち派生状態を再配信し、ゲストはイベントを再適用するレプリカです。
type Replicator struct {
	role   Role
	self   game.PlayerSpec
	store  *game.Store
	pub    Publisher
	now    func() time.Time
	logger *slog.Logger
	tracer trace.Tracer
	hooks  Hooks

	seq        atomic.Uint64
	lastRemote atomic.Uint64

	mu       sync.Mutex
	room     Room
	opponent game.PlayerSpec
}

func NewReplicator(cfg Config) (*Replicator, error) {
	if cfg.Store == nil || cfg.Publisher == nil {
		return nil, fmt.Errorf("%w: store and publisher are required", ErrInitialization)
	}
	if cfg.Self.ID == "" {
		return nil, fmt.Errorf("%w: player id is required", ErrInitialization)
	}
	if cfg.Role != RoleHost && cfg.Role != RoleGuest {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInitialization, cfg.Role)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	room := cfg.Room
	if room.CreatedAt.IsZero() {
		room.CreatedAt = cfg.Now()
	}
	if room.Status == "" {
		room.Status = RoomWaiting
	}
	if cfg.Role == RoleHost {
		room.HostID, room.HostName = cfg.Self.ID, cfg.Self.Name
	} else {
		room.GuestID, room.GuestName = cfg.Self.ID, cfg.Self.Name
	}
	return &Replicator{
		role:   cfg.Role,
		self:   cfg.Self,
		store:  cfg.Store,
		pub:    cfg.Publisher,
		now:    cfg.Now,
		logger: cfg.Logger.With("roomCode", room.Code, "playerID", cfg.Self.ID, "role", cfg.Role),
		tracer: otel.Tracer("dosage/replication"),
		hooks:  cfg.Hooks,
		room:   room,
	}, nil
}

func (r *Replicator) Role() Role {
	return r.role
}

func (r *Replicator) Self() game.PlayerSpec {
	return r.self
}

func (r *Replicator) Room() Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.room
}

// Sequence は最後に送ったイベントの番号です。
func (r *Replicator) Sequence() uint64 {
	return r.seq.Load()
}

// Announce はルームへの参加を知らせます。ホストは room_created、ゲストは player_joined です。
func (r *Replicator) Announce(ctx context.Context) error {
	if r.role == RoleHost {
		return r.publish(ctx, EventRoomCreated, r.roomPayload())
	}
	return r.publish(ctx, EventPlayerJoined, PlayerJoinedPayload{Name: r.self.Name, IsAI: r.self.IsAI})
}

// StartGame はホストがゲームを開始します。相手が揃っている必要があります。
func (r *Replicator) StartGame(ctx context.Context, seed uint64) error {
	if r.role != RoleHost {
		return ErrNotHost
	}
	r.mu.Lock()
	room, opponent := r.room, r.opponent
	r.mu.Unlock()
	if room.Status != RoomReady || opponent.ID == "" {
		return fmt.Errorf("%w: status %s", ErrRoomNotReady, room.Status)
	}
	return r.Perform(ctx, game.StartGame{
		Players: []game.PlayerSpec{r.self, opponent},
		Seed:    seed,
		At:      r.now(),
	})
}

// Perform はローカルの意図を適用し、受理されたらイベントとして中継します。
// 不正な遷移は何もせず nil を返し、資源不足は *game.Notice を返します。
func (r *Replicator) Perform(ctx context.Context, in game.Intent) error {
	ctx, span := r.tracer.Start(ctx, "replication.Perform", trace.WithAttributes(
		attribute.String("intent", in.IntentName()),
		attribute.String("role", string(r.role)),
	))
	defer span.End()

	switch in.(type) {
	case game.StartGame, game.FinishRound, game.CloseShop, game.ResetRound, game.RoundReset:
		if r.role != RoleHost {
			return ErrNotHost
		}
	}

	prev := r.store.State()
	applied, err := r.store.Dispatch(ctx, in)
	if err != nil || !applied {
		return err
	}
	next := r.store.State()

	if t, payload, ok := eventFor(in, prev, next); ok {
		r.publishQuiet(ctx, t, payload)
	}
	switch in.(type) {
	case game.FinishRound, game.CloseShop, game.ResetRound:
		// タイマー由来の遷移はゲストが計算できないので派生状態を配る
		if next.Phase != game.PhaseEnded {
			r.publishQuiet(ctx, EventRoundReset, RoundResetPayload{Reset: game.RoundResetFrom(next)})
		}
	}
	r.afterApply(ctx, prev, next)
	return nil
}

// Handle は相手から届いたイベントを適用します。
func (r *Replicator) Handle(ctx context.Context, env Envelope) error {
	if env.PlayerID == r.self.ID {
		return nil
	}
	ctx, span := r.tracer.Start(ctx, "replication.Handle", trace.WithAttributes(
		attribute.String("event", string(env.Type)),
		attribute.Int64("sequence", int64(env.Sequence)),
	))
	defer span.End()

	room := r.Room()
	if env.RoomID != "" && room.Code != "" && env.RoomID != room.Code {
		r.logger.DebugContext(ctx, "envelope for another room", "event", env.Type, "roomID", env.RoomID)
		return nil
	}
	if env.PlayerID != "" {
		if last := r.lastRemote.Swap(env.Sequence); env.Sequence <= last {
			r.logger.DebugContext(ctx, "out of order envelope", "event", env.Type, "sequence", env.Sequence, "last", last)
		}
	}

	switch env.Type {
	case EventHeartbeat:
		if r.hooks.Heartbeat != nil {
			r.hooks.Heartbeat(env.PlayerID)
		}
		return nil
	case EventRoomCreated:
		return r.onRoomCreated(ctx, env)
	case EventPlayerJoined:
		return r.onPlayerJoined(ctx, env)
	case EventPlayerLeft:
		p, err := DecodePayload[PlayerLeftPayload](env)
		if err != nil {
			return err
		}
		r.applyDeparture(ctx, p.Role)
		return nil
	case EventPlayerDisconnected:
		id := linkTarget(env)
		if r.hooks.PeerDown != nil {
			r.hooks.PeerDown(id)
		}
		return nil
	case EventPlayerReconnected:
		id := linkTarget(env)
		if r.hooks.PeerBack != nil {
			r.hooks.PeerBack(id)
		}
		if r.role == RoleHost {
			return r.SyncState(ctx)
		}
		return nil
	case EventStateSync:
		if r.role != RoleGuest {
			return nil
		}
		p, err := DecodePayload[StateSyncPayload](env)
		if err != nil {
			return err
		}
		prev := r.store.State()
		r.store.Replace(ctx, p.State)
		r.afterApply(ctx, prev, p.State)
		return nil
	case EventGameEnded:
		r.setStatus(RoomFinished)
		return nil
	}

	in, err := intentFor(env)
	if err != nil {
		return err
	}
	if r.role == RoleHost {
		switch in.(type) {
		case game.StartGame, game.RoundReset:
			r.logger.WarnContext(ctx, "guest sent host-only event", "event", env.Type)
			return nil
		}
	}
	prev := r.store.State()
	applied, err := r.store.Dispatch(ctx, in)
	if err != nil {
		// 相手側で受理された購入がこちらで拒否された場合は同期ずれ
		r.logger.WarnContext(ctx, "remote intent rejected", "event", env.Type, "err", err)
		return nil
	}
	if !applied {
		return nil
	}
	r.afterApply(ctx, prev, r.store.State())
	return nil
}

// SyncState はホストが現在の状態を丸ごと送ります。
func (r *Replicator) SyncState(ctx context.Context) error {
	if r.role != RoleHost {
		return ErrNotHost
	}
	return r.publish(ctx, EventStateSync, StateSyncPayload{State: r.store.State()})
}

func (r *Replicator) Heartbeat(ctx context.Context) error {
	return r.publish(ctx, EventHeartbeat, nil)
}

// Reconnected は自分のトランスポートが復旧したことを知らせます。
func (r *Replicator) Reconnected(ctx context.Context) error {
	if err := r.publish(ctx, EventPlayerReconnected, LinkPayload{PlayerID: r.self.ID}); err != nil {
		return err
	}
	if r.role == RoleHost {
		return r.SyncState(ctx)
	}
	return nil
}

// Leave は自発的な退出を役割つきで知らせます。
func (r *Replicator) Leave(ctx context.Context) error {
	err := r.publish(ctx, EventPlayerLeft, PlayerLeftPayload{Role: r.role})
	r.setStatus(RoomAbandoned)
	return err
}

// OpponentForfeited は再接続猶予が切れた相手を退出扱いにします。
func (r *Replicator) OpponentForfeited(ctx context.Context) {
	if r.role == RoleHost {
		r.applyDeparture(ctx, RoleGuest)
		return
	}
	r.applyDeparture(ctx, RoleHost)
}

func (r *Replicator) onRoomCreated(ctx context.Context, env Envelope) error {
	p, err := DecodePayload[RoomCreatedPayload](env)
	if err != nil {
		return err
	}
	if r.role != RoleGuest {
		return nil
	}
	if p.GuestID == "" {
		// ホストが参加前に届いた player_joined を取りこぼしているので送り直す
		r.logger.DebugContext(ctx, "host has no guest yet, announcing again", "hostID", p.HostID)
		return r.Announce(ctx)
	}
	r.mu.Lock()
	r.room.HostID, r.room.HostName = p.HostID, p.HostName
	r.opponent = game.PlayerSpec{ID: p.HostID, Name: p.HostName}
	if p.GuestID == r.self.ID && !r.room.Status.Terminal() {
		switch p.Status {
		case RoomPlaying, RoomFinished:
			r.room.Status = p.Status
		default:
			r.room.Status = RoomReady
		}
	}
	room := r.room
	r.mu.Unlock()
	r.logger.InfoContext(ctx, "joined room", "hostID", p.HostID, "status", room.Status)
	if r.hooks.RoomChanged != nil {
		r.hooks.RoomChanged(room)
	}
	return nil
}

func (r *Replicator) onPlayerJoined(ctx context.Context, env Envelope) error {
	p, err := DecodePayload[PlayerJoinedPayload](env)
	if err != nil {
		return err
	}
	if r.role != RoleHost {
		return nil
	}
	r.mu.Lock()
	if r.room.GuestID != "" && r.room.GuestID != env.PlayerID {
		r.mu.Unlock()
		r.logger.WarnContext(ctx, "room already has a guest", "joinerID", env.PlayerID)
		return nil
	}
	r.room.GuestID, r.room.GuestName = env.PlayerID, p.Name
	r.opponent = game.PlayerSpec{ID: env.PlayerID, Name: p.Name, IsAI: p.IsAI}
	if r.room.Status == RoomWaiting {
		r.room.Status = RoomReady
	}
	room := r.room
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "guest joined", "guestID", env.PlayerID, "guestName", p.Name)
	if r.hooks.RoomChanged != nil {
		r.hooks.RoomChanged(room)
	}
	if err := r.publish(ctx, EventRoomCreated, r.roomPayload()); err != nil {
		return err
	}
	// 進行中に戻ってきたゲストには全状態を送る
	if r.store.State().Phase != game.PhaseSetup {
		return r.SyncState(ctx)
	}
	return nil
}

func (r *Replicator) applyDeparture(ctx context.Context, role Role) {
	r.logger.InfoContext(ctx, "player left", "leaverRole", role)
	switch {
	case role == RoleHost && r.role == RoleGuest:
		r.setStatus(RoomAbandoned)
	case role == RoleGuest && r.role == RoleHost:
		r.mu.Lock()
		r.room.GuestID, r.room.GuestName = "", ""
		r.opponent = game.PlayerSpec{}
		r.room.Status = RoomWaiting
		room := r.room
		r.mu.Unlock()
		r.store.Replace(ctx, game.NewState())
		if r.hooks.RoomChanged != nil {
			r.hooks.RoomChanged(room)
		}
	default:
		return
	}
	if r.hooks.PeerLeft != nil {
		r.hooks.PeerLeft(role)
	}
}

// afterApply はフェーズの変化からルーム状態を更新し、ホストなら終了を配信します。
func (r *Replicator) afterApply(ctx context.Context, prev, next game.State) {
	switch {
	case next.Phase == game.PhaseEnded && prev.Phase != game.PhaseEnded:
		r.setStatus(RoomFinished)
		if r.role == RoleHost {
			r.publishQuiet(ctx, EventGameEnded, GameEndedPayload{WinnerID: next.Winner, Round: next.Round})
		}
	case next.Phase == game.PhaseSetup && prev.Phase != game.PhaseSetup:
		r.mu.Lock()
		if r.room.Status == RoomPlaying || r.room.Status == RoomFinished {
			r.room.Status = RoomReady
		}
		r.mu.Unlock()
	case next.Phase != game.PhaseSetup && next.Phase != game.PhaseEnded:
		r.setStatus(RoomPlaying)
	}
}

func (r *Replicator) setStatus(status RoomStatus) {
	r.mu.Lock()
	if r.room.Status == status || (r.room.Status == RoomAbandoned && status != RoomAbandoned) {
		r.mu.Unlock()
		return
	}
	r.room.Status = status
	room := r.room
	r.mu.Unlock()
	if r.hooks.RoomChanged != nil {
		r.hooks.RoomChanged(room)
	}
}

func (r *Replicator) roomPayload() RoomCreatedPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomCreatedPayload{
		Code:      r.room.Code,
		Status:    r.room.Status,
		HostID:    r.room.HostID,
		HostName:  r.room.HostName,
		GuestID:   r.room.GuestID,
		GuestName: r.room.GuestName,
	}
}

func (r *Replicator) publish(ctx context.Context, t EventType, payload any) error {
	env, err := NewEnvelope(t, r.Room().Code, r.self.ID, r.seq.Add(1), r.now(), payload)
	if err != nil {
		return err
	}
	if err := r.pub.Publish(ctx, env); err != nil {
		r.logger.WarnContext(ctx, "publish failed", "event", t, "err", err)
		if r.hooks.PublishFailed != nil {
			r.hooks.PublishFailed(err)
		}
		return fmt.Errorf("publish %s: %w", t, err)
	}
	return nil
}

// publishQuiet は送信失敗を接続状態の変化としてだけ扱います。
func (r *Replicator) publishQuiet(ctx context.Context, t EventType, payload any) {
	_ = r.publish(ctx, t, payload)
}

func linkTarget(env Envelope) string {
	if p, err := DecodePayload[LinkPayload](env); err == nil && p.PlayerID != "" {
		return p.PlayerID
	}
	return env.PlayerID
}
