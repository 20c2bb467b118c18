package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"reflect"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"dosage/game"
	"dosage/internal/loop"
	"dosage/link"
	"dosage/replication"
)

var (
	// ErrInitializationFailed はピアの初期化に失敗した場合に返されるエラーです。
	ErrInitializationFailed = errors.New("failed to initialize peer")
	// ErrLinkLost は再接続の猶予内に接続を取り戻せなかった場合のエラーです。
	ErrLinkLost = errors.New("link lost")
)

type Config struct {
	Role   replication.Role
	Room   replication.Room
	Self   game.PlayerSpec
	Engine *game.Engine
	Dial   Dialer

	// Bot が nil なら操作は Perform で外から与えます。
	Bot game.BotController
	// AutoStart はホストが相手の参加と同時にゲームを始めるかどうかです。
	AutoStart bool
	// Seed が 0 ならランダムに選びます。
	Seed uint64

	RoundDelay   time.Duration
	ShopDuration time.Duration
	BotDelay     time.Duration
	Link         link.Config

	Now    func() time.Time
	Logger *slog.Logger
}

// Peer は1人分のプレイヤーの実行環境です。
// 状態の変更は全て loop のゴルーチン上で行われます。
type Peer struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	loop  *loop.Loop
	sched *loop.Scheduler
	store *game.Store
	rep   *replication.Replicator
	mon   *link.Monitor

	mu sync.Mutex
	ch Channel

	doneOnce sync.Once
	done     chan struct{}
}

func NewPeer(cfg Config) (*Peer, error) {
	if cfg.Engine == nil || cfg.Dial == nil {
		return nil, fmt.Errorf("%w: engine and dialer are required", ErrInitializationFailed)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Seed == 0 {
		cfg.Seed = rand.Uint64()
	}
	if cfg.Link.Logger == nil {
		cfg.Link.Logger = cfg.Logger
	}
	logger := cfg.Logger.With("playerID", cfg.Self.ID, "role", cfg.Role)

	mon, err := link.NewMonitor(cfg.Link)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitializationFailed, err)
	}
	l := loop.New(loop.Config{Logger: logger})
	p := &Peer{
		cfg:    cfg,
		logger: logger,
		now:    cfg.Now,
		loop:   l,
		sched:  loop.NewScheduler(l, logger),
		store:  game.NewStore(cfg.Engine, logger),
		mon:    mon,
		done:   make(chan struct{}),
	}
	rep, err := replication.NewReplicator(replication.Config{
		Role:      cfg.Role,
		Room:      cfg.Room,
		Self:      cfg.Self,
		Store:     p.store,
		Publisher: p,
		Now:       cfg.Now,
		Logger:    cfg.Logger,
		Hooks: replication.Hooks{
			Heartbeat: mon.ObserveHeartbeat,
			PeerDown:  mon.PeerDown,
			PeerBack:  mon.ObserveHeartbeat,
			PeerLeft: func(role replication.Role) {
				logger.Info("opponent left", "leaverRole", role)
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitializationFailed, err)
	}
	p.rep = rep
	p.store.Subscribe(p.logProgress)
	return p, nil
}

// logProgress はラウンドとフェーズの切り替わりを記録します。
func (p *Peer) logProgress(prev, next game.State) {
	switch {
	case next.Round != prev.Round:
		p.logger.Info("round started", "round", next.Round, "pool", len(next.Pool), "phase", next.Phase)
	case next.Phase != prev.Phase:
		p.logger.Debug("phase changed", "from", prev.Phase, "to", next.Phase, "round", next.Round)
	}
}

func (p *Peer) State() game.State {
	return p.store.State()
}

// View は自分から見た状態の射影です。history は末尾 tail 件です。
func (p *Peer) View(tail int) game.Snapshot {
	return p.store.State().Snapshot(p.cfg.Self.ID, tail)
}

// Subscribe は状態が変わるたびに l を呼びます。l はループ上で呼ばれるので短く保ちます。
func (p *Peer) Subscribe(l game.Listener) func() {
	return p.store.Subscribe(l)
}

func (p *Peer) Room() replication.Room {
	return p.rep.Room()
}

func (p *Peer) Link() link.Snapshot {
	return p.mon.Snapshot()
}

// Done はルームが終端状態になると閉じます。
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

// Publish は現在の接続で送信します。失敗した接続は捨てて再接続に回します。
func (p *Peer) Publish(ctx context.Context, env replication.Envelope) error {
	ch := p.channel()
	if ch == nil {
		return replication.ErrLinkDown
	}
	if err := ch.Publish(ctx, env); err != nil {
		p.linkFailed(ctx, ch, err)
		return err
	}
	p.mon.Sent()
	return nil
}

// Perform は外から与えた意図をループ上で適用し、その結果を返します。
func (p *Peer) Perform(ctx context.Context, in game.Intent) error {
	result := make(chan error, 1)
	err := p.submit(ctx, func(ctx context.Context) error {
		result <- p.rep.Perform(ctx, in)
		return nil
	})
	if err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run は接続してルームに参加し、ルームが終わるか ctx がキャンセルされるまで動きます。
func (p *Peer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := p.connect(ctx); err != nil {
		return err
	}
	defer p.closeChannel()

	if err := p.loop.Start(ctx); err != nil {
		return err
	}
	defer func() {
		p.sched.CancelAll()
		if err := p.loop.DrainTimeout(time.Second); err != nil && !errors.Is(err, loop.ErrStopped) {
			p.logger.WarnContext(ctx, "loop did not drain", "err", err)
		}
	}()

	if err := p.submit(ctx, p.rep.Announce); err != nil {
		return err
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return p.receiveLoop(gctx)
	})
	eg.Go(func() error {
		p.mon.Run(gctx, p.rep.Heartbeat)
		return nil
	})
	eg.Go(func() error {
		p.watchLink(gctx)
		return nil
	})
	eg.Go(func() error {
		select {
		case <-p.done:
			cancel()
		case <-gctx.Done():
		}
		return nil
	})
	err := eg.Wait()

	select {
	case <-p.done:
	default:
		if errors.Is(err, ErrLinkLost) {
			break
		}
		// 途中で抜けるときは退出を知らせる
		leaveCtx, leaveCancel := context.WithTimeout(context.Background(), time.Second)
		if lerr := p.rep.Leave(leaveCtx); lerr != nil {
			p.logger.DebugContext(leaveCtx, "leave not delivered", "err", lerr)
		}
		leaveCancel()
	}
	return err
}

func (p *Peer) receiveLoop(ctx context.Context) error {
	for {
		ch := p.channel()
		if ch == nil {
			if err := p.reconnect(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			continue
		}
		env, err := ch.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.linkFailed(ctx, ch, err)
			continue
		}
		if env.PlayerID != "" {
			p.mon.ObserveHeartbeat(env.PlayerID)
		}
		err = p.submit(ctx, func(ctx context.Context) error {
			return p.rep.Handle(ctx, env)
		})
		if err != nil {
			return nil
		}
	}
}

func (p *Peer) watchLink(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.mon.Events():
			if err := p.submit(ctx, func(ctx context.Context) error {
				p.onLinkEvent(ctx, ev)
				return nil
			}); err != nil {
				return
			}
		}
	}
}

func (p *Peer) onLinkEvent(ctx context.Context, ev link.Event) {
	switch ev.Kind {
	case link.EventOpponentDown:
		p.logger.WarnContext(ctx, "opponent disconnected", "opponentID", ev.PlayerID, "reason", ev.Reason)
		// 次のハートビートを待たずに猶予切れを判定する
		p.sched.Arm(ctx, loop.PurposeReconnect, p.cfg.Link.ReconnectWindow, p.then(func(context.Context) error {
			p.mon.Check()
			return nil
		}))
	case link.EventOpponentBack:
		p.sched.Cancel(loop.PurposeReconnect)
		p.logger.InfoContext(ctx, "opponent reconnected", "opponentID", ev.PlayerID)
	case link.EventForfeit:
		p.sched.Cancel(loop.PurposeReconnect)
		p.logger.WarnContext(ctx, "opponent forfeited", "opponentID", ev.PlayerID)
		p.rep.OpponentForfeited(ctx)
	case link.EventLinkDown:
		p.logger.WarnContext(ctx, "link down", "err", ev.Err)
	case link.EventLinkRestored:
		p.logger.InfoContext(ctx, "link restored")
	case link.EventLinkLost:
		p.logger.ErrorContext(ctx, "link lost")
	}
}

// connect は最初の接続です。
func (p *Peer) connect(ctx context.Context) error {
	ch, err := p.dial(ctx)
	if err != nil {
		return err
	}
	p.setChannel(ch)
	return nil
}

// reconnect は猶予内で接続を張り直し、相手に復帰を知らせます。
func (p *Peer) reconnect(ctx context.Context) error {
	ch, err := p.dial(ctx)
	if err != nil {
		return err
	}
	p.setChannel(ch)
	p.mon.TransportRestored()
	p.logger.InfoContext(ctx, "reconnected")
	return p.submit(ctx, p.rep.Reconnected)
}

func (p *Peer) dial(ctx context.Context) (Channel, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	ch, err := backoff.Retry(ctx, func() (Channel, error) {
		return p.cfg.Dial(ctx)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(p.cfg.Link.ReconnectWindow),
		backoff.WithNotify(func(err error, next time.Duration) {
			p.logger.DebugContext(ctx, "dial failed, retrying", "err", err, "retryIn", next)
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrLinkLost, err)
	}
	return ch, nil
}

func (p *Peer) channel() Channel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch
}

func (p *Peer) setChannel(ch Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ch = ch
}

// linkFailed は ch がまだ現在の接続なら捨てます。
func (p *Peer) linkFailed(ctx context.Context, ch Channel, err error) {
	p.mon.TransportFailed(err)
	p.mu.Lock()
	if p.ch != ch {
		p.mu.Unlock()
		return
	}
	p.ch = nil
	p.mu.Unlock()
	if cerr := ch.Close(); cerr != nil {
		p.logger.DebugContext(ctx, "close failed", "err", cerr)
	}
}

func (p *Peer) closeChannel() {
	p.mu.Lock()
	ch := p.ch
	p.ch = nil
	p.mu.Unlock()
	if ch != nil {
		_ = ch.Close()
	}
}

func (p *Peer) submit(ctx context.Context, task loop.Task) error {
	return p.loop.Submit(ctx, p.then(task))
}

// then は task の後に状態を見てタイマーを張り直すタスクを返します。
func (p *Peer) then(task loop.Task) loop.Task {
	return func(ctx context.Context) error {
		err := task(ctx)
		p.react(ctx)
		return err
	}
}

// react は現在の状態に合わせて監視とタイマーを整えます。ループ上でのみ呼ばれます。
func (p *Peer) react(ctx context.Context) {
	room := p.rep.Room()
	if room.Status.Terminal() {
		p.sched.CancelAll()
		p.mon.Unwatch()
		p.doneOnce.Do(func() {
			s := p.store.State()
			p.logger.InfoContext(ctx, "room closed", "status", room.Status, "winner", s.Winner, "round", s.Round)
			close(p.done)
		})
		return
	}

	s := p.store.State()
	opponent := room.HostID
	if p.cfg.Role == replication.RoleHost {
		opponent = room.GuestID
	}
	switch {
	case s.Phase == game.PhaseSetup || s.Phase == game.PhaseEnded || opponent == "":
		p.mon.Unwatch()
	default:
		p.mon.Watch(opponent)
	}

	if p.cfg.Role == replication.RoleHost {
		if p.cfg.AutoStart && room.Status == replication.RoomReady && s.Phase == game.PhaseSetup {
			if err := p.rep.StartGame(ctx, p.cfg.Seed); err != nil {
				p.logger.WarnContext(ctx, "failed to start game", "err", err)
				return
			}
			p.react(ctx)
			return
		}
		p.keepArmed(ctx, loop.PurposeRoundDelay, s.Phase == game.PhaseRoundEnding, p.cfg.RoundDelay, func(ctx context.Context) error {
			return p.rep.Perform(ctx, game.FinishRound{At: p.now()})
		})
		p.keepArmed(ctx, loop.PurposeShop, s.Phase == game.PhaseShopping, p.cfg.ShopDuration, func(ctx context.Context) error {
			return p.rep.Perform(ctx, game.CloseShop{At: p.now()})
		})
	}

	if p.cfg.Bot != nil {
		p.keepArmed(ctx, loop.PurposeBot, p.botMayAct(s), p.cfg.BotDelay, p.botStep)
	}
}

// keepArmed は want の間だけ purpose のタイマーを1つ保ちます。
func (p *Peer) keepArmed(ctx context.Context, purpose loop.Purpose, want bool, delay time.Duration, task loop.Task) {
	switch {
	case !want:
		p.sched.Cancel(purpose)
	case !p.sched.Armed(purpose):
		p.sched.Arm(ctx, purpose, delay, p.then(task))
	}
}

func (p *Peer) botMayAct(s game.State) bool {
	me, ok := s.Player(p.cfg.Self.ID)
	if !ok || me.Eliminated() {
		return false
	}
	switch s.Phase {
	case game.PhaseItemSelection, game.PhasePlaying, game.PhaseShopping:
		return true
	}
	return false
}

// botStep はボットの判断を適用し、受理されなければ無難な手に切り替えます。
func (p *Peer) botStep(ctx context.Context) error {
	s := p.store.State()
	in, ok := p.cfg.Bot.Decide(s, p.cfg.Self.ID, p.now())
	if !ok {
		return nil
	}
	if p.performed(ctx, in) {
		return nil
	}
	if fallback, ok := game.FallbackIntent(s, p.cfg.Self.ID, p.now()); ok {
		p.performed(ctx, fallback)
	}
	return nil
}

func (p *Peer) performed(ctx context.Context, in game.Intent) bool {
	before := p.store.State()
	if err := p.rep.Perform(ctx, in); err != nil {
		p.logger.DebugContext(ctx, "bot intent rejected", "intent", in.IntentName(), "err", err)
		return false
	}
	return !reflect.DeepEqual(before, p.store.State())
}
