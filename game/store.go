package game

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Listener は状態が変わるたびに呼ばれます。ロックの外で呼ばれます。
type Listener func(prev, next State)

// Store は最新の状態を保持し購読者に通知するだけのコンテナです。
// 遷移そのものは Engine が行います。
type Store struct {
	engine *Engine
	logger *slog.Logger
	tracer trace.Tracer

	mu        sync.RWMutex
	state     State
	listeners map[int]Listener
	nextID    int
}

func NewStore(engine *Engine, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		engine:    engine,
		logger:    logger,
		tracer:    otel.Tracer("dosage/game"),
		state:     NewState(),
		listeners: make(map[int]Listener),
	}
}

func (st *Store) Engine() *Engine {
	return st.engine
}

// State は現在の状態のコピーです。
func (st *Store) State() State {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.state.Clone()
}

// Dispatch は in を適用します。
// 不正な遷移は何もせず (false, nil) を返し、資源不足は *Notice を返します。
func (st *Store) Dispatch(ctx context.Context, in Intent) (bool, error) {
	ctx, span := st.tracer.Start(ctx, "game.Dispatch", trace.WithAttributes(
		attribute.String("intent", in.IntentName()),
	))
	defer span.End()

	st.mu.Lock()
	prev := st.state
	next, err := st.engine.Reduce(prev, in)
	if err == nil {
		st.state = next
	}
	listeners := st.snapshotListeners()
	st.mu.Unlock()

	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			st.logger.DebugContext(ctx, "intent ignored", "intent", in.IntentName(), "err", err)
			return false, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		st.logger.InfoContext(ctx, "intent rejected", "intent", in.IntentName(), "err", err)
		return false, err
	}
	span.SetAttributes(attribute.String("phase", string(next.Phase)), attribute.Int("round", next.Round))
	notify(listeners, prev, next)
	return true, nil
}

// Replace は状態を丸ごと置き換えます。ゲストの state_sync 用です。
func (st *Store) Replace(ctx context.Context, s State) {
	st.mu.Lock()
	prev := st.state
	st.state = s.Clone()
	next := st.state
	listeners := st.snapshotListeners()
	st.mu.Unlock()

	st.logger.DebugContext(ctx, "state replaced", "phase", next.Phase, "round", next.Round)
	notify(listeners, prev, next)
}

// Subscribe は解除関数を返します。
func (st *Store) Subscribe(l Listener) func() {
	st.mu.Lock()
	defer st.mu.Unlock()
	id := st.nextID
	st.nextID++
	st.listeners[id] = l
	return func() {
		st.mu.Lock()
		defer st.mu.Unlock()
		delete(st.listeners, id)
	}
}

func (st *Store) snapshotListeners() []Listener {
	out := make([]Listener, 0, len(st.listeners))
	for i := 0; i < st.nextID; i++ {
		if l, ok := st.listeners[i]; ok {
			out = append(out, l)
		}
	}
	return out
}

func notify(listeners []Listener, prev, next State) {
	for _, l := range listeners {
		l(prev.Clone(), next.Clone())
	}
}
