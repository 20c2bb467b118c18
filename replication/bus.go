package replication

import (
	"context"
	"errors"
	"sync"
)

var ErrLinkDown = errors.New("link down")

// LocalBus はプロセス内のルームチャネルです。シミュレーションとテストで使います。
// 送信は JSON を経由するので実際のトランスポートと同じ形で届きます。
type LocalBus struct {
	mu   sync.RWMutex
	subs map[string]chan Envelope
	down map[string]bool
}

func NewLocalBus() *LocalBus {
	return &LocalBus{
		subs: make(map[string]chan Envelope),
		down: make(map[string]bool),
	}
}

// Join は playerID の送信口と受信チャネルを返します。
func (b *LocalBus) Join(playerID string, buffer int) (Publisher, <-chan Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Envelope, buffer)
	if old, ok := b.subs[playerID]; ok {
		close(old)
	}
	b.subs[playerID] = ch
	return busPublisher{bus: b, from: playerID}, ch
}

// Leave は受信チャネルを閉じます。
func (b *LocalBus) Leave(playerID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[playerID]; ok {
		close(ch)
		delete(b.subs, playerID)
	}
}

// SetDown は playerID の送受信を止めます。
func (b *LocalBus) SetDown(playerID string, down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.down[playerID] = down
}

func (b *LocalBus) Down(playerID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.down[playerID]
}

func (b *LocalBus) publish(ctx context.Context, from string, env Envelope) error {
	data, err := Encode(env)
	if err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.down[from] {
		return ErrLinkDown
	}
	for id, ch := range b.subs {
		if id == from || b.down[id] {
			continue
		}
		out, err := Decode(data)
		if err != nil {
			return err
		}
		select {
		case ch <- out:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

type busPublisher struct {
	bus  *LocalBus
	from string
}

func (p busPublisher) Publish(ctx context.Context, env Envelope) error {
	return p.bus.publish(ctx, p.from, env)
}
