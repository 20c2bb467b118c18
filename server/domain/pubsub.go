package domain

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

//go:generate go tool mockgen -destination=./mocks/pubsub_mock.go -package=mocks . PubSub

// Topic はルームごとのチャネル名です。
type Topic string

func RoomTopic(code string) Topic {
	return Topic("room:" + code)
}

// Message はトピックに流れるフレームです。From は送信者のプレイヤーIDで、リレー自身なら空です。
type Message struct {
	From string
	Data []byte
}

type PubSub interface {
	Publish(ctx context.Context, topic Topic, msg Message)
	Subscribe(topic Topic) <-chan Message
	Unsubscribe(topic Topic, ch <-chan Message)
}

// SimplePubSub はプロセス内のトピック配送です。遅い購読者への配送は落とします。
type SimplePubSub struct {
	mu     sync.RWMutex
	subs   map[Topic][]chan Message
	buffer int
}

func NewSimplePubSub(buffer int) *SimplePubSub {
	if buffer <= 0 {
		buffer = 256
	}
	return &SimplePubSub{
		subs:   make(map[Topic][]chan Message),
		buffer: buffer,
	}
}

func (p *SimplePubSub) Publish(ctx context.Context, topic Topic, msg Message) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, ch := range p.subs[topic] {
		select {
		case ch <- msg:
		default:
			slog.WarnContext(ctx, "pubsub: subscriber full, message dropped", "topic", topic, "from", msg.From)
		}
	}
}

func (p *SimplePubSub) Subscribe(topic Topic) <-chan Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan Message, p.buffer)
	p.subs[topic] = append(p.subs[topic], ch)
	return ch
}

func (p *SimplePubSub) Unsubscribe(topic Topic, ch <-chan Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	subs := p.subs[topic]
	for i, c := range subs {
		if c == ch {
			close(c)
			subs = slices.Delete(subs, i, i+1)
			break
		}
	}
	if len(subs) == 0 {
		delete(p.subs, topic)
		return
	}
	p.subs[topic] = subs
}
