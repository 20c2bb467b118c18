// Package client はピア1人分の実行環境です。
// ルームのチャネルへの接続、再接続、タイマー、ボットをまとめて動かします。
package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/coder/websocket"

	"dosage/replication"
	adapterwebsocket "dosage/server/adapter/websocket"
	"dosage/server/domain"
)

// Channel はルームのチャネルへの1本の接続です。
type Channel interface {
	Publish(ctx context.Context, env replication.Envelope) error
	Receive(ctx context.Context) (replication.Envelope, error)
	Close() error
}

// Dialer は新しい接続を張ります。再接続のたびに呼ばれます。
type Dialer func(ctx context.Context) (Channel, error)

type transportChannel struct {
	transport domain.Transport
}

func (c *transportChannel) Publish(ctx context.Context, env replication.Envelope) error {
	data, err := replication.Encode(env)
	if err != nil {
		return err
	}
	return c.transport.Write(ctx, data)
}

func (c *transportChannel) Receive(ctx context.Context) (replication.Envelope, error) {
	data, err := c.transport.Read(ctx)
	if err != nil {
		return replication.Envelope{}, err
	}
	return replication.Decode(data)
}

func (c *transportChannel) Close() error {
	return c.transport.Close(int32(websocket.StatusNormalClosure), "bye")
}

// NewTransportChannel は任意のトランスポートをチャネルとして使います。
func NewTransportChannel(t domain.Transport) Channel {
	return &transportChannel{transport: t}
}

// SocketURL はリレーの websocket エンドポイントの URL です。
func SocketURL(relayURL, roomCode, playerID, name string) (string, error) {
	u, err := url.Parse(relayURL)
	if err != nil {
		return "", fmt.Errorf("parse relay url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported relay scheme %q", u.Scheme)
	}
	u.Path = "/ws"
	q := url.Values{}
	q.Set("room", roomCode)
	q.Set("player", playerID)
	q.Set("name", name)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// WebSocketDialer はリレーに websocket で接続します。
func WebSocketDialer(relayURL, roomCode, playerID, name string) (Dialer, error) {
	target, err := SocketURL(relayURL, roomCode, playerID, name)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (Channel, error) {
		t, err := adapterwebsocket.Dial(ctx, target, nil)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", target, err)
		}
		return NewTransportChannel(t), nil
	}, nil
}

type busChannel struct {
	bus   *replication.LocalBus
	id    string
	pub   replication.Publisher
	inbox <-chan replication.Envelope
}

func (c *busChannel) Publish(ctx context.Context, env replication.Envelope) error {
	return c.pub.Publish(ctx, env)
}

func (c *busChannel) Receive(ctx context.Context) (replication.Envelope, error) {
	select {
	case env, ok := <-c.inbox:
		if !ok {
			return replication.Envelope{}, replication.ErrLinkDown
		}
		return env, nil
	case <-ctx.Done():
		return replication.Envelope{}, ctx.Err()
	}
}

func (c *busChannel) Close() error {
	c.bus.Leave(c.id)
	return nil
}

// BusDialer はプロセス内のバスに参加します。
func BusDialer(bus *replication.LocalBus, playerID string) Dialer {
	return func(context.Context) (Channel, error) {
		if bus.Down(playerID) {
			return nil, replication.ErrLinkDown
		}
		pub, inbox := bus.Join(playerID, 256)
		return &busChannel{bus: bus, id: playerID, pub: pub, inbox: inbox}, nil
	}
}
