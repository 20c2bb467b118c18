package domain

import "context"

// Connection は1人のプレイヤーの物理的な接続を表します。
type Connection struct {
	PlayerID  string
	transport Transport
}

func NewConnection(playerID string, transport Transport) *Connection {
	return &Connection{
		PlayerID:  playerID,
		transport: transport,
	}
}

func (c *Connection) Write(ctx context.Context, data []byte) error {
	return c.transport.Write(ctx, data)
}

func (c *Connection) Read(ctx context.Context) ([]byte, error) {
	return c.transport.Read(ctx)
}

func (c *Connection) Ping(ctx context.Context) error {
	return c.transport.Ping(ctx)
}

func (c *Connection) Close(reason string) {
	_ = c.transport.Close(1000, reason)
}
