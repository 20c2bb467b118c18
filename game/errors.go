package game

import (
	"errors"
)

var (
	// ErrInvalidTransition はフェーズ違いや未知のIDに対する意図です。状態は変わりません。
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInventoryFull     = errors.New("inventory full")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownIntent     = errors.New("unknown intent")
)

// Notice はプレイヤーに表示する拒否理由です。
type Notice struct {
	PlayerID string
	Err      error
}

func (n *Notice) Error() string {
	return n.Err.Error()
}

func (n *Notice) Unwrap() error {
	return n.Err
}

func reject(playerID string, err error) error {
	return &Notice{PlayerID: playerID, Err: err}
}

// IsNotice は資源不足による拒否かどうかです。
func IsNotice(err error) bool {
	var n *Notice
	return errors.As(err, &n)
}
