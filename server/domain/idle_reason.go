package domain

import "fmt"

// IdleReason はリレーのソケットで沈黙している経路のビット集合です。
// String の結果はそのままクローズ理由に使われます。
type IdleReason uint8

const (
	IdleNone     IdleReason = 0
	IdleRead     IdleReason = 1 << 0 // クライアントからフレームが来ない
	IdlePong     IdleReason = 1 << 1 // ping に応答がない
	IdleDisabled IdleReason = 1 << 7
)

func (r IdleReason) Has(x IdleReason) bool { return r&x != 0 }

func (r IdleReason) String() string {
	switch r {
	case IdleNone:
		return "none"
	case IdleDisabled:
		return "disabled"
	case IdleRead:
		return "no frames"
	case IdlePong:
		return "no pong"
	case IdleRead | IdlePong:
		return "no frames|no pong"
	}
	return fmt.Sprintf("idle(%#x)", uint8(r))
}
