package replication

import (
	"dosage/game"
)

type RoomCreatedPayload struct {
	Code      string     `json:"code"`
	Status    RoomStatus `json:"status"`
	HostID    string     `json:"hostId"`
	HostName  string     `json:"hostName"`
	GuestID   string     `json:"guestId,omitempty"`
	GuestName string     `json:"guestName,omitempty"`
}

type PlayerJoinedPayload struct {
	Name string `json:"name"`
	IsAI bool   `json:"isAI"`
}

type PlayerLeftPayload struct {
	Role Role `json:"role"`
}

type GameStartedPayload struct {
	Players []game.PlayerSpec `json:"players"`
	Seed    uint64            `json:"seed"`
}

type RoundResetPayload struct {
	Reset game.RoundReset `json:"reset"`
}

type GameEndedPayload struct {
	WinnerID string `json:"winnerId"`
	Round    int    `json:"round"`
}

type PillConsumedPayload struct {
	PillID string `json:"pillId"`
}

type ItemUsedPayload struct {
	ItemID string       `json:"itemId"`
	Target *game.Target `json:"target,omitempty"`
}

type ItemSelectedPayload struct {
	ItemType game.ItemType `json:"itemType"`
}

type ItemDeselectedPayload struct {
	ItemID string `json:"itemId"`
}

type CartUpdatedPayload struct {
	ItemType game.ItemType `json:"itemType"`
	Remove   bool          `json:"remove"`
}

// LinkPayload はリレーが生成する接続状態イベントの対象です。
type LinkPayload struct {
	PlayerID string `json:"playerId"`
}

type StateSyncPayload struct {
	State game.State `json:"state"`
}
