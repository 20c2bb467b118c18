// Package replication はホスト権威の同期プロトコルです。
// 意図をイベントとして中継し、ゲストはそれを自分の状態機械に再適用します。
package replication

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type EventType string

const (
	EventRoomCreated        EventType = "room_created"
	EventPlayerJoined       EventType = "player_joined"
	EventPlayerLeft         EventType = "player_left"
	EventGameStarted        EventType = "game_started"
	EventRoundReset         EventType = "round_reset"
	EventGameEnded          EventType = "game_ended"
	EventPillConsumed       EventType = "pill_consumed"
	EventItemUsed           EventType = "item_used"
	EventItemSelected       EventType = "item_selected"
	EventItemDeselected     EventType = "item_deselected"
	EventSelectionConfirmed EventType = "selection_confirmed"
	EventWantsStoreToggled  EventType = "wants_store_toggled"
	EventCartUpdated        EventType = "cart_updated"
	EventStoreConfirmed     EventType = "store_confirmed"
	EventHeartbeat          EventType = "heartbeat"
	EventPlayerDisconnected EventType = "player_disconnected"
	EventPlayerReconnected  EventType = "player_reconnected"
	EventStateSync          EventType = "state_sync"
)

var (
	ErrEmptyEnvelope   = errors.New("empty envelope")
	ErrMissingType     = errors.New("envelope type missing")
	ErrEmptyPayload    = errors.New("empty payload")
	ErrUnknownEvent    = errors.New("unknown event type")
	ErrNotHost         = errors.New("operation requires host role")
	ErrRoomNotReady    = errors.New("room not ready")
	ErrInitialization  = errors.New("replicator initialization failed")
	ErrInvalidRoomCode = errors.New("invalid room code")
)

// Envelope はチャネルを流れる全てのメッセージの外形です。
type Envelope struct {
	Type      EventType       `json:"type"`
	RoomID    string          `json:"roomId"`
	PlayerID  string          `json:"playerId"`
	Timestamp int64           `json:"timestamp"`
	Sequence  uint64          `json:"sequence"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Time はタイムスタンプ(ミリ秒)を time.Time にします。
func (e Envelope) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

func NewEnvelope(t EventType, roomID, playerID string, seq uint64, at time.Time, payload any) (Envelope, error) {
	env := Envelope{
		Type:      t,
		RoomID:    roomID,
		PlayerID:  playerID,
		Timestamp: at.UnixMilli(),
		Sequence:  seq,
	}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode %s payload: %w", t, err)
		}
		env.Payload = b
	}
	return env, nil
}

func Encode(env Envelope) ([]byte, error) {
	if env.Type == "" {
		return nil, ErrMissingType
	}
	return json.Marshal(env)
}

func Decode(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, ErrEmptyEnvelope
	}
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, ErrMissingType
	}
	return env, nil
}

func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.Payload) == 0 {
		return out, fmt.Errorf("%w for type %q", ErrEmptyPayload, env.Type)
	}
	if err := json.Unmarshal(env.Payload, &out); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return out, nil
}
