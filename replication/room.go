package replication

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"time"
)

type RoomStatus string

const (
	RoomWaiting   RoomStatus = "waiting"
	RoomReady     RoomStatus = "ready"
	RoomPlaying   RoomStatus = "playing"
	RoomFinished  RoomStatus = "finished"
	RoomAbandoned RoomStatus = "abandoned"
)

// Terminal は終端状態かどうかです。
func (s RoomStatus) Terminal() bool {
	return s == RoomFinished || s == RoomAbandoned
}

type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

type Room struct {
	Code      string     `json:"code"`
	CreatedAt time.Time  `json:"createdAt"`
	Status    RoomStatus `json:"status"`
	HostID    string     `json:"hostId"`
	HostName  string     `json:"hostName"`
	GuestID   string     `json:"guestId,omitempty"`
	GuestName string     `json:"guestName,omitempty"`
}

// RoleOf は playerID の役割です。
func (r Room) RoleOf(playerID string) (Role, bool) {
	switch playerID {
	case "":
		return "", false
	case r.HostID:
		return RoleHost, true
	case r.GuestID:
		return RoleGuest, true
	}
	return "", false
}

const (
	codeChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength = 6
)

// NewRoomCode は紛らわしい文字 (I O 0 1) を除いた6文字のコードを生成します。
// 文字集合は32文字なので、乱数1バイトの下位5ビットで偏りなく選べます。
func NewRoomCode() string {
	code, err := newRoomCode(rand.Reader)
	if err != nil {
		// crypto/rand の Reader は失敗しない
		panic(fmt.Sprintf("replication: room code: %v", err))
	}
	return code
}

func newRoomCode(r io.Reader) (string, error) {
	buf := make([]byte, codeLength)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, v := range buf {
		buf[i] = codeChars[int(v)%len(codeChars)]
	}
	return string(buf), nil
}

// FormatCode は表示用に XXX-XXX にします。
func FormatCode(code string) string {
	if len(code) != codeLength {
		return code
	}
	return code[:3] + "-" + code[3:]
}

// ParseCode は入力を正規化して検証します。区切りや小文字を許容します。
func ParseCode(input string) (string, error) {
	code := strings.ToUpper(strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(input)))
	if len(code) != codeLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidRoomCode, input)
	}
	for _, c := range code {
		if !strings.ContainsRune(codeChars, c) {
			return "", fmt.Errorf("%w: %q", ErrInvalidRoomCode, input)
		}
	}
	return code, nil
}
