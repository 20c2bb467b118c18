package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"dosage/replication"
)

const maxMembers = 2

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
	ErrRoomClosed   = errors.New("room is closed")
)

// Seat はルームの1人分の席です。切断しても席は残り、同じプレイヤーIDで戻れます。
type Seat struct {
	PlayerID  string           `json:"playerId"`
	Name      string           `json:"name"`
	Role      replication.Role `json:"role"`
	Connected bool             `json:"connected"`

	sessionID string
}

type RoomInfo struct {
	Code      string                 `json:"code"`
	CreatedAt time.Time              `json:"createdAt"`
	Status    replication.RoomStatus `json:"status"`
	Members   []Seat                 `json:"members"`
}

// Match は終了した対局の記録です。
type Match struct {
	RoomCode string
	HostID   string
	GuestID  string
	WinnerID string
	Round    int
	EndedAt  time.Time
}

//go:generate go tool mockgen -destination=./mocks/archiver_mock.go -package=mocks . Archiver

type Archiver interface {
	RecordMatch(ctx context.Context, m Match) error
}

type room struct {
	code       string
	createdAt  time.Time
	status     replication.RoomStatus
	seats      []Seat
	emptySince time.Time
}

func (r *room) info() RoomInfo {
	return RoomInfo{
		Code:      r.code,
		CreatedAt: r.createdAt,
		Status:    r.status,
		Members:   slices.Clone(r.seats),
	}
}

func (r *room) seat(playerID string) *Seat {
	for i := range r.seats {
		if r.seats[i].PlayerID == playerID {
			return &r.seats[i]
		}
	}
	return nil
}

func (r *room) connected() int {
	n := 0
	for _, s := range r.seats {
		if s.Connected {
			n++
		}
	}
	return n
}

type HubConfig struct {
	Archiver Archiver
	Now      func() time.Time
	NewCode  func() string
	Logger   *slog.Logger
}

// Hub はルームコードごとのチャネルの管理者です。
type Hub struct {
	archiver Archiver
	now      func() time.Time
	newCode  func() string
	logger   *slog.Logger

	mu    sync.Mutex
	rooms map[string]*room
}

func NewHub(cfg HubConfig) *Hub {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewCode == nil {
		cfg.NewCode = replication.NewRoomCode
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Hub{
		archiver: cfg.Archiver,
		now:      cfg.Now,
		newCode:  cfg.NewCode,
		logger:   cfg.Logger,
		rooms:    make(map[string]*room),
	}
}

// Create は未使用のコードでルームを作ります。
func (h *Hub) Create(ctx context.Context) (RoomInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for range 16 {
		code := h.newCode()
		if _, taken := h.rooms[code]; taken {
			continue
		}
		now := h.now()
		r := &room{code: code, createdAt: now, status: replication.RoomWaiting, emptySince: now}
		h.rooms[code] = r
		h.logger.InfoContext(ctx, "room created", "roomCode", code)
		return r.info(), nil
	}
	return RoomInfo{}, errors.New("room code space exhausted")
}

func (h *Hub) Info(code string) (RoomInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[code]
	if !ok {
		return RoomInfo{}, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}
	return r.info(), nil
}

// Join は席を確保します。既に席があるプレイヤーは再接続として扱います。
func (h *Hub) Join(ctx context.Context, code, playerID, name, sessionID string) (role replication.Role, rejoined bool, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[code]
	if !ok {
		return "", false, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}
	if r.status.Terminal() {
		return "", false, fmt.Errorf("%w: %s is %s", ErrRoomClosed, code, r.status)
	}
	if s := r.seat(playerID); s != nil {
		s.Connected = true
		s.sessionID = sessionID
		h.logger.InfoContext(ctx, "player rejoined", "roomCode", code, "playerID", playerID)
		return s.Role, true, nil
	}
	if len(r.seats) >= maxMembers {
		return "", false, fmt.Errorf("%w: %s", ErrRoomFull, code)
	}
	role = replication.RoleHost
	if len(r.seats) > 0 {
		role = replication.RoleGuest
	}
	r.seats = append(r.seats, Seat{PlayerID: playerID, Name: name, Role: role, Connected: true, sessionID: sessionID})
	if len(r.seats) == maxMembers && r.status == replication.RoomWaiting {
		r.status = replication.RoomReady
	}
	h.logger.InfoContext(ctx, "player joined", "roomCode", code, "playerID", playerID, "role", role)
	return role, false, nil
}

// Disconnect は sessionID がまだその席の現行セッションなら切断扱いにします。
func (h *Hub) Disconnect(ctx context.Context, code, playerID, sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[code]
	if !ok {
		return false
	}
	s := r.seat(playerID)
	if s == nil || !s.Connected || s.sessionID != sessionID {
		return false
	}
	s.Connected = false
	if r.connected() == 0 {
		r.emptySince = h.now()
	}
	h.logger.InfoContext(ctx, "player disconnected", "roomCode", code, "playerID", playerID)
	return true
}

// Leave は自発的な退出です。ホストの退出でルームは放棄されます。
func (h *Hub) Leave(ctx context.Context, code, playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[code]
	if !ok {
		return
	}
	s := r.seat(playerID)
	if s == nil {
		return
	}
	if s.Role == replication.RoleHost {
		r.status = replication.RoomAbandoned
	} else if !r.status.Terminal() {
		r.status = replication.RoomWaiting
	}
	r.seats = slices.DeleteFunc(r.seats, func(s Seat) bool { return s.PlayerID == playerID })
	if r.connected() == 0 {
		r.emptySince = h.now()
	}
	h.logger.InfoContext(ctx, "player left", "roomCode", code, "playerID", playerID, "status", r.status)
}

// Observe は中継したイベントからルームの状態を追い、終了した対局を記録します。
func (h *Hub) Observe(ctx context.Context, code string, env replication.Envelope) {
	switch env.Type {
	case replication.EventGameStarted:
		h.setStatus(code, replication.RoomPlaying)
	case replication.EventGameEnded:
		p, err := replication.DecodePayload[replication.GameEndedPayload](env)
		if err != nil {
			h.logger.WarnContext(ctx, "bad game_ended payload", "roomCode", code, "err", err)
			return
		}
		m, ok := h.finish(code, p, env.Time())
		if !ok || h.archiver == nil {
			return
		}
		if err := h.archiver.RecordMatch(ctx, m); err != nil {
			h.logger.ErrorContext(ctx, "failed to archive match", "roomCode", code, "err", err)
		}
	}
}

func (h *Hub) setStatus(code string, status replication.RoomStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[code]; ok && !r.status.Terminal() {
		r.status = status
	}
}

// finish は最初の game_ended だけを記録対象にします。
func (h *Hub) finish(code string, p replication.GameEndedPayload, at time.Time) (Match, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[code]
	if !ok || r.status.Terminal() {
		return Match{}, false
	}
	r.status = replication.RoomFinished
	m := Match{RoomCode: code, WinnerID: p.WinnerID, Round: p.Round, EndedAt: at}
	for _, s := range r.seats {
		switch s.Role {
		case replication.RoleHost:
			m.HostID = s.PlayerID
		case replication.RoleGuest:
			m.GuestID = s.PlayerID
		}
	}
	return m, true
}

// Prune は誰も接続していない時間が ttl を超えたルームを消します。
func (h *Hub) Prune(ctx context.Context, ttl time.Duration) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.now()
	removed := 0
	for code, r := range h.rooms {
		if r.connected() == 0 && now.Sub(r.emptySince) > ttl {
			delete(h.rooms, code)
			removed++
			h.logger.DebugContext(ctx, "room pruned", "roomCode", code)
		}
	}
	return removed
}

// Run は定期的に空のルームを片付けます。ctxがキャンセルされると終了します。
func (h *Hub) Run(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Prune(ctx, ttl)
		}
	}
}
