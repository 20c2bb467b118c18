package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"dosage/replication"
	"dosage/server/domain"
)

// MatchLister は記録済みの対局を読み出します。
type MatchLister interface {
	ListMatches(ctx context.Context, limit int) ([]domain.Match, error)
}

type roomResponse struct {
	domain.RoomInfo
	Display string `json:"display"`
}

type RoomsHandler struct {
	hub     *domain.Hub
	matches MatchLister
}

func NewRoomsHandler(hub *domain.Hub, matches MatchLister) *RoomsHandler {
	return &RoomsHandler{hub: hub, matches: matches}
}

// Create は POST /rooms です。
func (h *RoomsHandler) Create(w http.ResponseWriter, r *http.Request) {
	info, err := h.hub.Create(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to create room", "err", err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, roomResponse{RoomInfo: info, Display: replication.FormatCode(info.Code)})
}

// Get は GET /rooms/{code} です。
func (h *RoomsHandler) Get(w http.ResponseWriter, r *http.Request) {
	code, err := replication.ParseCode(r.PathValue("code"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	info, err := h.hub.Info(code)
	if err != nil {
		writeHubError(w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, roomResponse{RoomInfo: info, Display: replication.FormatCode(info.Code)})
}

type matchResponse struct {
	RoomCode string `json:"roomCode"`
	HostID   string `json:"hostId"`
	GuestID  string `json:"guestId"`
	WinnerID string `json:"winnerId"`
	Round    int    `json:"round"`
	EndedAt  int64  `json:"endedAt"`
}

// Matches は GET /matches?limit=N です。
func (h *RoomsHandler) Matches(w http.ResponseWriter, r *http.Request) {
	if h.matches == nil {
		http.Error(w, "archive disabled", http.StatusNotFound)
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	ms, err := h.matches.ListMatches(r.Context(), limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list matches", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	out := make([]matchResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, matchResponse{
			RoomCode: m.RoomCode,
			HostID:   m.HostID,
			GuestID:  m.GuestID,
			WinnerID: m.WinnerID,
			Round:    m.Round,
			EndedAt:  m.EndedAt.UnixMilli(),
		})
	}
	writeJSON(r.Context(), w, http.StatusOK, out)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.WarnContext(ctx, "failed to write response", "err", err)
	}
}
