package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"

	"dosage/replication"
	adapterwebsocket "dosage/server/adapter/websocket"
	"dosage/server/domain"
)

type AcceptHandler struct {
	pubsub   domain.PubSub
	hub      *domain.Hub
	endpoint domain.EndpointConfig
}

func NewAcceptHandler(pubsub domain.PubSub, hub *domain.Hub, endpoint domain.EndpointConfig) *AcceptHandler {
	return &AcceptHandler{pubsub: pubsub, hub: hub, endpoint: endpoint}
}

// ServeHTTP は GET /ws?room=CODE&player=ID&name=N を websocket にしてルームに参加させます。
func (h *AcceptHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	code, err := replication.ParseCode(q.Get("room"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	playerID := strings.TrimSpace(q.Get("player"))
	if playerID == "" {
		http.Error(w, "player is required", http.StatusBadRequest)
		return
	}
	name := q.Get("name")
	if name == "" {
		name = playerID
	}

	session := domain.NewSession(code, playerID, h.endpoint.Now)
	_, rejoined, err := h.hub.Join(ctx, code, playerID, name, session.ID)
	if err != nil {
		writeHubError(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // 開発用: Origin チェックをスキップ
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to accept", "err", err)
		h.hub.Disconnect(ctx, code, playerID, session.ID)
		return
	}

	transport := adapterwebsocket.NewTransportFrom(conn)
	connection := domain.NewConnection(playerID, transport)
	endpoint, err := domain.NewSessionEndpoint(session, connection, h.pubsub, h.hub, rejoined, h.endpoint)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create session endpoint", "err", err)
		connection.Close("internal error")
		return
	}
	slog.DebugContext(ctx, "accepted new connection", "sessionID", session.ID, "roomCode", code, "playerID", playerID, "rejoined", rejoined)
	start := time.Now()
	if err := endpoint.Run(); err != nil {
		slog.ErrorContext(ctx, "failed to run session endpoint", "err", err)
		return
	}
	slog.DebugContext(ctx, "session ended", "sessionID", session.ID, "duration", time.Since(start))
}

func writeHubError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrRoomFull), errors.Is(err, domain.ErrRoomClosed):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
