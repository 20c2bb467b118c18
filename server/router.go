package server

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"dosage/server/domain"
	"dosage/server/handler"
)

func Route(pubsub domain.PubSub, hub *domain.Hub, matches handler.MatchLister, endpoint domain.EndpointConfig) http.Handler {
	rooms := handler.NewRoomsHandler(hub, matches)
	mux := http.NewServeMux()
	mux.Handle("GET /ws", handler.NewAcceptHandler(pubsub, hub, endpoint))
	mux.HandleFunc("POST /rooms", rooms.Create)
	mux.HandleFunc("GET /rooms/{code}", rooms.Get)
	mux.HandleFunc("GET /matches", rooms.Matches)
	mux.HandleFunc("GET /healthz", handler.NewHealthHandler())
	return otelhttp.NewHandler(mux, "dosage-relay")
}
