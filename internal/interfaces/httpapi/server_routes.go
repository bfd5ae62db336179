package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	mux.HandleFunc("GET /readyz", handler.Readyz)
}

func registerPublicRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/games", handler.ListGames)
	mux.HandleFunc("GET /v1/games/live", handler.ListLiveGames)
	mux.HandleFunc("GET /v1/stream", handler.StreamGames)
}

func registerInternalRoutes(mux *http.ServeMux, handler *Handler, internalBroadcastToken string) {
	mux.Handle("POST /v1/internal/broadcast", RequireInternalBroadcastToken(internalBroadcastToken, http.HandlerFunc(handler.BroadcastGames)))
}
