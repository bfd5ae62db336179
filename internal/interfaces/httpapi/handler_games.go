package httpapi

import (
	"net/http"
	"strings"

	"github.com/SolanaSergio/apexbets-live/internal/domain/game"
)

type gameListDTO struct {
	Sport string      `json:"sport"`
	Games []game.Game `json:"games"`
}

// ListGames serves the point-in-time snapshot for one sport: live games
// first, then recent results and upcoming fixtures. Clients use it for the
// initial render before the stream takes over.
func (h *Handler) ListGames(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListGames")
	defer span.End()

	sport := strings.TrimSpace(r.URL.Query().Get("sport"))
	games, err := h.gameService.Snapshot(ctx, sport)
	if err != nil {
		h.logger.ErrorContext(ctx, "list games failed", "sport", sport, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, gameListDTO{
		Sport: strings.ToLower(sport),
		Games: games,
	})
}

// ListLiveGames serves only the currently live set.
func (h *Handler) ListLiveGames(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListLiveGames")
	defer span.End()

	sport := strings.TrimSpace(r.URL.Query().Get("sport"))
	games, err := h.gameService.LiveGames(ctx, sport)
	if err != nil {
		h.logger.ErrorContext(ctx, "list live games failed", "sport", sport, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, gameListDTO{
		Sport: strings.ToLower(sport),
		Games: games,
	})
}
