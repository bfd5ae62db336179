package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	sonic "github.com/bytedance/sonic"

	"github.com/SolanaSergio/apexbets-live/internal/domain/game"
	"github.com/SolanaSergio/apexbets-live/internal/stream"
	"github.com/SolanaSergio/apexbets-live/internal/usecase"
)

type broadcastRequest struct {
	Sport string      `json:"sport" validate:"required"`
	Games []game.Game `json:"games" validate:"required,min=1"`
}

type broadcastResponseDTO struct {
	Sport       string `json:"sport"`
	Subscribers int    `json:"subscribers"`
}

// BroadcastGames lets trusted backend jobs push a game batch to subscribers
// out of band, without waiting for the next poll cycle. The batch goes
// through the same normalization and dedup rules as polled data.
func (h *Handler) BroadcastGames(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.BroadcastGames")
	defer span.End()

	var req broadcastRequest
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: decode broadcast request: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: %v", usecase.ErrInvalidInput, err))
		return
	}

	sport := strings.ToLower(strings.TrimSpace(req.Sport))
	if sport == stream.TopicAll {
		writeError(ctx, w, fmt.Errorf("%w: cannot broadcast game updates to the wildcard topic", usecase.ErrInvalidInput))
		return
	}

	games := make([]game.Game, 0, len(req.Games))
	for _, g := range req.Games {
		games = append(games, game.Canonicalize(g))
	}
	games = game.Dedup(games)
	delivered := h.hub.Publish(sport, stream.NewGameUpdate(sport, games))
	h.logger.InfoContext(ctx, "manual broadcast delivered",
		"sport", sport,
		"games", len(games),
		"subscribers", delivered,
	)

	writeSuccess(ctx, w, http.StatusOK, broadcastResponseDTO{
		Sport:       sport,
		Subscribers: delivered,
	})
}
