package httpapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/SolanaSergio/apexbets-live/internal/platform/logging"
	"github.com/SolanaSergio/apexbets-live/internal/stream"
	"github.com/SolanaSergio/apexbets-live/internal/usecase"
)

type Handler struct {
	gameService *usecase.GameQueryService
	liveUpdates *usecase.LiveUpdateService
	hub         *stream.Hub
	logger      *logging.Logger
	validator   *validator.Validate
}

func NewHandler(
	gameService *usecase.GameQueryService,
	liveUpdates *usecase.LiveUpdateService,
	hub *stream.Hub,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		gameService: gameService,
		liveUpdates: liveUpdates,
		hub:         hub,
		logger:      logger,
		validator:   validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

type readyzDTO struct {
	Status      string                   `json:"status"`
	Poller      usecase.LiveUpdateStatus `json:"poller"`
	Subscribers map[string]int           `json:"subscribers"`
}

// Readyz reports whether the poll loop has produced at least one successful
// cycle. Before that, new subscribers would only ever see heartbeats.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Readyz")
	defer span.End()

	dto := readyzDTO{
		Status:      "ready",
		Poller:      h.liveUpdates.Status(),
		Subscribers: h.hub.Counts(),
	}
	if !h.liveUpdates.IsReady() {
		dto.Status = "not ready"
		writeJSON(ctx, w, http.StatusServiceUnavailable, googleResponseEnvelope{
			APIVersion: googleAPIVersion,
			Data:       dto,
		})
		return
	}

	writeSuccess(ctx, w, http.StatusOK, dto)
}
