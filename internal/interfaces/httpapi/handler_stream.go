package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/valyala/bytebufferpool"

	"github.com/SolanaSergio/apexbets-live/internal/stream"
	"github.com/SolanaSergio/apexbets-live/internal/usecase"
)

// StreamGames serves a newline-delimited JSON event stream for one topic.
// The response stays open until the client disconnects or the hub evicts the
// connection; each write is flushed immediately.
func (h *Handler) StreamGames(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.StreamGames")
	defer span.End()

	topic := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("sport")))
	if topic == "" {
		topic = stream.TopicAll
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: response writer does not support streaming", usecase.ErrDependencyUnavailable))
		return
	}

	conn, err := h.hub.Subscribe(ctx, topic)
	if err != nil {
		h.logger.ErrorContext(ctx, "stream subscribe failed", "sport", topic, "error", err)
		writeError(ctx, w, err)
		return
	}
	defer h.hub.Unsubscribe(conn.ID)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Initial snapshot so a new subscriber does not wait for the next poll
	// cycle to see data. The wildcard topic has no single-sport snapshot.
	if topic != stream.TopicAll {
		if games, snapErr := h.gameService.Snapshot(ctx, topic); snapErr == nil {
			if writeErr := writeStreamEvent(w, flusher, stream.NewGameUpdate(topic, games)); writeErr != nil {
				return
			}
		} else {
			h.logger.WarnContext(ctx, "stream initial snapshot failed", "sport", topic, "error", snapErr)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case evt, open := <-conn.Events:
			if !open {
				// Evicted by the hub (idle sweep or shutdown).
				return
			}
			if writeErr := writeStreamEvent(w, flusher, evt); writeErr != nil {
				h.logger.DebugContext(ctx, "stream write failed, dropping connection",
					"connection_id", conn.ID, "sport", topic, "error", writeErr)
				return
			}
			// A successful write proves the peer is still consuming.
			h.hub.Touch(conn.ID)
		}
	}
}

func writeStreamEvent(w http.ResponseWriter, flusher http.Flusher, evt stream.Event) error {
	data, err := evt.Encode()
	if err != nil {
		return fmt.Errorf("encode stream event: %w", err)
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	_, _ = buf.Write(data)
	_ = buf.WriteByte('\n')

	if _, err := w.Write(buf.B); err != nil {
		return fmt.Errorf("write stream event: %w", err)
	}
	flusher.Flush()
	return nil
}
