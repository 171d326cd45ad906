package stream

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	debateService "github.com/zhouzirui/debate-arena/backend/internal/service/debate"
	"github.com/zhouzirui/debate-arena/backend/pkg/utils"
)

// Handler streams session events to the frontend via Server-Sent Events.
type Handler struct {
	debates *debateService.Service
}

// New creates the stream handler.
func New(debates *debateService.Service) *Handler {
	return &Handler{debates: debates}
}

// RegisterRoutes mounts the SSE route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/debates/{debateID}/events", h.handleEvents)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Subscribe first: events landing before the snapshot is taken stay
	// buffered instead of being dropped for this listener.
	debateID := chi.URLParam(r, "debateID")
	events, cancel, err := h.debates.Subscribe(debateID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	defer cancel()

	snapshot, err := h.debates.Get(debateID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	utils.SetupSSEHeaders(w)
	log.Printf("[sse] opening event stream for debate=%s", debateID)

	// Late joiners get the full current state first.
	utils.SendSSEEvent(w, flusher, "snapshot", snapshot)

	heartbeat := time.NewTicker(8 * time.Second)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[sse] closing event stream for debate=%s", debateID)
			return
		case ev, ok := <-events:
			if !ok {
				// Session removed.
				return
			}
			utils.SendSSEEvent(w, flusher, string(ev.Type), ev)
		case t := <-heartbeat.C:
			utils.SendSSEChunk(w, flusher, map[string]any{
				"event": "heartbeat",
				"time":  t.UTC().Format(time.RFC3339),
			})
		}
	}
}
