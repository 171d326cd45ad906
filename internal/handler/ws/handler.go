package ws

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	debateService "github.com/zhouzirui/debate-arena/backend/internal/service/debate"
	"github.com/zhouzirui/debate-arena/backend/pkg/utils"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Handler pushes live session events over a WebSocket connection.
type Handler struct {
	debates  *debateService.Service
	upgrader websocket.Upgrader
}

// New creates the WebSocket handler.
func New(debates *debateService.Service) *Handler {
	return &Handler{
		debates: debates,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the WebSocket route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/debates/{debateID}/ws", h.handleSocket)
}

func (h *Handler) handleSocket(w http.ResponseWriter, r *http.Request) {
	debateID := chi.URLParam(r, "debateID")

	// Subscribe before taking the snapshot so events landing in between
	// stay buffered for this listener.
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

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed for debate=%s: %v", debateID, err)
		return
	}
	defer conn.Close()

	log.Printf("[ws] client connected for debate=%s", debateID)

	// The read loop only exists to notice the client going away; inbound
	// frames are discarded.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(map[string]any{"type": "snapshot", "session": snapshot}); err != nil {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			log.Printf("[ws] client disconnected for debate=%s", debateID)
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
