package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	debateHandler "github.com/zhouzirui/debate-arena/backend/internal/handler/debate"
	poolHandler "github.com/zhouzirui/debate-arena/backend/internal/handler/pool"
	streamHandler "github.com/zhouzirui/debate-arena/backend/internal/handler/stream"
	wsHandler "github.com/zhouzirui/debate-arena/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/debate-arena/backend/internal/middleware"
	debateService "github.com/zhouzirui/debate-arena/backend/internal/service/debate"
	"github.com/zhouzirui/debate-arena/backend/internal/store"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(debates *debateService.Service, providerClient poolHandler.ProviderClient, pool *store.Store) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		debateHandler.New(debates).RegisterRoutes(api)
		poolHandler.New(providerClient, pool).RegisterRoutes(api)
		streamHandler.New(debates).RegisterRoutes(api)
		wsHandler.New(debates).RegisterRoutes(api)
	})

	return r
}
