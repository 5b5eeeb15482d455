package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/zhouzirui/cardchat/internal/handler/chat"
	"github.com/zhouzirui/cardchat/internal/handler/persona"
	"github.com/zhouzirui/cardchat/internal/handler/ws"
	personaModel "github.com/zhouzirui/cardchat/internal/model/persona"
	chatService "github.com/zhouzirui/cardchat/internal/service/chat"
)

// APIPrefix is where every chat route is mounted.
const APIPrefix = "/api/chat"

// NewRouter wires HTTP routes to core services.
func NewRouter(logger zerolog.Logger, personas personaModel.Store, chatSvc *chatService.Service, responder ws.Responder) http.Handler {
	r := chi.NewRouter()

	r.Use(hlog.NewHandler(logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.RemoteAddrHandler("ip"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	personaHandler := persona.New(personas)
	chatHandler := chat.New(chatSvc, personas)
	wsHandler := ws.New(chatSvc, personas, responder)

	r.Route(APIPrefix, func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return r
}
