package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/cwrk-planet/session-hub/internal/session"
)

// Snapshotter gives read-only access to hub state.
type Snapshotter interface {
	Snapshot(ctx context.Context) (session.Snapshot, error)
}

type Deps struct {
	Hub            Snapshotter
	WS             http.HandlerFunc
	WSPath         string
	AllowedOrigins []string
	RequestTimeout time.Duration
}

func NewRouter(d Deps) http.Handler {
	if d.WSPath == "" {
		d.WSPath = "/ws"
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(WithRequestLogger)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// websocket stays outside the timeout group, the connection is long-lived
	if d.WS != nil {
		r.Get(d.WSPath, d.WS)
	}

	h := &Handler{hub: d.Hub}
	r.Group(func(gr chi.Router) {
		gr.Use(middleware.Timeout(d.RequestTimeout))
		gr.Use(middleware.Compress(5))

		gr.Get("/", h.Root)
		gr.Get("/healthz", h.Health)
		gr.Route("/api", func(ar chi.Router) {
			ar.Get("/users", h.Users)
			ar.Get("/rooms", h.Rooms)
		})
	})

	return r
}
