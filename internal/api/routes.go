package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hostops/concierge/internal/events"
)

// SetupRoutes configures the operator API and the event stream.
func SetupRoutes(h *Handlers, hub *events.Hub) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", h.HealthCheck)

	// Live event feed for the operator dashboard
	r.Method(http.MethodGet, "/events/ws", events.NewWSHandler(hub))

	r.Route("/api", func(r chi.Router) {
		r.Route("/messages", func(r chi.Router) {
			r.Get("/", h.ListMessages)
			r.Get("/{id}", h.GetMessage)
			r.Post("/{id}/auto-reply", h.SuggestAutoReply)
			r.Post("/{id}/intent-label", h.PostIntentLabel)
			r.Get("/{id}/intent-labels", h.GetIntentLabels)
		})

		r.Route("/auto-replies", func(r chi.Router) {
			r.Get("/", h.ListAutoReplies)
			r.Post("/{id}/approve", h.ApproveAutoReply)
			r.Post("/{id}/edit", h.EditAutoReply)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Post("/{id}/done", h.NotificationDone)
		})

		r.Post("/pipeline/tick", h.PipelineTick)
	})

	return r
}
