package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

func (app *Application) routes() http.Handler {
	mux := chi.NewRouter()

	mux.Use(cors.AllowAll().Handler)

	mux.Get("/health", app.handlers.HealthHandler)

	mux.Route("/api/auth", func(r chi.Router) {
		r.Post("/discord", app.handlers.ExchangeCodeHandler)
		r.Get("/me", app.handlers.MeHandler)
	})

	mux.Route("/api/rooms", func(r chi.Router) {
		r.Post("/", app.handlers.CreateRoomHandler)
		r.Get("/{code}", app.handlers.GetRoomHandler)
		r.Post("/{code}/join", app.handlers.JoinRoomHandler)
		r.Post("/{code}/start", app.handlers.StartRoomHandler)
		r.Get("/{code}/sessions", app.handlers.ListSessionsHandler)
	})

	mux.Route("/api/sessions", func(r chi.Router) {
		r.Delete("/{sessionID}", app.handlers.LeaveRoomHandler)
	})

	mux.Route("/api/questions", func(r chi.Router) {
		r.Get("/", app.handlers.RandomQuestionsHandler)
		r.Post("/", app.handlers.SeedQuestionsHandler)
	})

	return mux
}
