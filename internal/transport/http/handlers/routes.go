package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	mw "github.com/pribylovaa/go-auth-service/internal/transport/http/middleware"
)

// Routes собирает роутер сервиса с общим стеком мидлваров.
// Порядок: RequestID -> Logging -> Recover -> Timeout.
func (h *Handlers) Routes(log *slog.Logger, timeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/refresh", h.Refresh)
		r.Post("/logout", h.Logout)
		r.Post("/external", h.ExternalLogin)

		// Эндпоинты под access-токеном.
		r.Group(func(r chi.Router) {
			r.Use(h.Authenticate)
			r.Get("/me", h.Me)
			r.Get("/sessions", h.Sessions)
			r.Post("/logout_all", h.LogoutAll)
		})
	})

	return mw.Chain(r,
		mw.RequestID(),
		mw.Logging(log),
		mw.Recover(),
		mw.Timeout(timeout),
	)
}
