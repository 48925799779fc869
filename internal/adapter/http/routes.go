package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rpams/tontine-core/internal/domain/user"
	"github.com/rpams/tontine-core/internal/middleware"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Tontines
		r.Get("/tontines", h.ListTontines)
		r.Post("/tontines", h.CreateTontine)
		r.Get("/tontines/{id}", h.GetTontine)
		r.Post("/tontines/{id}/activate", h.ActivateTontine)
		// Forcing a status bypasses the lifecycle and touches every
		// member's payments; ownership alone is not enough.
		r.With(middleware.RequireRole(user.RoleModerator)).
			Put("/tontines/{id}/status", h.UpdateTontineStatus)
		r.Get("/tontines/{id}/stats", h.TontineStats)

		// Enrollment (nested under tontines)
		r.Get("/tontines/{id}/participants", h.ListParticipants)
		r.Post("/tontines/{id}/participants", h.JoinTontine)

		// Invites
		r.Get("/invites/{code}", h.LookupInvite)
		r.Post("/invites/{code}/join", h.JoinByInvite)

		// Participants (direct access)
		r.Delete("/participants/{id}", h.LeaveTontine)
		r.Get("/participants/{id}/standing", h.ParticipantStanding)

		// Rounds (nested under tontines)
		r.Get("/tontines/{id}/rounds", h.ListRounds)
		r.Post("/tontines/{id}/rounds", h.OpenNextRound)
		r.With(middleware.RequireRole(user.RoleModerator)).
			Put("/tontines/{id}/winners", h.ReorderWinners)

		// Rounds (direct access)
		r.Get("/rounds/{id}", h.GetRound)
		r.Post("/rounds/{id}/collect", h.BeginCollection)
		r.Post("/rounds/{id}/complete", h.CompleteRound)
		r.Post("/rounds/{id}/cancel", h.CancelRound)
		r.Get("/rounds/{id}/intent", h.PaymentIntent)

		// Payments
		r.Get("/payments", h.ListPayments)
		r.Get("/payments/{id}", h.GetPayment)
		r.Post("/payments/{id}/settle", h.SettlePayment)

		// Payment corrections (moderators)
		r.With(middleware.RequireRole(user.RoleModerator)).
			Post("/payments/{id}/fail", h.FailPayment)
		r.With(middleware.RequireRole(user.RoleModerator)).
			Post("/payments/{id}/reset", h.ResetPayment)

		// Users
		r.Get("/users/me", h.GetMe)
		r.With(middleware.RequireRole(user.RoleAdmin)).
			Get("/users/{id}", h.GetUser)
		r.With(middleware.RequireRole(user.RoleAdmin)).
			Put("/users/{id}/role", h.SetUserRole)
	})
}
