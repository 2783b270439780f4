// internal/app/features/circles/routes.go
package circles

import (
	"github.com/dalemusser/circlehub/internal/app/system/auth"
	"github.com/dalemusser/circlehub/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5"
)

// Routes returns the circle API router. It is mounted under /api/circles.
// limiter guards the token endpoints that need no sign-in; nil disables it.
func Routes(h *Handler, sm *auth.SessionManager, limiter *ratelimit.Limiter) chi.Router {
	r := chi.NewRouter()

	// Organization staff: pools, invitations, assignment and group edits.
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireRole("superadmin", "admin", "coordinator"))

		// POOLS
		pr.Post("/pools", h.HandleCreatePool)
		pr.Get("/pools", h.ServeListPools)
		pr.Get("/pools/{poolID}", h.ServePool)
		pr.Post("/pools/{poolID}/complete", h.HandleCompletePool)
		pr.Post("/pools/{poolID}/cancel", h.HandleCancelPool)

		// INVITE + ASSIGN
		pr.Post("/pools/{poolID}/invitations", h.HandleInvite)
		pr.Get("/pools/{poolID}/invitations", h.ServeInvitations)
		pr.Post("/pools/{poolID}/assign", h.HandleAssign)

		// GROUPS
		pr.Get("/pools/{poolID}/groups", h.ServeGroups)
		pr.Post("/pools/{poolID}/groups", h.HandleCreateGroup)
		pr.Post("/pools/{poolID}/moves", h.HandleMoveMember)
		pr.Put("/groups/{groupID}/leader", h.HandleSetLeader)
	})

	// Any signed-in user.
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		pr.Get("/groups/{groupID}/membership", h.ServeMembership)
		pr.Get("/pools/{poolID}/my-group", h.ServeMyGroup)
		pr.Post("/invitations/{token}/accept", h.HandleAccept)
	})

	// Token holders without an account.
	r.Group(func(pr chi.Router) {
		if limiter != nil {
			pr.Use(ratelimit.ByClientIP(limiter))
		}

		pr.Get("/invitations/{token}", h.ServeInvitation)
		pr.Post("/invitations/{token}/decline", h.HandleDecline)
	})

	return r
}
