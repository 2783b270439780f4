// internal/app/features/circles/invitations.go
package circles

import (
	"net/http"

	"github.com/dalemusser/circlehub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
)

type inviteRequest struct {
	Emails []string `json:"emails" validate:"required,min=1,max=500"`
}

// HandleInvite handles POST /pools/{poolID}/invitations.
func (h *Handler) HandleInvite(w http.ResponseWriter, r *http.Request) {
	actor, poolID, err := actorAndPool(r)
	if err != nil {
		h.writeError(w, r, "invite members", err)
		return
	}
	var req inviteRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, "invite members", err)
		return
	}

	// Mail is handed off synchronously after the write.
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "invite members")
	defer cancel()

	out, err := h.Svc.InviteMembers(ctx, poolID, req.Emails, actor)
	if err != nil {
		h.writeError(w, r, "invite members", err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, map[string]any{"invitations": out})
}

// ServeInvitations handles GET /pools/{poolID}/invitations.
func (h *Handler) ServeInvitations(w http.ResponseWriter, r *http.Request) {
	actor, poolID, err := actorAndPool(r)
	if err != nil {
		h.writeError(w, r, "list invitations", err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list invitations")
	defer cancel()

	out, err := h.Svc.ListInvitations(ctx, poolID, actor)
	if err != nil {
		h.writeError(w, r, "list invitations", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]any{"invitations": out})
}

// ServeInvitation handles GET /invitations/{token}. No sign-in is needed
// to see what an invitation is for.
func (h *Handler) ServeInvitation(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "resolve invitation")
	defer cancel()

	out, err := h.Svc.ResolveInvitation(ctx, chi.URLParam(r, "token"))
	if err != nil {
		h.writeError(w, r, "resolve invitation", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, out)
}

// HandleAccept handles POST /invitations/{token}/accept for the signed-in user.
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	user, err := actorID(r)
	if err != nil {
		h.writeError(w, r, "accept invitation", err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "accept invitation")
	defer cancel()

	out, err := h.Svc.AcceptInvitation(ctx, chi.URLParam(r, "token"), user)
	if err != nil {
		h.writeError(w, r, "accept invitation", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, out)
}

// HandleDecline handles POST /invitations/{token}/decline.
func (h *Handler) HandleDecline(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "decline invitation")
	defer cancel()

	out, err := h.Svc.DeclineInvitation(ctx, chi.URLParam(r, "token"))
	if err != nil {
		h.writeError(w, r, "decline invitation", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, out)
}
