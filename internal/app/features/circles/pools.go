// internal/app/features/circles/pools.go
package circles

import (
	"context"
	"net/http"

	"github.com/dalemusser/circlehub/internal/app/circles/pipeline"
	"github.com/dalemusser/circlehub/internal/app/system/apperrors"
	"github.com/dalemusser/circlehub/internal/app/system/authz"
	"github.com/dalemusser/circlehub/internal/app/system/normalize"
	"github.com/dalemusser/circlehub/internal/app/system/timeouts"
	"github.com/dalemusser/circlehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type createPoolRequest struct {
	OrganizationID  string `json:"organizationId" validate:"required,objectid"`
	Name            string `json:"name" validate:"required,max=200"`
	Topic           string `json:"topic" validate:"max=2000"`
	TargetGroupSize int    `json:"targetGroupSize" validate:"required,gte=1"`
}

// HandleCreatePool handles POST /pools.
func (h *Handler) HandleCreatePool(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		h.writeError(w, r, "create pool", err)
		return
	}
	var req createPoolRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, "create pool", err)
		return
	}
	orgID, err := parseID(req.OrganizationID, "organizationId")
	if err != nil {
		h.writeError(w, r, "create pool", err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "create pool")
	defer cancel()

	out, err := h.Svc.CreatePool(ctx, pipeline.CreatePoolInput{
		OrganizationID:  orgID,
		Name:            req.Name,
		Topic:           req.Topic,
		TargetGroupSize: req.TargetGroupSize,
		ActorID:         actor,
	})
	if err != nil {
		h.writeError(w, r, "create pool", err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, out)
}

// ServeListPools handles GET /pools?organizationId=…&status=….
func (h *Handler) ServeListPools(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		h.writeError(w, r, "list pools", err)
		return
	}
	orgID, err := parseID(normalize.QueryParam(r.URL.Query().Get("organizationId")), "organizationId")
	if err != nil {
		h.writeError(w, r, "list pools", err)
		return
	}
	// Session pre-check; the pipeline re-checks against current data.
	if !authz.CanAccessOrg(r, orgID) {
		h.writeError(w, r, "list pools", apperrors.Forbidden(apperrors.CodeNotOrgAdmin,
			"you are not an administrator of this organization"))
		return
	}
	status := models.PoolStatus(normalize.Status(r.URL.Query().Get("status")))

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list pools")
	defer cancel()

	out, err := h.Svc.ListPools(ctx, orgID, actor, status)
	if err != nil {
		h.writeError(w, r, "list pools", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]any{"pools": out})
}

// ServePool handles GET /pools/{poolID}.
func (h *Handler) ServePool(w http.ResponseWriter, r *http.Request) {
	actor, poolID, err := actorAndPool(r)
	if err != nil {
		h.writeError(w, r, "get pool", err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "get pool")
	defer cancel()

	out, err := h.Svc.GetPool(ctx, poolID, actor)
	if err != nil {
		h.writeError(w, r, "get pool", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, out)
}

// HandleCompletePool handles POST /pools/{poolID}/complete.
func (h *Handler) HandleCompletePool(w http.ResponseWriter, r *http.Request) {
	h.closePool(w, r, "complete pool", h.Svc.CompletePool)
}

// HandleCancelPool handles POST /pools/{poolID}/cancel.
func (h *Handler) HandleCancelPool(w http.ResponseWriter, r *http.Request) {
	h.closePool(w, r, "cancel pool", h.Svc.CancelPool)
}

func (h *Handler) closePool(w http.ResponseWriter, r *http.Request, op string,
	fn func(ctx context.Context, poolID, actorID primitive.ObjectID) (pipeline.Pool, error)) {
	actor, poolID, err := actorAndPool(r)
	if err != nil {
		h.writeError(w, r, op, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, op)
	defer cancel()

	out, err := fn(ctx, poolID, actor)
	if err != nil {
		h.writeError(w, r, op, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, out)
}

func actorAndPool(r *http.Request) (primitive.ObjectID, primitive.ObjectID, error) {
	actor, err := actorID(r)
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, err
	}
	poolID, err := pathID(r, "poolID")
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, err
	}
	return actor, poolID, nil
}
