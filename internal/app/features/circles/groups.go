// internal/app/features/circles/groups.go
package circles

import (
	"net/http"

	"github.com/dalemusser/circlehub/internal/app/circles/pipeline"
	"github.com/dalemusser/circlehub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type createGroupRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type moveMemberRequest struct {
	SourceGroupID string `json:"sourceGroupId" validate:"required,objectid"`
	TargetGroupID string `json:"targetGroupId" validate:"required,objectid"`
	MemberID      string `json:"memberId" validate:"required,objectid"`
}

type setLeaderRequest struct {
	UserID string `json:"userId" validate:"required,objectid"`
}

// HandleAssign handles POST /pools/{poolID}/assign.
func (h *Handler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	actor, poolID, err := actorAndPool(r)
	if err != nil {
		h.writeError(w, r, "assign groups", err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "assign groups")
	defer cancel()

	out, err := h.Svc.AssignGroups(ctx, poolID, actor)
	if err != nil {
		h.writeError(w, r, "assign groups", err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, map[string]any{"groups": out})
}

// ServeGroups handles GET /pools/{poolID}/groups.
func (h *Handler) ServeGroups(w http.ResponseWriter, r *http.Request) {
	actor, poolID, err := actorAndPool(r)
	if err != nil {
		h.writeError(w, r, "list groups", err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list groups")
	defer cancel()

	out, err := h.Svc.ListGroups(ctx, poolID, actor)
	if err != nil {
		h.writeError(w, r, "list groups", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]any{"groups": out})
}

// HandleCreateGroup handles POST /pools/{poolID}/groups.
func (h *Handler) HandleCreateGroup(w http.ResponseWriter, r *http.Request) {
	actor, poolID, err := actorAndPool(r)
	if err != nil {
		h.writeError(w, r, "create group", err)
		return
	}
	var req createGroupRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, "create group", err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "create group")
	defer cancel()

	out, err := h.Svc.CreateGroup(ctx, poolID, req.Name, actor)
	if err != nil {
		h.writeError(w, r, "create group", err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, out)
}

// HandleMoveMember handles POST /pools/{poolID}/moves.
func (h *Handler) HandleMoveMember(w http.ResponseWriter, r *http.Request) {
	actor, poolID, err := actorAndPool(r)
	if err != nil {
		h.writeError(w, r, "move member", err)
		return
	}
	var req moveMemberRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, "move member", err)
		return
	}
	in := pipeline.MoveMemberInput{PoolID: poolID, ActorID: actor}
	for _, f := range []struct {
		hex, name string
		dst       *primitive.ObjectID
	}{
		{req.SourceGroupID, "sourceGroupId", &in.SourceGroupID},
		{req.TargetGroupID, "targetGroupId", &in.TargetGroupID},
		{req.MemberID, "memberId", &in.MemberID},
	} {
		if *f.dst, err = parseID(f.hex, f.name); err != nil {
			h.writeError(w, r, "move member", err)
			return
		}
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "move member")
	defer cancel()

	out, err := h.Svc.MoveMember(ctx, in)
	if err != nil {
		h.writeError(w, r, "move member", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, out)
}

// HandleSetLeader handles PUT /groups/{groupID}/leader.
func (h *Handler) HandleSetLeader(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		h.writeError(w, r, "set leader", err)
		return
	}
	groupID, err := pathID(r, "groupID")
	if err != nil {
		h.writeError(w, r, "set leader", err)
		return
	}
	var req setLeaderRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, "set leader", err)
		return
	}
	userID, err := parseID(req.UserID, "userId")
	if err != nil {
		h.writeError(w, r, "set leader", err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "set leader")
	defer cancel()

	out, err := h.Svc.SetLeader(ctx, groupID, userID, actor)
	if err != nil {
		h.writeError(w, r, "set leader", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, out)
}

// ServeMembership handles GET /groups/{groupID}/membership. It answers
// 200 with the group when the signed-in user belongs to it and 403
// otherwise.
func (h *Handler) ServeMembership(w http.ResponseWriter, r *http.Request) {
	user, err := actorID(r)
	if err != nil {
		h.writeError(w, r, "check membership", err)
		return
	}
	groupID, err := pathID(r, "groupID")
	if err != nil {
		h.writeError(w, r, "check membership", err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "check membership")
	defer cancel()

	out, err := h.Svc.CheckGroupMember(ctx, groupID, user)
	if err != nil {
		h.writeError(w, r, "check membership", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, out)
}

// ServeMyGroup handles GET /pools/{poolID}/my-group for the signed-in user.
func (h *Handler) ServeMyGroup(w http.ResponseWriter, r *http.Request) {
	user, poolID, err := actorAndPool(r)
	if err != nil {
		h.writeError(w, r, "my group", err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "my group")
	defer cancel()

	out, err := h.Svc.MyGroup(ctx, poolID, user)
	if err != nil {
		h.writeError(w, r, "my group", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, out)
}
