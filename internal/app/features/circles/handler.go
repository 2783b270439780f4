// internal/app/features/circles/handler.go
package circles

import (
	"context"

	"github.com/dalemusser/circlehub/internal/app/circles/pipeline"
	"github.com/dalemusser/circlehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Pipeline is the set of circle operations the HTTP layer exposes.
// *pipeline.Service implements it.
type Pipeline interface {
	CreatePool(ctx context.Context, in pipeline.CreatePoolInput) (pipeline.Pool, error)
	GetPool(ctx context.Context, poolID, actorID primitive.ObjectID) (pipeline.Pool, error)
	ListPools(ctx context.Context, orgID, actorID primitive.ObjectID, status models.PoolStatus) ([]pipeline.Pool, error)
	CompletePool(ctx context.Context, poolID, actorID primitive.ObjectID) (pipeline.Pool, error)
	CancelPool(ctx context.Context, poolID, actorID primitive.ObjectID) (pipeline.Pool, error)

	InviteMembers(ctx context.Context, poolID primitive.ObjectID, emails []string, actorID primitive.ObjectID) ([]pipeline.Invitation, error)
	ResolveInvitation(ctx context.Context, token string) (pipeline.Invitation, error)
	AcceptInvitation(ctx context.Context, token string, userID primitive.ObjectID) (pipeline.Invitation, error)
	DeclineInvitation(ctx context.Context, token string) (pipeline.Invitation, error)
	ListInvitations(ctx context.Context, poolID, actorID primitive.ObjectID) ([]pipeline.Invitation, error)

	AssignGroups(ctx context.Context, poolID, actorID primitive.ObjectID) ([]pipeline.Group, error)
	MoveMember(ctx context.Context, in pipeline.MoveMemberInput) (pipeline.MoveResult, error)
	SetLeader(ctx context.Context, groupID, userID, actorID primitive.ObjectID) (pipeline.Group, error)
	CreateGroup(ctx context.Context, poolID primitive.ObjectID, name string, actorID primitive.ObjectID) (pipeline.Group, error)
	ListGroups(ctx context.Context, poolID, actorID primitive.ObjectID) ([]pipeline.Group, error)
	CheckGroupMember(ctx context.Context, groupID, userID primitive.ObjectID) (pipeline.Group, error)
	MyGroup(ctx context.Context, poolID, userID primitive.ObjectID) (pipeline.Group, error)
}

// Handler serves the circle JSON API.
type Handler struct {
	Svc Pipeline
	Log *zap.Logger
}

// NewHandler constructs a circles Handler around the pipeline.
func NewHandler(svc Pipeline, logger *zap.Logger) *Handler {
	return &Handler{
		Svc: svc,
		Log: logger,
	}
}
