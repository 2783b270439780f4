package pipeline

import (
	"context"
	"errors"

	"github.com/dalemusser/circlehub/internal/app/circles/lifecycle"
	poolstore "github.com/dalemusser/circlehub/internal/app/store/pools"
	"github.com/dalemusser/circlehub/internal/app/system/apperrors"
	"github.com/dalemusser/circlehub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/circlehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// CreatePoolInput carries the fields of a new pool.
type CreatePoolInput struct {
	OrganizationID  primitive.ObjectID
	Name            string
	Topic           string
	TargetGroupSize int
	ActorID         primitive.ObjectID
}

// CreatePool creates a draft pool owned by the organization.
func (s *Service) CreatePool(ctx context.Context, in CreatePoolInput) (Pool, error) {
	if err := s.authorize(ctx, in.OrganizationID, in.ActorID); err != nil {
		return Pool{}, err
	}
	ok, err := s.d.Organizations.Exists(ctx, in.OrganizationID)
	if err != nil {
		return Pool{}, apperrors.Internal("could not load organization", err)
	}
	if !ok {
		return Pool{}, apperrors.NotFound(apperrors.CodeOrganizationNotFound, "organization not found")
	}

	name := htmlsanitize.PlainText(in.Name)
	if name == "" {
		return Pool{}, apperrors.Validation(apperrors.CodeInvalidName, "pool name is required")
	}
	if err := s.lifecycle.ValidateTargetSize(in.TargetGroupSize); err != nil {
		return Pool{}, err
	}

	now := s.d.Now().UTC()
	p, err := s.d.Pools.Create(ctx, models.Pool{
		ID:              primitive.NewObjectID(),
		OrganizationID:  in.OrganizationID,
		Name:            name,
		Topic:           htmlsanitize.PlainText(in.Topic),
		TargetGroupSize: in.TargetGroupSize,
		Status:          models.PoolDraft,
		CreatedByID:     in.ActorID,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if errors.Is(err, poolstore.ErrDuplicatePoolName) {
		return Pool{}, apperrors.WithMetadata(apperrors.KindConflict, apperrors.CodeDuplicatePoolName,
			"a pool with this name already exists in the organization",
			map[string]string{"name": name})
	}
	if err != nil {
		return Pool{}, apperrors.Internal("could not create pool", err)
	}

	s.d.Audit.PoolCreated(ctx, in.ActorID, p)
	s.d.Log.Info("pool created",
		zap.String("pool_id", p.ID.Hex()),
		zap.String("organization_id", p.OrganizationID.Hex()))
	return toPool(p), nil
}

// GetPool returns a pool the caller administers.
func (s *Service) GetPool(ctx context.Context, poolID, actorID primitive.ObjectID) (Pool, error) {
	p, err := s.authorizedPool(ctx, poolID, actorID)
	if err != nil {
		return Pool{}, err
	}
	return toPool(p), nil
}

// ListPools returns the organization's pools, optionally filtered by status.
func (s *Service) ListPools(ctx context.Context, orgID, actorID primitive.ObjectID, status models.PoolStatus) ([]Pool, error) {
	if err := s.authorize(ctx, orgID, actorID); err != nil {
		return nil, err
	}
	ps, err := s.d.Pools.ListByOrg(ctx, orgID, status)
	if err != nil {
		return nil, apperrors.Internal("could not list pools", err)
	}
	return toPools(ps), nil
}

// CompletePool ends a pool normally.
func (s *Service) CompletePool(ctx context.Context, poolID, actorID primitive.ObjectID) (Pool, error) {
	return s.closePool(ctx, poolID, actorID, s.lifecycle.Complete)
}

// CancelPool abandons a pool from any non-terminal state.
func (s *Service) CancelPool(ctx context.Context, poolID, actorID primitive.ObjectID) (Pool, error) {
	return s.closePool(ctx, poolID, actorID, s.lifecycle.Cancel)
}

func (s *Service) closePool(ctx context.Context, poolID, actorID primitive.ObjectID, step func(models.Pool) (models.Pool, error)) (Pool, error) {
	p, err := s.authorizedPool(ctx, poolID, actorID)
	if err != nil {
		return Pool{}, err
	}
	next, err := step(p)
	if err != nil {
		return Pool{}, err
	}
	out, err := s.casStatus(ctx, p.Status, next)
	if err != nil {
		return Pool{}, err
	}

	s.d.Audit.PoolClosed(ctx, actorID, out)
	s.d.Log.Info("pool closed",
		zap.String("pool_id", out.ID.Hex()),
		zap.String("from", string(p.Status)),
		zap.String("status", string(out.Status)),
		zap.Bool("terminal", lifecycle.IsTerminal(out.Status)))
	return toPool(out), nil
}
