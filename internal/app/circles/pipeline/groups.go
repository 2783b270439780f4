package pipeline

import (
	"context"
	"errors"

	"github.com/dalemusser/circlehub/internal/app/circles/assignment"
	"github.com/dalemusser/circlehub/internal/app/circles/membership"
	groupstore "github.com/dalemusser/circlehub/internal/app/store/groups"
	"github.com/dalemusser/circlehub/internal/app/system/apperrors"
	"github.com/dalemusser/circlehub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/circlehub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AssignGroups partitions the pool's accepted participants into circles
// and activates the pool. Users already placed in a group (for example
// by hand into an admin-created group) are left where they are.
func (s *Service) AssignGroups(ctx context.Context, poolID, actorID primitive.ObjectID) ([]Group, error) {
	p, err := s.authorizedPool(ctx, poolID, actorID)
	if err != nil {
		return nil, err
	}

	var (
		accepted []primitive.ObjectID
		existing []models.CircleGroup
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accepted, err = s.d.Invitations.AcceptedUserIDs(gctx, p.ID)
		return err
	})
	g.Go(func() error {
		var err error
		existing, err = s.d.Groups.ListByPool(gctx, p.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperrors.Internal("could not load pool participants", err)
	}

	assigning, err := s.lifecycle.BeginAssign(p, len(accepted))
	if err != nil {
		return nil, err
	}

	grouped := make(map[primitive.ObjectID]bool)
	taken := make(map[string]bool, len(existing))
	for _, eg := range existing {
		taken[eg.NameCI] = true
		for _, m := range eg.Members {
			grouped[m.UserID] = true
		}
	}
	remaining := make([]primitive.ObjectID, 0, len(accepted))
	for _, id := range accepted {
		if !grouped[id] {
			remaining = append(remaining, id)
		}
	}

	names, err := s.d.Directory.DisplayNames(ctx, remaining)
	if err != nil {
		return nil, apperrors.Internal("could not load participant names", err)
	}
	rng, err := s.d.Rand()
	if err != nil {
		return nil, apperrors.Internal("could not seed group assignment", err)
	}
	parts, err := assignment.Divide(remaining, assignment.Bounds{
		Target: p.TargetGroupSize,
		Min:    s.lifecycle.MinGroupSize(),
		Max:    s.lifecycle.MaxGroupSize(),
	}, rng)
	if err != nil {
		return nil, err
	}

	labels := assignment.GroupNames(len(parts), func(name string) bool { return taken[text.Fold(name)] })
	groups := make([]models.CircleGroup, 0, len(parts))
	for i, ids := range parts {
		groups = append(groups, s.membership.BuildGroupDocument(p.ID, labels[i], s.membership.MembersFor(ids, names)))
	}

	var stored []models.CircleGroup
	var active models.Pool
	err = s.d.Txn.Run(ctx, func(ctx context.Context) error {
		if _, err := s.casStatus(ctx, models.PoolInviting, assigning); err != nil {
			return err
		}
		var err error
		stored, err = s.d.Groups.InsertMany(ctx, groups)
		if err != nil {
			return partialWrite(ctx, "status_assigning", err)
		}
		next, err := s.lifecycle.FinishAssign(assigning)
		if err != nil {
			return err
		}
		active, err = s.casStatus(ctx, models.PoolAssigning, next)
		if err != nil {
			return partialWrite(ctx, "groups_inserted", err)
		}
		return nil
	})
	if err != nil {
		s.d.Log.Error("group assignment failed",
			zap.String("pool_id", p.ID.Hex()),
			zap.String("code", string(apperrors.CodeOf(err))),
			zap.Error(err))
		return nil, internal("could not store groups", err)
	}

	s.d.Audit.GroupsAssigned(ctx, actorID, active, len(stored), len(remaining))
	s.d.Log.Info("groups assigned",
		zap.String("pool_id", p.ID.Hex()),
		zap.Int("groups", len(stored)),
		zap.Int("participants", len(remaining)))
	return toGroups(stored), nil
}

// MoveMemberInput names a member and the two groups of a move.
type MoveMemberInput struct {
	PoolID        primitive.ObjectID
	SourceGroupID primitive.ObjectID
	TargetGroupID primitive.ObjectID
	MemberID      primitive.ObjectID
	ActorID       primitive.ObjectID
}

// MoveMember moves one member between two groups of the same pool. The
// target's capacity is enforced both here and by the store's guarded
// push, so concurrent moves cannot over-fill a group.
func (s *Service) MoveMember(ctx context.Context, in MoveMemberInput) (MoveResult, error) {
	p, err := s.authorizedPool(ctx, in.PoolID, in.ActorID)
	if err != nil {
		return MoveResult{}, err
	}
	if err := s.lifecycle.CheckGroupMutation(p); err != nil {
		return MoveResult{}, err
	}
	if err := membership.ValidateDistinctGroups(in.SourceGroupID, in.TargetGroupID); err != nil {
		return MoveResult{}, err
	}

	var source, target models.CircleGroup
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		source, err = s.loadGroup(gctx, in.SourceGroupID, apperrors.CodeSourceGroupNotFound, "source group")
		return err
	})
	g.Go(func() error {
		var err error
		target, err = s.loadGroup(gctx, in.TargetGroupID, apperrors.CodeTargetGroupNotFound, "target group")
		return err
	})
	if err := g.Wait(); err != nil {
		return MoveResult{}, err
	}
	for _, grp := range []models.CircleGroup{source, target} {
		if grp.PoolID != p.ID {
			return MoveResult{}, apperrors.WithMetadata(apperrors.KindValidation, apperrors.CodeGroupPoolMismatch,
				grp.Name+" does not belong to this pool",
				map[string]string{"groupId": grp.ID.Hex(), "poolId": p.ID.Hex()})
		}
	}

	member, err := s.membership.ValidateAndPrepareMove(source, target, in.MemberID)
	if err != nil {
		return MoveResult{}, err
	}

	err = s.d.Txn.Run(ctx, func(ctx context.Context) error {
		err := s.d.Groups.PushMember(ctx, target.ID, member, s.membership.MaxGroupSize())
		if errors.Is(err, groupstore.ErrPushRejected) {
			return apperrors.WithMetadata(apperrors.KindValidation, apperrors.CodeGroupFull,
				target.Name+" is full",
				map[string]string{"groupId": target.ID.Hex()})
		}
		if err != nil {
			return apperrors.Internal("could not add member to target group", err)
		}
		if err := s.d.Groups.PullMember(ctx, source.ID, member.UserID); err != nil {
			return partialWrite(ctx, "added_to_target", err)
		}
		return nil
	})
	if err != nil {
		return MoveResult{}, internal("could not move member", err)
	}

	from, to := membership.ApplyMove(source, target, member)
	s.d.Audit.MemberMoved(ctx, in.ActorID, p, member.UserID, source.ID, target.ID)
	s.d.Log.Info("member moved",
		zap.String("pool_id", p.ID.Hex()),
		zap.String("member_id", member.UserID.Hex()),
		zap.String("from", source.ID.Hex()),
		zap.String("to", target.ID.Hex()))
	return MoveResult{
		FromGroup:   toGroup(from),
		ToGroup:     toGroup(to),
		MovedMember: toMember(member, false),
	}, nil
}

// SetLeader makes userID the leader of the group.
func (s *Service) SetLeader(ctx context.Context, groupID, userID, actorID primitive.ObjectID) (Group, error) {
	grp, err := s.loadGroup(ctx, groupID, apperrors.CodeGroupNotFound, "group")
	if err != nil {
		return Group{}, s.hideMissing(ctx, actorID, err)
	}
	p, err := s.authorizedPool(ctx, grp.PoolID, actorID)
	if err != nil {
		return Group{}, err
	}
	if err := s.lifecycle.CheckGroupMutation(p); err != nil {
		return Group{}, err
	}
	if _, err := s.membership.SetLeader(grp, userID); err != nil {
		return Group{}, err
	}

	out, err := s.d.Groups.SetLeader(ctx, grp.ID, userID)
	if errors.Is(err, groupstore.ErrNotMember) {
		return Group{}, apperrors.WithMetadata(apperrors.KindValidation, apperrors.CodeNotAMember,
			"leader must be a member of the group",
			map[string]string{"groupId": grp.ID.Hex(), "userId": userID.Hex()})
	}
	if err != nil {
		return Group{}, apperrors.Internal("could not set group leader", err)
	}

	s.d.Audit.LeaderSet(ctx, actorID, p, grp.ID, userID)
	return toGroup(out), nil
}

// CreateGroup adds an empty, named group to the pool.
func (s *Service) CreateGroup(ctx context.Context, poolID primitive.ObjectID, name string, actorID primitive.ObjectID) (Group, error) {
	p, err := s.authorizedPool(ctx, poolID, actorID)
	if err != nil {
		return Group{}, err
	}
	if err := s.lifecycle.CheckGroupMutation(p); err != nil {
		return Group{}, err
	}
	name = htmlsanitize.PlainText(name)
	if name == "" {
		return Group{}, apperrors.Validation(apperrors.CodeInvalidName, "group name is required")
	}

	existing, err := s.d.Groups.ListByPool(ctx, p.ID)
	if err != nil {
		return Group{}, apperrors.Internal("could not load groups", err)
	}
	if err := membership.ValidateGroupNameUnique(existing, name); err != nil {
		return Group{}, err
	}

	out, err := s.d.Groups.Create(ctx, s.membership.BuildGroupDocument(p.ID, name, nil))
	if errors.Is(err, groupstore.ErrDuplicateGroupName) {
		return Group{}, apperrors.Validation(apperrors.CodeDuplicateGroupName,
			"a group with this name already exists in this pool")
	}
	if err != nil {
		return Group{}, apperrors.Internal("could not create group", err)
	}

	s.d.Audit.GroupCreated(ctx, actorID, p, out)
	return toGroup(out), nil
}

// ListGroups returns every group in the pool.
func (s *Service) ListGroups(ctx context.Context, poolID, actorID primitive.ObjectID) ([]Group, error) {
	p, err := s.authorizedPool(ctx, poolID, actorID)
	if err != nil {
		return nil, err
	}
	gs, err := s.d.Groups.ListByPool(ctx, p.ID)
	if err != nil {
		return nil, apperrors.Internal("could not list groups", err)
	}
	return toGroups(gs), nil
}

// CheckGroupMember fails with Forbidden unless userID belongs to the group.
func (s *Service) CheckGroupMember(ctx context.Context, groupID, userID primitive.ObjectID) (Group, error) {
	grp, err := s.loadGroup(ctx, groupID, apperrors.CodeGroupNotFound, "group")
	if err != nil {
		return Group{}, err
	}
	if err := membership.ValidateUserIsGroupMember(grp, userID); err != nil {
		return Group{}, err
	}
	return toGroup(grp), nil
}

// MyGroup returns the circle userID was placed in within poolID.
func (s *Service) MyGroup(ctx context.Context, poolID, userID primitive.ObjectID) (Group, error) {
	p, err := s.loadPool(ctx, poolID)
	if err != nil {
		return Group{}, err
	}
	grp, err := s.d.Groups.FindByMember(ctx, p.ID, userID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Group{}, apperrors.WithMetadata(apperrors.KindForbidden, apperrors.CodeNotAMember,
			"you have not been placed in a circle in this pool",
			map[string]string{"poolId": p.ID.Hex()})
	}
	if err != nil {
		return Group{}, apperrors.Internal("could not load circle", err)
	}
	return toGroup(grp), nil
}
