// Package pipeline is the only circle component that touches storage.
//
// Every mutating operation follows the same shape: authorize the caller
// against the pool's organization, fetch what validation needs (fanning
// out independent reads), report missing documents precisely, hand the
// typed values to the pure packages (lifecycle, invitations, assignment,
// membership), and only then write. Responses are shaped here and nowhere
// else.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/dalemusser/circlehub/internal/app/circles/assignment"
	"github.com/dalemusser/circlehub/internal/app/circles/invitations"
	"github.com/dalemusser/circlehub/internal/app/circles/lifecycle"
	"github.com/dalemusser/circlehub/internal/app/circles/membership"
	poolstore "github.com/dalemusser/circlehub/internal/app/store/pools"
	"github.com/dalemusser/circlehub/internal/app/system/apperrors"
	"github.com/dalemusser/circlehub/internal/app/system/auditlog"
	"github.com/dalemusser/circlehub/internal/app/system/mailer"
	"github.com/dalemusser/circlehub/internal/app/system/txn"
	"github.com/dalemusser/circlehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// PoolStore is the subset of poolstore.Store the pipeline uses.
type PoolStore interface {
	Create(ctx context.Context, p models.Pool) (models.Pool, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Pool, error)
	ListByOrg(ctx context.Context, orgID primitive.ObjectID, status models.PoolStatus) ([]models.Pool, error)
	CompareAndSetStatus(ctx context.Context, from models.PoolStatus, next models.Pool) (models.Pool, error)
	IncStats(ctx context.Context, id primitive.ObjectID, invited, accepted int) error
	SetAcceptedCount(ctx context.Context, id primitive.ObjectID, expected, n int) (bool, error)
}

// InvitationStore is the subset of invitationstore.Store the pipeline uses.
type InvitationStore interface {
	InsertMany(ctx context.Context, invs []models.Invitation) error
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Invitation, error)
	GetByTokenHash(ctx context.Context, hash string) (models.Invitation, error)
	ListByPool(ctx context.Context, poolID primitive.ObjectID) ([]models.Invitation, error)
	EmailsForPool(ctx context.Context, poolID primitive.ObjectID) ([]string, error)
	AcceptedUserIDs(ctx context.Context, poolID primitive.ObjectID) ([]primitive.ObjectID, error)
	CountAccepted(ctx context.Context, poolID primitive.ObjectID) (int64, error)
	Respond(ctx context.Context, inv models.Invitation) error
}

// GroupStore is the subset of groupstore.Store the pipeline uses.
type GroupStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.CircleGroup, error)
	ListByPool(ctx context.Context, poolID primitive.ObjectID) ([]models.CircleGroup, error)
	FindByMember(ctx context.Context, poolID, userID primitive.ObjectID) (models.CircleGroup, error)
	Create(ctx context.Context, g models.CircleGroup) (models.CircleGroup, error)
	InsertMany(ctx context.Context, groups []models.CircleGroup) ([]models.CircleGroup, error)
	PushMember(ctx context.Context, groupID primitive.ObjectID, member models.GroupMember, maxSize int) error
	PullMember(ctx context.Context, groupID, userID primitive.ObjectID) error
	SetLeader(ctx context.Context, groupID, userID primitive.ObjectID) (models.CircleGroup, error)
}

// Directory answers identity questions. Implemented by poolpolicy.Directory.
type Directory interface {
	IsOrgAdmin(ctx context.Context, orgID, userID primitive.ObjectID) (bool, error)
	AdministersAny(ctx context.Context, userID primitive.ObjectID) (bool, error)
	DisplayNames(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]string, error)
}

// Organizations reports whether an organization exists.
type Organizations interface {
	Exists(ctx context.Context, id primitive.ObjectID) (bool, error)
}

// InvitationSender delivers invitation emails. Failures stay inside the
// sender.
type InvitationSender interface {
	SendInvitation(ctx context.Context, email, token string, pc mailer.PoolContext)
}

// Transactor runs fn atomically when the deployment allows it.
type Transactor interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

// Config carries the values bootstrap reads from configuration.
type Config struct {
	MinGroupSize int
	MaxGroupSize int
	InviteTTL    time.Duration
}

// Validate rejects bounds that cannot always be satisfied: with
// max >= 2*min-1 every cohort of at least min users has a valid partition.
func (c Config) Validate() error {
	if c.MinGroupSize < 1 {
		return fmt.Errorf("min group size must be at least 1 (got %d)", c.MinGroupSize)
	}
	if c.MaxGroupSize < 2*c.MinGroupSize-1 {
		return fmt.Errorf("max group size %d must be at least 2*min-1 = %d", c.MaxGroupSize, 2*c.MinGroupSize-1)
	}
	return nil
}

// Deps are the collaborators wired in by bootstrap.
type Deps struct {
	Pools         PoolStore
	Invitations   InvitationStore
	Groups        GroupStore
	Directory     Directory
	Organizations Organizations
	Mailer        InvitationSender
	Txn           Transactor
	Audit         *auditlog.Logger // nil disables auditing
	Log           *zap.Logger

	// Now defaults to time.Now; Rand defaults to a crypto-seeded source.
	Now  func() time.Time
	Rand func() (*rand.Rand, error)
}

// Service runs the circle operations.
type Service struct {
	d Deps

	lifecycle  *lifecycle.Manager
	tracker    *invitations.Tracker
	membership *membership.Service
}

// New validates cfg and assembles the pure components around deps.
func New(cfg Config, deps Deps) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Rand == nil {
		deps.Rand = func() (*rand.Rand, error) {
			seed, err := assignment.NewSeed()
			if err != nil {
				return nil, err
			}
			return assignment.NewRand(seed), nil
		}
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Txn == nil {
		deps.Txn = txn.New(nil, deps.Log)
	}
	return &Service{
		d: deps,
		lifecycle: lifecycle.New(lifecycle.Config{
			MinGroupSize: cfg.MinGroupSize,
			MaxGroupSize: cfg.MaxGroupSize,
		}, deps.Now),
		tracker:    invitations.New(cfg.InviteTTL, deps.Now),
		membership: membership.New(cfg.MaxGroupSize, deps.Now),
	}, nil
}

// authorize fails with Forbidden unless actorID administers orgID.
func (s *Service) authorize(ctx context.Context, orgID, actorID primitive.ObjectID) error {
	ok, err := s.d.Directory.IsOrgAdmin(ctx, orgID, actorID)
	if err != nil {
		return apperrors.Internal("could not check organization membership", err)
	}
	if !ok {
		return apperrors.Forbidden(apperrors.CodeNotOrgAdmin, "you are not an administrator of this organization")
	}
	return nil
}

func (s *Service) loadPool(ctx context.Context, poolID primitive.ObjectID) (models.Pool, error) {
	p, err := s.d.Pools.GetByID(ctx, poolID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Pool{}, apperrors.NotFound(apperrors.CodePoolNotFound, "pool not found")
	}
	if err != nil {
		return models.Pool{}, apperrors.Internal("could not load pool", err)
	}
	return p, nil
}

// authorizedPool loads the pool and checks the caller administers its
// organization. The pool read comes first because it names the organization.
func (s *Service) authorizedPool(ctx context.Context, poolID, actorID primitive.ObjectID) (models.Pool, error) {
	p, err := s.loadPool(ctx, poolID)
	if err != nil {
		return models.Pool{}, s.hideMissing(ctx, actorID, err)
	}
	if err := s.authorize(ctx, p.OrganizationID, actorID); err != nil {
		return models.Pool{}, err
	}
	return p, nil
}

func (s *Service) loadGroup(ctx context.Context, groupID primitive.ObjectID, code apperrors.Code, what string) (models.CircleGroup, error) {
	g, err := s.d.Groups.GetByID(ctx, groupID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.CircleGroup{}, apperrors.WithMetadata(apperrors.KindNotFound, code,
			what+" not found", map[string]string{"groupId": groupID.Hex()})
	}
	if err != nil {
		return models.CircleGroup{}, apperrors.Internal("could not load "+what, err)
	}
	return g, nil
}

// hideMissing turns a NotFound into NOT_ORG_ADMIN when actorID administers
// no organization at all, so such callers cannot test IDs for existence.
func (s *Service) hideMissing(ctx context.Context, actorID primitive.ObjectID, err error) error {
	if apperrors.KindOf(err) != apperrors.KindNotFound {
		return err
	}
	admin, aerr := s.d.Directory.AdministersAny(ctx, actorID)
	if aerr != nil {
		return apperrors.Internal("could not check organization membership", aerr)
	}
	if !admin {
		return apperrors.Forbidden(apperrors.CodeNotOrgAdmin, "you are not an administrator of this organization")
	}
	return err
}

// casStatus writes next if the stored pool is still in from.
func (s *Service) casStatus(ctx context.Context, from models.PoolStatus, next models.Pool) (models.Pool, error) {
	out, err := s.d.Pools.CompareAndSetStatus(ctx, from, next)
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.Pool{}, apperrors.NotFound(apperrors.CodePoolNotFound, "pool not found")
	case errors.Is(err, poolstore.ErrStatusChanged):
		return models.Pool{}, apperrors.WithMetadata(apperrors.KindConflict, apperrors.CodeStatusChanged,
			"pool status was changed by another request; reload and try again",
			map[string]string{"expected": string(from)})
	default:
		return models.Pool{}, internal("could not update pool status", err)
	}
}

// partialWrite reports a failure after completed has already been written.
// Inside a transaction the earlier write rolls back, so the failure is a
// plain Internal error.
func partialWrite(ctx context.Context, completed string, err error) error {
	if txn.Active(ctx) {
		return internal("write failed", err)
	}
	e := apperrors.WithMetadata(apperrors.KindInternal, apperrors.CodePartialWrite,
		"operation partially applied; manual reconciliation required",
		map[string]string{"completed": completed})
	e.Err = err
	return e
}

// internal passes typed errors through and wraps everything else.
func internal(msg string, err error) error {
	var ae *apperrors.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperrors.Internal(msg, err)
}
