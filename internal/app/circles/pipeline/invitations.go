package pipeline

import (
	"context"
	"errors"

	"github.com/dalemusser/circlehub/internal/app/circles/invitations"
	invitationstore "github.com/dalemusser/circlehub/internal/app/store/invitations"
	"github.com/dalemusser/circlehub/internal/app/system/apperrors"
	"github.com/dalemusser/circlehub/internal/app/system/mailer"
	"github.com/dalemusser/circlehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// respondAttempts bounds how often accept/decline re-read an invitation
// that another request answered first.
const respondAttempts = 2

// InviteMembers issues one invitation per email and mails the tokens. The
// first send moves a draft pool to inviting.
func (s *Service) InviteMembers(ctx context.Context, poolID primitive.ObjectID, emails []string, actorID primitive.ObjectID) ([]Invitation, error) {
	p, err := s.authorizedPool(ctx, poolID, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.lifecycle.CheckInvite(p); err != nil {
		return nil, err
	}

	existing, err := s.d.Invitations.EmailsForPool(ctx, p.ID)
	if err != nil {
		return nil, apperrors.Internal("could not load existing invitations", err)
	}
	issued, err := s.tracker.Issue(p.ID, emails, existing)
	if err != nil {
		return nil, err
	}

	invs := make([]models.Invitation, len(issued))
	for i, is := range issued {
		invs[i] = is.Invitation
	}

	current := p
	err = s.d.Txn.Run(ctx, func(ctx context.Context) error {
		current = p
		if err := s.d.Invitations.InsertMany(ctx, invs); err != nil {
			return insertInvitationsErr(err)
		}
		if err := s.d.Pools.IncStats(ctx, p.ID, len(invs), 0); err != nil {
			return partialWrite(ctx, "invitations_inserted", err)
		}
		if p.Status != models.PoolDraft {
			current.Stats.TotalInvited += len(invs)
			return nil
		}
		next, err := s.lifecycle.BeginInviting(p)
		if err != nil {
			return err
		}
		out, err := s.casStatus(ctx, models.PoolDraft, next)
		if apperrors.IsCode(err, apperrors.CodeStatusChanged) {
			// Another send already opened the pool.
			reread, rerr := s.d.Pools.GetByID(ctx, p.ID)
			if rerr == nil && reread.Status == models.PoolInviting {
				current = reread
				return nil
			}
		}
		if err != nil {
			return partialWrite(ctx, "invitations_inserted", err)
		}
		current = out
		return nil
	})
	if err != nil {
		return nil, internal("could not store invitations", err)
	}

	pc := mailer.PoolContext{
		PoolID:   current.ID,
		PoolName: current.Name,
		Topic:    current.Topic,
	}
	for _, is := range issued {
		pc.ExpiresAt = is.Invitation.ExpiresAt
		s.d.Mailer.SendInvitation(ctx, is.Invitation.Email, is.Token, pc)
	}

	s.d.Audit.InvitationsSent(ctx, actorID, current, len(invs))
	s.d.Log.Info("invitations sent",
		zap.String("pool_id", current.ID.Hex()),
		zap.Int("count", len(invs)),
		zap.String("status", string(current.Status)))

	out := make([]Invitation, 0, len(invs))
	for _, inv := range invs {
		out = append(out, withPool(toInvitation(inv), current))
	}
	return out, nil
}

func insertInvitationsErr(err error) error {
	switch {
	case errors.Is(err, invitationstore.ErrDuplicateEmail):
		return apperrors.Conflict(apperrors.CodeDuplicateEmail, "one of these addresses has already been invited to this pool")
	case errors.Is(err, invitationstore.ErrDuplicateToken):
		return apperrors.Conflict(apperrors.CodeDuplicateToken, "invitation token collision; please retry")
	default:
		return apperrors.Internal("could not insert invitations", err)
	}
}

// ResolveInvitation looks up the invitation behind token for display.
func (s *Service) ResolveInvitation(ctx context.Context, token string) (Invitation, error) {
	inv, err := s.invitationByToken(ctx, token)
	if err != nil {
		return Invitation{}, err
	}
	if err := s.tracker.CheckResolvable(inv); err != nil {
		return Invitation{}, err
	}
	p, err := s.loadPool(ctx, inv.PoolID)
	if err != nil {
		return Invitation{}, err
	}
	return withPool(toInvitation(inv), p), nil
}

// AcceptInvitation records userID accepting the invitation behind token
// and bumps the pool's accepted counter. Re-accepting by the same user
// returns the stored invitation without counting again.
func (s *Service) AcceptInvitation(ctx context.Context, token string, userID primitive.ObjectID) (Invitation, error) {
	inv, err := s.invitationByToken(ctx, token)
	if err != nil {
		return Invitation{}, err
	}

	for attempt := 1; ; attempt++ {
		accepted, changed, err := s.tracker.Accept(inv, userID)
		if err != nil {
			return Invitation{}, err
		}
		p, err := s.loadPool(ctx, inv.PoolID)
		if err != nil {
			return Invitation{}, err
		}
		if !changed {
			p = s.repairAcceptedCount(ctx, p)
			return withPool(toInvitation(accepted), p), nil
		}
		if err := s.lifecycle.CheckInvite(p); err != nil {
			return Invitation{}, err
		}

		err = s.d.Txn.Run(ctx, func(ctx context.Context) error {
			if err := s.d.Invitations.Respond(ctx, accepted); err != nil {
				return err
			}
			if err := s.d.Pools.IncStats(ctx, p.ID, 0, 1); err != nil {
				return partialWrite(ctx, "invitation_accepted", err)
			}
			return nil
		})
		if errors.Is(err, invitationstore.ErrNotPending) && attempt < respondAttempts {
			if inv, err = s.reloadInvitation(ctx, inv.ID); err != nil {
				return Invitation{}, err
			}
			continue
		}
		if errors.Is(err, invitationstore.ErrNotPending) {
			return Invitation{}, apperrors.Conflict(apperrors.CodeAlreadyResponded, "invitation has already been responded to")
		}
		if err != nil {
			return Invitation{}, internal("could not accept invitation", err)
		}

		p.Stats.TotalAccepted++
		s.d.Audit.InvitationAccepted(ctx, userID, p, accepted)
		s.d.Log.Info("invitation accepted",
			zap.String("pool_id", p.ID.Hex()),
			zap.String("invitation_id", accepted.ID.Hex()),
			zap.String("user_id", userID.Hex()))
		return withPool(toInvitation(accepted), p), nil
	}
}

// DeclineInvitation records a decline. Declining twice is a no-op.
func (s *Service) DeclineInvitation(ctx context.Context, token string) (Invitation, error) {
	inv, err := s.invitationByToken(ctx, token)
	if err != nil {
		return Invitation{}, err
	}

	for attempt := 1; ; attempt++ {
		declined, changed, err := s.tracker.Decline(inv)
		if err != nil {
			return Invitation{}, err
		}
		p, err := s.loadPool(ctx, inv.PoolID)
		if err != nil {
			return Invitation{}, err
		}
		if !changed {
			return withPool(toInvitation(declined), p), nil
		}

		err = s.d.Invitations.Respond(ctx, declined)
		if errors.Is(err, invitationstore.ErrNotPending) && attempt < respondAttempts {
			if inv, err = s.reloadInvitation(ctx, inv.ID); err != nil {
				return Invitation{}, err
			}
			continue
		}
		if errors.Is(err, invitationstore.ErrNotPending) {
			return Invitation{}, apperrors.Conflict(apperrors.CodeAlreadyResponded, "invitation has already been responded to")
		}
		if err != nil {
			return Invitation{}, apperrors.Internal("could not decline invitation", err)
		}

		s.d.Audit.InvitationDeclined(ctx, p, declined)
		return withPool(toInvitation(declined), p), nil
	}
}

// repairAcceptedCount brings stats.total_accepted back in line with the
// accepted invitations. Without transactions an accept can land while its
// counter bump fails; the user's retry arrives here and closes the gap.
// Failures are logged and p is returned unchanged.
func (s *Service) repairAcceptedCount(ctx context.Context, p models.Pool) models.Pool {
	n, err := s.d.Invitations.CountAccepted(ctx, p.ID)
	if err != nil {
		s.d.Log.Warn("could not count accepted invitations", zap.String("pool_id", p.ID.Hex()), zap.Error(err))
		return p
	}
	if int(n) == p.Stats.TotalAccepted {
		return p
	}
	applied, err := s.d.Pools.SetAcceptedCount(ctx, p.ID, p.Stats.TotalAccepted, int(n))
	if err != nil || !applied {
		s.d.Log.Warn("accepted counter not repaired",
			zap.String("pool_id", p.ID.Hex()),
			zap.Bool("raced", err == nil),
			zap.Error(err))
		return p
	}
	s.d.Log.Warn("accepted counter repaired",
		zap.String("pool_id", p.ID.Hex()),
		zap.Int("was", p.Stats.TotalAccepted),
		zap.Int64("now", n))
	p.Stats.TotalAccepted = int(n)
	return p
}

// ListInvitations returns every invitation of a pool the caller administers.
func (s *Service) ListInvitations(ctx context.Context, poolID, actorID primitive.ObjectID) ([]Invitation, error) {
	p, err := s.authorizedPool(ctx, poolID, actorID)
	if err != nil {
		return nil, err
	}
	invs, err := s.d.Invitations.ListByPool(ctx, p.ID)
	if err != nil {
		return nil, apperrors.Internal("could not list invitations", err)
	}
	out := make([]Invitation, 0, len(invs))
	for _, inv := range invs {
		out = append(out, withPool(toInvitation(inv), p))
	}
	return out, nil
}

func (s *Service) invitationByToken(ctx context.Context, token string) (models.Invitation, error) {
	if token == "" {
		return models.Invitation{}, apperrors.NotFound(apperrors.CodeInvitationNotFound, "invitation not found")
	}
	inv, err := s.d.Invitations.GetByTokenHash(ctx, invitations.HashToken(token))
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Invitation{}, apperrors.NotFound(apperrors.CodeInvitationNotFound, "invitation not found")
	}
	if err != nil {
		return models.Invitation{}, apperrors.Internal("could not load invitation", err)
	}
	return inv, nil
}

func (s *Service) reloadInvitation(ctx context.Context, id primitive.ObjectID) (models.Invitation, error) {
	inv, err := s.d.Invitations.GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Invitation{}, apperrors.NotFound(apperrors.CodeInvitationNotFound, "invitation not found")
	}
	if err != nil {
		return models.Invitation{}, apperrors.Internal("could not reload invitation", err)
	}
	return inv, nil
}

func withPool(inv Invitation, p models.Pool) Invitation {
	inv.PoolName = p.Name
	inv.PoolTopic = p.Topic
	return inv
}
