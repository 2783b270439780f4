package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/circlehub/internal/app/circles/invitations"
	"github.com/dalemusser/circlehub/internal/app/store/audit"
	"github.com/dalemusser/circlehub/internal/app/system/apperrors"
	"github.com/dalemusser/circlehub/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// invite sends invitations to emails and returns the raw tokens the mailer
// received, keyed by email.
func (h *harness) invite(t *testing.T, p models.Pool, emails ...string) map[string]string {
	t.Helper()
	before := len(h.mail.sent)
	_, err := h.svc.InviteMembers(context.Background(), p.ID, emails, h.admin)
	require.NoError(t, err)
	tokens := make(map[string]string)
	for _, s := range h.mail.sent[before:] {
		tokens[s.Email] = s.Token
	}
	return tokens
}

func TestInviteMembers_OpensDraftPool(t *testing.T) {
	h := newHarness(t)
	p := h.pool(t, models.PoolDraft, 4)

	out, err := h.svc.InviteMembers(context.Background(), p.ID,
		[]string{" Ada@Example.com", "grace@example.com"}, h.admin)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "ada@example.com", out[0].Email)
	assert.Equal(t, string(models.InvitationPending), out[0].Status)
	assert.Equal(t, p.Name, out[0].PoolName)
	assert.True(t, out[0].ExpiresAt.Equal(baseTime.Add(48*time.Hour)))

	stored := h.pools.get(t, p.ID)
	assert.Equal(t, models.PoolInviting, stored.Status)
	assert.Equal(t, 2, stored.Stats.TotalInvited)

	require.Len(t, h.mail.sent, 2)
	for _, s := range h.mail.sent {
		inv, err := h.invs.GetByTokenHash(context.Background(), invitations.HashToken(s.Token))
		require.NoError(t, err, "token mailed to %s does not resolve", s.Email)
		assert.Equal(t, s.Email, inv.Email)
		assert.NotEqual(t, s.Token, inv.TokenHash)
		assert.Equal(t, p.Name, s.Pool.PoolName)
		assert.Equal(t, p.ID, s.Pool.PoolID)
		assert.Equal(t, inv.ExpiresAt, s.Pool.ExpiresAt)
	}
	assert.Equal(t, 1, h.auditEvents(audit.EventInvitationsSent))
}

func TestInviteMembers_InvitingPoolKeepsStatus(t *testing.T) {
	h := newHarness(t)
	p := h.pool(t, models.PoolInviting, 4)

	h.invite(t, p, "a@example.com")
	h.invite(t, p, "b@example.com", "c@example.com")

	stored := h.pools.get(t, p.ID)
	assert.Equal(t, models.PoolInviting, stored.Status)
	assert.Equal(t, 3, stored.Stats.TotalInvited)
}

func TestInviteMembers_Rejections(t *testing.T) {
	h := newHarness(t)
	p := h.pool(t, models.PoolInviting, 4)
	h.invite(t, p, "taken@example.com")
	sent := len(h.mail.sent)

	tests := []struct {
		name   string
		poolID primitive.ObjectID
		actor  primitive.ObjectID
		emails []string
		code   apperrors.Code
	}{
		{"pool not found", primitive.NewObjectID(), h.admin, []string{"a@example.com"}, apperrors.CodePoolNotFound},
		{"not an org admin", p.ID, primitive.NewObjectID(), []string{"a@example.com"}, apperrors.CodeNotOrgAdmin},
		{"already invited", p.ID, h.admin, []string{"new@example.com", "TAKEN@example.com"}, apperrors.CodeDuplicateEmail},
		{"duplicate in batch", p.ID, h.admin, []string{"x@example.com", "X@example.com"}, apperrors.CodeDuplicateEmail},
		{"malformed", p.ID, h.admin, []string{"nope"}, apperrors.CodeInvalidEmail},
		{"empty", p.ID, h.admin, nil, apperrors.CodeNoEmails},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.InviteMembers(context.Background(), tt.poolID, tt.emails, tt.actor)
			assert.Equal(t, tt.code, apperrors.CodeOf(err), "err=%v", err)
		})
	}

	assert.Len(t, h.mail.sent, sent, "rejected batches must not send mail")
	assert.Equal(t, 1, h.pools.get(t, p.ID).Stats.TotalInvited)
	emails, err := h.invs.EmailsForPool(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"taken@example.com"}, emails)
}

func TestInviteMembers_StoreDuplicateIsConflict(t *testing.T) {
	h := newHarness(t)
	p := h.pool(t, models.PoolInviting, 4)

	issued, err := h.svc.tracker.Issue(p.ID, []string{"late@example.com"}, nil)
	require.NoError(t, err)
	// A concurrent send stored the same address after our read.
	h.invs.set(models.Invitation{
		ID: primitive.NewObjectID(), PoolID: p.ID, Email: "late@example.com", EmailCI: "late@example.com",
		TokenHash: "other", Status: models.InvitationPending,
	})

	err = insertInvitationsErr(h.invs.InsertMany(context.Background(), []models.Invitation{issued[0].Invitation}))
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	assert.Equal(t, apperrors.CodeDuplicateEmail, apperrors.CodeOf(err))
}

func TestResolveInvitation(t *testing.T) {
	h := newHarness(t)
	p := h.pool(t, models.PoolDraft, 4)
	tokens := h.invite(t, p, "ada@example.com")

	out, err := h.svc.ResolveInvitation(context.Background(), tokens["ada@example.com"])
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", out.Email)
	assert.Equal(t, p.Name, out.PoolName)
	assert.Equal(t, p.Topic, out.PoolTopic)

	_, err = h.svc.ResolveInvitation(context.Background(), "no-such-token")
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	assert.Equal(t, apperrors.CodeInvitationNotFound, apperrors.CodeOf(err))

	h.clock.advance(49 * time.Hour)
	_, err = h.svc.ResolveInvitation(context.Background(), tokens["ada@example.com"])
	assert.Equal(t, apperrors.KindExpired, apperrors.KindOf(err))
}

func TestAcceptInvitation_CountsOnce(t *testing.T) {
	h := newHarness(t)
	p := h.pool(t, models.PoolDraft, 4)
	tokens := h.invite(t, p, "ada@example.com")
	user := primitive.NewObjectID()

	first, err := h.svc.AcceptInvitation(context.Background(), tokens["ada@example.com"], user)
	require.NoError(t, err)
	assert.Equal(t, string(models.InvitationAccepted), first.Status)
	assert.Equal(t, user.Hex(), first.AcceptedByUserID)
	assert.Equal(t, 1, h.pools.get(t, p.ID).Stats.TotalAccepted)

	second, err := h.svc.AcceptInvitation(context.Background(), tokens["ada@example.com"], user)
	require.NoError(t, err)
	assert.Equal(t, first.RespondedAt, second.RespondedAt)
	assert.Equal(t, 1, h.pools.get(t, p.ID).Stats.TotalAccepted, "re-accept must not count twice")
	assert.Equal(t, 1, h.auditEvents(audit.EventInvitationAccepted))

	_, err = h.svc.AcceptInvitation(context.Background(), tokens["ada@example.com"], primitive.NewObjectID())
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	assert.Equal(t, apperrors.CodeAlreadyAccepted, apperrors.CodeOf(err))
}

func TestAcceptInvitation_Rejections(t *testing.T) {
	h := newHarness(t)
	p := h.pool(t, models.PoolDraft, 4)
	tokens := h.invite(t, p, "a@example.com", "b@example.com", "c@example.com")
	ctx := context.Background()

	_, err := h.svc.AcceptInvitation(ctx, "missing", primitive.NewObjectID())
	assert.Equal(t, apperrors.CodeInvitationNotFound, apperrors.CodeOf(err))

	_, err = h.svc.DeclineInvitation(ctx, tokens["a@example.com"])
	require.NoError(t, err)
	_, err = h.svc.AcceptInvitation(ctx, tokens["a@example.com"], primitive.NewObjectID())
	assert.Equal(t, apperrors.CodeAlreadyResponded, apperrors.CodeOf(err))

	closed := h.pools.get(t, p.ID)
	closed.Status = models.PoolActive
	h.pools.pools[p.ID] = closed
	_, err = h.svc.AcceptInvitation(ctx, tokens["b@example.com"], primitive.NewObjectID())
	assert.Equal(t, apperrors.CodeInvitingClosed, apperrors.CodeOf(err))

	closed.Status = models.PoolInviting
	h.pools.pools[p.ID] = closed
	h.clock.advance(49 * time.Hour)
	_, err = h.svc.AcceptInvitation(ctx, tokens["c@example.com"], primitive.NewObjectID())
	assert.Equal(t, apperrors.KindExpired, apperrors.KindOf(err))

	assert.Zero(t, h.pools.get(t, p.ID).Stats.TotalAccepted)
}

func TestAcceptInvitation_LosesRace(t *testing.T) {
	h := newHarness(t)
	p := h.pool(t, models.PoolInviting, 4)
	tokens := h.invite(t, p, "ada@example.com")
	rival := primitive.NewObjectID()

	// Another user accepts between our read and our write.
	h.invs.beforeRespond = func(id primitive.ObjectID) {
		h.invs.beforeRespond = nil
		inv, err := h.invs.GetByID(context.Background(), id)
		require.NoError(t, err)
		at := baseTime
		inv.Status = models.InvitationAccepted
		inv.AcceptedByUserID = &rival
		inv.RespondedAt = &at
		h.invs.set(inv)
	}

	_, err := h.svc.AcceptInvitation(context.Background(), tokens["ada@example.com"], primitive.NewObjectID())
	assert.Equal(t, apperrors.CodeAlreadyAccepted, apperrors.CodeOf(err))
	assert.Zero(t, h.pools.get(t, p.ID).Stats.TotalAccepted)
}

func TestAcceptInvitation_RaceWithSameUser(t *testing.T) {
	h := newHarness(t)
	p := h.pool(t, models.PoolInviting, 4)
	tokens := h.invite(t, p, "ada@example.com")
	user := primitive.NewObjectID()

	h.invs.beforeRespond = func(id primitive.ObjectID) {
		h.invs.beforeRespond = nil
		inv, _ := h.invs.GetByID(context.Background(), id)
		at := baseTime
		inv.Status = models.InvitationAccepted
		inv.AcceptedByUserID = &user
		inv.RespondedAt = &at
		h.invs.set(inv)
	}

	out, err := h.svc.AcceptInvitation(context.Background(), tokens["ada@example.com"], user)
	require.NoError(t, err)
	assert.Equal(t, user.Hex(), out.AcceptedByUserID)
}

func TestDeclineInvitation(t *testing.T) {
	h := newHarness(t)
	p := h.pool(t, models.PoolInviting, 4)
	tokens := h.invite(t, p, "ada@example.com", "bob@example.com")
	ctx := context.Background()

	out, err := h.svc.DeclineInvitation(ctx, tokens["ada@example.com"])
	require.NoError(t, err)
	assert.Equal(t, string(models.InvitationDeclined), out.Status)

	again, err := h.svc.DeclineInvitation(ctx, tokens["ada@example.com"])
	require.NoError(t, err)
	assert.Equal(t, out.RespondedAt, again.RespondedAt)
	assert.Equal(t, 1, h.auditEvents(audit.EventInvitationDeclined))

	_, err = h.svc.AcceptInvitation(ctx, tokens["bob@example.com"], primitive.NewObjectID())
	require.NoError(t, err)
	_, err = h.svc.DeclineInvitation(ctx, tokens["bob@example.com"])
	assert.Equal(t, apperrors.CodeAlreadyResponded, apperrors.CodeOf(err))

	_, err = h.svc.DeclineInvitation(ctx, "")
	assert.Equal(t, apperrors.CodeInvitationNotFound, apperrors.CodeOf(err))
	assert.Equal(t, 1, h.pools.get(t, p.ID).Stats.TotalAccepted)
}

func TestListInvitations(t *testing.T) {
	h := newHarness(t)
	p := h.pool(t, models.PoolDraft, 4)
	other := h.pool(t, models.PoolInviting, 4)
	tokens := h.invite(t, p, "ada@example.com", "bob@example.com")
	h.invite(t, other, "carol@example.com")
	ctx := context.Background()

	_, err := h.svc.DeclineInvitation(ctx, tokens["bob@example.com"])
	require.NoError(t, err)

	out, err := h.svc.ListInvitations(ctx, p.ID, h.admin)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "ada@example.com", out[0].Email)
	assert.Equal(t, string(models.InvitationPending), out[0].Status)
	assert.Equal(t, string(models.InvitationDeclined), out[1].Status)
	assert.Equal(t, p.Name, out[1].PoolName)

	_, err = h.svc.ListInvitations(ctx, p.ID, primitive.NewObjectID())
	assert.Equal(t, apperrors.CodeNotOrgAdmin, apperrors.CodeOf(err))
}

func TestAcceptInvitation_RetryRepairsCounter(t *testing.T) {
	h := newHarness(t)
	p := h.pool(t, models.PoolInviting, 4)
	tokens := h.invite(t, p, "ada@example.com")
	user := primitive.NewObjectID()
	ctx := context.Background()

	h.pools.incErr = errBoom
	_, err := h.svc.AcceptInvitation(ctx, tokens["ada@example.com"], user)
	assert.Equal(t, apperrors.CodePartialWrite, apperrors.CodeOf(err))
	assert.Zero(t, h.pools.get(t, p.ID).Stats.TotalAccepted, "counter bump was lost")

	out, err := h.svc.AcceptInvitation(ctx, tokens["ada@example.com"], user)
	require.NoError(t, err)
	assert.Equal(t, string(models.InvitationAccepted), out.Status)
	assert.Equal(t, 1, h.pools.get(t, p.ID).Stats.TotalAccepted, "retry restores the counter")

	_, err = h.svc.AcceptInvitation(ctx, tokens["ada@example.com"], user)
	require.NoError(t, err)
	assert.Equal(t, 1, h.pools.get(t, p.ID).Stats.TotalAccepted)
}
