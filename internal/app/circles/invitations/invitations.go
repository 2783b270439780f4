// Package invitations implements the rules for single-use pool invitations:
// token issue, resolution, accept and decline. Storage lives in
// store/invitations; this package only decides what the next state is.
package invitations

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dalemusser/circlehub/internal/app/system/apperrors"
	"github.com/dalemusser/circlehub/internal/app/system/inputval"
	"github.com/dalemusser/circlehub/internal/app/system/normalize"
	"github.com/dalemusser/circlehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/blake2b"
)

const (
	// TokenBytes is the raw token size (256 bits).
	TokenBytes = 32
	// DefaultTTL is how long an invitation stays acceptable.
	DefaultTTL = 7 * 24 * time.Hour
	// MaxBatch caps the number of emails in one Issue call.
	MaxBatch = 500
)

// Tracker applies invitation rules using an injected TTL and clock.
type Tracker struct {
	ttl    time.Duration
	now    func() time.Time
	random io.Reader
}

// New returns a Tracker. A non-positive ttl uses DefaultTTL; a nil clock
// uses time.Now.
func New(ttl time.Duration, now func() time.Time) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{ttl: ttl, now: now, random: rand.Reader}
}

// Issued pairs a new invitation with its raw token. The token is handed to
// the mailer and never stored.
type Issued struct {
	Invitation models.Invitation
	Token      string
}

// NewToken returns a URL-safe random token.
func (t *Tracker) NewToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := io.ReadFull(t.random, b); err != nil {
		return "", fmt.Errorf("generate invitation token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken returns the hex BLAKE2b-256 digest stored in place of token.
func HashToken(token string) string {
	sum := blake2b.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:])
}

// Issue builds pending invitations for emails. existing holds the
// normalized addresses already invited to the pool.
//
// The whole batch is rejected if any address is malformed or duplicated,
// either within the batch or against existing.
func (t *Tracker) Issue(poolID primitive.ObjectID, emails []string, existing []string) ([]Issued, error) {
	normalized := normalize.Emails(emails)
	if len(normalized) == 0 {
		return nil, apperrors.Validation(apperrors.CodeNoEmails, "at least one email address is required")
	}
	if len(normalized) > MaxBatch {
		return nil, apperrors.Validation(apperrors.CodeNoEmails,
			fmt.Sprintf("at most %d email addresses may be invited at once", MaxBatch))
	}

	seen := make(map[string]bool, len(existing)+len(normalized))
	for _, e := range existing {
		seen[normalize.Email(e)] = true
	}
	for _, e := range normalized {
		if !inputval.IsValidEmail(e) {
			return nil, apperrors.WithMetadata(apperrors.KindValidation, apperrors.CodeInvalidEmail,
				fmt.Sprintf("%q is not a valid email address", e),
				map[string]string{"email": e})
		}
		if seen[e] {
			return nil, apperrors.WithMetadata(apperrors.KindConflict, apperrors.CodeDuplicateEmail,
				fmt.Sprintf("%s has already been invited to this pool", e),
				map[string]string{"email": e})
		}
		seen[e] = true
	}

	now := t.now().UTC()
	out := make([]Issued, 0, len(normalized))
	for _, e := range normalized {
		token, err := t.NewToken()
		if err != nil {
			return nil, apperrors.Internal("could not generate invitation token", err)
		}
		out = append(out, Issued{
			Token: token,
			Invitation: models.Invitation{
				ID:        primitive.NewObjectID(),
				PoolID:    poolID,
				Email:     e,
				EmailCI:   e,
				TokenHash: HashToken(token),
				Status:    models.InvitationPending,
				IssuedAt:  now,
				ExpiresAt: now.Add(t.ttl),
			},
		})
	}
	return out, nil
}

// IsExpired reports whether inv is past its expiry at the tracker's now.
func (t *Tracker) IsExpired(inv models.Invitation) bool {
	return t.now().After(inv.ExpiresAt)
}

// CheckResolvable fails with Expired when the invitation is past expiry,
// whatever its stored status.
func (t *Tracker) CheckResolvable(inv models.Invitation) error {
	if t.IsExpired(inv) || inv.Status == models.InvitationExpired {
		return expiredErr(inv)
	}
	return nil
}

// Accept returns inv accepted by userID. changed is false when the same
// user re-accepts; callers must not bump counters in that case.
func (t *Tracker) Accept(inv models.Invitation, userID primitive.ObjectID) (models.Invitation, bool, error) {
	if inv.Status == models.InvitationAccepted && inv.AcceptedByUserID != nil && *inv.AcceptedByUserID == userID {
		return inv, false, nil
	}
	if err := t.CheckResolvable(inv); err != nil {
		return models.Invitation{}, false, err
	}
	switch inv.Status {
	case models.InvitationPending:
	case models.InvitationAccepted:
		return models.Invitation{}, false, apperrors.Conflict(apperrors.CodeAlreadyAccepted,
			"invitation has already been accepted by another user")
	default:
		return models.Invitation{}, false, alreadyResponded(inv)
	}

	now := t.now().UTC()
	accepted := inv
	uid := userID
	accepted.Status = models.InvitationAccepted
	accepted.AcceptedByUserID = &uid
	accepted.RespondedAt = &now
	return accepted, true, nil
}

// Decline returns inv declined. A repeated decline is a no-op.
func (t *Tracker) Decline(inv models.Invitation) (models.Invitation, bool, error) {
	if inv.Status == models.InvitationDeclined {
		return inv, false, nil
	}
	if err := t.CheckResolvable(inv); err != nil {
		return models.Invitation{}, false, err
	}
	if inv.Status != models.InvitationPending {
		return models.Invitation{}, false, alreadyResponded(inv)
	}

	now := t.now().UTC()
	declined := inv
	declined.Status = models.InvitationDeclined
	declined.RespondedAt = &now
	return declined, true, nil
}

func expiredErr(inv models.Invitation) error {
	return apperrors.WithMetadata(apperrors.KindExpired, apperrors.CodeInvitationExpired,
		"invitation has expired",
		map[string]string{"expiresAt": inv.ExpiresAt.UTC().Format(time.RFC3339)})
}

func alreadyResponded(inv models.Invitation) error {
	return apperrors.WithMetadata(apperrors.KindConflict, apperrors.CodeAlreadyResponded,
		"invitation has already been responded to",
		map[string]string{"status": string(inv.Status)})
}
