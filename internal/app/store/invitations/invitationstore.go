// internal/app/store/invitations/invitationstore.go
package invitationstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/circlehub/internal/app/system/indexes"
	"github.com/dalemusser/circlehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrDuplicateEmail = errors.New("email already invited to this pool")
	ErrDuplicateToken = errors.New("invitation token collision")
	// ErrNotPending means a respond write found the invitation already
	// out of pending (a concurrent accept or decline won).
	ErrNotPending = errors.New("invitation is no longer pending")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("circle_invitations")}
}

// InsertMany stores a batch of new invitations. Inserts are ordered, so on
// a duplicate nothing after the offending document is written.
func (s *Store) InsertMany(ctx context.Context, invs []models.Invitation) error {
	if len(invs) == 0 {
		return nil
	}
	docs := make([]interface{}, len(invs))
	for i := range invs {
		docs[i] = invs[i]
	}
	if _, err := s.c.InsertMany(ctx, docs); err != nil {
		switch {
		case indexes.IsDuplicateOn(err, indexes.InvitationPoolEmail):
			return ErrDuplicateEmail
		case indexes.IsDuplicateOn(err, indexes.InvitationTokenHash):
			return ErrDuplicateToken
		}
		return err
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Invitation, error) {
	var inv models.Invitation
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&inv); err != nil {
		return models.Invitation{}, err
	}
	return inv, nil
}

// GetByTokenHash returns mongo.ErrNoDocuments when no invitation carries hash.
func (s *Store) GetByTokenHash(ctx context.Context, hash string) (models.Invitation, error) {
	var inv models.Invitation
	if err := s.c.FindOne(ctx, bson.M{"token_hash": hash}).Decode(&inv); err != nil {
		return models.Invitation{}, err
	}
	return inv, nil
}

// ListByPool returns a pool's invitations in issue order.
func (s *Store) ListByPool(ctx context.Context, poolID primitive.ObjectID) ([]models.Invitation, error) {
	cur, err := s.c.Find(ctx, bson.M{"pool_id": poolID},
		options.Find().SetSort(bson.D{{Key: "issued_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Invitation
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EmailsForPool returns the folded addresses already invited to poolID.
func (s *Store) EmailsForPool(ctx context.Context, poolID primitive.ObjectID) ([]string, error) {
	cur, err := s.c.Find(ctx, bson.M{"pool_id": poolID},
		options.Find().SetProjection(bson.M{"email_ci": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var rows []struct {
		EmailCI string `bson:"email_ci"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.EmailCI)
	}
	return out, nil
}

// AcceptedUserIDs returns the users who accepted an invitation to poolID.
func (s *Store) AcceptedUserIDs(ctx context.Context, poolID primitive.ObjectID) ([]primitive.ObjectID, error) {
	cur, err := s.c.Find(ctx, bson.M{
		"pool_id":             poolID,
		"status":              models.InvitationAccepted,
		"accepted_by_user_id": bson.M{"$exists": true},
	}, options.Find().
		SetProjection(bson.M{"accepted_by_user_id": 1}).
		SetSort(bson.D{{Key: "responded_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var rows []struct {
		UserID primitive.ObjectID `bson:"accepted_by_user_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	seen := make(map[primitive.ObjectID]bool, len(rows))
	out := make([]primitive.ObjectID, 0, len(rows))
	for _, r := range rows {
		if seen[r.UserID] {
			continue
		}
		seen[r.UserID] = true
		out = append(out, r.UserID)
	}
	return out, nil
}

// CountAccepted counts accepted invitations for poolID.
func (s *Store) CountAccepted(ctx context.Context, poolID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"pool_id": poolID, "status": models.InvitationAccepted})
}

// Respond persists an accept or decline computed by the caller. The write
// only applies while the stored invitation is still pending.
func (s *Store) Respond(ctx context.Context, inv models.Invitation) error {
	set := bson.M{"status": inv.Status}
	if inv.AcceptedByUserID != nil {
		set["accepted_by_user_id"] = *inv.AcceptedByUserID
	}
	if inv.RespondedAt != nil {
		set["responded_at"] = *inv.RespondedAt
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": inv.ID, "status": models.InvitationPending},
		bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotPending
	}
	return nil
}

// ExpireOverdue marks pending invitations whose expiry is before now as
// expired and returns how many changed.
func (s *Store) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"status": models.InvitationPending, "expires_at": bson.M{"$lt": now}},
		bson.M{"$set": bson.M{"status": models.InvitationExpired}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
