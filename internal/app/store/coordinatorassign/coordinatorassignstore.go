// internal/app/store/coordinatorassign/coordinatorassignstore.go
package coordinatorassign

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/circlehub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var ErrDuplicateAssignment = errors.New("coordinator is already assigned to this organization")

// Store records which organizations a coordinator administers.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("coordinator_assignments")}
}

// Create grants a.UserID administration of a.OrganizationID.
func (s *Store) Create(ctx context.Context, a models.CoordinatorAssignment) (models.CoordinatorAssignment, error) {
	a.ID = primitive.NewObjectID()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, a); err != nil {
		if wafflemongo.IsDup(err) {
			return models.CoordinatorAssignment{}, ErrDuplicateAssignment
		}
		return models.CoordinatorAssignment{}, err
	}
	return a, nil
}

// Exists reports whether userID administers orgID.
func (s *Store) Exists(ctx context.Context, userID, orgID primitive.ObjectID) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"user_id": userID, "organization_id": orgID})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// OrgIDsByUser lists the organizations userID administers.
func (s *Store) OrgIDsByUser(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	raw, err := s.c.Distinct(ctx, "organization_id", bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, v := range raw {
		if oid, ok := v.(primitive.ObjectID); ok {
			ids = append(ids, oid)
		}
	}
	return ids, nil
}
