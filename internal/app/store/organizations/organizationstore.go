// internal/app/store/organizations/organizationstore.go
package organizationstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/circlehub/internal/app/system/normalize"
	"github.com/dalemusser/circlehub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Status values for organizations.
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

var ErrDuplicateOrganization = errors.New("an organization with this name already exists")

// Store reads and seeds the organizations collection. Organizations are
// managed outside the circle service; pools only need to know one exists.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("organizations")}
}

// Create inserts org with a folded name and active status.
func (s *Store) Create(ctx context.Context, org models.Organization) (models.Organization, error) {
	now := time.Now().UTC()
	org.ID = primitive.NewObjectID()
	org.Name = normalize.Name(org.Name)
	org.NameCI = text.Fold(org.Name)
	if org.Status == "" {
		org.Status = StatusActive
	}
	org.CreatedAt, org.UpdatedAt = now, now

	if _, err := s.c.InsertOne(ctx, org); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Organization{}, ErrDuplicateOrganization
		}
		return models.Organization{}, err
	}
	return org, nil
}

// Exists reports whether an organization with id is on record and not
// disabled. New pools may only be opened for such organizations.
func (s *Store) Exists(ctx context.Context, id primitive.ObjectID) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{
		"_id":    id,
		"status": bson.M{"$ne": StatusDisabled},
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
