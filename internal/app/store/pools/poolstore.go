// internal/app/store/pools/poolstore.go
package poolstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/circlehub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrDuplicatePoolName = errors.New("a pool with this name already exists in the organization")
	// ErrStatusChanged means the pool exists but is no longer in the status
	// the caller read (a concurrent transition won).
	ErrStatusChanged = errors.New("pool status changed concurrently")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("circle_pools")}
}

// Create inserts p. ID and timestamps are filled in when zero.
func (s *Store) Create(ctx context.Context, p models.Pool) (models.Pool, error) {
	now := time.Now().UTC()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	p.NameCI = text.Fold(p.Name)
	if p.Status == "" {
		p.Status = models.PoolDraft
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = p.CreatedAt
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Pool{}, ErrDuplicatePoolName
		}
		return models.Pool{}, err
	}
	return p, nil
}

// GetByID returns mongo.ErrNoDocuments when the pool does not exist.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Pool, error) {
	var p models.Pool
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return models.Pool{}, err
	}
	return p, nil
}

// ListByOrg returns an organization's pools, newest first. An empty status
// lists every status.
func (s *Store) ListByOrg(ctx context.Context, orgID primitive.ObjectID, status models.PoolStatus) ([]models.Pool, error) {
	filter := bson.M{"organization_id": orgID}
	if status != "" {
		filter["status"] = status
	}
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Pool
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CompareAndSetStatus writes next's status and timestamps only if the
// stored pool is still in status from.
func (s *Store) CompareAndSetStatus(ctx context.Context, from models.PoolStatus, next models.Pool) (models.Pool, error) {
	set := bson.M{
		"status":     next.Status,
		"updated_at": next.UpdatedAt,
	}
	if next.CompletedAt != nil {
		set["completed_at"] = *next.CompletedAt
	}
	if next.CancelledAt != nil {
		set["cancelled_at"] = *next.CancelledAt
	}

	var out models.Pool
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": next.ID, "status": from},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, cerr := s.c.CountDocuments(ctx, bson.M{"_id": next.ID})
		if cerr != nil {
			return models.Pool{}, cerr
		}
		if n == 0 {
			return models.Pool{}, mongo.ErrNoDocuments
		}
		return models.Pool{}, ErrStatusChanged
	}
	if err != nil {
		return models.Pool{}, err
	}
	return out, nil
}

// IncStats adds to the pool's invitation counters.
func (s *Store) IncStats(ctx context.Context, id primitive.ObjectID, invited, accepted int) error {
	inc := bson.M{}
	if invited != 0 {
		inc["stats.total_invited"] = invited
	}
	if accepted != 0 {
		inc["stats.total_accepted"] = accepted
	}
	if len(inc) == 0 {
		return nil
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": inc,
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SetAcceptedCount overwrites stats.total_accepted with n, but only while
// it still holds expected. It reports whether the write applied.
func (s *Store) SetAcceptedCount(ctx context.Context, id primitive.ObjectID, expected, n int) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "stats.total_accepted": expected},
		bson.M{"$set": bson.M{"stats.total_accepted": n, "updated_at": time.Now().UTC()}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}
