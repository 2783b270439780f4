// internal/app/store/groups/groupstore.go
package groupstore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/dalemusser/circlehub/internal/app/system/indexes"
	"github.com/dalemusser/circlehub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrDuplicateGroupName = errors.New("a group with this name already exists in the pool")
	// ErrPushRejected means the guarded push matched nothing: the group is
	// full, gone, or already holds the user.
	ErrPushRejected = errors.New("group is full or already holds the member")
	ErrNotMember    = errors.New("user is not a member of the group")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("circle_groups")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.CircleGroup, error) {
	var g models.CircleGroup
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		return models.CircleGroup{}, err
	}
	return g, nil
}

// ListByPool returns a pool's groups ordered by name.
func (s *Store) ListByPool(ctx context.Context, poolID primitive.ObjectID) ([]models.CircleGroup, error) {
	cur, err := s.c.Find(ctx, bson.M{"pool_id": poolID},
		options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.CircleGroup
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindByMember returns the group in poolID holding userID.
func (s *Store) FindByMember(ctx context.Context, poolID, userID primitive.ObjectID) (models.CircleGroup, error) {
	var g models.CircleGroup
	err := s.c.FindOne(ctx, bson.M{"pool_id": poolID, "members.user_id": userID}).Decode(&g)
	if err != nil {
		return models.CircleGroup{}, err
	}
	return g, nil
}

func prepare(g *models.CircleGroup, now time.Time) {
	if g.ID.IsZero() {
		g.ID = primitive.NewObjectID()
	}
	g.NameCI = text.Fold(g.Name)
	if g.Status == "" {
		g.Status = models.GroupActive
	}
	if g.Members == nil {
		g.Members = []models.GroupMember{}
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	if g.UpdatedAt.IsZero() {
		g.UpdatedAt = g.CreatedAt
	}
}

func (s *Store) Create(ctx context.Context, g models.CircleGroup) (models.CircleGroup, error) {
	prepare(&g, time.Now().UTC())
	if _, err := s.c.InsertOne(ctx, g); err != nil {
		if wafflemongo.IsDup(err) {
			return models.CircleGroup{}, ErrDuplicateGroupName
		}
		return models.CircleGroup{}, err
	}
	return g, nil
}

// InsertMany writes the groups produced by one assignment run.
func (s *Store) InsertMany(ctx context.Context, groups []models.CircleGroup) ([]models.CircleGroup, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	docs := make([]interface{}, len(groups))
	out := make([]models.CircleGroup, len(groups))
	for i := range groups {
		g := groups[i]
		prepare(&g, now)
		out[i] = g
		docs[i] = g
	}
	if _, err := s.c.InsertMany(ctx, docs); err != nil {
		if indexes.IsDuplicateOn(err, indexes.CircleGroupPoolName) {
			return nil, ErrDuplicateGroupName
		}
		return nil, err
	}
	return out, nil
}

// PushMember appends member to the group only while the group holds fewer
// than maxSize members and does not already contain the user.
func (s *Store) PushMember(ctx context.Context, groupID primitive.ObjectID, member models.GroupMember, maxSize int) error {
	filter := bson.M{
		"_id":             groupID,
		"members.user_id": bson.M{"$ne": member.UserID},
	}
	if maxSize > 0 {
		filter["members."+strconv.Itoa(maxSize-1)] = bson.M{"$exists": false}
	}
	res, err := s.c.UpdateOne(ctx, filter, bson.M{
		"$push": bson.M{"members": member},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrPushRejected
	}
	return nil
}

// PullMember removes userID from the group and, in the same update, clears
// the leader if it was that user.
func (s *Store) PullMember(ctx context.Context, groupID, userID primitive.ObjectID) error {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "members", Value: bson.D{{Key: "$filter", Value: bson.D{
				{Key: "input", Value: "$members"},
				{Key: "as", Value: "m"},
				{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$m.user_id", userID}}}},
			}}}},
			{Key: "leader_id", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$eq", Value: bson.A{"$leader_id", userID}}},
				"$$REMOVE",
				"$leader_id",
			}}}},
			{Key: "updated_at", Value: time.Now().UTC()},
		}}},
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": groupID, "members.user_id": userID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotMember
	}
	return nil
}

// SetLeader records userID as leader if the user is a member.
func (s *Store) SetLeader(ctx context.Context, groupID, userID primitive.ObjectID) (models.CircleGroup, error) {
	var g models.CircleGroup
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": groupID, "members.user_id": userID},
		bson.M{"$set": bson.M{"leader_id": userID, "updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.CircleGroup{}, ErrNotMember
	}
	if err != nil {
		return models.CircleGroup{}, err
	}
	return g, nil
}
