package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/circlehub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

func (f *Fixtures) insert(ctx context.Context, coll string, doc any) {
	f.t.Helper()
	if _, err := f.db.Collection(coll).InsertOne(ctx, doc); err != nil {
		f.t.Fatalf("failed to insert test %s document: %v", coll, err)
	}
}

// CreateOrganization creates a test organization with the given name.
func (f *Fixtures) CreateOrganization(ctx context.Context, name string) models.Organization {
	f.t.Helper()

	now := time.Now().UTC()
	org := models.Organization{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.insert(ctx, "organizations", org)
	return org
}

// CreateUser creates a test user with the given parameters.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, email, role string, orgID *primitive.ObjectID) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:             primitive.NewObjectID(),
		FullName:       fullName,
		FullNameCI:     text.Fold(fullName),
		Email:          email,
		AuthMethod:     "trust",
		Role:           role,
		Status:         "active",
		OrganizationID: orgID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	f.insert(ctx, "users", user)
	return user
}

// CreateAdmin creates a test admin user (manages every organization).
func (f *Fixtures) CreateAdmin(ctx context.Context, fullName, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, "admin", nil)
}

// CreateCoordinator creates a coordinator assigned to orgID.
func (f *Fixtures) CreateCoordinator(ctx context.Context, fullName, email string, orgID primitive.ObjectID) models.User {
	f.t.Helper()
	u := f.CreateUser(ctx, fullName, email, "coordinator", &orgID)
	f.insert(ctx, "coordinator_assignments", models.CoordinatorAssignment{
		ID:             primitive.NewObjectID(),
		UserID:         u.ID,
		OrganizationID: orgID,
		CreatedAt:      time.Now().UTC(),
	})
	return u
}

// CreateMember creates a test participant in the given organization.
func (f *Fixtures) CreateMember(ctx context.Context, fullName, email string, orgID primitive.ObjectID) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, "member", &orgID)
}

// CreateDisabledUser creates a test user with disabled status.
func (f *Fixtures) CreateDisabledUser(ctx context.Context, fullName, email, role string) models.User {
	f.t.Helper()
	u := f.CreateUser(ctx, fullName, email, role, nil)
	if _, err := f.db.Collection("users").UpdateByID(ctx, u.ID,
		bson.M{"$set": bson.M{"status": "disabled"}}); err != nil {
		f.t.Fatalf("failed to disable test user: %v", err)
	}
	u.Status = "disabled"
	return u
}

// CreatePool creates a pool in orgID with the given status.
func (f *Fixtures) CreatePool(ctx context.Context, orgID primitive.ObjectID, name string, status models.PoolStatus) models.Pool {
	f.t.Helper()

	now := time.Now().UTC()
	p := models.Pool{
		ID:              primitive.NewObjectID(),
		OrganizationID:  orgID,
		Name:            name,
		NameCI:          text.Fold(name),
		Topic:           "Test topic",
		TargetGroupSize: 4,
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	f.insert(ctx, "circle_pools", p)
	return p
}

// CreateInvitation stores a pending invitation whose token hash is hash.
func (f *Fixtures) CreateInvitation(ctx context.Context, poolID primitive.ObjectID, email, hash string, expiresAt time.Time) models.Invitation {
	f.t.Helper()

	inv := models.Invitation{
		ID:        primitive.NewObjectID(),
		PoolID:    poolID,
		Email:     email,
		EmailCI:   text.Fold(email),
		TokenHash: hash,
		Status:    models.InvitationPending,
		IssuedAt:  time.Now().UTC(),
		ExpiresAt: expiresAt.UTC(),
	}
	f.insert(ctx, "circle_invitations", inv)
	return inv
}

// CreateCircleGroup creates a group in poolID holding the given users.
func (f *Fixtures) CreateCircleGroup(ctx context.Context, poolID primitive.ObjectID, name string, userIDs ...primitive.ObjectID) models.CircleGroup {
	f.t.Helper()

	now := time.Now().UTC()
	members := make([]models.GroupMember, 0, len(userIDs))
	for _, id := range userIDs {
		members = append(members, models.GroupMember{UserID: id, DisplayName: "Member " + id.Hex()[18:], JoinedAt: now})
	}
	g := models.CircleGroup{
		ID:        primitive.NewObjectID(),
		PoolID:    poolID,
		Name:      name,
		NameCI:    text.Fold(name),
		Members:   members,
		Status:    models.GroupActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.insert(ctx, "circle_groups", g)
	return g
}
