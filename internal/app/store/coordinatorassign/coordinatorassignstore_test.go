package coordinatorassign_test

import (
	"testing"

	"github.com/dalemusser/circlehub/internal/app/store/coordinatorassign"
	"github.com/dalemusser/circlehub/internal/app/system/indexes"
	"github.com/dalemusser/circlehub/internal/domain/models"
	"github.com/dalemusser/circlehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_CreateAndExists(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := coordinatorassign.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	orgID := primitive.NewObjectID()

	created, err := store.Create(ctx, models.CoordinatorAssignment{UserID: userID, OrganizationID: orgID})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID.IsZero() || created.CreatedAt.IsZero() {
		t.Errorf("expected ID and CreatedAt to be set: %+v", created)
	}

	ok, err := store.Exists(ctx, userID, orgID)
	if err != nil || !ok {
		t.Errorf("Exists = %v, %v; want true", ok, err)
	}
	ok, err = store.Exists(ctx, userID, primitive.NewObjectID())
	if err != nil || ok {
		t.Errorf("Exists for other org = %v, %v; want false", ok, err)
	}
}

func TestStore_Create_Duplicate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	store := coordinatorassign.New(db)

	a := models.CoordinatorAssignment{UserID: primitive.NewObjectID(), OrganizationID: primitive.NewObjectID()}
	if _, err := store.Create(ctx, a); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if _, err := store.Create(ctx, a); err != coordinatorassign.ErrDuplicateAssignment {
		t.Errorf("expected ErrDuplicateAssignment, got %v", err)
	}
}

func TestStore_OrgIDsByUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := coordinatorassign.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	orgA, orgB := primitive.NewObjectID(), primitive.NewObjectID()
	for _, org := range []primitive.ObjectID{orgA, orgB} {
		if _, err := store.Create(ctx, models.CoordinatorAssignment{UserID: userID, OrganizationID: org}); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := store.OrgIDsByUser(ctx, userID)
	if err != nil {
		t.Fatalf("OrgIDsByUser failed: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 organizations, got %d", len(ids))
	}

	none, err := store.OrgIDsByUser(ctx, primitive.NewObjectID())
	if err != nil || len(none) != 0 {
		t.Errorf("unassigned user: %v %v", none, err)
	}
}
