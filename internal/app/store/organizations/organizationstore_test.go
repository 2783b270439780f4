package organizationstore_test

import (
	"testing"

	organizationstore "github.com/dalemusser/circlehub/internal/app/store/organizations"
	"github.com/dalemusser/circlehub/internal/app/system/indexes"
	"github.com/dalemusser/circlehub/internal/domain/models"
	"github.com/dalemusser/circlehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := organizationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.Organization{Name: "  Riverside Library "})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if created.Name != "Riverside Library" || created.NameCI != "riverside library" {
		t.Errorf("Name = %q, NameCI = %q", created.Name, created.NameCI)
	}
	if created.Status != organizationstore.StatusActive {
		t.Errorf("Status = %q", created.Status)
	}
}

func TestStore_Create_Duplicate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	store := organizationstore.New(db)

	if _, err := store.Create(ctx, models.Organization{Name: "Harbor"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Create(ctx, models.Organization{Name: "HARBOR"}); err != organizationstore.ErrDuplicateOrganization {
		t.Errorf("expected ErrDuplicateOrganization, got %v", err)
	}
}

func TestStore_Exists(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := organizationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	active, err := store.Create(ctx, models.Organization{Name: "Lakeside"})
	if err != nil {
		t.Fatal(err)
	}
	disabled, err := store.Create(ctx, models.Organization{Name: "Closed Branch", Status: organizationstore.StatusDisabled})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		id   primitive.ObjectID
		want bool
	}{
		{"active", active.ID, true},
		{"disabled", disabled.ID, false},
		{"unknown", primitive.NewObjectID(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Exists(ctx, tt.id)
			if err != nil || got != tt.want {
				t.Errorf("Exists = %v, %v; want %v", got, err, tt.want)
			}
		})
	}
}
