package auditlog_test

import (
	"testing"

	"github.com/dalemusser/circlehub/internal/app/store/audit"
	"github.com/dalemusser/circlehub/internal/app/system/auditlog"
	"github.com/dalemusser/circlehub/internal/domain/models"
	"github.com/dalemusser/circlehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func testPool() models.Pool {
	return models.Pool{
		ID:              primitive.NewObjectID(),
		OrganizationID:  primitive.NewObjectID(),
		Name:            "Spring Cohort",
		TargetGroupSize: 5,
		Status:          models.PoolInviting,
	}
}

func TestLogger_NilLogger(t *testing.T) {
	// nil logger should be a no-op (not panic)
	var logger *auditlog.Logger
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger.Log(ctx, audit.Event{EventType: "test"})
	logger.PoolCreated(ctx, primitive.NewObjectID(), testPool())
	logger.InvitationDeclined(ctx, testPool(), models.Invitation{})
}

func TestLogger_LogOnly(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(nil, zap.New(core), auditlog.Config{Admin: "log", Participant: "off"})
	p := testPool()
	actor := primitive.NewObjectID()

	logger.InvitationsSent(ctx, actor, p, 12)
	logger.InvitationAccepted(ctx, primitive.NewObjectID(), p, models.Invitation{ID: primitive.NewObjectID()})

	entries := logs.FilterMessage("audit event").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["event_type"] != audit.EventInvitationsSent {
		t.Errorf("event_type = %v", fields["event_type"])
	}
	if fields["detail_count"] != "12" {
		t.Errorf("detail_count = %v", fields["detail_count"])
	}
	if fields["actor_id"] != actor.Hex() || fields["pool_id"] != p.ID.Hex() {
		t.Errorf("missing identifiers: %v", fields)
	}
}

func TestLogger_ConfigDB(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Admin: "db", Participant: "db"})
	p := testPool()
	actor := primitive.NewObjectID()
	member := primitive.NewObjectID()

	logger.MemberMoved(ctx, actor, p, member, primitive.NewObjectID(), primitive.NewObjectID())
	p.Status = models.PoolCancelled
	logger.PoolClosed(ctx, actor, p)

	events, err := store.Query(ctx, audit.QueryFilter{PoolID: &p.ID})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	types := map[string]audit.Event{}
	for _, e := range events {
		types[e.EventType] = e
	}
	moved, ok := types[audit.EventMemberMoved]
	if !ok || moved.UserID == nil || *moved.UserID != member {
		t.Errorf("member_moved event missing or wrong user: %+v", moved)
	}
	if _, ok := types[audit.EventPoolCancelled]; !ok {
		t.Error("expected pool_cancelled event")
	}
}

func TestLogger_ConfigOff(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Admin: "off", Participant: "off"})
	p := testPool()
	logger.PoolCreated(ctx, primitive.NewObjectID(), p)

	n, err := store.Count(ctx, audit.QueryFilter{PoolID: &p.ID})
	if err != nil || n != 0 {
		t.Errorf("expected no events, got %d (%v)", n, err)
	}
}
