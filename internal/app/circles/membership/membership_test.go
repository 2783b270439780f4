package membership

import (
	"testing"
	"time"

	"github.com/dalemusser/circlehub/internal/app/system/apperrors"
	"github.com/dalemusser/circlehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var fixedNow = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

func newService(max int) *Service {
	return New(max, func() time.Time { return fixedNow })
}

func groupWith(name string, n int) models.CircleGroup {
	g := models.CircleGroup{ID: primitive.NewObjectID(), Name: name}
	for i := 0; i < n; i++ {
		g.Members = append(g.Members, models.GroupMember{
			UserID:      primitive.NewObjectID(),
			DisplayName: name + " member",
		})
	}
	return g
}

func TestValidateAndPrepareMove_Success(t *testing.T) {
	s := newService(6)
	source := groupWith("Circle A", 4)
	target := groupWith("Circle B", 5)
	memberID := source.Members[1].UserID

	moved, err := s.ValidateAndPrepareMove(source, target, memberID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if moved.UserID != memberID {
		t.Errorf("moved member = %v, want %v", moved.UserID, memberID)
	}
	if moved.DisplayName != "Circle A member" {
		t.Errorf("display name not carried over: %q", moved.DisplayName)
	}
	if !moved.JoinedAt.Equal(fixedNow) {
		t.Errorf("JoinedAt = %v, want %v", moved.JoinedAt, fixedNow)
	}
}

func TestValidateAndPrepareMove_TargetFull(t *testing.T) {
	s := newService(6)
	source := groupWith("Circle A", 4)
	target := groupWith("Circle B", 6)

	_, err := s.ValidateAndPrepareMove(source, target, source.Members[0].UserID)
	if apperrors.CodeOf(err) != apperrors.CodeGroupFull {
		t.Fatalf("expected GROUP_FULL, got %v", err)
	}
	if apperrors.KindOf(err) != apperrors.KindValidation {
		t.Errorf("expected validation kind, got %q", apperrors.KindOf(err))
	}
}

func TestValidateAndPrepareMove_MemberNotInSource(t *testing.T) {
	s := newService(6)
	source := groupWith("Circle A", 4)
	roomy := groupWith("Circle B", 1)
	full := groupWith("Circle C", 6)
	stranger := primitive.NewObjectID()

	if _, err := s.ValidateAndPrepareMove(source, roomy, stranger); apperrors.CodeOf(err) != apperrors.CodeMemberNotFound {
		t.Errorf("roomy target: expected MEMBER_NOT_FOUND, got %v", err)
	}
	if _, err := s.ValidateAndPrepareMove(source, full, stranger); err == nil {
		t.Error("full target: expected move of absent member to be rejected")
	}
}

func TestValidateAndPrepareMove_NoMinimumCheck(t *testing.T) {
	s := newService(6)
	source := groupWith("Circle A", 1)
	target := groupWith("Circle B", 3)

	if _, err := s.ValidateAndPrepareMove(source, target, source.Members[0].UserID); err != nil {
		t.Errorf("emptying a group by hand should be allowed, got %v", err)
	}
}

func TestApplyMove_ClearsLeaderOnSource(t *testing.T) {
	s := newService(6)
	source := groupWith("Circle A", 3)
	target := groupWith("Circle B", 3)
	leader := source.Members[0].UserID
	source.LeaderID = &leader

	moved, err := s.ValidateAndPrepareMove(source, target, leader)
	if err != nil {
		t.Fatal(err)
	}
	newSource, newTarget := ApplyMove(source, target, moved)

	if newSource.LeaderID != nil {
		t.Error("expected source leader to be cleared")
	}
	if len(newSource.Members) != 2 || newSource.HasMember(leader) {
		t.Errorf("source still holds moved member: %d members", len(newSource.Members))
	}
	if len(newTarget.Members) != 4 || !newTarget.HasMember(leader) {
		t.Errorf("target missing moved member: %d members", len(newTarget.Members))
	}
	if len(source.Members) != 3 || len(target.Members) != 3 {
		t.Error("ApplyMove mutated its inputs")
	}
}

func TestValidateDistinctGroups(t *testing.T) {
	id := primitive.NewObjectID()
	if apperrors.CodeOf(ValidateDistinctGroups(id, id)) != apperrors.CodeSameGroup {
		t.Error("expected SAME_GROUP")
	}
	if err := ValidateDistinctGroups(id, primitive.NewObjectID()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBuildGroupDocument(t *testing.T) {
	s := newService(6)
	poolID := primitive.NewObjectID()

	g := s.BuildGroupDocument(poolID, "  Évening Circle ", nil)

	if g.ID.IsZero() {
		t.Error("expected ID to be assigned")
	}
	if g.PoolID != poolID {
		t.Errorf("PoolID = %v, want %v", g.PoolID, poolID)
	}
	if g.Name != "Évening Circle" || g.NameCI != "evening circle" {
		t.Errorf("name=%q nameCI=%q", g.Name, g.NameCI)
	}
	if g.Members == nil || len(g.Members) != 0 {
		t.Errorf("expected empty non-nil members, got %v", g.Members)
	}
	if g.Stats != (models.GroupStats{}) {
		t.Errorf("expected zeroed stats, got %+v", g.Stats)
	}
	if g.Status != models.GroupActive || !g.CreatedAt.Equal(fixedNow) {
		t.Errorf("status=%q createdAt=%v", g.Status, g.CreatedAt)
	}
}

func TestValidateGroupNameUnique(t *testing.T) {
	existing := []models.CircleGroup{
		{ID: primitive.NewObjectID(), Name: "Circle A", NameCI: "circle a"},
		{ID: primitive.NewObjectID(), Name: "Café Circle", NameCI: "cafe circle"},
	}

	for _, name := range []string{"Circle A", "circle a", "CAFÉ CIRCLE"} {
		if apperrors.CodeOf(ValidateGroupNameUnique(existing, name)) != apperrors.CodeDuplicateGroupName {
			t.Errorf("%q: expected DUPLICATE_GROUP_NAME", name)
		}
	}
	if err := ValidateGroupNameUnique(existing, "Circle B"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateUserIsGroupMember(t *testing.T) {
	g := groupWith("Circle A", 2)

	if err := ValidateUserIsGroupMember(g, g.Members[0].UserID); err != nil {
		t.Errorf("member rejected: %v", err)
	}
	err := ValidateUserIsGroupMember(g, primitive.NewObjectID())
	if apperrors.KindOf(err) != apperrors.KindForbidden {
		t.Errorf("expected forbidden, got %v", err)
	}
}

func TestSetLeader(t *testing.T) {
	s := newService(6)
	g := groupWith("Circle A", 3)
	member := g.Members[2].UserID

	updated, err := s.SetLeader(g, member)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.LeaderID == nil || *updated.LeaderID != member {
		t.Errorf("LeaderID = %v, want %v", updated.LeaderID, member)
	}
	if g.LeaderID != nil {
		t.Error("SetLeader mutated its input")
	}

	_, err = s.SetLeader(g, primitive.NewObjectID())
	if apperrors.CodeOf(err) != apperrors.CodeNotAMember || apperrors.KindOf(err) != apperrors.KindValidation {
		t.Errorf("expected validation NOT_A_MEMBER, got %v", err)
	}
}

func TestMembersFor(t *testing.T) {
	s := newService(6)
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	members := s.MembersFor([]primitive.ObjectID{a, b}, map[primitive.ObjectID]string{a: "Ada"})

	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if members[0].DisplayName != "Ada" || members[1].DisplayName != "" {
		t.Errorf("unexpected display names: %+v", members)
	}
}
