// Package membership holds the business rules for changing who sits in which
// circle. It works on already-fetched models.CircleGroup values and never
// touches storage.
package membership

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/circlehub/internal/app/system/apperrors"
	"github.com/dalemusser/circlehub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Service validates and prepares group mutations.
type Service struct {
	maxGroupSize int
	now          func() time.Time
}

// New returns a Service enforcing maxGroupSize on moves. A nil clock
// defaults to time.Now.
func New(maxGroupSize int, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{maxGroupSize: maxGroupSize, now: now}
}

// MaxGroupSize returns the configured capacity.
func (s *Service) MaxGroupSize() int { return s.maxGroupSize }

// ValidateDistinctGroups rejects a move whose source and target are the same.
func ValidateDistinctGroups(sourceID, targetID primitive.ObjectID) error {
	if sourceID == targetID {
		return apperrors.Validation(apperrors.CodeSameGroup, "source and target group are the same")
	}
	return nil
}

// ValidateAndPrepareMove checks a member can move from source to target and
// returns the member record to push into target.
//
// Only the target's capacity is checked. Admins may shrink a group below
// the minimum by hand; the minimum applies to automated assignment only.
func (s *Service) ValidateAndPrepareMove(source, target models.CircleGroup, memberID primitive.ObjectID) (models.GroupMember, error) {
	if len(target.Members) >= s.maxGroupSize {
		return models.GroupMember{}, apperrors.WithMetadata(apperrors.KindValidation, apperrors.CodeGroupFull,
			fmt.Sprintf("%s already has %d members", target.Name, len(target.Members)),
			map[string]string{
				"groupId": target.ID.Hex(),
				"max":     strconv.Itoa(s.maxGroupSize),
			})
	}
	for _, m := range source.Members {
		if m.UserID == memberID {
			moved := m
			moved.JoinedAt = s.now().UTC()
			return moved, nil
		}
	}
	return models.GroupMember{}, apperrors.WithMetadata(apperrors.KindValidation, apperrors.CodeMemberNotFound,
		fmt.Sprintf("user is not a member of %s", source.Name),
		map[string]string{"groupId": source.ID.Hex(), "memberId": memberID.Hex()})
}

// ApplyMove returns copies of source and target with member moved across.
// If the member led the source group, the source loses its leader.
func ApplyMove(source, target models.CircleGroup, member models.GroupMember) (models.CircleGroup, models.CircleGroup) {
	at := member.JoinedAt

	newSource := source
	newSource.Members = make([]models.GroupMember, 0, len(source.Members))
	for _, m := range source.Members {
		if m.UserID != member.UserID {
			newSource.Members = append(newSource.Members, m)
		}
	}
	if source.LeaderID != nil && *source.LeaderID == member.UserID {
		newSource.LeaderID = nil
	}
	newSource.UpdatedAt = at

	newTarget := target
	newTarget.Members = append(append([]models.GroupMember{}, target.Members...), member)
	newTarget.UpdatedAt = at

	return newSource, newTarget
}

// BuildGroupDocument constructs a new group (empty or seeded) with zeroed
// stats. The ID is assigned here so callers can reference it before insert.
func (s *Service) BuildGroupDocument(poolID primitive.ObjectID, name string, members []models.GroupMember) models.CircleGroup {
	now := s.now().UTC()
	if members == nil {
		members = []models.GroupMember{}
	}
	name = strings.TrimSpace(name)
	return models.CircleGroup{
		ID:        primitive.NewObjectID(),
		PoolID:    poolID,
		Name:      name,
		NameCI:    text.Fold(name),
		Members:   members,
		Status:    models.GroupActive,
		Stats:     models.GroupStats{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ValidateGroupNameUnique fails if a group in existing already uses name
// (case and diacritic insensitive).
func ValidateGroupNameUnique(existing []models.CircleGroup, name string) error {
	folded := text.Fold(strings.TrimSpace(name))
	for _, g := range existing {
		if g.NameCI == folded || text.Fold(g.Name) == folded {
			return apperrors.WithMetadata(apperrors.KindValidation, apperrors.CodeDuplicateGroupName,
				fmt.Sprintf("a group named %q already exists in this pool", g.Name),
				map[string]string{"groupId": g.ID.Hex()})
		}
	}
	return nil
}

// ValidateUserIsGroupMember is the authorization check used before a
// participant acts on a group (e.g. submitting meeting notes).
func ValidateUserIsGroupMember(group models.CircleGroup, userID primitive.ObjectID) error {
	if group.HasMember(userID) {
		return nil
	}
	return apperrors.Forbidden(apperrors.CodeNotAMember, "user is not a member of this group")
}

// SetLeader returns group with userID as leader. The user must already be
// a member of the group.
func (s *Service) SetLeader(group models.CircleGroup, userID primitive.ObjectID) (models.CircleGroup, error) {
	if !group.HasMember(userID) {
		return models.CircleGroup{}, apperrors.WithMetadata(apperrors.KindValidation, apperrors.CodeNotAMember,
			"leader must be a member of the group",
			map[string]string{"groupId": group.ID.Hex(), "userId": userID.Hex()})
	}
	updated := group
	leader := userID
	updated.LeaderID = &leader
	updated.UpdatedAt = s.now().UTC()
	return updated, nil
}

// MembersFor builds member records for a freshly assigned group.
func (s *Service) MembersFor(ids []primitive.ObjectID, names map[primitive.ObjectID]string) []models.GroupMember {
	now := s.now().UTC()
	members := make([]models.GroupMember, 0, len(ids))
	for _, id := range ids {
		members = append(members, models.GroupMember{
			UserID:      id,
			DisplayName: names[id],
			JoinedAt:    now,
		})
	}
	return members
}
