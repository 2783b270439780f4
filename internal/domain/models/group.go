// internal/domain/models/group.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GroupActive is the only status assigned today; archived groups are
// handled outside the circle core.
const GroupActive = "active"

// GroupMember is one participant embedded in a circle group.
type GroupMember struct {
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
	DisplayName string             `bson:"display_name" json:"display_name"`
	JoinedAt    time.Time          `bson:"joined_at" json:"joined_at"`
}

// GroupStats are lightweight counters kept on the group document.
type GroupStats struct {
	MeetingCount int `bson:"meeting_count" json:"meeting_count"`
	TotalMinutes int `bson:"total_minutes" json:"total_minutes"`
}

// CircleGroup is an assigned peer group within a pool.
//
// NOTE:
//   - Members are embedded so a move touches exactly two documents.
//   - A user appears in at most one group per pool.
type CircleGroup struct {
	ID       primitive.ObjectID  `bson:"_id" json:"id"`
	PoolID   primitive.ObjectID  `bson:"pool_id" json:"pool_id"`
	Name     string              `bson:"name" json:"name"`
	NameCI   string              `bson:"name_ci" json:"name_ci"`
	Members  []GroupMember       `bson:"members" json:"members"`
	LeaderID *primitive.ObjectID `bson:"leader_id,omitempty" json:"leader_id,omitempty"`
	Status   string              `bson:"status" json:"status"`
	Stats    GroupStats          `bson:"stats" json:"stats"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// HasMember reports whether userID is among the group's members.
func (g CircleGroup) HasMember(userID primitive.ObjectID) bool {
	for _, m := range g.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// MemberIDs returns the user IDs of all members in stored order.
func (g CircleGroup) MemberIDs() []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(g.Members))
	for _, m := range g.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}
