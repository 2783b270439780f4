package pipeline

import (
	"time"

	"github.com/dalemusser/circlehub/internal/domain/models"
)

// Wire shapes. Field names are camelCase; IDs are hex strings.

type PoolStats struct {
	TotalInvited  int `json:"totalInvited"`
	TotalAccepted int `json:"totalAccepted"`
}

type Pool struct {
	ID              string     `json:"id"`
	OrganizationID  string     `json:"organizationId"`
	Name            string     `json:"name"`
	Topic           string     `json:"topic"`
	TargetGroupSize int        `json:"targetGroupSize"`
	Status          string     `json:"status"`
	Stats           PoolStats  `json:"stats"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	CancelledAt     *time.Time `json:"cancelledAt,omitempty"`
}

type Invitation struct {
	ID               string     `json:"id"`
	PoolID           string     `json:"poolId"`
	PoolName         string     `json:"poolName,omitempty"`
	PoolTopic        string     `json:"poolTopic,omitempty"`
	Email            string     `json:"email"`
	Status           string     `json:"status"`
	IssuedAt         time.Time  `json:"issuedAt"`
	ExpiresAt        time.Time  `json:"expiresAt"`
	AcceptedByUserID string     `json:"acceptedByUserId,omitempty"`
	RespondedAt      *time.Time `json:"respondedAt,omitempty"`
}

type Member struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	JoinedAt    time.Time `json:"joinedAt"`
	IsLeader    bool      `json:"isLeader"`
}

type GroupStats struct {
	MeetingCount int `json:"meetingCount"`
	TotalMinutes int `json:"totalMinutes"`
}

type Group struct {
	ID          string     `json:"id"`
	PoolID      string     `json:"poolId"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	LeaderID    string     `json:"leaderId,omitempty"`
	MemberCount int        `json:"memberCount"`
	Members     []Member   `json:"members"`
	Stats       GroupStats `json:"stats"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// MoveResult is returned by MoveMember.
type MoveResult struct {
	FromGroup   Group  `json:"fromGroup"`
	ToGroup     Group  `json:"toGroup"`
	MovedMember Member `json:"movedMember"`
}

func toPool(p models.Pool) Pool {
	return Pool{
		ID:              p.ID.Hex(),
		OrganizationID:  p.OrganizationID.Hex(),
		Name:            p.Name,
		Topic:           p.Topic,
		TargetGroupSize: p.TargetGroupSize,
		Status:          string(p.Status),
		Stats: PoolStats{
			TotalInvited:  p.Stats.TotalInvited,
			TotalAccepted: p.Stats.TotalAccepted,
		},
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		CompletedAt: p.CompletedAt,
		CancelledAt: p.CancelledAt,
	}
}

func toPools(ps []models.Pool) []Pool {
	out := make([]Pool, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPool(p))
	}
	return out
}

func toInvitation(inv models.Invitation) Invitation {
	out := Invitation{
		ID:          inv.ID.Hex(),
		PoolID:      inv.PoolID.Hex(),
		Email:       inv.Email,
		Status:      string(inv.Status),
		IssuedAt:    inv.IssuedAt,
		ExpiresAt:   inv.ExpiresAt,
		RespondedAt: inv.RespondedAt,
	}
	if inv.AcceptedByUserID != nil {
		out.AcceptedByUserID = inv.AcceptedByUserID.Hex()
	}
	return out
}

func toMember(m models.GroupMember, leader bool) Member {
	return Member{
		UserID:      m.UserID.Hex(),
		DisplayName: m.DisplayName,
		JoinedAt:    m.JoinedAt,
		IsLeader:    leader,
	}
}

func toGroup(g models.CircleGroup) Group {
	out := Group{
		ID:          g.ID.Hex(),
		PoolID:      g.PoolID.Hex(),
		Name:        g.Name,
		Status:      g.Status,
		MemberCount: len(g.Members),
		Members:     make([]Member, 0, len(g.Members)),
		Stats: GroupStats{
			MeetingCount: g.Stats.MeetingCount,
			TotalMinutes: g.Stats.TotalMinutes,
		},
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
	if g.LeaderID != nil {
		out.LeaderID = g.LeaderID.Hex()
	}
	for _, m := range g.Members {
		out.Members = append(out.Members, toMember(m, g.LeaderID != nil && *g.LeaderID == m.UserID))
	}
	return out
}

func toGroups(gs []models.CircleGroup) []Group {
	out := make([]Group, 0, len(gs))
	for _, g := range gs {
		out = append(out, toGroup(g))
	}
	return out
}
