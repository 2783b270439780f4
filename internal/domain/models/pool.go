// internal/domain/models/pool.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PoolStatus is the lifecycle state of a circle pool.
type PoolStatus string

const (
	PoolDraft     PoolStatus = "draft"
	PoolInviting  PoolStatus = "inviting"
	PoolAssigning PoolStatus = "assigning"
	PoolActive    PoolStatus = "active"
	PoolCompleted PoolStatus = "completed"
	PoolCancelled PoolStatus = "cancelled"
)

// PoolStats are the counters maintained on the pool document.
type PoolStats struct {
	TotalInvited  int `bson:"total_invited" json:"total_invited"`
	TotalAccepted int `bson:"total_accepted" json:"total_accepted"`
}

// Pool is a cohort of invited participants that will be split into circles.
// A pool is owned by exactly one organization.
type Pool struct {
	ID              primitive.ObjectID `bson:"_id" json:"id"`
	OrganizationID  primitive.ObjectID `bson:"organization_id" json:"organization_id"`
	Name            string             `bson:"name" json:"name"`
	NameCI          string             `bson:"name_ci" json:"name_ci"`
	Topic           string             `bson:"topic" json:"topic"`
	TargetGroupSize int                `bson:"target_group_size" json:"target_group_size"`
	Status          PoolStatus         `bson:"status" json:"status"`
	Stats           PoolStats          `bson:"stats" json:"stats"`
	CreatedByID     primitive.ObjectID `bson:"created_by_id" json:"created_by_id"`

	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	CancelledAt *time.Time `bson:"cancelled_at,omitempty" json:"cancelled_at,omitempty"`
}
