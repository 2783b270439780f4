// internal/domain/models/coordinator_assignment.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CoordinatorAssignment grants a coordinator administration of one
// organization's circle pools. A coordinator may hold several.
type CoordinatorAssignment struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         primitive.ObjectID `bson:"user_id" json:"user_id"`
	OrganizationID primitive.ObjectID `bson:"organization_id" json:"organization_id"`
	GrantedByID    primitive.ObjectID `bson:"granted_by_id,omitempty" json:"granted_by_id,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}
