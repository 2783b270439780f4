// internal/domain/models/invitation.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InvitationStatus is the state of a single invitation.
// accepted, declined and expired are terminal.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationExpired  InvitationStatus = "expired"
)

// Invitation is a single-use offer for one email address to join a pool.
//
// NOTE:
//   - The raw token is never persisted. TokenHash holds its BLAKE2b-256
//     digest (hex) and carries a unique index.
type Invitation struct {
	ID               primitive.ObjectID  `bson:"_id" json:"id"`
	PoolID           primitive.ObjectID  `bson:"pool_id" json:"pool_id"`
	Email            string              `bson:"email" json:"email"`
	EmailCI          string              `bson:"email_ci" json:"email_ci"`
	TokenHash        string              `bson:"token_hash" json:"-"`
	Status           InvitationStatus    `bson:"status" json:"status"`
	IssuedAt         time.Time           `bson:"issued_at" json:"issued_at"`
	ExpiresAt        time.Time           `bson:"expires_at" json:"expires_at"`
	AcceptedByUserID *primitive.ObjectID `bson:"accepted_by_user_id,omitempty" json:"accepted_by_user_id,omitempty"`
	RespondedAt      *time.Time          `bson:"responded_at,omitempty" json:"responded_at,omitempty"`
}
