// internal/app/system/authz/authz.go
package authz

import (
	"net/http"
	"strings"

	"github.com/dalemusser/circlehub/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actor returns the signed-in user's ObjectID. A missing user or a
// malformed session ID both report false.
func Actor(r *http.Request) (primitive.ObjectID, bool) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

// CanAccessOrg is a session-only pre-check: admins reach every
// organization, coordinators the ones listed on their session.
// The pool policy directory makes the authoritative decision.
func CanAccessOrg(r *http.Request, orgID primitive.ObjectID) bool {
	if _, ok := Actor(r); !ok {
		return false
	}
	u, _ := auth.CurrentUser(r)
	switch strings.ToLower(u.Role) {
	case "superadmin", "admin":
		return true
	case "coordinator":
		want := orgID.Hex()
		for _, hex := range u.OrganizationIDs {
			if hex == want {
				return true
			}
		}
	}
	return false
}
