// internal/app/policy/poolpolicy/poolpolicy.go
package poolpolicy

import (
	"context"
	"errors"

	"github.com/dalemusser/circlehub/internal/app/store/coordinatorassign"
	userstore "github.com/dalemusser/circlehub/internal/app/store/users"
	"github.com/dalemusser/circlehub/internal/app/system/normalize"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Directory answers the identity questions the circle pipeline asks:
// which organizations a user may administer, and their roster names.
// It always reads current data; nothing is cached.
type Directory struct {
	users  *userstore.Store
	coords *coordinatorassign.Store
}

// NewDirectory builds a Directory over db.
func NewDirectory(db *mongo.Database) *Directory {
	return &Directory{
		users:  userstore.New(db),
		coords: coordinatorassign.New(db),
	}
}

// IsOrgAdmin reports whether userID may administer orgID:
//   - superadmins and admins manage every organization
//   - coordinators manage organizations they are assigned to
//   - unknown or disabled users manage nothing
//
// Returns an error only when the lookup itself fails, so callers can tell
// "not authorized" (false, nil) from "database error" (false, err).
func (d *Directory) IsOrgAdmin(ctx context.Context, orgID, userID primitive.ObjectID) (bool, error) {
	u, err := d.users.GetByID(ctx, userID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if normalize.Status(u.Status) == userstore.StatusDisabled {
		return false, nil
	}

	switch normalize.Status(u.Role) {
	case userstore.RoleSuperAdmin, userstore.RoleAdmin:
		return true, nil
	case userstore.RoleCoordinator:
		return d.coords.Exists(ctx, userID, orgID)
	default:
		return false, nil
	}
}

// AdministersAny reports whether userID administers at least one
// organization. Unknown and disabled users administer none.
func (d *Directory) AdministersAny(ctx context.Context, userID primitive.ObjectID) (bool, error) {
	u, err := d.users.GetByID(ctx, userID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if normalize.Status(u.Status) == userstore.StatusDisabled {
		return false, nil
	}
	switch normalize.Status(u.Role) {
	case userstore.RoleSuperAdmin, userstore.RoleAdmin:
		return true, nil
	case userstore.RoleCoordinator:
		orgs, err := d.coords.OrgIDsByUser(ctx, userID)
		if err != nil {
			return false, err
		}
		return len(orgs) > 0, nil
	default:
		return false, nil
	}
}

// DisplayNames resolves roster names for many users in one query.
func (d *Directory) DisplayNames(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]string, error) {
	return d.users.DisplayNames(ctx, ids)
}
