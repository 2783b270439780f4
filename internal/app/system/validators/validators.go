// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates the circle collections (if missing) and attaches
// JSON-Schema validators. Servers without collMod/validator support are
// logged and skipped.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	ensure := func(coll string, schema bson.M) {
		if err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if unsupported(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	// Identity collections the directory reads
	ensure("users", usersSchema())
	ensure("organizations", orgsSchema())
	ensure("coordinator_assignments", coordinatorAssignmentsSchema())

	// Circle collections
	ensure("circle_pools", poolsSchema())
	ensure("circle_invitations", invitationsSchema())
	ensure("circle_groups", circleGroupsSchema())

	ensure("audit_events", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers ---------------------- */

// ensureCollection idempotently makes sure name exists.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) error {
	names, err := db.ListCollectionNames(ctx, bson.M{"name": name})
	if err == nil && len(names) > 0 {
		return nil
	}
	// Listing failed or found nothing: create and tolerate a racing creator.
	if err := db.CreateCollection(ctx, name); err != nil {
		if commandErr(err, []int32{48}, "already exists", "namespace exists") {
			return nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return nil
}

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	if err := db.RunCommand(ctx, cmd).Err(); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

// unsupported reports whether the server lacks collMod or validators
// (DocumentDB and some managed offerings).
func unsupported(err error) bool {
	return commandErr(err, []int32{59, 115}, "no such command", "not implemented", "not supported")
}

// commandErr matches a server command error by code or, failing that, by
// message fragment.
func commandErr(err error, codes []int32, phrases ...string) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		for _, c := range codes {
			if ce.Code == c {
				return true
			}
		}
	}
	msg := strings.ToLower(err.Error())
	for _, p := range phrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

/* ------------------------- JSON-Schema docs ---------------------- */

var nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"full_name", "role", "status"},
			"properties": bson.M{
				"full_name":       nonBlank,
				"full_name_ci":    nonBlank,
				"email":           bson.M{"bsonType": "string"},
				"role":            bson.M{"enum": bson.A{"superadmin", "admin", "coordinator", "member"}},
				"status":          bson.M{"enum": bson.A{"active", "disabled"}},
				"organization_id": bson.M{"bsonType": bson.A{"objectId", "null"}},
			},
		},
	}
}

func orgsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "name_ci", "status"},
			"properties": bson.M{
				"name":    nonBlank,
				"name_ci": nonBlank,
				"status":  bson.M{"enum": bson.A{"active", "disabled"}},
			},
		},
	}
}

func coordinatorAssignmentsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user_id", "organization_id", "created_at"},
			"properties": bson.M{
				"user_id":         bson.M{"bsonType": "objectId"},
				"organization_id": bson.M{"bsonType": "objectId"},
				"created_at":      bson.M{"bsonType": "date"},
			},
		},
	}
}

func poolsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"organization_id", "name", "name_ci", "target_group_size", "status", "stats", "created_at"},
			"properties": bson.M{
				"organization_id":   bson.M{"bsonType": "objectId"},
				"name":              nonBlank,
				"name_ci":           nonBlank,
				"topic":             bson.M{"bsonType": "string"},
				"target_group_size": bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 1},
				"status": bson.M{"enum": bson.A{
					"draft", "inviting", "assigning", "active", "completed", "cancelled",
				}},
				"stats": bson.M{
					"bsonType": "object",
					"properties": bson.M{
						"total_invited":  bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
						"total_accepted": bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
					},
				},
				"created_at": bson.M{"bsonType": "date"},
			},
		},
	}
}

func invitationsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"pool_id", "email", "email_ci", "token_hash", "status", "issued_at", "expires_at"},
			"properties": bson.M{
				"pool_id":    bson.M{"bsonType": "objectId"},
				"email":      nonBlank,
				"email_ci":   nonBlank,
				"token_hash": bson.M{"bsonType": "string", "minLength": 64, "maxLength": 64},
				"status":     bson.M{"enum": bson.A{"pending", "accepted", "declined", "expired"}},
				"issued_at":  bson.M{"bsonType": "date"},
				"expires_at": bson.M{"bsonType": "date"},

				"accepted_by_user_id": bson.M{"bsonType": "objectId"},
				"responded_at":        bson.M{"bsonType": "date"},
			},
		},
	}
}

func circleGroupsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"pool_id", "name", "name_ci", "members", "status"},
			"properties": bson.M{
				"pool_id": bson.M{"bsonType": "objectId"},
				"name":    nonBlank,
				"name_ci": nonBlank,
				"members": bson.M{
					"bsonType": "array",
					"items": bson.M{
						"bsonType": "object",
						"required": bson.A{"user_id", "joined_at"},
						"properties": bson.M{
							"user_id":      bson.M{"bsonType": "objectId"},
							"display_name": bson.M{"bsonType": "string"},
							"joined_at":    bson.M{"bsonType": "date"},
						},
					},
				},
				"leader_id": bson.M{"bsonType": bson.A{"objectId", "null"}},
				"status":    bson.M{"enum": bson.A{"active", "archived"}},
			},
		},
	}
}
