// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"strconv"

	"github.com/dalemusser/circlehub/internal/app/store/audit"
	"github.com/dalemusser/circlehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Admin controls logging for pool and group mutations.
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Admin string
	// Participant controls logging for invitation responses. Same values as Admin.
	Participant string
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}

	for _, id := range []struct {
		key string
		v   *primitive.ObjectID
	}{
		{"organization_id", event.OrganizationID},
		{"pool_id", event.PoolID},
		{"user_id", event.UserID},
		{"actor_id", event.ActorID},
	} {
		if id.v != nil {
			fields = append(fields, zap.String(id.key, id.v.Hex()))
		}
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAdmin:
		setting = l.config.Admin
	case audit.CategoryParticipant:
		setting = l.config.Participant
	}
	if setting == "" {
		setting = "all"
	}
	if setting == "off" {
		return
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}
	if (setting == "all" || setting == "db") && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func adminEvent(eventType string, actorID primitive.ObjectID, p models.Pool, details map[string]string) audit.Event {
	orgID, poolID := p.OrganizationID, p.ID
	return audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      eventType,
		OrganizationID: &orgID,
		PoolID:         &poolID,
		ActorID:        &actorID,
		Success:        true,
		Details:        details,
	}
}

// --- Admin Events ---

// PoolCreated logs creation of a pool.
func (l *Logger) PoolCreated(ctx context.Context, actorID primitive.ObjectID, p models.Pool) {
	l.Log(ctx, adminEvent(audit.EventPoolCreated, actorID, p, map[string]string{
		"pool_name":         p.Name,
		"target_group_size": strconv.Itoa(p.TargetGroupSize),
	}))
}

// InvitationsSent logs a batch of invitations.
func (l *Logger) InvitationsSent(ctx context.Context, actorID primitive.ObjectID, p models.Pool, count int) {
	l.Log(ctx, adminEvent(audit.EventInvitationsSent, actorID, p, map[string]string{
		"count": strconv.Itoa(count),
	}))
}

// GroupsAssigned logs a completed assignment run.
func (l *Logger) GroupsAssigned(ctx context.Context, actorID primitive.ObjectID, p models.Pool, groups, participants int) {
	l.Log(ctx, adminEvent(audit.EventGroupsAssigned, actorID, p, map[string]string{
		"groups":       strconv.Itoa(groups),
		"participants": strconv.Itoa(participants),
	}))
}

// MemberMoved logs a move between circles.
func (l *Logger) MemberMoved(ctx context.Context, actorID primitive.ObjectID, p models.Pool, memberID, sourceID, targetID primitive.ObjectID) {
	e := adminEvent(audit.EventMemberMoved, actorID, p, map[string]string{
		"source_group_id": sourceID.Hex(),
		"target_group_id": targetID.Hex(),
	})
	e.UserID = &memberID
	l.Log(ctx, e)
}

// LeaderSet logs a leader change.
func (l *Logger) LeaderSet(ctx context.Context, actorID primitive.ObjectID, p models.Pool, groupID, leaderID primitive.ObjectID) {
	e := adminEvent(audit.EventLeaderSet, actorID, p, map[string]string{
		"group_id": groupID.Hex(),
	})
	e.UserID = &leaderID
	l.Log(ctx, e)
}

// GroupCreated logs a manually created circle.
func (l *Logger) GroupCreated(ctx context.Context, actorID primitive.ObjectID, p models.Pool, g models.CircleGroup) {
	l.Log(ctx, adminEvent(audit.EventGroupCreated, actorID, p, map[string]string{
		"group_id":   g.ID.Hex(),
		"group_name": g.Name,
		"members":    strconv.Itoa(len(g.Members)),
	}))
}

// PoolClosed logs completion or cancellation.
func (l *Logger) PoolClosed(ctx context.Context, actorID primitive.ObjectID, p models.Pool) {
	eventType := audit.EventPoolCompleted
	if p.Status == models.PoolCancelled {
		eventType = audit.EventPoolCancelled
	}
	l.Log(ctx, adminEvent(eventType, actorID, p, nil))
}

// --- Participant Events ---

// InvitationAccepted logs an acceptance by userID.
func (l *Logger) InvitationAccepted(ctx context.Context, userID primitive.ObjectID, p models.Pool, inv models.Invitation) {
	orgID, poolID := p.OrganizationID, p.ID
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryParticipant,
		EventType:      audit.EventInvitationAccepted,
		OrganizationID: &orgID,
		PoolID:         &poolID,
		UserID:         &userID,
		Success:        true,
		Details:        map[string]string{"invitation_id": inv.ID.Hex()},
	})
}

// InvitationDeclined logs a decline.
func (l *Logger) InvitationDeclined(ctx context.Context, p models.Pool, inv models.Invitation) {
	orgID, poolID := p.OrganizationID, p.ID
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryParticipant,
		EventType:      audit.EventInvitationDeclined,
		OrganizationID: &orgID,
		PoolID:         &poolID,
		Success:        true,
		Details:        map[string]string{"invitation_id": inv.ID.Hex()},
	})
}
