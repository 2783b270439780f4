// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/circlehub/internal/app/circles/pipeline"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for CircleHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, invite_ttl, etc.
//   - Environment variables: CIRCLEHUB_MONGO_URI, CIRCLEHUB_INVITE_TTL, etc.
//   - Command-line flags: --mongo_uri, --invite_ttl, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "circlehub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "circlehub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie lifetime"},

	// Circle rules
	{Name: "circle_min_group_size", Default: 3, Desc: "Smallest group the assignment engine may produce"},
	{Name: "circle_max_group_size", Default: 6, Desc: "Largest group allowed (must be at least 2*min-1)"},
	{Name: "invite_ttl", Default: "168h", Desc: "How long an invitation stays valid"},
	{Name: "invite_sweep_interval", Default: "15m", Desc: "How often overdue invitations are marked expired (0 disables)"},
	{Name: "invite_lookup_limit", Default: 30, Desc: "Token lookups allowed per client IP per minute"},

	// Invitation mail
	{Name: "rabbitmq_url", Default: "", Desc: "RabbitMQ URL for mail jobs (blank logs mail instead)"},
	{Name: "mail_queue", Default: "circlehub.mail", Desc: "Queue the mail worker consumes"},
	{Name: "site_name", Default: "CircleHub", Desc: "Name shown in invitation emails"},
	{Name: "base_url", Default: "http://localhost:3000", Desc: "Base URL for invitation links"},

	// Audit logging
	{Name: "audit_log_admin", Default: "all", Desc: "Pool/group event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_participant", Default: "all", Desc: "Invitation response logging: 'all', 'db', 'log', or 'off'"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges flags > env (CIRCLEHUB_*) >
// files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "CIRCLEHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 24*time.Hour),

		MinGroupSize:        appValues.Int("circle_min_group_size"),
		MaxGroupSize:        appValues.Int("circle_max_group_size"),
		InviteTTL:           appValues.Duration("invite_ttl", 7*24*time.Hour),
		InviteSweepInterval: appValues.Duration("invite_sweep_interval", 15*time.Minute),
		InviteLookupLimit:   appValues.Int("invite_lookup_limit"),

		RabbitMQURL: appValues.String("rabbitmq_url"),
		MailQueue:   appValues.String("mail_queue"),
		SiteName:    appValues.String("site_name"),
		BaseURL:     appValues.String("base_url"),

		AuditLogAdmin:       appValues.String("audit_log_admin"),
		AuditLogParticipant: appValues.String("audit_log_participant"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Group bounds and the invitation TTL are checked here so a bad deployment
// fails before it connects to anything.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if err := appCfg.PipelineConfig().Validate(); err != nil {
		return fmt.Errorf("invalid circle group sizes: %w", err)
	}
	if appCfg.InviteTTL <= 0 {
		return fmt.Errorf("invite_ttl must be positive (got %s)", appCfg.InviteTTL)
	}
	if appCfg.InviteSweepInterval < 0 {
		return fmt.Errorf("invite_sweep_interval must not be negative (got %s)", appCfg.InviteSweepInterval)
	}
	if appCfg.InviteLookupLimit < 1 {
		return fmt.Errorf("invite_lookup_limit must be at least 1 (got %d)", appCfg.InviteLookupLimit)
	}
	for key, v := range map[string]string{
		"audit_log_admin":       appCfg.AuditLogAdmin,
		"audit_log_participant": appCfg.AuditLogParticipant,
	} {
		switch v {
		case "all", "db", "log", "off":
		default:
			return fmt.Errorf("%s must be one of all, db, log, off (got %q)", key, v)
		}
	}
	if appCfg.RabbitMQURL != "" && appCfg.MailQueue == "" {
		return fmt.Errorf("mail_queue is required when rabbitmq_url is set")
	}
	return nil
}

// PipelineConfig extracts the circle rules the pipeline needs.
func (c AppConfig) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		MinGroupSize: c.MinGroupSize,
		MaxGroupSize: c.MaxGroupSize,
		InviteTTL:    c.InviteTTL,
	}
}
