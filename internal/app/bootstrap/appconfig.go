// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig covers ports, TLS, logging and CORS. Everything the
// circle service itself needs lives here and is handed to components by
// bootstrap; nothing below the bootstrap layer reads configuration.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string
	SessionName   string
	SessionDomain string
	SessionMaxAge time.Duration

	// Circle rules
	MinGroupSize        int
	MaxGroupSize        int
	InviteTTL           time.Duration
	InviteSweepInterval time.Duration // 0 disables the sweeper
	InviteLookupLimit   int           // per client IP per minute

	// Invitation mail
	RabbitMQURL string // blank means mail is logged, not delivered
	MailQueue   string
	SiteName    string
	BaseURL     string // e.g. "https://circles.example.org"

	// Audit logging: "all", "db", "log" or "off"
	AuditLogAdmin       string
	AuditLogParticipant string
}
