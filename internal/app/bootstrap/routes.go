// internal/app/bootstrap/routes.go
package bootstrap

import (
	"context"
	"net/http"

	"github.com/dalemusser/circlehub/internal/app/circles/pipeline"
	circlesfeature "github.com/dalemusser/circlehub/internal/app/features/circles"
	healthfeature "github.com/dalemusser/circlehub/internal/app/features/health"
	"github.com/dalemusser/circlehub/internal/app/policy/poolpolicy"
	"github.com/dalemusser/circlehub/internal/app/store/audit"
	groupstore "github.com/dalemusser/circlehub/internal/app/store/groups"
	invitationstore "github.com/dalemusser/circlehub/internal/app/store/invitations"
	organizationstore "github.com/dalemusser/circlehub/internal/app/store/organizations"
	poolstore "github.com/dalemusser/circlehub/internal/app/store/pools"
	userstore "github.com/dalemusser/circlehub/internal/app/store/users"
	"github.com/dalemusser/circlehub/internal/app/system/auditlog"
	"github.com/dalemusser/circlehub/internal/app/system/auth"
	"github.com/dalemusser/circlehub/internal/app/system/mailer"
	"github.com/dalemusser/circlehub/internal/app/system/txn"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler for this WAFFLE app.
//
// It assembles the circle pipeline from the Mongo-backed stores, the
// directory policy and the mail sender, then mounts the JSON API under
// /api/circles and the health check under /health.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}
	// Reload the user on each request so role changes apply immediately.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(deps.MongoDatabase))

	svc, err := buildPipeline(appCfg, deps, logger)
	if err != nil {
		logger.Error("circle pipeline init failed", zap.Error(err))
		return nil, err
	}

	limiter := newLookupLimiter(appCfg)
	deps.bg.mu.Lock()
	deps.bg.limiter = limiter
	deps.bg.mu.Unlock()

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if logged in.
	r.Use(sessionMgr.LoadSessionUser)

	healthHandler := healthfeature.NewHandler(healthChecks(deps), logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	circlesHandler := circlesfeature.NewHandler(svc, logger.Named("circles"))
	r.Mount("/api/circles", circlesfeature.Routes(circlesHandler, sessionMgr, limiter))

	return r, nil
}

// buildPipeline wires the circle service to its collaborators.
func buildPipeline(appCfg AppConfig, deps DBDeps, logger *zap.Logger) (*pipeline.Service, error) {
	db := deps.MongoDatabase

	var sender mailer.Sender = mailer.LogSender{Log: logger.Named("mail")}
	if deps.MailQueue != nil {
		sender = deps.MailQueue
	}

	return pipeline.New(appCfg.PipelineConfig(), pipeline.Deps{
		Pools:         poolstore.New(db),
		Invitations:   invitationstore.New(db),
		Groups:        groupstore.New(db),
		Directory:     poolpolicy.NewDirectory(db),
		Organizations: organizationstore.New(db),
		Mailer:        mailer.NewInvitations(sender, appCfg.BaseURL, appCfg.SiteName, logger.Named("mail")),
		Txn:           txn.New(deps.MongoClient, logger),
		Audit: auditlog.New(audit.New(db), logger, auditlog.Config{
			Admin:       appCfg.AuditLogAdmin,
			Participant: appCfg.AuditLogParticipant,
		}),
		Log: logger,
	})
}

func healthChecks(deps DBDeps) map[string]healthfeature.Check {
	checks := map[string]healthfeature.Check{
		"database": func(ctx context.Context) error {
			return deps.MongoClient.Ping(ctx, readpref.Primary())
		},
	}
	if deps.MailQueue != nil {
		checks["mail_queue"] = deps.MailQueue.Check
	}
	return checks
}
