// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"sync"
	"time"

	invitationstore "github.com/dalemusser/circlehub/internal/app/store/invitations"
	"github.com/dalemusser/circlehub/internal/app/system/ratelimit"
	"github.com/dalemusser/circlehub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// background holds what Startup and BuildHandler start so Shutdown can
// stop it.
type background struct {
	mu      sync.Mutex
	sweeper *workers.InvitationSweeper
	limiter *ratelimit.Limiter
}

func (b *background) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sweeper != nil {
		b.sweeper.Stop()
		b.sweeper = nil
	}
	if b.limiter != nil {
		b.limiter.Stop()
		b.limiter = nil
	}
}

// Startup runs after the schema is in place and before the handler is
// built. It starts the invitation sweeper.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if appCfg.InviteSweepInterval == 0 {
		logger.Info("invitation sweeper disabled")
		return nil
	}
	sw := workers.NewInvitationSweeper(
		invitationstore.New(deps.MongoDatabase),
		logger.Named("sweeper"),
		appCfg.InviteSweepInterval,
	)
	sw.Start()

	deps.bg.mu.Lock()
	deps.bg.sweeper = sw
	deps.bg.mu.Unlock()
	return nil
}

// newLookupLimiter guards the anonymous invitation endpoints.
func newLookupLimiter(appCfg AppConfig) *ratelimit.Limiter {
	return ratelimit.New(appCfg.InviteLookupLimit, time.Minute)
}
