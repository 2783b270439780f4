// internal/app/system/workers/invitationsweeper.go
package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// InvitationExpirer marks pending invitations past their expiry as expired.
// Implemented by invitationstore.Store.
type InvitationExpirer interface {
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

// InvitationSweeper is a background worker that expires overdue invitations.
// Resolution checks expiry on every read, so the sweep only keeps stored
// status honest for listings.
type InvitationSweeper struct {
	store    InvitationExpirer
	log      *zap.Logger
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewInvitationSweeper creates a sweeper that runs every interval.
func NewInvitationSweeper(store InvitationExpirer, logger *zap.Logger, interval time.Duration) *InvitationSweeper {
	return &InvitationSweeper{
		store:    store,
		log:      logger,
		interval: interval,
		timeout:  30 * time.Second,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (w *InvitationSweeper) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("invitation sweeper started", zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *InvitationSweeper) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("invitation sweeper stopped")
}

func (w *InvitationSweeper) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Sweep()
		}
	}
}

// Sweep runs one expiry pass and returns the number of invitations expired.
func (w *InvitationSweeper) Sweep() int64 {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	count, err := w.store.ExpireOverdue(ctx, w.now().UTC())
	if err != nil {
		w.log.Error("failed to expire invitations", zap.Error(err))
		return 0
	}
	if count > 0 {
		w.log.Info("expired overdue invitations", zap.Int64("count", count))
	}
	return count
}
