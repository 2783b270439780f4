// Package lifecycle owns the circle pool state machine.
//
//	draft → inviting → assigning → active → completed
//	cancelled is reachable from every non-terminal state.
//
// Functions here are pure: they inspect and return models.Pool values and
// never touch storage.
package lifecycle

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dalemusser/circlehub/internal/app/system/apperrors"
	"github.com/dalemusser/circlehub/internal/domain/models"
)

// Config holds the group-size bounds the lifecycle checks against.
type Config struct {
	MinGroupSize int
	MaxGroupSize int
}

// Manager enforces legal pool transitions.
type Manager struct {
	cfg Config
	now func() time.Time
}

// New returns a Manager. A nil clock defaults to time.Now.
func New(cfg Config, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{cfg: cfg, now: now}
}

// MinGroupSize returns the configured minimum group size.
func (m *Manager) MinGroupSize() int { return m.cfg.MinGroupSize }

// MaxGroupSize returns the configured maximum group size.
func (m *Manager) MaxGroupSize() int { return m.cfg.MaxGroupSize }

var allowed = map[models.PoolStatus][]models.PoolStatus{
	models.PoolDraft:     {models.PoolInviting, models.PoolCompleted, models.PoolCancelled},
	models.PoolInviting:  {models.PoolAssigning, models.PoolCompleted, models.PoolCancelled},
	models.PoolAssigning: {models.PoolActive, models.PoolCompleted, models.PoolCancelled},
	models.PoolActive:    {models.PoolCompleted, models.PoolCancelled},
}

// IsTerminal reports whether status can never change again.
func IsTerminal(status models.PoolStatus) bool {
	return status == models.PoolCompleted || status == models.PoolCancelled
}

// IsTransitionAllowed reports whether from → to is a legal edge.
func IsTransitionAllowed(from, to models.PoolStatus) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanInvite is true only in draft or inviting.
func (m *Manager) CanInvite(p models.Pool) bool {
	return p.Status == models.PoolDraft || p.Status == models.PoolInviting
}

// CanAssign is true only when the pool is inviting and at least
// MinGroupSize invitations have been accepted.
func (m *Manager) CanAssign(p models.Pool, accepted int) bool {
	return p.Status == models.PoolInviting && accepted >= m.cfg.MinGroupSize
}

// CanMutateGroups reports whether group-level admin mutations (move,
// leader, create) are permitted. Terminal pools are frozen.
func (m *Manager) CanMutateGroups(p models.Pool) bool {
	return !IsTerminal(p.Status)
}

// CheckInvite returns a Validation error when invitations cannot be sent.
func (m *Manager) CheckInvite(p models.Pool) error {
	if m.CanInvite(p) {
		return nil
	}
	return apperrors.WithMetadata(apperrors.KindValidation, apperrors.CodeInvitingClosed,
		fmt.Sprintf("pool is %s; invitations can only be sent while draft or inviting", p.Status),
		map[string]string{"status": string(p.Status)})
}

// CheckAssign explains why CanAssign is false. It never mutates p.
func (m *Manager) CheckAssign(p models.Pool, accepted int) error {
	if p.Status != models.PoolInviting {
		return transitionError(p.Status, models.PoolAssigning)
	}
	if accepted < m.cfg.MinGroupSize {
		return apperrors.WithMetadata(apperrors.KindValidation, apperrors.CodeNotEnoughAccepted,
			fmt.Sprintf("%d accepted invitations; at least %d are required", accepted, m.cfg.MinGroupSize),
			map[string]string{
				"accepted": strconv.Itoa(accepted),
				"required": strconv.Itoa(m.cfg.MinGroupSize),
			})
	}
	return nil
}

// CheckGroupMutation returns a Validation error for terminal pools.
func (m *Manager) CheckGroupMutation(p models.Pool) error {
	if m.CanMutateGroups(p) {
		return nil
	}
	return apperrors.WithMetadata(apperrors.KindValidation, apperrors.CodePoolClosed,
		fmt.Sprintf("pool is %s and can no longer be changed", p.Status),
		map[string]string{"status": string(p.Status)})
}

// ValidateTargetSize enforces min ≤ target ≤ max.
func (m *Manager) ValidateTargetSize(target int) error {
	if target < m.cfg.MinGroupSize || target > m.cfg.MaxGroupSize {
		return apperrors.WithMetadata(apperrors.KindValidation, apperrors.CodeInvalidTargetSize,
			fmt.Sprintf("target group size must be between %d and %d", m.cfg.MinGroupSize, m.cfg.MaxGroupSize),
			map[string]string{
				"min": strconv.Itoa(m.cfg.MinGroupSize),
				"max": strconv.Itoa(m.cfg.MaxGroupSize),
			})
	}
	return nil
}

// Transition applies from → target and stamps timestamps.
func (m *Manager) Transition(p models.Pool, target models.PoolStatus) (models.Pool, error) {
	if !IsTransitionAllowed(p.Status, target) {
		return models.Pool{}, transitionError(p.Status, target)
	}
	updated := p
	updated.Status = target
	at := m.now().UTC()
	updated.UpdatedAt = at
	switch target {
	case models.PoolCompleted:
		updated.CompletedAt = &at
	case models.PoolCancelled:
		updated.CancelledAt = &at
	}
	return updated, nil
}

// BeginInviting moves a draft pool to inviting. Pools already inviting are
// returned unchanged.
func (m *Manager) BeginInviting(p models.Pool) (models.Pool, error) {
	if p.Status == models.PoolInviting {
		return p, nil
	}
	return m.Transition(p, models.PoolInviting)
}

// BeginAssign moves inviting → assigning after CheckAssign passes. It is
// entered before partitioning so a failed run stays visibly "assigning".
func (m *Manager) BeginAssign(p models.Pool, accepted int) (models.Pool, error) {
	if err := m.CheckAssign(p, accepted); err != nil {
		return models.Pool{}, err
	}
	return m.Transition(p, models.PoolAssigning)
}

// FinishAssign moves assigning → active once every group is persisted.
func (m *Manager) FinishAssign(p models.Pool) (models.Pool, error) {
	return m.Transition(p, models.PoolActive)
}

// Complete ends a pool normally.
func (m *Manager) Complete(p models.Pool) (models.Pool, error) {
	return m.Transition(p, models.PoolCompleted)
}

// Cancel abandons a pool.
func (m *Manager) Cancel(p models.Pool) (models.Pool, error) {
	return m.Transition(p, models.PoolCancelled)
}

func transitionError(from, to models.PoolStatus) error {
	return apperrors.WithMetadata(apperrors.KindValidation, apperrors.CodeInvalidTransition,
		fmt.Sprintf("pool status transition not allowed: %s -> %s", from, to),
		map[string]string{"from": string(from), "to": string(to)})
}
