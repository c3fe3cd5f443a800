package token

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/fleetrelay/internal/pkg/metrics"
	"github.com/autopeer-io/fleetrelay/pkg/log"
)

// Source hands out a credential that is valid at the time of the call.
type Source interface {
	EnsureValid(ctx context.Context) (*Credential, error)
}

// Manager caches one credential and refreshes it lazily on access.
type Manager struct {
	portal Portal
	clock  clock.PassiveClock
	logger log.Logger

	current atomic.Pointer[Credential]
}

var _ Source = (*Manager)(nil)

// NewManager returns a Manager with no credential. A nil clock means the real
// wall clock.
func NewManager(portal Portal, clk clock.PassiveClock, logger log.Logger) *Manager {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = log.WithName("token")
	}
	return &Manager{portal: portal, clock: clk, logger: logger}
}

// Current returns the cached credential, which may be nil or expired.
func (m *Manager) Current() *Credential {
	return m.current.Load()
}

// EnsureValid returns the cached credential while it is valid and otherwise
// asks the portal for a new one. A failed refresh leaves the cache unchanged.
func (m *Manager) EnsureValid(ctx context.Context) (*Credential, error) {
	cur := m.current.Load()
	if cur.Valid(m.clock.Now()) {
		return cur, nil
	}

	reason := "absent"
	if cur != nil {
		reason = "expired"
	}
	m.logger.Info("Requesting bearer token", "reason", reason)

	next, err := m.portal.GenerateToken(ctx)
	if err != nil {
		result := "error"
		if errors.Is(err, ErrDenied) {
			result = "denied"
		}
		metrics.TokenRefreshTotal.WithLabelValues(result).Inc()
		m.logger.Error(err, "Token refresh failed", "result", result)
		return nil, err
	}

	if !next.Valid(m.clock.Now()) {
		metrics.TokenRefreshTotal.WithLabelValues("error").Inc()
		err := fmt.Errorf("%w: portal issued an already expired token", ErrUnavailable)
		m.logger.Error(err, "Token refresh failed", "expiresAt", next.ExpiresAt)
		return nil, err
	}

	m.current.Store(next)
	metrics.TokenRefreshTotal.WithLabelValues("success").Inc()
	m.logger.Info("Bearer token refreshed", "expiresAt", next.ExpiresAt.UTC())
	return next, nil
}
