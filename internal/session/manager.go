// Package session manages the upstream provider auth token: cached token
// reuse, liveness checks, and re-login when the cached token goes stale.
package session

import (
	"context"

	"github.com/stealth-alerts/internal/logging"
)

// tokenProvider performs upstream auth calls.
type tokenProvider interface {
	Login(ctx context.Context) (string, error)
	CheckToken(ctx context.Context, token string) (bool, error)
}

// tokenStore persists the shared auth token between runs.
type tokenStore interface {
	GetToken(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
}

// Manager hands out a provider auth token, logging in only when the cached
// token is missing or no longer accepted. A token that cannot be verified
// counts as invalid: the manager never returns a token it could not vouch for.
type Manager struct {
	provider tokenProvider
	store    tokenStore
	logger   *logging.Logger
}

// NewManager creates a session manager.
func NewManager(provider tokenProvider, store tokenStore, logger *logging.Logger) *Manager {
	return &Manager{
		provider: provider,
		store:    store,
		logger:   logger.WithField("component", "session"),
	}
}

// GetValidToken returns a token the provider currently accepts. Store
// failures degrade to a cache miss rather than blocking the run.
func (m *Manager) GetValidToken(ctx context.Context) (string, error) {
	cached, err := m.store.GetToken(ctx)
	if err != nil {
		m.logger.WithError(err).Warn("Token store read failed, treating as cache miss")
		cached = ""
	}

	if cached != "" {
		valid, err := m.provider.CheckToken(ctx, cached)
		if err != nil {
			m.logger.WithError(err).Warn("Token check failed, falling back to login")
		} else if valid {
			m.logger.Debug("Cached auth token is valid")
			return cached, nil
		} else {
			m.logger.Info("Cached auth token rejected by provider")
		}
	} else {
		m.logger.Debug("No cached auth token")
	}

	return m.login(ctx)
}

func (m *Manager) login(ctx context.Context) (string, error) {
	token, err := m.provider.Login(ctx)
	if err != nil {
		return "", err
	}
	m.logger.Info("Logged in to provider")

	// Persist failures are non-fatal: the token works for this run and the
	// next run simply logs in again.
	if err := m.store.SetToken(ctx, token); err != nil {
		m.logger.WithError(err).Error("Failed to persist auth token")
	}

	return token, nil
}
