package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/wms-platform/picker-terminal/internal/api"
	"github.com/wms-platform/picker-terminal/internal/apperrors"
	"github.com/wms-platform/picker-terminal/internal/logging"
)

// Session holds the current bearer token and picker identity. It is safe for
// concurrent use: the API client reads the token from request goroutines while
// the login flow writes it.
type Session struct {
	mu     sync.RWMutex
	token  string
	picker api.User
}

// NewSession creates an empty, unauthenticated Session
func NewSession() *Session {
	return &Session{}
}

// Token implements api.TokenSource
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Picker returns the logged-in picker identity
func (s *Session) Picker() (api.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.picker, s.token != ""
}

// set installs a new token and identity
func (s *Session) set(token string, picker api.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.picker = picker
}

// clear drops the token and identity
func (s *Session) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.picker = api.User{}
}

// loginClient is the slice of the API client the Manager needs
type loginClient interface {
	Login(ctx context.Context, pickerID, pin string) (api.LoginResponse, error)
	Logout(ctx context.Context) error
}

// Manager drives the PIN login flow and keeps the Session current
type Manager struct {
	client  loginClient
	session *Session
	logger  *logging.Logger
}

// NewManager creates a Manager
func NewManager(client loginClient, session *Session, logger *logging.Logger) *Manager {
	return &Manager{
		client:  client,
		session: session,
		logger:  logger.WithComponent("auth"),
	}
}

// Login authenticates the picker and stores the issued token. Credentials are
// validated locally first so obviously empty input never reaches the backend.
func (m *Manager) Login(ctx context.Context, pickerID, pin string) (api.User, error) {
	pickerID = strings.TrimSpace(pickerID)
	pin = strings.TrimSpace(pin)
	if pickerID == "" || pin == "" {
		return api.User{}, apperrors.ErrValidation("picker id and pin are required")
	}

	resp, err := m.client.Login(ctx, pickerID, pin)
	if err != nil {
		m.logger.WithError(err).Warn("Login failed", "pickerId", pickerID)
		return api.User{}, err
	}

	m.session.set(resp.Token, resp.User)
	m.logger.Info("Picker logged in", "pickerId", resp.User.ID)
	return resp.User, nil
}

// Logout invalidates the session server-side and clears local state. The local
// token is cleared even when the backend call fails; a stale server session
// expires on its own.
func (m *Manager) Logout(ctx context.Context) error {
	err := m.client.Logout(ctx)
	m.session.clear()
	if err != nil {
		m.logger.WithError(err).Warn("Server-side logout failed")
		return err
	}
	m.logger.Info("Picker logged out")
	return nil
}
