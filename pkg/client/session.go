package client

import (
	"net/http"
	"sync"
)

// Session carries the bearer token sent with every request and the hook
// invoked when the service answers with an unauthorized envelope. Logging
// in and refreshing tokens are left to whoever owns the session.
type Session struct {
	mu             sync.RWMutex
	token          string
	onUnauthorized func()
}

// NewSession creates a session with an initial token (may be empty).
func NewSession(token string) *Session {
	return &Session{token: token}
}

// SetToken replaces the bearer token.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Token returns the current bearer token.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// OnUnauthorized registers fn to run whenever a request is rejected with
// code 401. It replaces any previously registered hook.
func (s *Session) OnUnauthorized(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUnauthorized = fn
}

func (s *Session) apply(req *http.Request) {
	if token := s.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (s *Session) unauthorized() {
	s.mu.RLock()
	fn := s.onUnauthorized
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}
