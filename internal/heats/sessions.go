package heats

import (
	"log/slog"
	"sync"
)

type sessionKey struct{ modalityID, eventID string }

// Sessions holds one registry per (modality, event) for the process lifetime.
type Sessions struct {
	mu     sync.Mutex
	store  Store
	logger *slog.Logger
	byKey  map[sessionKey]*Registry
}

func NewSessions(store Store, logger *slog.Logger) *Sessions {
	return &Sessions{store: store, logger: logger, byKey: map[sessionKey]*Registry{}}
}

func (s *Sessions) Get(modalityID, eventID string) *Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := sessionKey{modalityID, eventID}
	r, ok := s.byKey[k]
	if !ok {
		r = NewRegistry(s.store, modalityID, eventID, s.logger)
		s.byKey[k] = r
	}
	return r
}

// Drop forgets a session, e.g. after its heat configuration was cleared.
func (s *Sessions) Drop(modalityID, eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byKey, sessionKey{modalityID, eventID})
}
