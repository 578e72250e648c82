// Package session holds the in-memory player session store. Sessions carry
// the cached balance and the per-operator callback endpoint; the external
// wallet platform stays authoritative for money, the cache is only the best
// known value between settlement responses.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Session is one player's bootstrap state.
type Session struct {
	ID              string          `json:"sessionId"`
	ParticipantID   string          `json:"playerId"`
	Currency        string          `json:"currency"`
	CallbackBaseURL string          `json:"-"`
	Token           string          `json:"-"`
	Balance         decimal.Decimal `json:"balance"`
	CreatedAt       time.Time       `json:"createdAt"`
	ExpiresAt       time.Time       `json:"expiresAt"`
}

// LocalMode reports whether the session has no external ledger configured and
// balance mutations stay in-process (degraded/local-test mode).
func (s Session) LocalMode() bool {
	return s.CallbackBaseURL == ""
}

// Store is a mutex-guarded in-memory session map behind a narrow interface
// so a durable backing store could be substituted later.
type Store struct {
	mu       sync.Mutex
	sessions map[string]Session
	expiry   time.Duration
	now      func() time.Time
}

// NewStore creates a store with the given session lifetime.
func NewStore(expiry time.Duration) *Store {
	return &Store{
		sessions: make(map[string]Session),
		expiry:   expiry,
		now:      time.Now,
	}
}

// Create registers a new session and returns it.
func (s *Store) Create(participantID, currency, callbackBaseURL, token string, balance decimal.Decimal) Session {
	if currency == "" {
		currency = "EUR"
	}
	now := s.now()
	sess := Session{
		ID:              fmt.Sprintf("SESSION-%s", uuid.NewString()),
		ParticipantID:   participantID,
		Currency:        currency,
		CallbackBaseURL: callbackBaseURL,
		Token:           token,
		Balance:         balance,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.expiry),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Get returns the session if present and not expired. Expired sessions are
// dropped on read.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	if s.now().After(sess.ExpiresAt) {
		delete(s.sessions, id)
		return Session{}, false
	}
	return sess, true
}

// ByParticipant returns the live session for a participant id, if any.
func (s *Store) ByParticipant(participantID string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, sess := range s.sessions {
		if sess.ParticipantID == participantID && !now.After(sess.ExpiresAt) {
			return sess, true
		}
	}
	return Session{}, false
}

// UpdateBalance sets the cached balance for a session.
func (s *Store) UpdateBalance(id string, balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.Balance = balance
		s.sessions[id] = sess
	}
}

// Delete removes a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// CleanupLoop drops expired sessions once a minute until ctx is cancelled.
func (s *Store) CleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *Store) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
}
