package store

import (
	"context"
	"sync"
	"time"
)

// MemoryNonces is the in-process nonce store used when Redis is not the
// memory backend.
type MemoryNonces struct {
	mu     sync.Mutex
	now    func() time.Time
	expiry map[string]time.Time
}

// NewMemoryNonces returns an empty store.
func NewMemoryNonces() *MemoryNonces {
	return &MemoryNonces{now: time.Now, expiry: make(map[string]time.Time)}
}

// IsNonceUsed checks if a nonce has been used and has not expired.
func (s *MemoryNonces) IsNonceUsed(_ context.Context, agentID, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.expiry[nonceKey(agentID, nonce)]
	return ok && s.now().Before(exp), nil
}

// MarkNonceUsed records the nonce and drops expired ones.
func (s *MemoryNonces) MarkNonceUsed(_ context.Context, agentID, nonce string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, exp := range s.expiry {
		if !now.Before(exp) {
			delete(s.expiry, k)
		}
	}
	s.expiry[nonceKey(agentID, nonce)] = now.Add(ttl)
	return nil
}
