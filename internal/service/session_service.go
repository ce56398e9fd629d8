package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/lromeral/sitechat/internal/model"
)

const maxSessionIDLen = 64

// SessionStore keeps per-session conversation state for a bounded time.
// Expired or unknown sessions read as a fresh empty state; no durability
// is promised.
type SessionStore struct {
	cache *expirable.LRU[string, model.ConversationState]
}

func NewSessionStore(size int, ttl time.Duration) *SessionStore {
	if size <= 0 {
		size = 10000
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionStore{
		cache: expirable.NewLRU[string, model.ConversationState](size, nil, ttl),
	}
}

// NormalizeSessionID strips everything outside [A-Za-z0-9_-] and truncates
// to 64 chars. An id that normalizes to "" means "no session": state
// operations become no-ops and every message is stateless.
func NormalizeSessionID(raw string) string {
	var b []byte
	for i := 0; i < len(raw) && len(b) < maxSessionIDLen; i++ {
		c := raw[i]
		if c == '-' || c == '_' ||
			(c >= '0' && c <= '9') ||
			(c >= 'a' && c <= 'z') ||
			(c >= 'A' && c <= 'Z') {
			b = append(b, c)
		}
	}
	return string(b)
}

func (s *SessionStore) Get(sessionID string) model.ConversationState {
	id := NormalizeSessionID(sessionID)
	if id == "" {
		return model.ConversationState{}
	}
	state, ok := s.cache.Get(id)
	if !ok {
		return model.ConversationState{}
	}
	return state
}

// Put refreshes the TTL on every write.
func (s *SessionStore) Put(sessionID string, state model.ConversationState) {
	id := NormalizeSessionID(sessionID)
	if id == "" {
		return
	}
	s.cache.Add(id, state)
}
