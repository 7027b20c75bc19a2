package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"kalys/internal/domain"
)

// Store keeps server-side conversations in memory. Idle sessions expire
// after the TTL; every access refreshes it.
type Store struct {
	mu    sync.Mutex
	cache *cache.Cache
	ttl   time.Duration
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{cache: cache.New(ttl, 10*time.Minute), ttl: ttl}
}

func (s *Store) Get(id string) (*domain.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(id)
}

func (s *Store) getLocked(id string) (*domain.Conversation, bool) {
	x, found := s.cache.Get(id)
	if !found {
		return nil, false
	}
	conv := x.(*domain.Conversation)
	s.cache.Set(id, conv, s.ttl)
	return conv, true
}

// GetOrCreate returns the conversation for id, creating it when id is empty
// or unknown. A new conversation starts with seed. created reports whether a
// new conversation was made.
func (s *Store) GetOrCreate(id string, seed ...domain.Turn) (conv *domain.Conversation, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != "" {
		if conv, ok := s.getLocked(id); ok {
			return conv, false
		}
	} else {
		id = uuid.NewString()
	}
	conv = domain.NewConversation(id, seed...)
	s.cache.Set(id, conv, s.ttl)
	return conv, true
}

// Delete drops the session and reports whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, found := s.cache.Get(id)
	s.cache.Delete(id)
	return found
}

func (s *Store) Len() int { return s.cache.ItemCount() }
