// Package session keeps short per-conversation history in memory so
// follow-up questions can lean on earlier turns. Sessions do not survive a
// restart.
package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DefaultMaxHistory is how many exchanges a session retains.
const DefaultMaxHistory = 2

// Exchange is one completed question and answer pair.
type Exchange struct {
	Query  string
	Answer string
}

// Store holds bounded per-session exchange history.
type Store struct {
	mu         sync.RWMutex
	sessions   map[string][]Exchange
	maxHistory int
}

// NewStore creates a store retaining maxHistory exchanges per session.
// Negative values fall back to the default; zero disables history entirely.
func NewStore(maxHistory int) *Store {
	if maxHistory < 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Store{
		sessions:   make(map[string][]Exchange),
		maxHistory: maxHistory,
	}
}

// Create starts a fresh session and returns its ID.
func (s *Store) Create() string {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = nil
	s.mu.Unlock()
	return id
}

// GetOrCreate adopts a caller-supplied session ID, registering it if needed.
// An empty ID gets a fresh session.
func (s *Store) GetOrCreate(id string) string {
	if id == "" {
		return s.Create()
	}
	s.mu.Lock()
	if _, ok := s.sessions[id]; !ok {
		s.sessions[id] = nil
	}
	s.mu.Unlock()
	return id
}

// Append records one exchange, evicting the oldest once the session exceeds
// its history bound.
func (s *Store) Append(id, query, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.sessions[id], Exchange{Query: query, Answer: answer})
	if len(history) > s.maxHistory {
		history = history[len(history)-s.maxHistory:]
	}
	s.sessions[id] = history
}

// History renders the session's exchanges for prompt embedding. Unknown or
// empty sessions render as "".
func (s *Store) History(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.sessions[id]
	if len(history) == 0 {
		return ""
	}

	lines := make([]string, 0, len(history))
	for _, ex := range history {
		lines = append(lines, fmt.Sprintf("User: %s\nAssistant: %s", ex.Query, ex.Answer))
	}
	return strings.Join(lines, "\n")
}

// Count reports how many sessions are live.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
