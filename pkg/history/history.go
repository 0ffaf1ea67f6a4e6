// Package history keeps each user's conversation in memory for the lifetime
// of the process.
package history

import "sync"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// DefaultWindow is how many trailing messages are sent with each prompt.
const DefaultWindow = 5

// Store maps user ids to their ordered messages. It is safe for concurrent
// use. Callers that need a read-modify-write sequence for one user hold
// Lock(userID) for its duration.
type Store struct {
	mu          sync.RWMutex
	messages    map[int64][]Message
	userLocks   map[int64]*sync.Mutex
	maxMessages int
}

// NewStore creates a store. maxMessages caps each user's history, dropping
// the oldest entries; 0 keeps everything.
func NewStore(maxMessages int) *Store {
	if maxMessages < 0 {
		maxMessages = 0
	}
	return &Store{
		messages:    make(map[int64][]Message),
		userLocks:   make(map[int64]*sync.Mutex),
		maxMessages: maxMessages,
	}
}

// Append adds msg to the end of the user's history. Duplicates are kept.
func (s *Store) Append(userID int64, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := append(s.messages[userID], msg)
	if s.maxMessages > 0 && len(msgs) > s.maxMessages {
		msgs = append([]Message(nil), msgs[len(msgs)-s.maxMessages:]...)
	}
	s.messages[userID] = msgs
}

// RecentWindow returns a copy of the last n messages in insertion order.
func (s *Store) RecentWindow(userID int64, n int) []Message {
	if n <= 0 {
		return []Message{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[userID]
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

func (s *Store) Len(userID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages[userID])
}

// Reset forgets the user's history.
func (s *Store) Reset(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, userID)
}

// Users returns the number of users with stored history.
func (s *Store) Users() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Lock acquires the per-user turn lock and returns its release function.
func (s *Store) Lock(userID int64) func() {
	s.mu.Lock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}
