package mock

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store keeps chat sessions in memory
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byUser   map[string][]string
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		byUser:   make(map[string][]string),
	}
}

// CreateSession stores a new session and returns a copy of it
func (s *Store) CreateSession(userID, title, platform string) Session {
	session := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Platform:  platform,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	s.byUser[userID] = append(s.byUser[userID], session.ID)
	return *session
}

// AppendMessages adds messages to a session and returns the number of
// messages that preceded them, capped at contextSize when positive
func (s *Store) AppendMessages(sessionID string, contextSize int, msgs ...Message) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return 0, false
	}
	used := len(session.Messages)
	if contextSize > 0 && used > contextSize {
		used = contextSize
	}
	session.Messages = append(session.Messages, msgs...)
	return used, true
}

// Messages returns one page of a session's messages (page is 1-based) and the total count
func (s *Store) Messages(sessionID string, page, pageSize int) ([]Message, int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, 0, false
	}
	total := len(session.Messages)
	start := (page - 1) * pageSize
	if start >= total {
		return []Message{}, total, true
	}
	end := min(start+pageSize, total)
	out := make([]Message, end-start)
	copy(out, session.Messages[start:end])
	return out, total, true
}

// Stats summarises one session
func (s *Store) Stats(sessionID string) (SessionStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return SessionStats{}, false
	}
	stats := SessionStats{
		SessionID:    session.ID,
		MessageCount: len(session.Messages),
		CreatedAt:    session.CreatedAt,
	}
	for _, m := range session.Messages {
		switch m.Role {
		case RoleUser:
			stats.UserMessages++
		case RoleAssistant:
			stats.AssistantMessages++
		}
	}
	if n := len(session.Messages); n > 0 {
		last := session.Messages[n-1].CreatedAt
		stats.LastMessageAt = &last
	}
	return stats, true
}

// UserSessions lists a user's sessions, newest first
func (s *Store) UserSessions(userID string) []SessionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byUser[userID]
	out := make([]SessionSummary, 0, len(ids))
	for _, id := range ids {
		session := s.sessions[id]
		out = append(out, SessionSummary{
			ID:           session.ID,
			Title:        session.Title,
			Platform:     session.Platform,
			MessageCount: len(session.Messages),
			CreatedAt:    session.CreatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of stored sessions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
