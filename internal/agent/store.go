package agent

import (
	"context"
	"sync"
)

// SessionStore owns per-session conversation state: an append-only message
// history plus a metadata map of named facts. Implementations must keep
// state strictly partitioned by session key and must never drop facts.
//
// An unknown session key is not an error anywhere on this interface; the
// session lazily materializes with default metadata on first touch.
type SessionStore interface {
	// AppendMessage appends one transcript entry. User-role appends
	// increment turns_in_stage; other roles leave it untouched.
	AppendMessage(ctx context.Context, sessionID, role, content string) error
	// History returns the full transcript in append order.
	History(ctx context.Context, sessionID string) ([]ChatMessage, error)
	// SetFact stores a named fact, overwriting any previous value.
	SetFact(ctx context.Context, sessionID, key string, value any) error
	// Fact returns the stored value, or the built-in default for known
	// keys, or nil.
	Fact(ctx context.Context, sessionID, key string) (any, error)
	// AdvanceTo sets the stage and resets turns_in_stage to zero as one
	// operation.
	AdvanceTo(ctx context.Context, sessionID string, next Stage) error
	// Clear removes all state for the session key.
	Clear(ctx context.Context, sessionID string) error
}

func defaultMetadata() map[string]any {
	return map[string]any{
		metaStage:        string(StageGreeting),
		metaMode:         "SDR",
		metaIntent:       nil,
		metaTurnsInStage: 0,
	}
}

// MemoryStore is an in-process SessionStore used in tests and single-node
// development runs.
type MemoryStore struct {
	mu      sync.Mutex
	history map[string][]ChatMessage
	meta    map[string]map[string]any
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		history: make(map[string][]ChatMessage),
		meta:    make(map[string]map[string]any),
	}
}

func (s *MemoryStore) metadata(sessionID string) map[string]any {
	m, ok := s.meta[sessionID]
	if !ok {
		m = make(map[string]any)
		s.meta[sessionID] = m
	}
	for key, value := range defaultMetadata() {
		if _, exists := m[key]; !exists {
			m[key] = value
		}
	}
	return m
}

func (s *MemoryStore) AppendMessage(_ context.Context, sessionID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[sessionID] = append(s.history[sessionID], ChatMessage{Role: role, Content: content})
	if role == ChatRoleUser {
		m := s.metadata(sessionID)
		m[metaTurnsInStage] = asInt(m[metaTurnsInStage]) + 1
	}
	return nil
}

func (s *MemoryStore) History(_ context.Context, sessionID string) ([]ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.history[sessionID]
	out := make([]ChatMessage, len(history))
	copy(out, history)
	return out, nil
}

func (s *MemoryStore) SetFact(_ context.Context, sessionID, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metadata(sessionID)[key] = value
	return nil
}

func (s *MemoryStore) Fact(_ context.Context, sessionID, key string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.metadata(sessionID)[key], nil
}

func (s *MemoryStore) AdvanceTo(_ context.Context, sessionID string, next Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.metadata(sessionID)
	m[metaStage] = string(next)
	m[metaTurnsInStage] = 0
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.history, sessionID)
	delete(s.meta, sessionID)
	return nil
}

// asInt converts stored counter values, which arrive as int in memory and
// float64 after a JSON round-trip.
func asInt(v any) int {
	switch val := v.(type) {
	case int:
		return val
	case int32:
		return int(val)
	case int64:
		return int(val)
	case float64:
		return int(val)
	case float32:
		return int(val)
	default:
		return 0
	}
}
