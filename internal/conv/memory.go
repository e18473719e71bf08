package conv

import "sync"

// ring is a fixed-capacity buffer of turns for one conversation. Oldest
// entries are evicted on overflow; insertion order is preserved.
type ring struct {
	turns []Turn
	cap   int
}

func (r *ring) add(t Turn) {
	r.turns = append(r.turns, t)
	if len(r.turns) > r.cap {
		copy(r.turns, r.turns[len(r.turns)-r.cap:])
		r.turns = r.turns[:r.cap]
	}
}

// last returns up to n turns in chronological order (oldest first).
func (r *ring) last(n int) []Turn {
	if n > len(r.turns) {
		n = len(r.turns)
	}
	out := make([]Turn, n)
	copy(out, r.turns[len(r.turns)-n:])
	return out
}

// Memory combines the durable store with a per-conversation ring buffer of
// the most recent turns. It is constructed once at startup and passed into
// the dispatcher; there is no package-level state.
type Memory struct {
	store *Store
	cap   int

	mu    sync.Mutex
	rings map[string]*ring
}

// NewMemory wraps a store with an in-process cache of capacity turns per
// conversation.
func NewMemory(store *Store, capacity int) *Memory {
	if capacity <= 0 {
		capacity = 10
	}
	return &Memory{
		store: store,
		cap:   capacity,
		rings: make(map[string]*ring),
	}
}

// Record appends a completed turn to durable storage and to the cache.
func (m *Memory) Record(conversationID, userName string, turn Turn) error {
	if err := m.store.Append(conversationID, userName, turn); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversation(conversationID).add(turn)
	return nil
}

// Recent returns the last n turns in chronological order, populating the
// cache from durable storage on first access per conversation.
func (m *Memory) Recent(conversationID string, n int) ([]Turn, error) {
	m.mu.Lock()
	r, warm := m.rings[conversationID]
	m.mu.Unlock()

	if !warm {
		turns, err := m.store.RecentTurns(conversationID, m.cap)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		r = m.conversation(conversationID)
		if len(r.turns) == 0 {
			for _, t := range turns {
				r.add(t)
			}
		}
		m.mu.Unlock()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rings[conversationID].last(n), nil
}

// Search delegates to the durable store; the cache only serves Recent.
func (m *Memory) Search(conversationID, term string, limit int) ([]SearchResult, error) {
	return m.store.Search(conversationID, term, limit)
}

// Summary delegates to the durable store.
func (m *Memory) Summary(conversationID string, days int) (string, error) {
	return m.store.Summary(conversationID, days)
}

// ExportMarkdown delegates to the durable store.
func (m *Memory) ExportMarkdown(conversationID string, days int) (string, error) {
	return m.store.ExportMarkdown(conversationID, days)
}

// conversation returns the ring for an id, creating it if needed.
// Caller must hold mu.
func (m *Memory) conversation(id string) *ring {
	r, ok := m.rings[id]
	if !ok {
		r = &ring{cap: m.cap}
		m.rings[id] = r
	}
	return r
}
