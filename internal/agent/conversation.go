package agent

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTurnCap bounds how many prior turns feed into a reasoning call.
const DefaultTurnCap = 10

// archiveTimeout bounds the best-effort archive write so a hung database
// cannot stall the request path.
const archiveTimeout = 5 * time.Second

// Archiver optionally persists conversation turns for durability across
// restarts. The engine's contract does not depend on it; failures are
// logged and never surface to the caller.
type Archiver interface {
	ArchiveTurn(ctx context.Context, conversationID string, turn Turn) error
}

// Conversation holds the turns and last metric context for one
// conversation id. Its mutex serializes all mutation per id.
type Conversation struct {
	ID        string
	CreatedAt time.Time

	mu           sync.Mutex
	turns        []Turn
	lastContext  SampleSet
	lastActivity time.Time
}

// ConversationStore owns all conversation state in the process. The
// store-level lock only guards the id map; per-conversation locks
// serialize turns, so traffic on different ids never contends.
type ConversationStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	turnCap       int
	archive       Archiver
}

// NewConversationStore creates a store with the given context cap.
// A nil archiver keeps conversations memory-only.
func NewConversationStore(turnCap int, archive Archiver) *ConversationStore {
	if turnCap <= 0 {
		turnCap = DefaultTurnCap
	}
	return &ConversationStore{
		conversations: make(map[string]*Conversation),
		turnCap:       turnCap,
		archive:       archive,
	}
}

// GetOrCreate returns the conversation for id, creating it when the id is
// empty or unknown. Generated ids are immutable once assigned.
func (s *ConversationStore) GetOrCreate(id string) *Conversation {
	if id != "" {
		s.mu.RLock()
		conv, ok := s.conversations[id]
		s.mu.RUnlock()
		if ok {
			return conv
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.New().String()
	} else if conv, ok := s.conversations[id]; ok {
		// Lost the race against another creator for the same id.
		return conv
	}

	now := time.Now()
	conv := &Conversation{
		ID:           id,
		CreatedAt:    now,
		lastActivity: now,
	}
	s.conversations[id] = conv
	return conv
}

// AppendTurn records a completed turn on the conversation. Turns are only
// ever appended; nothing is deleted short of full conversation eviction.
func (s *ConversationStore) AppendTurn(id string, role Role, text string) {
	conv := s.GetOrCreate(id)

	turn := Turn{Role: role, Text: text, Timestamp: time.Now()}

	conv.mu.Lock()
	conv.turns = append(conv.turns, turn)
	conv.lastActivity = turn.Timestamp
	conv.mu.Unlock()

	if s.archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := s.archive.ArchiveTurn(ctx, conv.ID, turn); err != nil {
			log.Printf("Failed to archive turn for conversation %s: %v", conv.ID, err)
		}
	}
}

// ContextFor returns the most recent turns for id, oldest first, capped
// at the store's turn cap. Truncation drops the oldest turns so prompts
// stay within the reasoning backend's token budget.
func (s *ConversationStore) ContextFor(id string) []Turn {
	s.mu.RLock()
	conv, ok := s.conversations[id]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()

	turns := conv.turns
	if len(turns) > s.turnCap {
		turns = turns[len(turns)-s.turnCap:]
	}

	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// TurnCount returns the total number of turns recorded for id.
func (s *ConversationStore) TurnCount(id string) int {
	s.mu.RLock()
	conv, ok := s.conversations[id]
	s.mu.RUnlock()
	if !ok {
		return 0
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()
	return len(conv.turns)
}

// SetLastContext snapshots the metric context used for the latest turn.
func (s *ConversationStore) SetLastContext(id string, samples SampleSet) {
	s.mu.RLock()
	conv, ok := s.conversations[id]
	s.mu.RUnlock()
	if !ok {
		return
	}

	conv.mu.Lock()
	conv.lastContext = samples
	conv.mu.Unlock()
}

// LastContext returns the metric context snapshot from the latest turn,
// nil when none was recorded.
func (s *ConversationStore) LastContext(id string) SampleSet {
	s.mu.RLock()
	conv, ok := s.conversations[id]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()
	return conv.lastContext
}

// Evict removes a conversation outright.
func (s *ConversationStore) Evict(id string) {
	s.mu.Lock()
	delete(s.conversations, id)
	s.mu.Unlock()
}

// EvictIdle removes conversations idle longer than maxAge and returns how
// many were evicted. The hosting process owns the eviction schedule.
func (s *ConversationStore) EvictIdle(maxAge time.Duration) int {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, conv := range s.conversations {
		conv.mu.Lock()
		idle := now.Sub(conv.lastActivity)
		conv.mu.Unlock()

		if idle > maxAge {
			delete(s.conversations, id)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of live conversations.
func (s *ConversationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}
