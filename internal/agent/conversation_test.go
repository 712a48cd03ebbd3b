package agent

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestGetOrCreate_GeneratesID(t *testing.T) {
	store := NewConversationStore(0, nil)

	conv := store.GetOrCreate("")
	if conv.ID == "" {
		t.Fatal("Expected a generated conversation id")
	}

	again := store.GetOrCreate(conv.ID)
	if again != conv {
		t.Error("Same id must return the same conversation")
	}

	other := store.GetOrCreate("")
	if other.ID == conv.ID {
		t.Error("New conversations must get distinct ids")
	}
}

func TestContextFor_TurnCap(t *testing.T) {
	store := NewConversationStore(10, nil)
	conv := store.GetOrCreate("")

	for i := 0; i < 15; i++ {
		store.AppendTurn(conv.ID, RoleUser, fmt.Sprintf("turn-%02d", i))
	}

	context := store.ContextFor(conv.ID)
	if len(context) != 10 {
		t.Fatalf("Expected exactly 10 turns, got %d", len(context))
	}

	// Truncation drops the oldest end: turns 5..14 remain, in order.
	for i, turn := range context {
		expected := fmt.Sprintf("turn-%02d", i+5)
		if turn.Text != expected {
			t.Errorf("Turn %d: expected %q, got %q", i, expected, turn.Text)
		}
	}

	if store.TurnCount(conv.ID) != 15 {
		t.Errorf("No turn may be deleted by truncation; expected 15 stored, got %d", store.TurnCount(conv.ID))
	}
}

func TestAppendTurn_ConcurrentSameID(t *testing.T) {
	store := NewConversationStore(200, nil)
	conv := store.GetOrCreate("")

	const perCaller = 50
	var wg sync.WaitGroup
	for caller := 0; caller < 2; caller++ {
		wg.Add(1)
		go func(caller int) {
			defer wg.Done()
			for i := 0; i < perCaller; i++ {
				store.AppendTurn(conv.ID, RoleUser, fmt.Sprintf("caller-%d-turn-%d", caller, i))
			}
		}(caller)
	}
	wg.Wait()

	if got := store.TurnCount(conv.ID); got != 2*perCaller {
		t.Fatalf("Expected %d turns, got %d", 2*perCaller, got)
	}

	// Every turn must be fully intact, never interleaved.
	perCallerSeen := map[int]int{}
	for _, turn := range store.ContextFor(conv.ID) {
		var caller, seq int
		if _, err := fmt.Sscanf(turn.Text, "caller-%d-turn-%d", &caller, &seq); err != nil {
			t.Fatalf("Corrupted turn text %q: %v", turn.Text, err)
		}
		if seq < perCallerSeen[caller] {
			t.Errorf("Caller %d turns out of order: saw %d after %d", caller, seq, perCallerSeen[caller])
		}
		perCallerSeen[caller] = seq
	}
}

func TestAppendTurn_DifferentIDsIndependent(t *testing.T) {
	store := NewConversationStore(0, nil)
	a := store.GetOrCreate("")
	b := store.GetOrCreate("")

	var wg sync.WaitGroup
	for _, id := range []string{a.ID, b.ID} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				store.AppendTurn(id, RoleAgent, "reply")
			}
		}(id)
	}
	wg.Wait()

	if store.TurnCount(a.ID) != 20 || store.TurnCount(b.ID) != 20 {
		t.Errorf("Expected 20 turns each, got %d and %d", store.TurnCount(a.ID), store.TurnCount(b.ID))
	}
}

func TestLastContext(t *testing.T) {
	store := NewConversationStore(0, nil)
	conv := store.GetOrCreate("")

	if store.LastContext(conv.ID) != nil {
		t.Error("Fresh conversation must have nil last context")
	}

	samples := SampleSet{"up": {Query: "up", HasData: true}}
	store.SetLastContext(conv.ID, samples)

	got := store.LastContext(conv.ID)
	if got == nil || !got["up"].HasData {
		t.Errorf("Expected stored context snapshot, got %v", got)
	}
}

func TestEvictIdle(t *testing.T) {
	store := NewConversationStore(0, nil)
	conv := store.GetOrCreate("")
	store.AppendTurn(conv.ID, RoleUser, "hello")

	if evicted := store.EvictIdle(time.Hour); evicted != 0 {
		t.Errorf("Active conversation must survive, evicted %d", evicted)
	}

	time.Sleep(5 * time.Millisecond)
	if evicted := store.EvictIdle(time.Millisecond); evicted != 1 {
		t.Errorf("Expected 1 eviction, got %d", evicted)
	}
	if store.Len() != 0 {
		t.Errorf("Expected empty store after eviction, got %d", store.Len())
	}
}

// recordingArchiver captures archived turns for assertions.
type recordingArchiver struct {
	mu    sync.Mutex
	turns map[string][]Turn
	err   error
}

func (a *recordingArchiver) ArchiveTurn(ctx context.Context, conversationID string, turn Turn) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	if a.turns == nil {
		a.turns = make(map[string][]Turn)
	}
	a.turns[conversationID] = append(a.turns[conversationID], turn)
	return nil
}

func TestAppendTurn_Archives(t *testing.T) {
	archive := &recordingArchiver{}
	store := NewConversationStore(0, archive)
	conv := store.GetOrCreate("")

	store.AppendTurn(conv.ID, RoleUser, "persist me")

	archive.mu.Lock()
	defer archive.mu.Unlock()
	if len(archive.turns[conv.ID]) != 1 || archive.turns[conv.ID][0].Text != "persist me" {
		t.Errorf("Expected archived turn, got %v", archive.turns[conv.ID])
	}
}

// deadlineArchiver records whether the archive context carried a deadline.
type deadlineArchiver struct {
	hasDeadline bool
}

func (a *deadlineArchiver) ArchiveTurn(ctx context.Context, conversationID string, turn Turn) error {
	_, a.hasDeadline = ctx.Deadline()
	return nil
}

func TestAppendTurn_ArchiveContextIsBounded(t *testing.T) {
	archive := &deadlineArchiver{}
	store := NewConversationStore(0, archive)
	conv := store.GetOrCreate("")

	store.AppendTurn(conv.ID, RoleUser, "bounded write")

	// A hung database must not stall the request path forever.
	if !archive.hasDeadline {
		t.Error("Archive write must run under a deadline-bounded context")
	}
}

func TestAppendTurn_ArchiveFailureDoesNotSurface(t *testing.T) {
	archive := &recordingArchiver{err: fmt.Errorf("db down")}
	store := NewConversationStore(0, archive)
	conv := store.GetOrCreate("")

	store.AppendTurn(conv.ID, RoleUser, "still recorded")

	if store.TurnCount(conv.ID) != 1 {
		t.Error("Archive failure must not lose the in-memory turn")
	}
}
