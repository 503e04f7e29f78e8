package agent

import (
	"context"
	"testing"
)

func TestMemoryStoreDefaults(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	stage, err := store.Fact(ctx, "fresh", metaStage)
	if err != nil {
		t.Fatalf("Fact returned error: %v", err)
	}
	if stage != string(StageGreeting) {
		t.Fatalf("expected greeting default, got %v", stage)
	}

	mode, _ := store.Fact(ctx, "fresh", metaMode)
	if mode != "SDR" {
		t.Fatalf("expected SDR default mode, got %v", mode)
	}

	turns, _ := store.Fact(ctx, "fresh", metaTurnsInStage)
	if asInt(turns) != 0 {
		t.Fatalf("expected zero turns, got %v", turns)
	}
}

func TestMemoryStoreTurnCounting(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := store.AppendMessage(ctx, "s1", ChatRoleUser, "hello"); err != nil {
			t.Fatalf("append failed: %v", err)
		}
		turns, _ := store.Fact(ctx, "s1", metaTurnsInStage)
		if asInt(turns) != i {
			t.Fatalf("expected %d turns after %d user messages, got %v", i, i, turns)
		}
		// Assistant and system appends must not count.
		_ = store.AppendMessage(ctx, "s1", ChatRoleAssistant, "hi")
		turns, _ = store.Fact(ctx, "s1", metaTurnsInStage)
		if asInt(turns) != i {
			t.Fatalf("assistant append changed turn counter to %v", turns)
		}
	}

	history, err := store.History(ctx, "s1")
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(history) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(history))
	}
	if history[0].Role != ChatRoleUser || history[1].Role != ChatRoleAssistant {
		t.Fatalf("history out of order: %#v", history[:2])
	}
}

func TestMemoryStoreAdvanceResetsTurns(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_ = store.AppendMessage(ctx, "s1", ChatRoleUser, "one")
	_ = store.AppendMessage(ctx, "s1", ChatRoleUser, "two")

	if err := store.AdvanceTo(ctx, "s1", StageQualification); err != nil {
		t.Fatalf("AdvanceTo failed: %v", err)
	}

	stage, _ := store.Fact(ctx, "s1", metaStage)
	if stage != string(StageQualification) {
		t.Fatalf("expected qualification, got %v", stage)
	}
	turns, _ := store.Fact(ctx, "s1", metaTurnsInStage)
	if asInt(turns) != 0 {
		t.Fatalf("expected turns reset to 0, got %v", turns)
	}
}

func TestMemoryStoreFactsAndIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.SetFact(ctx, "a", "company", "Acme"); err != nil {
		t.Fatalf("SetFact failed: %v", err)
	}
	_ = store.SetFact(ctx, "a", "unknown_extraction_key", map[string]any{"nested": true})

	got, _ := store.Fact(ctx, "a", "company")
	if got != "Acme" {
		t.Fatalf("expected Acme, got %v", got)
	}
	// Unknown fact names are stored as-is, never dropped.
	if v, _ := store.Fact(ctx, "a", "unknown_extraction_key"); v == nil {
		t.Fatal("expected open extension fact to be stored")
	}

	// Nothing leaks across session keys.
	if v, _ := store.Fact(ctx, "b", "company"); v != nil {
		t.Fatalf("fact leaked across sessions: %v", v)
	}
	_ = store.AppendMessage(ctx, "a", ChatRoleUser, "x")
	if h, _ := store.History(ctx, "b"); len(h) != 0 {
		t.Fatalf("history leaked across sessions: %v", h)
	}
}

func TestMemoryStoreClear(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_ = store.AppendMessage(ctx, "s1", ChatRoleUser, "hello")
	_ = store.SetFact(ctx, "s1", "company", "Acme")
	_ = store.AdvanceTo(ctx, "s1", StageProblem)

	if err := store.Clear(ctx, "s1"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if h, _ := store.History(ctx, "s1"); len(h) != 0 {
		t.Fatalf("expected empty history after clear, got %d", len(h))
	}
	stage, _ := store.Fact(ctx, "s1", metaStage)
	if stage != string(StageGreeting) {
		t.Fatalf("expected defaults after clear, got %v", stage)
	}
	if v, _ := store.Fact(ctx, "s1", "company"); v != nil {
		t.Fatalf("expected fact removed after clear, got %v", v)
	}
}
