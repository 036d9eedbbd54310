package vote

import (
	"context"
	"testing"
)

func TestSelectionCache_RememberAndApplied(t *testing.T) {
	c := NewSelectionCache()
	if c.Applied(WidgetVenue, "東京") {
		t.Error("fresh cache should have nothing applied")
	}
	c.Remember(WidgetVenue, "東京")
	if !c.Applied(WidgetVenue, "東京") {
		t.Error("remembered value should report applied")
	}
	if c.Applied(WidgetVenue, "中山") {
		t.Error("different value should not report applied")
	}
	if c.Applied(WidgetRace, "東京") {
		t.Error("same value on another widget should not report applied")
	}
}

func TestSelectionCache_Reset(t *testing.T) {
	c := NewSelectionCache()
	c.Remember(WidgetBetType, "単勝")
	c.Reset()
	if c.Applied(WidgetBetType, "単勝") {
		t.Error("reset should clear all widgets")
	}
}

// Seleção repetida do mesmo valor não pode gerar nenhuma chamada de
// automação; é isso que evita os reloads do portal.
func TestSelectIfNeeded_Idempotent(t *testing.T) {
	f := newFakeSurface()
	f.set("#bet-basic-type", &fakeNode{})
	sess := NewSession(f)
	ctx := context.Background()

	if err := selectIfNeeded(ctx, sess, WidgetBetType, "#bet-basic-type", "単勝"); err != nil {
		t.Fatalf("first select: %v", err)
	}
	if len(f.selects) != 1 {
		t.Fatalf("got %d selects, want 1", len(f.selects))
	}

	if err := selectIfNeeded(ctx, sess, WidgetBetType, "#bet-basic-type", "単勝"); err != nil {
		t.Fatalf("repeat select: %v", err)
	}
	if len(f.selects) != 1 {
		t.Errorf("repeat selection touched the page, got %d selects", len(f.selects))
	}

	if err := selectIfNeeded(ctx, sess, WidgetBetType, "#bet-basic-type", "馬連"); err != nil {
		t.Fatalf("changed select: %v", err)
	}
	if got := f.selects["#bet-basic-type[0]"]; got != "馬連" {
		t.Errorf("new value not applied, got %q", got)
	}
}

func TestSessionScratches_Memoized(t *testing.T) {
	sess := NewSession(newFakeSurface())
	calls := 0
	resolve := func(context.Context) (ScratchedRunnerSet, error) {
		calls++
		return NewScratchedRunnerSet(3), nil
	}

	first, err := sess.Scratches(context.Background(), resolve)
	if err != nil {
		t.Fatal(err)
	}
	second, err := sess.Scratches(context.Background(), resolve)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("resolver called %d times, want 1", calls)
	}
	if !first.Contains(3) || !second.Contains(3) {
		t.Error("memoized set lost its content")
	}
}
