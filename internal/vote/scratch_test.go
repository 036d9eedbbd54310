package vote

import "testing"

func trioRequest(stake int, combos ...Combination) BetRequest {
	return BetRequest{
		Venue:        "東京",
		RaceNo:       11,
		BetType:      BetTrio,
		Method:       MethodBox,
		Combinations: combos,
		Stake:        stake,
	}
}

func TestApplyScratches_DropsAffectedCombinations(t *testing.T) {
	req := trioRequest(500,
		Combination{1, 2, 3},
		Combination{1, 2, 4},
		Combination{5, 6, 7},
	)
	out := ApplyScratches(req, NewScratchedRunnerSet(4))
	if len(out.Combinations) != 2 {
		t.Fatalf("got %d combinations, want 2", len(out.Combinations))
	}
	for _, c := range out.Combinations {
		if c.Contains(4) {
			t.Errorf("combination %s references a scratched runner", c)
		}
	}
}

func TestApplyScratches_EmptySetKeepsAll(t *testing.T) {
	req := trioRequest(500, Combination{1, 2, 3}, Combination{4, 5, 6})
	out := ApplyScratches(req, NewScratchedRunnerSet())
	if len(out.Combinations) != 2 {
		t.Errorf("got %d combinations, want 2", len(out.Combinations))
	}
}

func TestApplyScratches_AllFilteredOut(t *testing.T) {
	req := trioRequest(500, Combination{1, 2, 3}, Combination{1, 4, 5})
	out := ApplyScratches(req, NewScratchedRunnerSet(1))
	if len(out.Combinations) != 0 {
		t.Errorf("got %d combinations, want 0", len(out.Combinations))
	}
}

// Tipos por grupo de largada usam cancelamento por grupo; o filtro por
// corredor individual não se aplica.
func TestApplyScratches_FrameGroupedExempt(t *testing.T) {
	req := BetRequest{
		Venue:        "東京",
		RaceNo:       11,
		BetType:      BetBracketQuinella,
		Combinations: []Combination{{1, 2}},
		Stake:        500,
	}
	out := ApplyScratches(req, NewScratchedRunnerSet(1, 2))
	if len(out.Combinations) != 1 {
		t.Errorf("bracket quinella must not be filtered, got %d combinations", len(out.Combinations))
	}
}

func TestApplyScratches_DoesNotMutateInput(t *testing.T) {
	req := trioRequest(500, Combination{1, 2, 3}, Combination{4, 5, 6})
	_ = ApplyScratches(req, NewScratchedRunnerSet(4))
	if len(req.Combinations) != 2 {
		t.Errorf("input request was mutated: %v", req.Combinations)
	}
}
