package vote

// ScratchedRunnerSet é o conjunto de corredores retirados da corrida atual.
// Resolvido no máximo uma vez por sessão e nunca mutado depois.
type ScratchedRunnerSet map[int]struct{}

func NewScratchedRunnerSet(runners ...int) ScratchedRunnerSet {
	s := make(ScratchedRunnerSet, len(runners))
	for _, r := range runners {
		s[r] = struct{}{}
	}
	return s
}

func (s ScratchedRunnerSet) Contains(runner int) bool {
	_, ok := s[runner]
	return ok
}

// ApplyScratches devolve uma cópia do request sem as combinações que
// referenciam corredores retirados. Tipos apostados por grupo de largada
// usam semântica de cancelamento por grupo e ficam de fora do filtro.
// Combinações cujo valor ficaria abaixo do mínimo também caem.
func ApplyScratches(req BetRequest, scratched ScratchedRunnerSet) BetRequest {
	out := req
	out.Combinations = make([]Combination, 0, len(req.Combinations))

	for _, combo := range req.Combinations {
		if req.Stake < MinStake {
			continue
		}
		if !req.BetType.FrameGrouped() && containsAny(combo, scratched) {
			continue
		}
		out.Combinations = append(out.Combinations, combo)
	}
	return out
}

func containsAny(c Combination, scratched ScratchedRunnerSet) bool {
	for _, runner := range c {
		if scratched.Contains(runner) {
			return true
		}
	}
	return false
}
