package vote

import "context"

// Session é o escopo efêmero de um job: exatamente um Surface exclusivo,
// um SelectionCache zerado e o memo de corredores cancelados. Criada no
// início do job e fechada em qualquer saída, com o Surface sempre liberado.
type Session struct {
	surface    Surface
	selections *SelectionCache

	scratches    ScratchedRunnerSet
	scratchesSet bool
}

func NewSession(surface Surface) *Session {
	return &Session{
		surface:    surface,
		selections: NewSelectionCache(),
	}
}

func (s *Session) Surface() Surface            { return s.surface }
func (s *Session) Selections() *SelectionCache { return s.selections }

// Scratches resolve o conjunto de cancelados uma única vez por sessão;
// chamadas seguintes devolvem o memo sem tocar a página.
func (s *Session) Scratches(ctx context.Context, resolve func(context.Context) (ScratchedRunnerSet, error)) (ScratchedRunnerSet, error) {
	if s.scratchesSet {
		return s.scratches, nil
	}
	set, err := resolve(ctx)
	if err != nil {
		return nil, err
	}
	s.scratches = set
	s.scratchesSet = true
	return set, nil
}

// Close libera o Surface. Seguro de chamar em qualquer caminho de saída.
func (s *Session) Close(ctx context.Context) error {
	return s.surface.Close(ctx)
}
