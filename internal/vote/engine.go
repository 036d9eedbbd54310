package vote

import (
	"context"

	"go.uber.org/zap"
)

// State é o estado explícito do fluxo de votação. A progressão é sempre
// para frente; o único laço é a reentrada em EnteringCombination.
type State int

const (
	StateIdle State = iota
	StateAuthenticating
	StateRaceSelected
	StateMarketReady
	StateEnteringCombination
	StateAllCombinationsEntered
	StateConfirmReviewed
	StateSubmitted
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAuthenticating:
		return "authenticating"
	case StateRaceSelected:
		return "race_selected"
	case StateMarketReady:
		return "market_ready"
	case StateEnteringCombination:
		return "entering_combination"
	case StateAllCombinationsEntered:
		return "all_combinations_entered"
	case StateConfirmReviewed:
		return "confirm_reviewed"
	case StateSubmitted:
		return "submitted"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// transitions é a tabela de transições válidas; qualquer outro salto é um
// bug de programação e derruba o job como structural_drift.
var transitions = map[State][]State{
	StateIdle:                   {StateAuthenticating},
	StateAuthenticating:         {StateRaceSelected, StateFailed},
	StateRaceSelected:           {StateMarketReady, StateFailed},
	StateMarketReady:            {StateEnteringCombination, StateFailed},
	StateEnteringCombination:    {StateEnteringCombination, StateAllCombinationsEntered, StateFailed},
	StateAllCombinationsEntered: {StateConfirmReviewed, StateFailed},
	StateConfirmReviewed:        {StateSubmitted, StateFailed},
	StateSubmitted:              {StateCompleted, StateFailed},
}

type machine struct {
	state State
}

func (m *machine) to(next State) error {
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			return nil
		}
	}
	return flowErrf(CategoryStructuralDrift, "illegal state transition", "%s -> %s", m.state, next)
}

// PortalFlow são os passos específicos de cada portal. O Engine sequencia,
// filtra e classifica; o flow só sabe mexer na página.
type PortalFlow interface {
	Portal() Portal
	// Authenticate entra no portal. Sucesso exige marcador explícito de
	// login, não a mera ausência de banner de erro.
	Authenticate(ctx context.Context) error
	SelectRace(ctx context.Context, req *BetRequest) error
	PrepareMarket(ctx context.Context, req *BetRequest) error
	ResolveScratches(ctx context.Context, req *BetRequest) (ScratchedRunnerSet, error)
	EnterCombination(ctx context.Context, req *BetRequest, combo Combination) error
	// ConfirmationTotal abre a tela de confirmação e devolve o total em
	// ienes calculado pelo próprio portal.
	ConfirmationTotal(ctx context.Context, req *BetRequest) (int, error)
	Submit(ctx context.Context, req *BetRequest) error
	// VerifyResult procura o marcador de conclusão pós-submit; sem marcador
	// de sucesso nem de erro devolve ambiguous_outcome.
	VerifyResult(ctx context.Context) error
}

// Engine executa um BetRequest contra um portal como uma sequência
// auditável de estados, com as garantias de segurança de dinheiro:
// total do portal conferido antes do commit, sem cancelamento após o
// commit e desfecho ambíguo jamais assumido como sucesso.
type Engine struct {
	sess *Session
	flow PortalFlow
	log  *zap.Logger
}

func NewEngine(sess *Session, flow PortalFlow, log *zap.Logger) *Engine {
	return &Engine{sess: sess, flow: flow, log: log.With(zap.String("portal", string(flow.Portal())))}
}

// Run leva o request do Idle a um estado terminal e devolve o Outcome,
// reportado exatamente uma vez. O contexto é honrado até o commit; depois
// dele o fluxo sempre chega a Completed ou Failed.
func (e *Engine) Run(ctx context.Context, req BetRequest) Outcome {
	m := &machine{state: StateIdle}

	e.log.Info("vote flow starting",
		zap.String("venue", req.Venue),
		zap.Int("race", req.RaceNo),
		zap.String("bet_type", req.BetType.String()),
		zap.Int("combinations", len(req.Combinations)),
	)

	if err := e.step(ctx, m, StateAuthenticating, func(ctx context.Context) error {
		return e.flow.Authenticate(ctx)
	}); err != nil {
		return e.fail(m, err)
	}

	if err := e.step(ctx, m, StateRaceSelected, func(ctx context.Context) error {
		return e.flow.SelectRace(ctx, &req)
	}); err != nil {
		return e.fail(m, err)
	}

	if err := e.step(ctx, m, StateMarketReady, func(ctx context.Context) error {
		return e.flow.PrepareMarket(ctx, &req)
	}); err != nil {
		return e.fail(m, err)
	}

	scratched, err := e.sess.Scratches(ctx, func(ctx context.Context) (ScratchedRunnerSet, error) {
		return e.flow.ResolveScratches(ctx, &req)
	})
	if err != nil {
		return e.fail(m, err)
	}

	filtered := ApplyScratches(req, scratched)
	if dropped := len(req.Combinations) - len(filtered.Combinations); dropped > 0 {
		e.log.Info("combinations dropped by scratch filter", zap.Int("dropped", dropped))
	}
	if len(filtered.Combinations) == 0 {
		// Regra de negócio, não defeito: nada a submeter, confirmação
		// nunca é aberta.
		_ = m.to(StateFailed)
		return Outcome{
			Success:  false,
			Message:  "nothing to submit: every combination was filtered out",
			Category: CategoryBusinessRule,
		}
	}

	localTotal := 0
	for _, combo := range filtered.Combinations {
		// Cancelamento do chamador é honrado enquanto nenhum dinheiro
		// está em risco.
		if cerr := ctx.Err(); cerr != nil {
			return e.fail(m, flowErrf(CategoryBusinessRule, "canceled before submission", "%v", cerr))
		}
		if err := e.step(ctx, m, StateEnteringCombination, func(ctx context.Context) error {
			return e.flow.EnterCombination(ctx, &filtered, combo)
		}); err != nil {
			return e.fail(m, err)
		}
		localTotal += filtered.Stake
	}

	if err := m.to(StateAllCombinationsEntered); err != nil {
		return e.fail(m, err)
	}

	portalTotal, err := e.flow.ConfirmationTotal(ctx, &filtered)
	if err != nil {
		return e.fail(m, err)
	}
	if portalTotal != localTotal {
		// Checagem de integridade deliberada: nunca submeter contra um
		// total não conferido.
		return e.fail(m, flowErrf(CategoryStructuralDrift, "confirmation total mismatch",
			"portal shows %d, locally tracked %d", portalTotal, localTotal))
	}
	if err := m.to(StateConfirmReviewed); err != nil {
		return e.fail(m, err)
	}

	if cerr := ctx.Err(); cerr != nil {
		return e.fail(m, flowErrf(CategoryBusinessRule, "canceled before submission", "%v", cerr))
	}

	if err := m.to(StateSubmitted); err != nil {
		return e.fail(m, err)
	}

	// A partir do commit o fluxo não abandona o passo: largar agora podia
	// deixar uma aposta meio feita sem registro do desfecho.
	postCtx := context.WithoutCancel(ctx)
	if err := e.flow.Submit(postCtx, &filtered); err != nil {
		return e.fail(m, err)
	}
	if err := e.flow.VerifyResult(postCtx); err != nil {
		return e.fail(m, err)
	}

	if err := m.to(StateCompleted); err != nil {
		return e.fail(m, err)
	}

	e.log.Info("vote flow completed", zap.Int("total_stake", localTotal))
	return Outcome{
		Success: true,
		Message: "vote submitted and confirmed by the portal",
	}
}

func (e *Engine) step(ctx context.Context, m *machine, next State, fn func(context.Context) error) error {
	if err := m.to(next); err != nil {
		return err
	}
	e.log.Debug("state entered", zap.Stringer("state", next))
	return fn(ctx)
}

func (e *Engine) fail(m *machine, err error) Outcome {
	m.state = StateFailed

	out := Outcome{
		Success:  false,
		Category: Classify(err),
	}
	var fe *FlowError
	if asFlowError(err, &fe) {
		out.Message = fe.Message
		out.Detail = fe.Detail
	} else {
		out.Message = "vote flow failed"
		out.Detail = err.Error()
	}
	if out.Category == CategoryAmbiguousOutcome {
		out.Message = out.Message + "; manual verification required"
	}

	e.log.Warn("vote flow failed",
		zap.String("category", string(out.Category)),
		zap.String("message", out.Message),
		zap.String("detail", out.Detail),
	)
	return out
}
