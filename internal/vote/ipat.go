package vote

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// Seletores e marcadores do portal nacional. A grade de apostas é uma SPA
// Angular; os botões são identificados pelos handlers inline do view-model.
const (
	ipatLoginFormQuery   = `form[name="loginForm"]`
	ipatSubscriberQuery  = `input[name="inetid"]`
	ipatUserCodeQuery    = `input[name="usercd"]`
	ipatPasswordQuery    = `input[name="passwd"]`
	ipatPINQuery         = `input[name="pars_cd"]`
	ipatLoginSubmitQuery = `form[name="loginForm"] button[type="submit"]`

	ipatEntryButtonQuery  = `button[title*="出馬表から馬を選択する方式です"]`
	ipatCourseButtonQuery = `button[onclick*="vm.selectCourse("]`
	ipatRaceButtonQuery   = `button[onclick*="vm.selectRace("]`

	ipatVenueSelectQuery   = `#select-course-race-course`
	ipatRaceSelectQuery    = `#select-course-race-race`
	ipatBetTypeSelectQuery = `#bet-basic-type`
	ipatMethodSelectQuery  = `#bet-basic-method`

	ipatAmountInputQuery = `#select-list-amount-unit input`
	ipatSetButtonQuery   = `button[onclick*="vm.onSet("]`
	ipatNextPageQuery    = `button[onclick*="vm.nextPage("]`
	ipatScratchCellQuery = `td:has(img[src*="baken_torikeshi.png"])`

	ipatConfirmButtonQuery = `button[ng-click*="vm.confirmKaime()"]`
	ipatTotalAmountQuery   = `#bet-list-total-amount`
	ipatConfirmPINQuery    = `input[ng-model*="pin"]`
	ipatVoteButtonQuery    = `button[ng-click*="vm.vote()"]`

	ipatLoggedInMarker = "出馬表から馬を選択する方式"
	ipatLoginNGMarker  = "誤りがあります"
	ipatNoticeMarker   = "重要なお知らせ"
	ipatDoneMarker     = "投票が完了しました"
)

// ipatSubmitNGMarkers são recusas explícitas pós-submit; qualquer outra
// ausência do marcador de conclusão é desfecho ambíguo.
var ipatSubmitNGMarkers = []string{"投票を受け付けできませんでした", "エラーが発生しました"}

// ipatMarketPages limita a rotação de páginas na busca direta de corredor;
// a grade de odds do portal expõe no máximo esse número de páginas por
// sessão.
const ipatMarketPages = 4

// IPATFlow implementa os passos do portal nacional para o Engine.
type IPATFlow struct {
	sess    *Session
	creds   IPATCredentials
	baseURL string
	log     *zap.Logger

	marketPage int
}

func NewIPATFlow(sess *Session, creds IPATCredentials, baseURL string, log *zap.Logger) *IPATFlow {
	return &IPATFlow{sess: sess, creds: creds, baseURL: baseURL, log: log}
}

func (f *IPATFlow) Portal() Portal { return PortalIPAT }

func (f *IPATFlow) Authenticate(ctx context.Context) error {
	s := f.sess.Surface()

	if err := s.Navigate(ctx, f.baseURL); err != nil {
		return err
	}
	if err := s.WaitSettle(ctx); err != nil {
		return err
	}

	formCount, err := s.Count(ctx, ipatLoginFormQuery)
	if err != nil {
		return err
	}
	if formCount == 0 {
		// Perfil persistente pode já estar logado.
		body, err := bodyText(ctx, s)
		if err != nil {
			return err
		}
		if containsAll(body, []string{ipatLoggedInMarker}) {
			f.log.Info("session already authenticated")
			return nil
		}
		return flowErr(CategoryStructuralDrift, "login form missing and no logged-in marker")
	}

	for _, field := range []struct{ query, value string }{
		{ipatSubscriberQuery, f.creds.SubscriberID},
		{ipatUserCodeQuery, f.creds.UserCode},
		{ipatPasswordQuery, f.creds.Password},
		{ipatPINQuery, f.creds.PIN},
	} {
		el, err := requireOne(ctx, s, field.query, CategoryStructuralDrift, "login field missing")
		if err != nil {
			return err
		}
		if err := s.Fill(ctx, el, field.value); err != nil {
			return err
		}
	}

	submit, err := requireOne(ctx, s, ipatLoginSubmitQuery, CategoryStructuralDrift, "login submit missing")
	if err != nil {
		return err
	}
	if err := s.Click(ctx, submit); err != nil {
		return err
	}
	if err := s.WaitSettle(ctx); err != nil {
		return err
	}

	body, err := bodyText(ctx, s)
	if err != nil {
		return err
	}
	if containsAll(body, []string{ipatLoginNGMarker}) {
		return flowErr(CategoryAuthentication, "portal rejected credentials")
	}

	// Aviso pós-login ocasional; confirmar e seguir.
	if containsAll(body, []string{ipatNoticeMarker}) {
		if ok, found, err := findByText(ctx, s, "button", "OK"); err != nil {
			return err
		} else if found {
			if err := s.Click(ctx, ok); err != nil {
				return err
			}
			if err := s.WaitSettle(ctx); err != nil {
				return err
			}
			if body, err = bodyText(ctx, s); err != nil {
				return err
			}
		}
	}

	// Sucesso exige o marcador do menu de votação presente; a ausência de
	// banner de erro não prova nada.
	if !containsAll(body, []string{ipatLoggedInMarker}) {
		return flowErr(CategoryAuthentication, "no post-login marker on page")
	}
	return nil
}

func (f *IPATFlow) SelectRace(ctx context.Context, req *BetRequest) error {
	s := f.sess.Surface()

	entry, err := requireOne(ctx, s, ipatEntryButtonQuery, CategoryStructuralDrift, "vote entry button missing")
	if err != nil {
		return err
	}
	if err := s.Click(ctx, entry); err != nil {
		return err
	}
	if err := s.WaitSettle(ctx); err != nil {
		return err
	}

	course, found, err := findByText(ctx, s, ipatCourseButtonQuery, req.Venue)
	if err != nil {
		return err
	}
	if !found {
		return flowErrf(CategoryScheduleMismatch, "venue not on today's schedule", "venue %s", req.Venue)
	}
	if err := s.Click(ctx, course); err != nil {
		return err
	}
	if err := s.WaitSettle(ctx); err != nil {
		return err
	}

	race, found, err := findByText(ctx, s, ipatRaceButtonQuery, fmt.Sprintf("%dR", req.RaceNo))
	if err != nil {
		return err
	}
	if !found {
		return flowErrf(CategoryScheduleMismatch, "race not open for betting", "race %dR", req.RaceNo)
	}
	if err := s.Click(ctx, race); err != nil {
		return err
	}
	return s.WaitSettle(ctx)
}

func (f *IPATFlow) PrepareMarket(ctx context.Context, req *BetRequest) error {
	if err := selectIfNeeded(ctx, f.sess, WidgetVenue, ipatVenueSelectQuery, req.Venue); err != nil {
		return err
	}
	if err := selectIfNeeded(ctx, f.sess, WidgetRace, ipatRaceSelectQuery, fmt.Sprintf("%dR", req.RaceNo)); err != nil {
		return err
	}
	if err := selectIfNeeded(ctx, f.sess, WidgetBetType, ipatBetTypeSelectQuery, req.BetType.PortalLabel()); err != nil {
		return err
	}
	if req.BetType.RunnerCount() > 1 {
		if err := selectIfNeeded(ctx, f.sess, WidgetMethod, ipatMethodSelectQuery, req.Method.PortalLabel()); err != nil {
			return err
		}
	}
	return nil
}

// ResolveScratches lê os indicadores de cancelamento da grade corrente.
// Ausência total de indicador significa corrida sem retirados.
func (f *IPATFlow) ResolveScratches(ctx context.Context, _ *BetRequest) (ScratchedRunnerSet, error) {
	s := f.sess.Surface()

	cells, err := s.Locate(ctx, ipatScratchCellQuery)
	if err != nil {
		return nil, err
	}
	set := make(ScratchedRunnerSet)
	for _, cell := range cells {
		text, err := s.Text(ctx, cell)
		if err != nil {
			return nil, err
		}
		if n, ok := firstInt(text); ok {
			set[n] = struct{}{}
		}
	}
	f.log.Info("scratched runners resolved", zap.Int("count", len(set)))
	return set, nil
}

func (f *IPATFlow) EnterCombination(ctx context.Context, req *BetRequest, combo Combination) error {
	s := f.sess.Surface()

	amount, err := requireOne(ctx, s, ipatAmountInputQuery, CategoryStructuralDrift, "amount input missing")
	if err != nil {
		return err
	}
	// O campo é em unidades de 100 ienes.
	if err := s.Fill(ctx, amount, strconv.Itoa(req.Stake/100)); err != nil {
		return err
	}

	if req.BetType.RunnerCount() == 1 {
		if err := f.clickRunnerPaged(ctx, req, combo[0]); err != nil {
			return err
		}
	} else {
		prefixes := ipatRunnerIDPrefixes(req.BetType)
		for i, runner := range combo {
			prefix := prefixes[min(i, len(prefixes)-1)]
			query := fmt.Sprintf("#%s%d", prefix, runner)
			el, err := requireOne(ctx, s, query, CategoryStructuralDrift, "runner button missing")
			if err != nil {
				return err
			}
			if err := s.Click(ctx, el); err != nil {
				return err
			}
			if err := s.Wait(ctx, runnerClickDelay); err != nil {
				return err
			}
		}
	}

	set, err := requireOne(ctx, s, ipatSetButtonQuery, CategoryStructuralDrift, "set button missing")
	if err != nil {
		return err
	}
	if err := s.Click(ctx, set); err != nil {
		return err
	}
	return s.Wait(ctx, commitSettle)
}

// clickRunnerPaged varre a lista de odds paginada atrás do corredor,
// rodando para a próxima página quando as âncoras da atual se esgotam.
// A rotação é limitada ao número de páginas que o portal expõe.
func (f *IPATFlow) clickRunnerPaged(ctx context.Context, req *BetRequest, runner int) error {
	s := f.sess.Surface()
	query := fmt.Sprintf("#%s%d", ipatRunnerIDPrefixes(req.BetType)[0], runner)

	for {
		n, err := s.Count(ctx, query)
		if err != nil {
			return err
		}
		if n > 0 {
			els, err := s.Locate(ctx, query)
			if err != nil {
				return err
			}
			if err := s.Click(ctx, els[0]); err != nil {
				return err
			}
			return s.Wait(ctx, runnerClickDelay)
		}

		if f.marketPage+1 >= ipatMarketPages {
			return flowErrf(CategoryTooManyCombinations, "market pages exhausted",
				"runner %d not found within %d pages", runner, ipatMarketPages)
		}
		pagerCount, err := s.Count(ctx, ipatNextPageQuery)
		if err != nil {
			return err
		}
		if pagerCount == 0 {
			return flowErrf(CategoryTooManyCombinations, "market pages exhausted",
				"runner %d not on the single exposed page", runner)
		}
		pager, err := s.Locate(ctx, ipatNextPageQuery)
		if err != nil {
			return err
		}
		if err := s.Click(ctx, pager[0]); err != nil {
			return err
		}
		if err := s.WaitSettle(ctx); err != nil {
			return err
		}
		f.marketPage++
	}
}

func (f *IPATFlow) ConfirmationTotal(ctx context.Context, _ *BetRequest) (int, error) {
	s := f.sess.Surface()

	confirm, err := requireOne(ctx, s, ipatConfirmButtonQuery, CategoryStructuralDrift, "confirm button missing")
	if err != nil {
		return 0, err
	}
	if err := s.Click(ctx, confirm); err != nil {
		return 0, err
	}
	if err := s.WaitSettle(ctx); err != nil {
		return 0, err
	}

	totalEl, err := requireOne(ctx, s, ipatTotalAmountQuery, CategoryStructuralDrift, "confirmation total missing")
	if err != nil {
		return 0, err
	}
	text, err := s.Text(ctx, totalEl)
	if err != nil {
		return 0, err
	}
	total, ok := parseYen(text)
	if !ok {
		return 0, flowErrf(CategoryStructuralDrift, "confirmation total unreadable", "text %q", text)
	}
	return total, nil
}

func (f *IPATFlow) Submit(ctx context.Context, _ *BetRequest) error {
	s := f.sess.Surface()

	pin, err := requireOne(ctx, s, ipatConfirmPINQuery, CategoryStructuralDrift, "confirmation pin input missing")
	if err != nil {
		return err
	}
	if err := s.Fill(ctx, pin, f.creds.PIN); err != nil {
		return err
	}

	voteBtn, err := requireOne(ctx, s, ipatVoteButtonQuery, CategoryStructuralDrift, "vote button missing")
	if err != nil {
		return err
	}
	if err := s.Click(ctx, voteBtn); err != nil {
		return err
	}
	return s.WaitSettle(ctx)
}

func (f *IPATFlow) VerifyResult(ctx context.Context) error {
	return verifyByMarkers(ctx, f.sess.Surface(), ipatDoneMarker, ipatSubmitNGMarkers)
}

// ipatRunnerIDPrefixes devolve os prefixos de id dos botões de corredor,
// um por posição da combinação.
func ipatRunnerIDPrefixes(t BetType) []string {
	switch t {
	case BetWin, BetPlace:
		return []string{"select-list-tan-"}
	case BetBracketQuinella:
		return []string{"select-list-waku-1-", "select-list-waku-2-"}
	case BetQuinella, BetWide:
		return []string{"select-list-umaren-1-", "select-list-umaren-2-"}
	case BetExacta:
		return []string{"select-list-umatan-1-", "select-list-umatan-2-"}
	case BetTrio:
		return []string{"select-list-sanrenpuku-1-", "select-list-sanrenpuku-2-", "select-list-sanrenpuku-3-"}
	case BetTrifecta:
		return []string{"select-list-sanrentan-1-", "select-list-sanrentan-2-", "select-list-sanrentan-3-"}
	default:
		return []string{"select-list-tan-"}
	}
}
