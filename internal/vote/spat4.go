package vote

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Seletores e marcadores do portal regional. A tela de odds é um frameset
// clássico com âncoras clicáveis por combinação; o lançamento grava os
// identificadores em inputs ocultos de largura fixa.
const (
	spat4EasyLoginQuery   = `input[name="BSLI"]:checked`
	spat4MemberNumQuery   = `input[name="MEMBERNUMR"]`
	spat4MemberIDQuery    = `input[name="MEMBERIDR"]`
	spat4LoginSubmitQuery = `form[name="LOGIN"] input[type="submit"]`
	spat4DateQuery        = `span.date`
	spat4RaceNameQuery    = `span.race_name`
	spat4VenueLinkQuery   = `a`

	spat4ScheduleLinkQuery = `table[summary="出走表"] a`

	spat4OddsTableQuery  = `table.tbl_01.tbl_01_odds`
	spat4OddsRowQuery    = `table.tbl_01.tbl_01_odds tr:has(a[onclick*="clickOddsBet"])`
	spat4OddsAnchorQuery = `table.tbl_01.tbl_01_odds a[onclick*="clickOddsBet"]`
	spat4MarketSelQuery  = `select[name="SHIKILINK"]`

	spat4AmountInputQuery = `input.TEXTMONEY`
	spat4ShikiInputQuery  = `input.SHIKI`
	spat4RunnerInputQuery = `input.UMAKUMISTR`
	spat4ConfirmBtnQuery  = `input[value="投票内容確認へ"]`

	spat4TotalTableQuery = `#BET_TBL td`
	spat4SecretQuery     = `input[name="MEMBERPASSR"]`
	spat4TotalInputQuery = `input[name="TOTALMONEYR"]`
	spat4CommitQuery     = `input[name="KYOUSEI"]`

	spat4OddsVoteLabel   = "オッズ投票"
	spat4TotalLabel      = "合計金額"
	spat4DoneMarker      = "投票を受け付けました"
	spat4LoginNGMarker   = "入力内容に誤りがあります"
	spat4NoMeetingMarker = "本日の開催"
)

var spat4SubmitNGMarkers = []string{"購入限度額を超えています", "投票できませんでした"}

// spat4MarketRotation é a ordem fixa dos mercados no dropdown SHIKILINK.
// O limite da rotação é o tamanho da lista: esgotá-la sem acomodar todas
// as combinações significa que o pedido não cabe numa sessão.
var spat4MarketRotation = []string{"単勝複勝", "馬単", "三連単", "馬複", "ワイド", "三連複", "枠複枠単"}

// spat4ShikiCode é o código de tipo gravado no input oculto SHIKI.
func spat4ShikiCode(t BetType) string {
	switch t {
	case BetBracketQuinella:
		return "3"
	case BetQuinella:
		return "5"
	case BetExacta:
		return "6"
	case BetWide:
		return "7"
	case BetTrio:
		return "8"
	case BetTrifecta:
		return "9"
	default:
		return ""
	}
}

// SPAT4Flow implementa os passos do portal regional para o Engine.
type SPAT4Flow struct {
	sess    *Session
	creds   SPAT4Credentials
	baseURL string
	log     *zap.Logger

	marketIdx int
	clicked   map[string]bool
	entered   int
	lastTotal int
}

func NewSPAT4Flow(sess *Session, creds SPAT4Credentials, baseURL string, log *zap.Logger) *SPAT4Flow {
	return &SPAT4Flow{sess: sess, creds: creds, baseURL: baseURL, log: log, clicked: make(map[string]bool)}
}

func (f *SPAT4Flow) Portal() Portal { return PortalSPAT4 }

func (f *SPAT4Flow) Authenticate(ctx context.Context) error {
	s := f.sess.Surface()

	if err := s.Navigate(ctx, f.baseURL); err != nil {
		return err
	}
	if err := s.WaitSettle(ctx); err != nil {
		return err
	}

	// "Login fácil" marcado reaproveita a sessão anterior e pula a tela de
	// confirmação; desmarcar mantém o fluxo determinístico.
	if els, err := s.Locate(ctx, spat4EasyLoginQuery); err != nil {
		return err
	} else if len(els) > 0 {
		if err := s.Click(ctx, els[0]); err != nil {
			return err
		}
	}

	for _, field := range []struct{ query, value string }{
		{spat4MemberNumQuery, f.creds.MemberNumber},
		{spat4MemberIDQuery, f.creds.MemberID},
	} {
		el, err := requireOne(ctx, s, field.query, CategoryStructuralDrift, "login field missing")
		if err != nil {
			return err
		}
		if err := s.Fill(ctx, el, field.value); err != nil {
			return err
		}
	}

	submit, err := requireOne(ctx, s, spat4LoginSubmitQuery, CategoryStructuralDrift, "login submit missing")
	if err != nil {
		return err
	}
	if err := s.Click(ctx, submit); err != nil {
		return err
	}
	if err := s.WaitSettle(ctx); err != nil {
		return err
	}

	// O cabeçalho com a data do dia só existe na tela pós-login; é o
	// marcador de presença exigido.
	n, err := s.Count(ctx, spat4DateQuery)
	if err != nil {
		return err
	}
	if n == 0 {
		body, err := bodyText(ctx, s)
		if err != nil {
			return err
		}
		if strings.Contains(body, spat4LoginNGMarker) {
			return flowErr(CategoryAuthentication, "portal rejected credentials")
		}
		return flowErr(CategoryAuthentication, "no post-login marker on page")
	}
	return nil
}

func (f *SPAT4Flow) SelectRace(ctx context.Context, req *BetRequest) error {
	s := f.sess.Surface()

	// O topo mostra uma pista por vez; trocar quando não é a do pedido.
	nameEl, err := requireOne(ctx, s, spat4RaceNameQuery, CategoryScheduleMismatch, "no meeting header on page")
	if err != nil {
		return err
	}
	name, err := s.Text(ctx, nameEl)
	if err != nil {
		return err
	}
	if !strings.Contains(name, req.Venue) {
		link, found, err := findByText(ctx, s, spat4VenueLinkQuery, req.Venue)
		if err != nil {
			return err
		}
		if !found {
			return flowErrf(CategoryScheduleMismatch, "venue not racing today", "venue %s", req.Venue)
		}
		if err := s.Click(ctx, link); err != nil {
			return err
		}
		if err := s.WaitSettle(ctx); err != nil {
			return err
		}
	}

	// A grade lista cada corrida seguida do seu link de votação por odds.
	tables, err := s.Count(ctx, `table[summary="出走表"]`)
	if err != nil {
		return err
	}
	if tables == 0 {
		body, err := bodyText(ctx, s)
		if err != nil {
			return err
		}
		if strings.Contains(body, spat4NoMeetingMarker) {
			return flowErr(CategoryScheduleMismatch, "no meeting at this venue today")
		}
		return flowErr(CategoryScheduleMismatch, "no schedule table on venue page")
	}

	links, err := s.Locate(ctx, spat4ScheduleLinkQuery)
	if err != nil {
		return err
	}
	raceLabel := fmt.Sprintf("%dR", req.RaceNo)
	raceSeen := false
	for _, link := range links {
		text, err := s.Text(ctx, link)
		if err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		if text == raceLabel {
			raceSeen = true
			continue
		}
		if raceSeen && text == spat4OddsVoteLabel {
			if err := s.Click(ctx, link); err != nil {
				return err
			}
			return s.WaitSettle(ctx)
		}
	}
	if !raceSeen {
		return flowErrf(CategoryScheduleMismatch, "race not on the schedule", "race %s", raceLabel)
	}
	return flowErr(CategoryScheduleMismatch, "odds vote link missing; outside the betting window")
}

func (f *SPAT4Flow) PrepareMarket(ctx context.Context, req *BetRequest) error {
	// A tela de odds abre sempre no mercado 単勝複勝; os demais são
	// alcançados pela rotação do dropdown durante o lançamento.
	f.marketIdx = 0
	f.clicked = make(map[string]bool)
	f.entered = 0
	f.sess.Selections().Remember(WidgetBetType, spat4MarketRotation[0])

	_, err := requireOne(ctx, f.sess.Surface(), spat4OddsTableQuery, CategoryStructuralDrift, "odds table missing")
	return err
}

// ResolveScratches deriva os retirados da tabela de odds de vitória: linha
// sem âncora de aposta é corredor fora do páreo. Números acima do campo
// inscrito também contam como cancelados.
func (f *SPAT4Flow) ResolveScratches(ctx context.Context, _ *BetRequest) (ScratchedRunnerSet, error) {
	s := f.sess.Surface()

	rows, err := s.Locate(ctx, spat4OddsRowQuery)
	if err != nil {
		return nil, err
	}
	running := make(map[int]bool)
	for _, row := range rows {
		text, err := s.Text(ctx, row)
		if err != nil {
			return nil, err
		}
		if n, ok := firstInt(text); ok && n >= 1 && n <= MaxRunner {
			running[n] = true
		}
	}

	set := make(ScratchedRunnerSet)
	for n := 1; n <= MaxRunner; n++ {
		if !running[n] {
			set[n] = struct{}{}
		}
	}
	f.log.Info("scratched runners resolved", zap.Int("count", len(set)))
	return set, nil
}

func (f *SPAT4Flow) EnterCombination(ctx context.Context, req *BetRequest, combo Combination) error {
	if req.BetType.RunnerCount() == 1 {
		if err := f.clickWinPlaceAnchor(ctx, req, combo[0]); err != nil {
			return err
		}
	} else {
		if err := f.clickNextAnchor(ctx); err != nil {
			return err
		}
	}
	return f.fillAmountFields(ctx, req, combo)
}

// clickWinPlaceAnchor acha a linha do corredor na tabela 単勝複勝 e clica a
// coluna certa: cada linha carrega duas âncoras, vitória e colocação,
// nessa ordem.
func (f *SPAT4Flow) clickWinPlaceAnchor(ctx context.Context, req *BetRequest, runner int) error {
	s := f.sess.Surface()

	rows, err := s.Locate(ctx, spat4OddsRowQuery)
	if err != nil {
		return err
	}
	anchors, err := s.Locate(ctx, spat4OddsAnchorQuery)
	if err != nil {
		return err
	}

	col := 0
	if req.BetType == BetPlace {
		col = 1
	}
	for rowIdx, row := range rows {
		text, err := s.Text(ctx, row)
		if err != nil {
			return err
		}
		n, ok := firstInt(text)
		if !ok || n != runner {
			continue
		}
		anchorIdx := rowIdx*2 + col
		if anchorIdx >= len(anchors) {
			return flowErrf(CategoryStructuralDrift, "odds row without expected anchors", "runner %d", runner)
		}
		if err := s.Click(ctx, anchors[anchorIdx]); err != nil {
			return err
		}
		return s.Wait(ctx, commitSettle)
	}
	return flowErrf(CategoryStructuralDrift, "runner row not found in odds table", "runner %d", runner)
}

// clickNextAnchor consome a próxima âncora ainda não usada da página de
// mercado corrente; esgotando as âncoras, roda o dropdown para o próximo
// mercado da lista fixa. Passar do fim da lista derruba o job.
func (f *SPAT4Flow) clickNextAnchor(ctx context.Context) error {
	s := f.sess.Surface()

	for {
		anchors, err := s.Locate(ctx, spat4OddsAnchorQuery)
		if err != nil {
			return err
		}
		for idx, anchor := range anchors {
			text, err := s.Text(ctx, anchor)
			if err != nil {
				return err
			}
			key := fmt.Sprintf("%d:%s", idx, strings.TrimSpace(text))
			if f.clicked[key] {
				continue
			}
			f.clicked[key] = true
			if err := s.Click(ctx, anchor); err != nil {
				return err
			}
			return s.Wait(ctx, commitSettle)
		}

		if err := f.rotateMarket(ctx); err != nil {
			return err
		}
	}
}

func (f *SPAT4Flow) rotateMarket(ctx context.Context) error {
	s := f.sess.Surface()

	f.marketIdx++
	if f.marketIdx >= len(spat4MarketRotation) {
		return flowErrf(CategoryTooManyCombinations, "market rotation exhausted",
			"no anchors left after %d markets", len(spat4MarketRotation))
	}
	next := spat4MarketRotation[f.marketIdx]

	sel, err := requireOne(ctx, s, spat4MarketSelQuery, CategoryStructuralDrift, "market dropdown missing")
	if err != nil {
		return err
	}
	if err := s.SelectLabel(ctx, sel, next); err != nil {
		return err
	}
	// A troca de mercado recarrega o frame inteiro; folga extra.
	if err := s.WaitSettle(ctx); err != nil {
		return err
	}
	if err := s.Wait(ctx, widgetSettle); err != nil {
		return err
	}
	f.sess.Selections().Remember(WidgetBetType, next)
	f.clicked = make(map[string]bool)
	f.log.Info("rotated to next market page", zap.String("market", next))
	return nil
}

// fillAmountFields preenche o trio de inputs da combinação corrente: valor
// em unidades de 100 ienes, código do tipo e os corredores no encoding
// hexadecimal de largura fixa.
func (f *SPAT4Flow) fillAmountFields(ctx context.Context, req *BetRequest, combo Combination) error {
	s := f.sess.Surface()

	idx := f.entered
	fill := func(query, value string) error {
		els, err := s.Locate(ctx, query)
		if err != nil {
			return err
		}
		if idx >= len(els) {
			return flowErrf(CategoryStructuralDrift, "amount form shorter than expected",
				"want slot %d of %q, have %d", idx, query, len(els))
		}
		return s.Fill(ctx, els[idx], value)
	}

	if err := fill(spat4AmountInputQuery, strconv.Itoa(req.Stake/100)); err != nil {
		return err
	}
	if code := spat4ShikiCode(req.BetType); code != "" {
		if err := fill(spat4ShikiInputQuery, code); err != nil {
			return err
		}
	}
	if err := fill(spat4RunnerInputQuery, EncodeRunnerFields(combo)); err != nil {
		return err
	}

	f.entered++
	return nil
}

func (f *SPAT4Flow) ConfirmationTotal(ctx context.Context, _ *BetRequest) (int, error) {
	s := f.sess.Surface()

	confirm, err := requireOne(ctx, s, spat4ConfirmBtnQuery, CategoryStructuralDrift, "confirm button missing")
	if err != nil {
		return 0, err
	}
	if err := s.Click(ctx, confirm); err != nil {
		return 0, err
	}
	if err := s.WaitSettle(ctx); err != nil {
		return 0, err
	}

	// O total vem na célula seguinte ao rótulo 合計金額 da tabela de
	// confirmação.
	cells, err := s.Locate(ctx, spat4TotalTableQuery)
	if err != nil {
		return 0, err
	}
	labelSeen := false
	for _, cell := range cells {
		text, err := s.Text(ctx, cell)
		if err != nil {
			return 0, err
		}
		text = strings.TrimSpace(text)
		if text == spat4TotalLabel {
			labelSeen = true
			continue
		}
		if labelSeen && strings.Contains(text, "円") {
			total, ok := parseYen(text)
			if !ok {
				return 0, flowErrf(CategoryStructuralDrift, "confirmation total unreadable", "text %q", text)
			}
			f.lastTotal = total
			return total, nil
		}
	}
	return 0, flowErr(CategoryStructuralDrift, "confirmation total missing")
}

func (f *SPAT4Flow) Submit(ctx context.Context, _ *BetRequest) error {
	s := f.sess.Surface()

	secret, err := requireOne(ctx, s, spat4SecretQuery, CategoryStructuralDrift, "secret code input missing")
	if err != nil {
		return err
	}
	if err := s.Fill(ctx, secret, f.creds.SecretCode); err != nil {
		return err
	}

	// O portal exige redigitar o total exibido como confirmação própria.
	totalIn, err := requireOne(ctx, s, spat4TotalInputQuery, CategoryStructuralDrift, "total input missing")
	if err != nil {
		return err
	}
	if err := s.Fill(ctx, totalIn, strconv.Itoa(f.lastTotal)); err != nil {
		return err
	}

	commit, err := requireOne(ctx, s, spat4CommitQuery, CategoryStructuralDrift, "commit button missing")
	if err != nil {
		return err
	}
	if err := s.Click(ctx, commit); err != nil {
		return err
	}
	return s.WaitSettle(ctx)
}

func (f *SPAT4Flow) VerifyResult(ctx context.Context) error {
	return verifyByMarkers(ctx, f.sess.Surface(), spat4DoneMarker, spat4SubmitNGMarkers)
}
