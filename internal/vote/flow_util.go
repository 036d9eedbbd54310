package vote

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Tempos de acomodação observados nos portais. Os selects disparam
// requisições próprias e precisam de folga extra antes da próxima ação.
var (
	lookupTimeout    = 10 * time.Second
	lookupPoll       = 500 * time.Millisecond
	widgetSettle     = 2 * time.Second
	runnerClickDelay = 50 * time.Millisecond
	commitSettle     = time.Second
)

// requireOne localiza um controle obrigatório, com polling até o timeout.
// Estourar o prazo vira a categoria informada: structural_drift quando a
// página deveria conter o controle, schedule_mismatch nos passos de grade.
func requireOne(ctx context.Context, s Surface, query string, cat Category, msg string) (Element, error) {
	deadline := time.Now().Add(lookupTimeout)
	for {
		els, err := s.Locate(ctx, query)
		if err != nil {
			return Element{}, err
		}
		if len(els) > 0 {
			return els[0], nil
		}
		if time.Now().After(deadline) {
			return Element{}, flowErrf(cat, msg, "control %q not found", query)
		}
		if err := s.Wait(ctx, lookupPoll); err != nil {
			return Element{}, err
		}
	}
}

// bodyText lê o texto do body; página vazia devolve "".
func bodyText(ctx context.Context, s Surface) (string, error) {
	els, err := s.Locate(ctx, "body")
	if err != nil || len(els) == 0 {
		return "", err
	}
	return s.Text(ctx, els[0])
}

// findByText varre os elementos da query atrás do primeiro cujo texto
// contém todos os fragmentos.
func findByText(ctx context.Context, s Surface, query string, fragments ...string) (Element, bool, error) {
	els, err := s.Locate(ctx, query)
	if err != nil {
		return Element{}, false, err
	}
	for _, el := range els {
		text, err := s.Text(ctx, el)
		if err != nil {
			return Element{}, false, err
		}
		if containsAll(text, fragments) {
			return el, true, nil
		}
	}
	return Element{}, false, nil
}

func containsAll(text string, fragments []string) bool {
	for _, f := range fragments {
		if f != "" && !strings.Contains(text, f) {
			return false
		}
	}
	return true
}

var yenPattern = regexp.MustCompile(`[0-9][0-9,]*`)

// parseYen extrai o valor em ienes de textos como "3,000円".
func parseYen(text string) (int, bool) {
	m := yenPattern.FindString(text)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

var intPattern = regexp.MustCompile(`\d+`)

// firstInt extrai o primeiro número inteiro de um texto de célula.
func firstInt(text string) (int, bool) {
	m := intPattern.FindString(text)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// verifyByMarkers procura o marcador de conclusão pós-submit, com polling
// limitado. Recusa explícita do portal vira business_rule; nem sucesso nem
// erro dentro do prazo vira ambiguous_outcome — o job não adivinha.
func verifyByMarkers(ctx context.Context, s Surface, done string, failures []string) error {
	deadline := time.Now().Add(lookupTimeout)
	for {
		body, err := bodyText(ctx, s)
		if err != nil {
			return err
		}
		if strings.Contains(body, done) {
			return nil
		}
		for _, marker := range failures {
			if strings.Contains(body, marker) {
				return flowErrf(CategoryBusinessRule, "portal refused the submission", "marker %q", marker)
			}
		}
		if time.Now().After(deadline) {
			return flowErr(CategoryAmbiguousOutcome, "no completion or error marker after submit")
		}
		if err := s.Wait(ctx, lookupPoll); err != nil {
			return err
		}
	}
}

// selectIfNeeded aplica um valor num select só quando o SelectionCache diz
// que ele ainda não vigora; seleção repetida é no-op sem nenhuma chamada de
// automação.
func selectIfNeeded(ctx context.Context, sess *Session, w Widget, query, label string) error {
	if sess.Selections().Applied(w, label) {
		return nil
	}
	el, err := requireOne(ctx, sess.Surface(), query, CategoryStructuralDrift, "selection widget missing")
	if err != nil {
		return err
	}
	if err := sess.Surface().SelectLabel(ctx, el, label); err != nil {
		return err
	}
	if err := sess.Surface().WaitSettle(ctx); err != nil {
		return err
	}
	if err := sess.Surface().Wait(ctx, widgetSettle); err != nil {
		return err
	}
	sess.Selections().Remember(w, label)
	return nil
}
