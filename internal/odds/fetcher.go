package odds

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	sharedkafka "github.com/horsebet/keiba-autovote/internal/shared/kafka"
	"github.com/horsebet/keiba-autovote/internal/vote"
	"github.com/horsebet/keiba-autovote/pkg/contracts/events"
)

// Seletores da página pública de odds da JRA.
const (
	selOddsVenue  = `select[name="selectJyo"]`
	selOddsRace   = `select[name="selectRaceNo"]`
	selOddsSubmit = `input[type="submit"]`
	selOddsRows   = `table.tbl-odds tbody tr`
)

const (
	oddsLookupTimeout = 10 * time.Second
	oddsLookupPoll    = 500 * time.Millisecond
	maxOddsRows       = 18
)

// SurfaceFactory abre uma superfície efêmera para a busca de odds.
type SurfaceFactory func(ctx context.Context, headless bool) (vote.Surface, error)

// Fetcher raspa as odds de vitória da grade pública da JRA. Best-effort por
// contrato: falha aqui nunca bloqueia um job de votação.
type Fetcher struct {
	surfaces SurfaceFactory
	baseURL  string
	log      *zap.Logger
}

func NewFetcher(surfaces SurfaceFactory, baseURL string, log *zap.Logger) *Fetcher {
	return &Fetcher{surfaces: surfaces, baseURL: baseURL, log: log}
}

// Fetch abre um browser, navega até a grade da corrida e devolve o snapshot.
// Grade vazia ou pista desconhecida viram erro; o chamador decide o que fazer.
func (f *Fetcher) Fetch(ctx context.Context, venue string, raceNo int) (events.OddsSnapshot, error) {
	if _, ok := joCodes[venue]; !ok {
		return events.OddsSnapshot{}, fmt.Errorf("unknown JRA venue %q", venue)
	}
	if raceNo < 1 || raceNo > vote.MaxRaceNo {
		return events.OddsSnapshot{}, fmt.Errorf("race number %d out of range", raceNo)
	}

	surface, err := f.surfaces(ctx, true)
	if err != nil {
		return events.OddsSnapshot{}, fmt.Errorf("open surface: %w", err)
	}
	defer func() {
		if cerr := surface.Close(context.WithoutCancel(ctx)); cerr != nil {
			f.log.Warn("failed to close odds surface", zap.Error(cerr))
		}
	}()

	if err := surface.Navigate(ctx, f.baseURL); err != nil {
		return events.OddsSnapshot{}, err
	}
	if err := surface.WaitSettle(ctx); err != nil {
		return events.OddsSnapshot{}, err
	}

	if err := f.selectAndSettle(ctx, surface, selOddsVenue, venue); err != nil {
		return events.OddsSnapshot{}, err
	}
	if err := f.selectAndSettle(ctx, surface, selOddsRace, fmt.Sprintf("%dレース", raceNo)); err != nil {
		return events.OddsSnapshot{}, err
	}

	submit, err := waitOne(ctx, surface, selOddsSubmit)
	if err != nil {
		return events.OddsSnapshot{}, err
	}
	if err := surface.Click(ctx, submit); err != nil {
		return events.OddsSnapshot{}, err
	}
	if err := surface.WaitSettle(ctx); err != nil {
		return events.OddsSnapshot{}, err
	}

	odds, err := f.scrapeRows(ctx, surface)
	if err != nil {
		return events.OddsSnapshot{}, err
	}
	if len(odds) == 0 {
		return events.OddsSnapshot{}, fmt.Errorf("odds grid empty for %s race %d", venue, raceNo)
	}

	return events.OddsSnapshot{
		Venue:     venue,
		RaceNo:    raceNo,
		Odds:      odds,
		FetchedAt: time.Now(),
		Source:    "vote-service",
	}, nil
}

func (f *Fetcher) selectAndSettle(ctx context.Context, s vote.Surface, query, label string) error {
	el, err := waitOne(ctx, s, query)
	if err != nil {
		return err
	}
	if err := s.SelectLabel(ctx, el, label); err != nil {
		return err
	}
	return s.WaitSettle(ctx)
}

// scrapeRows lê a grade linha a linha. Cada linha carrega popularidade,
// número do corredor e odd de vitória; linhas sem odd numérica (cancelados
// mostram "取消") são puladas.
func (f *Fetcher) scrapeRows(ctx context.Context, s vote.Surface) (map[string]float64, error) {
	rows, err := s.Locate(ctx, selOddsRows)
	if err != nil {
		return nil, err
	}
	odds := make(map[string]float64)
	for i, row := range rows {
		if i >= maxOddsRows {
			break
		}
		text, err := s.Text(ctx, row)
		if err != nil {
			return nil, err
		}
		umaban, value, ok := parseOddsRow(text)
		if !ok {
			continue
		}
		odds[umaban] = value
	}
	return odds, nil
}

// parseOddsRow extrai corredor e odd de um texto de linha como
// "1  7  3.4". O primeiro campo é a popularidade e é descartado.
func parseOddsRow(text string) (string, float64, bool) {
	fields := strings.Fields(text)
	if len(fields) < 3 {
		return "", 0, false
	}
	umaban, err := strconv.Atoi(fields[1])
	if err != nil || umaban < 1 || umaban > vote.MaxRunner {
		return "", 0, false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(fields[2], ",", ""), 64)
	if err != nil || value <= 0 {
		return "", 0, false
	}
	return strconv.Itoa(umaban), value, true
}

func waitOne(ctx context.Context, s vote.Surface, query string) (vote.Element, error) {
	deadline := time.Now().Add(oddsLookupTimeout)
	for {
		els, err := s.Locate(ctx, query)
		if err != nil {
			return vote.Element{}, err
		}
		if len(els) > 0 {
			return els[0], nil
		}
		if time.Now().After(deadline) {
			return vote.Element{}, fmt.Errorf("control %q not found on odds page", query)
		}
		if err := s.Wait(ctx, oddsLookupPoll); err != nil {
			return vote.Element{}, err
		}
	}
}

// joCodes mapeia as pistas da JRA para os códigos internos da grade.
var joCodes = map[string]string{
	"札幌": "01", "函館": "02", "福島": "03", "新潟": "04", "東京": "05",
	"中山": "06", "中京": "07", "京都": "08", "阪神": "09", "小倉": "10",
}

// Service amarra busca, cache e publicação: um snapshot bem-sucedido vai para
// o Redis (com broadcast) e para o tópico Kafka de snapshots.
type Service struct {
	fetcher *Fetcher
	cache   *Cache
	writer  *sharedkafka.Writer
	log     *zap.Logger
}

func NewService(fetcher *Fetcher, cache *Cache, writer *sharedkafka.Writer, log *zap.Logger) *Service {
	return &Service{fetcher: fetcher, cache: cache, writer: writer, log: log}
}

// Snapshot devolve as odds da corrida, preferindo o cache. No miss, raspa a
// grade e distribui o resultado.
func (s *Service) Snapshot(ctx context.Context, venue string, raceNo int) (events.OddsSnapshot, error) {
	if snap, err := s.cache.Load(ctx, venue, raceNo); err == nil {
		return snap, nil
	}

	snap, err := s.fetcher.Fetch(ctx, venue, raceNo)
	if err != nil {
		return events.OddsSnapshot{}, err
	}

	if err := s.cache.Store(ctx, snap); err != nil {
		s.log.Warn("failed to cache odds snapshot", zap.Error(err))
	}
	payload, err := json.Marshal(snap)
	if err == nil {
		key := fmt.Sprintf("%s:%d", venue, raceNo)
		if werr := sharedkafka.WriteJSON(ctx, s.writer, key, payload); werr != nil {
			s.log.Warn("failed to publish odds snapshot", zap.Error(werr))
		}
	}
	return snap, nil
}
