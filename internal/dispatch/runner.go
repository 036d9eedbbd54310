package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/horsebet/keiba-autovote/internal/vote"
	"github.com/horsebet/keiba-autovote/pkg/contracts/events"
)

// jobTimeout limita um job do dequeue ao desfecho. Folga larga: o fluxo
// inteiro de um portal leva bem menos que isso em condições normais.
const jobTimeout = 5 * time.Minute

// SurfaceFactory abre uma superfície de automação nova para um job.
type SurfaceFactory func(ctx context.Context, headless bool) (vote.Surface, error)

// JobPayload é o corpo aceito pela API de execução, espelhado em job_payload.
type JobPayload struct {
	UserID  string      `json:"userId"`
	Signal  vote.Signal `json:"signal"`
	Options JobOptions  `json:"options"`
}

type JobOptions struct {
	// Auto distingue disparo automático do dispatcher de disparo manual.
	Auto bool `json:"auto"`
	// Headless sobrepõe o default do serviço quando presente.
	Headless *bool `json:"headless,omitempty"`
}

// Config do Runner, resolvida a partir do ambiente pelo main.
type RunnerConfig struct {
	Concurrency     int
	HeadlessDefault bool
	IPATBaseURL     string
	SPAT4BaseURL    string
}

// Runner enfileira e executa jobs de votação com concorrência limitada.
// Cada job ganha um browser exclusivo; o semáforo impede que uma rajada de
// sinais abra dezenas de browsers ao mesmo tempo.
type Runner struct {
	store     *Store
	creds     *CredentialStore
	publisher *OutcomePublisher
	surfaces  SurfaceFactory
	cfg       RunnerConfig
	sem       chan struct{}
	wg        sync.WaitGroup
	log       *zap.Logger
}

func NewRunner(store *Store, creds *CredentialStore, publisher *OutcomePublisher, surfaces SurfaceFactory, cfg RunnerConfig, log *zap.Logger) *Runner {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Runner{
		store:     store,
		creds:     creds,
		publisher: publisher,
		surfaces:  surfaces,
		cfg:       cfg,
		sem:       make(chan struct{}, cfg.Concurrency),
		log:       log,
	}
}

// Enqueue registra o job como pendente e dispara o processamento em
// background. Devolve o id na hora; o desfecho sai pelo tópico de resultados
// e pela consulta de job.
func (r *Runner) Enqueue(ctx context.Context, payload JobPayload, trigger string) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode job payload: %w", err)
	}
	jobID, err := r.store.CreateJob(ctx, payload.UserID, payload.Signal.ID, trigger, raw)
	if err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	if err := r.store.RecordEvent(ctx, jobID, "queued", nil); err != nil {
		r.log.Warn("failed to record job event", zap.String("job_id", jobID), zap.Error(err))
	}

	r.wg.Add(1)
	go r.process(jobID, payload)
	return jobID, nil
}

// Wait bloqueia até todos os jobs em voo terminarem; usado no shutdown.
func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) process(jobID string, payload JobPayload) {
	defer r.wg.Done()

	r.sem <- struct{}{}
	defer func() { <-r.sem }()

	jobsInFlight.Inc()
	defer jobsInFlight.Dec()

	// O job roda desacoplado do request HTTP que o criou.
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	log := r.log.With(zap.String("job_id", jobID), zap.String("user_id", payload.UserID))

	if err := r.store.SetRunning(ctx, jobID); err != nil {
		log.Error("failed to mark job running", zap.Error(err))
		return
	}
	if err := r.store.RecordEvent(ctx, jobID, "started", nil); err != nil {
		log.Warn("failed to record job event", zap.Error(err))
	}

	started := time.Now()
	portalHint, _ := json.Marshal(map[string]string{"portal": string(vote.PortalFor(payload.Signal.RaceType))})
	if err := r.store.RecordEvent(ctx, jobID, "vote_start", portalHint); err != nil {
		log.Warn("failed to record job event", zap.Error(err))
	}
	outcome, portal := r.execute(ctx, log, payload)
	elapsed := time.Since(started)

	jobsTotal.WithLabelValues(string(portal), outcomeCategory(outcome)).Inc()
	jobDuration.WithLabelValues(string(portal)).Observe(elapsed.Seconds())

	event := events.VoteOutcome{
		JobID:       jobID,
		UserID:      payload.UserID,
		SignalID:    payload.Signal.ID,
		Portal:      string(portal),
		Venue:       payload.Signal.Venue,
		RaceNo:      payload.Signal.RaceNo,
		BetType:     payload.Signal.BetType,
		Kaime:       payload.Signal.Kaime,
		StakeAmount: payload.Signal.StakeAmount,
		Auto:        payload.Options.Auto,
		Success:     outcome.Success,
		Category:    string(outcome.Category),
		Message:     outcome.Message,
		Detail:      outcome.Detail,
		TsUnixMs:    time.Now().UnixMilli(),
	}
	if err := r.publisher.Publish(ctx, event); err != nil {
		log.Error("outcome event lost", zap.Error(err))
	}

	result, _ := json.Marshal(event)
	errMsg := ""
	if !outcome.Success {
		errMsg = outcome.Message
	}
	if err := r.store.SetFinished(ctx, jobID, outcome.Success, result, errMsg); err != nil {
		log.Error("failed to persist job result", zap.Error(err))
	}
	finalEvent := "completed"
	if !outcome.Success {
		finalEvent = "failed"
	}
	if err := r.store.RecordEvent(ctx, jobID, finalEvent, result); err != nil {
		log.Warn("failed to record job event", zap.Error(err))
	}

	log.Info("vote job finished",
		zap.Bool("success", outcome.Success),
		zap.String("category", string(outcome.Category)),
		zap.Duration("elapsed", elapsed),
	)
}

// execute valida o sinal, resolve credenciais, abre o browser e roda o
// fluxo do portal. Devolve sempre um Outcome; nunca entra em pânico para não
// perder o registro do job.
func (r *Runner) execute(ctx context.Context, log *zap.Logger, payload JobPayload) (vote.Outcome, vote.Portal) {
	req, err := vote.Normalize(payload.Signal)
	portal := vote.PortalFor(payload.Signal.RaceType)
	if err != nil {
		return failOutcome(err), portal
	}

	headless := r.cfg.HeadlessDefault
	if payload.Options.Headless != nil {
		headless = *payload.Options.Headless
	}

	surface, err := r.surfaces(ctx, headless)
	if err != nil {
		log.Error("failed to open automation surface", zap.Error(err))
		return vote.Outcome{
			Success:  false,
			Message:  "could not start the browser session",
			Detail:   err.Error(),
			Category: vote.CategoryStructuralDrift,
		}, portal
	}
	sess := vote.NewSession(surface)
	defer func() {
		if cerr := sess.Close(context.WithoutCancel(ctx)); cerr != nil {
			log.Warn("failed to close automation surface", zap.Error(cerr))
		}
	}()

	var flow vote.PortalFlow
	switch portal {
	case vote.PortalIPAT:
		creds, cerr := r.creds.IPAT(ctx, payload.UserID)
		if cerr != nil {
			return credentialOutcome(cerr), portal
		}
		flow = vote.NewIPATFlow(sess, creds, r.cfg.IPATBaseURL, log)
	default:
		creds, cerr := r.creds.SPAT4(ctx, payload.UserID)
		if cerr != nil {
			return credentialOutcome(cerr), portal
		}
		flow = vote.NewSPAT4Flow(sess, creds, r.cfg.SPAT4BaseURL, log)
	}

	return vote.NewEngine(sess, flow, log).Run(ctx, req), portal
}

func failOutcome(err error) vote.Outcome {
	out := vote.Outcome{Success: false, Category: vote.Classify(err)}
	var fe *vote.FlowError
	if errors.As(err, &fe) {
		out.Message = fe.Message
		out.Detail = fe.Detail
	} else {
		out.Message = "vote job rejected"
		out.Detail = err.Error()
	}
	return out
}

func credentialOutcome(err error) vote.Outcome {
	return vote.Outcome{
		Success:  false,
		Message:  "portal credentials unavailable",
		Detail:   err.Error(),
		Category: vote.CategoryAuthentication,
	}
}

func outcomeCategory(out vote.Outcome) string {
	if out.Success {
		return "success"
	}
	return string(out.Category)
}
