package dispatch

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	sharedkafka "github.com/horsebet/keiba-autovote/internal/shared/kafka"
	"github.com/horsebet/keiba-autovote/pkg/contracts/events"
)

// OutcomePublisher emite cada VoteOutcome no tópico de resultados. A chave é
// o jobId para preservar a ordem por job dentro da partição.
type OutcomePublisher struct {
	writer *sharedkafka.Writer
	log    *zap.Logger
}

func NewOutcomePublisher(writer *sharedkafka.Writer, log *zap.Logger) *OutcomePublisher {
	return &OutcomePublisher{writer: writer, log: log}
}

func (p *OutcomePublisher) Publish(ctx context.Context, outcome events.VoteOutcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return err
	}
	if err := sharedkafka.WriteJSON(ctx, p.writer, outcome.JobID, payload); err != nil {
		p.log.Error("failed to publish vote outcome",
			zap.String("job_id", outcome.JobID),
			zap.Error(err),
		)
		return err
	}
	p.log.Info("vote outcome published",
		zap.String("job_id", outcome.JobID),
		zap.String("portal", outcome.Portal),
		zap.Bool("success", outcome.Success),
		zap.String("category", outcome.Category),
	)
	return nil
}
