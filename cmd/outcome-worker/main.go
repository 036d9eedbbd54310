package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/horsebet/keiba-autovote/internal/shared/config"
	"github.com/horsebet/keiba-autovote/internal/shared/db"
	"github.com/horsebet/keiba-autovote/internal/shared/kafka"
	"github.com/horsebet/keiba-autovote/internal/shared/logger"
	"github.com/horsebet/keiba-autovote/internal/shared/metrics"
	ev "github.com/horsebet/keiba-autovote/pkg/contracts/events"
)

func main() {
	if os.Getenv("SERVICE_NAME") == "" {
		os.Setenv("SERVICE_NAME", "outcome-worker")
	}
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Postgres para histórico e estado de escalada
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	// Kafka consumer: consome vote_outcomes para manter o histórico
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicVoteOutcomes, "outcome-worker")
	defer reader.Close()

	var dlqWriter *kafkago.Writer
	if cfg.TopicVoteOutcomesDLQ != "" {
		dlqWriter = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicVoteOutcomesDLQ)
		defer dlqWriter.Close()
	}

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})

	log.Info("outcome-worker started", zap.String("consume", cfg.TopicVoteOutcomes))

	ctx := context.Background()

	// Loop principal: consome desfechos e persiste histórico/escalada
	for {
		key, value, err := kafka.ReadNext(ctx, reader)
		if err != nil {
			log.Warn("kafka read", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		var outcome ev.VoteOutcome
		if jerr := json.Unmarshal(value, &outcome); jerr != nil {
			log.Error("unmarshal vote_outcome", zap.Error(jerr))
			if dlqWriter != nil {
				_ = kafka.WriteJSON(ctx, dlqWriter, string(key), value)
			}
			continue
		}

		if err := processOne(ctx, pg, &outcome); err != nil {
			// Retry simples antes da DLQ: erro aqui é quase sempre banco fora
			const retries = 3
			for i := 0; i < retries && err != nil; i++ {
				time.Sleep(time.Duration(300*(i+1)) * time.Millisecond)
				err = processOne(ctx, pg, &outcome)
			}
			if err != nil {
				log.Error("process outcome", zap.String("jobId", outcome.JobID), zap.Error(err))
				if dlqWriter != nil {
					_ = kafka.WriteJSON(ctx, dlqWriter, outcome.JobID, value)
				}
				continue
			}
		}

		log.Info("outcome recorded",
			zap.String("jobId", outcome.JobID),
			zap.Bool("success", outcome.Success),
			zap.String("category", outcome.Category),
		)
	}
}

// processOne persiste um desfecho:
// 1. Insere a linha de bet_history (sucesso ou falha, sempre registrada)
// 2. Em caso de sucesso, acumula o estado de escalada ativo do usuário
func processOne(ctx context.Context, pg *sql.DB, o *ev.VoteOutcome) error {
	if err := insertBetHistory(ctx, pg, o); err != nil {
		return err
	}
	if o.Success {
		return accumulateEscalation(ctx, pg, o)
	}
	return nil
}

func insertBetHistory(ctx context.Context, pg *sql.DB, o *ev.VoteOutcome) error {
	kaime, _ := json.Marshal(o.Kaime)
	_, err := pg.ExecContext(ctx, `
		INSERT INTO bet_history
			(job_id, user_id, signal_id, portal, venue, race_no, bet_type,
			 kaime, stake_amount, auto, success, category, message, bet_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NULLIF($12,''),$13,$14)
		ON CONFLICT (job_id) DO NOTHING`,
		o.JobID, o.UserID, o.SignalID, o.Portal, o.Venue, o.RaceNo, o.BetType,
		kaime, o.StakeAmount, o.Auto, o.Success, o.Category, o.Message,
		time.UnixMilli(o.TsUnixMs))
	return err
}

// accumulateEscalation soma a aposta submetida ao estado de escalada ativo.
// A estratégia que decide o próximo valor mora fora deste worker; aqui só a
// contabilidade é mantida.
func accumulateEscalation(ctx context.Context, pg *sql.DB, o *ev.VoteOutcome) error {
	invested := o.StakeAmount * len(o.Kaime)
	_, err := pg.ExecContext(ctx, `
		UPDATE escalation_state
		SET total_investment = total_investment + $1,
		    combination_count = combination_count + $2,
		    last_bet_date = $3,
		    updated_at = NOW()
		WHERE user_id = $4 AND active`,
		invested, len(o.Kaime), time.UnixMilli(o.TsUnixMs), o.UserID)
	return err
}
