package dispatch

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Store implementa a persistência de jobs de votação no Postgres.
type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Job é a linha de bet_jobs exposta pela API de consulta.
type Job struct {
	ID            string          `json:"jobId"`
	UserID        string          `json:"userId"`
	SignalID      int64           `json:"signalId"`
	Status        string          `json:"status"` // pending | running | succeeded | failed
	TriggerSource string          `json:"triggerSource"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Result        json.RawMessage `json:"result,omitempty"`
	ErrorMessage  string          `json:"errorMessage,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	StartedAt     *time.Time      `json:"startedAt,omitempty"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
}

// CreateJob insere um job pendente e devolve o id.
func (s *Store) CreateJob(ctx context.Context, userID string, signalID int64, trigger string, payload []byte) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bet_jobs (id,user_id,signal_id,status,trigger_source,job_payload,created_at)
		VALUES ($1,$2,$3,'pending',$4,$5,NOW())`,
		id, userID, signalID, trigger, payload,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) SetRunning(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE bet_jobs SET status='running', started_at=NOW() WHERE id=$1`, jobID)
	return err
}

// SetFinished grava o estado terminal do job com o Outcome serializado.
func (s *Store) SetFinished(ctx context.Context, jobID string, success bool, result []byte, errMsg string) error {
	status := "succeeded"
	if !success {
		status = "failed"
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE bet_jobs SET status=$1, result=$2, error_message=NULLIF($3,''), completed_at=NOW()
		WHERE id=$4`, status, result, errMsg, jobID)
	return err
}

// GetJob devolve o job pelo id; sql.ErrNoRows quando não existe.
func (s *Store) GetJob(ctx context.Context, jobID string) (*Job, error) {
	var j Job
	var errMsg sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id,user_id,signal_id,status,trigger_source,job_payload,COALESCE(result,'null'),
		       COALESCE(error_message,''),created_at,started_at,completed_at
		FROM bet_jobs WHERE id=$1`, jobID).
		Scan(&j.ID, &j.UserID, &j.SignalID, &j.Status, &j.TriggerSource, &j.Payload,
			&j.Result, &errMsg, &j.CreatedAt, &j.StartedAt, &j.CompletedAt)
	if err != nil {
		return nil, err
	}
	j.ErrorMessage = errMsg.String
	return &j, nil
}

// RecordEvent anexa um evento de auditoria do job; falha aqui não derruba o
// fluxo, quem chama decide logar.
func (s *Store) RecordEvent(ctx context.Context, jobID, eventType string, details []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bet_job_events (job_id,event_type,details,created_at)
		VALUES ($1,$2,$3,NOW())`, jobID, eventType, details)
	return err
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
