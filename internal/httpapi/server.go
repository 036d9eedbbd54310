// Package httpapi expõe a API REST do vote-service: disparo de jobs de
// votação, consulta de job e snapshot de odds sob demanda.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/horsebet/keiba-autovote/internal/dispatch"
	"github.com/horsebet/keiba-autovote/pkg/contracts/events"
)

// JobRunner enfileira jobs de votação e devolve o id imediatamente.
type JobRunner interface {
	Enqueue(ctx context.Context, payload dispatch.JobPayload, trigger string) (string, error)
}

// JobStore consulta jobs já registrados.
type JobStore interface {
	GetJob(ctx context.Context, jobID string) (*dispatch.Job, error)
	Ping(ctx context.Context) error
}

// OddsProvider entrega o snapshot de odds de uma corrida JRA.
type OddsProvider interface {
	Snapshot(ctx context.Context, venue string, raceNo int) (events.OddsSnapshot, error)
}

type Server struct {
	runner JobRunner
	store  JobStore
	odds   OddsProvider
	apiKey string
	log    *zap.Logger
}

func NewServer(runner JobRunner, store JobStore, odds OddsProvider, apiKey string, log *zap.Logger) *Server {
	return &Server{runner: runner, store: store, odds: odds, apiKey: apiKey, log: log}
}

// Handler monta o mux com o middleware de chave de serviço. /health fica
// fora da autenticação para o probe do orquestrador.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/execute-bet", s.handleExecuteBet)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("POST /api/odds", s.handleOdds)
	return s.withAPIKey(mux)
}

func (s *Server) withAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		if s.apiKey == "" || r.Header.Get("X-API-Key") != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid service key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": status})
}

func (s *Server) handleExecuteBet(w http.ResponseWriter, r *http.Request) {
	var req executeBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	if req.Signal.ID == 0 {
		writeError(w, http.StatusBadRequest, "signal is required")
		return
	}

	trigger := req.TriggerSource
	if trigger == "" {
		trigger = "api"
	}

	jobID, err := s.runner.Enqueue(r.Context(), dispatch.JobPayload{
		UserID:  req.UserID,
		Signal:  req.Signal,
		Options: req.Options,
	}, trigger)
	if err != nil {
		s.log.Error("failed to enqueue vote job", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not register the job")
		return
	}

	writeJSON(w, http.StatusAccepted, executeBetResponse{JobID: jobID, Status: "pending"})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(r.PathValue("id"))
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job id is required")
		return
	}
	job, err := s.store.GetJob(r.Context(), jobID)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.log.Error("failed to load job", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load the job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleOdds(w http.ResponseWriter, r *http.Request) {
	var req oddsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Venue == "" || req.RaceNo < 1 {
		writeError(w, http.StatusBadRequest, "venue and raceNo are required")
		return
	}

	snap, err := s.odds.Snapshot(r.Context(), req.Venue, req.RaceNo)
	if err != nil {
		s.log.Warn("odds snapshot unavailable",
			zap.String("venue", req.Venue),
			zap.Int("race", req.RaceNo),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, "odds unavailable for this race")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
