package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/horsebet/keiba-autovote/internal/dispatch"
	"github.com/horsebet/keiba-autovote/pkg/contracts/events"
)

type stubRunner struct {
	jobID string
	err   error
	last  dispatch.JobPayload
}

func (s *stubRunner) Enqueue(_ context.Context, payload dispatch.JobPayload, _ string) (string, error) {
	s.last = payload
	return s.jobID, s.err
}

type stubStore struct {
	job *dispatch.Job
	err error
}

func (s *stubStore) GetJob(context.Context, string) (*dispatch.Job, error) { return s.job, s.err }
func (s *stubStore) Ping(context.Context) error                           { return nil }

type stubOdds struct {
	snap events.OddsSnapshot
	err  error
}

func (s *stubOdds) Snapshot(context.Context, string, int) (events.OddsSnapshot, error) {
	return s.snap, s.err
}

func newTestServer(runner *stubRunner, store *stubStore, odds *stubOdds) http.Handler {
	if runner == nil {
		runner = &stubRunner{jobID: "job-1"}
	}
	if store == nil {
		store = &stubStore{err: sql.ErrNoRows}
	}
	if odds == nil {
		odds = &stubOdds{}
	}
	return NewServer(runner, store, odds, "test-key", zap.NewNop()).Handler()
}

func do(h http.Handler, method, path, body string, withKey bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if withKey {
		req.Header.Set("X-API-Key", "test-key")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_RejectsMissingKey(t *testing.T) {
	h := newTestServer(nil, nil, nil)
	rec := do(h, http.MethodPost, "/api/execute-bet", "{}", false)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("got %d, want 401", rec.Code)
	}
}

func TestServer_HealthSkipsKey(t *testing.T) {
	h := newTestServer(nil, nil, nil)
	rec := do(h, http.MethodGet, "/health", "", false)
	if rec.Code != http.StatusOK {
		t.Errorf("got %d, want 200", rec.Code)
	}
}

func TestExecuteBet_Accepted(t *testing.T) {
	runner := &stubRunner{jobID: "job-42"}
	h := newTestServer(runner, nil, nil)

	body := `{"userId":"u1","signal":{"id":7,"race_type":"JRA","jo_name":"東京","race_no":11,"bet_type":1,"kaime_data":["7"],"suggested_amount":1000}}`
	rec := do(h, http.MethodPost, "/api/execute-bet", body, true)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("got %d, want 202: %s", rec.Code, rec.Body)
	}
	var resp executeBetResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.JobID != "job-42" || resp.Status != "pending" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if runner.last.UserID != "u1" || runner.last.Signal.Venue != "東京" {
		t.Errorf("payload not forwarded: %+v", runner.last)
	}
}

func TestExecuteBet_BadRequests(t *testing.T) {
	h := newTestServer(nil, nil, nil)
	cases := []struct {
		name string
		body string
	}{
		{"malformed json", "{"},
		{"missing user", `{"signal":{"id":7}}`},
		{"missing signal", `{"userId":"u1"}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := do(h, http.MethodPost, "/api/execute-bet", c.body, true)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("got %d, want 400", rec.Code)
			}
		})
	}
}

func TestGetJob_NotFound(t *testing.T) {
	h := newTestServer(nil, &stubStore{err: sql.ErrNoRows}, nil)
	rec := do(h, http.MethodGet, "/api/jobs/nope", "", true)
	if rec.Code != http.StatusNotFound {
		t.Errorf("got %d, want 404", rec.Code)
	}
}

func TestGetJob_Found(t *testing.T) {
	h := newTestServer(nil, &stubStore{job: &dispatch.Job{ID: "job-9", Status: "succeeded"}}, nil)
	rec := do(h, http.MethodGet, "/api/jobs/job-9", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
	var job dispatch.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatal(err)
	}
	if job.ID != "job-9" || job.Status != "succeeded" {
		t.Errorf("unexpected job: %+v", job)
	}
}

func TestOdds_BadGatewayOnScrapeFailure(t *testing.T) {
	h := newTestServer(nil, nil, &stubOdds{err: errors.New("grid empty")})
	rec := do(h, http.MethodPost, "/api/odds", `{"venue":"東京","raceNo":11}`, true)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("got %d, want 502", rec.Code)
	}
}

func TestOdds_ReturnsSnapshot(t *testing.T) {
	h := newTestServer(nil, nil, &stubOdds{snap: events.OddsSnapshot{
		Venue: "東京", RaceNo: 11, Odds: map[string]float64{"7": 3.4},
	}})
	rec := do(h, http.MethodPost, "/api/odds", `{"venue":"東京","raceNo":11}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
	var snap events.OddsSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Odds["7"] != 3.4 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}
