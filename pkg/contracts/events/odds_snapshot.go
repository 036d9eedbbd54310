package events

import "time"

// Snapshot best-effort das odds de vitória de uma corrida.
// Publicado no tópico "odds_snapshots" e cacheado no Redis.
type OddsSnapshot struct {
	Venue     string             `json:"venue"`
	RaceNo    int                `json:"race_no"`
	Odds      map[string]float64 `json:"odds"` // número do corredor => odd de vitória
	FetchedAt time.Time          `json:"fetched_at"`
	Source    string             `json:"source"` // "vote-service"
}
