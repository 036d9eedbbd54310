package httpapi

import (
	"github.com/horsebet/keiba-autovote/internal/dispatch"
	"github.com/horsebet/keiba-autovote/internal/vote"
)

type executeBetRequest struct {
	UserID        string              `json:"userId"`
	Signal        vote.Signal         `json:"signal"`
	Options       dispatch.JobOptions `json:"options"`
	TriggerSource string              `json:"triggerSource,omitempty"`
}

type executeBetResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

type oddsRequest struct {
	Venue  string `json:"venue"`
	RaceNo int    `json:"raceNo"`
}
