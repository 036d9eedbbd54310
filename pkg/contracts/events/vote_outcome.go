package events

// Evento emitido pelo vote-service ao final de cada job de votação.
type VoteOutcome struct {
	JobID    string `json:"job_id"`
	UserID   string `json:"user_id"`
	SignalID int64  `json:"signal_id"`
	Portal   string `json:"portal"` // "ipat" | "spat4"

	Venue       string   `json:"venue"`
	RaceNo      int      `json:"race_no"`
	BetType     int      `json:"bet_type"`
	Kaime       []string `json:"kaime"`
	StakeAmount int      `json:"stake_amount"`
	Auto        bool     `json:"auto"`

	Success  bool   `json:"success"`
	Category string `json:"category,omitempty"`
	Message  string `json:"message"`
	Detail   string `json:"detail,omitempty"`
	TsUnixMs int64  `json:"ts_unix_ms"`
}
