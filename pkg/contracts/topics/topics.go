package topics

const (
	// Voting
	VoteOutcomes    = "vote_outcomes"
	VoteOutcomesDLQ = "vote_outcomes_dlq"

	// Odds
	OddsSnapshots = "odds_snapshots"
)
