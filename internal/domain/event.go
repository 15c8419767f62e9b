package domain

const (
	EventNameAttemptSubmitted   = "attempt.submitted"
	EventNameScoreRecorded      = "score.recorded"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventAttemptSubmitted struct {
	Attempt Attempt
}

func (EventAttemptSubmitted) Name() string { return EventNameAttemptSubmitted }

type EventScoreRecorded struct {
	Score Score
}

func (EventScoreRecorded) Name() string { return EventNameScoreRecorded }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
