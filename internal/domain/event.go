package domain

const (
	EventNameGameStarted   = "game.started"
	EventNameQuestionAsked = "question.asked"
	EventNameRoundScored   = "round.scored"
	EventNameGameFinished  = "game.finished"

	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventGameStarted struct {
	Session Session
}

func (EventGameStarted) Name() string { return EventNameGameStarted }

type EventQuestionAsked struct {
	Session Session
}

func (EventQuestionAsked) Name() string { return EventNameQuestionAsked }

type EventRoundScored struct {
	Session Session
	Record  RoundRecord
}

func (EventRoundScored) Name() string { return EventNameRoundScored }

type EventGameFinished struct {
	Session Session
}

func (EventGameFinished) Name() string { return EventNameGameFinished }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
