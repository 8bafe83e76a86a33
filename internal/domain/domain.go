package domain

import (
	"time"
)

const (
	// TotalRounds is the number of rounds in every game.
	TotalRounds = 10
	// MaxRoundScore is the best score a single round can award.
	MaxRoundScore = 10
	// AnswerTimeout is how long a player has to answer once a question is shown.
	AnswerTimeout = 180 * time.Second
)

// Status is the lifecycle state of a quiz session.
type Status string

const (
	StatusWaiting     Status = "WAITING"
	StatusPlaying     Status = "PLAYING"
	StatusWaitingNext Status = "WAITING_NEXT"
	StatusFinished    Status = "FINISHED"
)

// Session represents a single quiz run over one document.
// Values handed out by the session service are snapshots; mutating them has no effect.
type Session struct {
	SessionID         string        `json:"sessionId"`
	Status            Status        `json:"status"`
	Round             int           `json:"round"`
	TotalRounds       int           `json:"totalRounds"`
	TotalScore        int           `json:"totalScore"`
	MaxScore          int           `json:"maxScore"`
	DocumentRef       string        `json:"documentRef"`
	CurrentQuestion   string        `json:"currentQuestion,omitempty"`
	QuestionStartedAt *time.Time    `json:"questionStartedAt,omitempty"`
	RemainingSeconds  int64         `json:"remainingSeconds"`
	RoundHistory      []RoundRecord `json:"roundHistory"`
	CreatedAt         time.Time     `json:"createdAt"`
}

// RoundRecord is the outcome of one completed round.
type RoundRecord struct {
	Round    int    `json:"round"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
	Timeout  bool   `json:"timeout"`
}

// Answered reports whether the history already holds a record for round.
func (s *Session) Answered(round int) bool {
	for _, r := range s.RoundHistory {
		if r.Round == round {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand to callers.
func (s *Session) Clone() Session {
	c := *s
	c.RoundHistory = make([]RoundRecord, len(s.RoundHistory))
	copy(c.RoundHistory, s.RoundHistory)
	if s.QuestionStartedAt != nil {
		t := *s.QuestionStartedAt
		c.QuestionStartedAt = &t
	}
	return c
}

// Difficulty is the generation difficulty for a round.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// DifficultyForRound maps rounds 1-3 to easy, 4-7 to medium and the rest to hard.
func DifficultyForRound(round int) Difficulty {
	switch {
	case round <= 3:
		return DifficultyEasy
	case round <= 7:
		return DifficultyMedium
	default:
		return DifficultyHard
	}
}

// Leaderboard ranks finished games of one document.
// The list is sorted by score in descending order.
type Leaderboard struct {
	DocumentRef string
	Entries     []LeaderboardEntry
}

type LeaderboardEntry struct {
	SessionID string
	Score     float64
}
