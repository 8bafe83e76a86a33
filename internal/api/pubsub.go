package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/docquiz/internal/domain"
	"github.com/victornm/docquiz/internal/event"
)

const maxConcurrent = 100

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	Leaderboard struct {
		DocumentRef string             `json:"documentRef"`
		Entries     []LeaderboardEntry `json:"entries"`
	}

	LeaderboardEntry struct {
		SessionID string `json:"sessionId"`
		Score     string `json:"score"`
	}
)

func toLeaderboard(l domain.Leaderboard) Leaderboard {
	data := Leaderboard{
		DocumentRef: l.DocumentRef,
		Entries:     make([]LeaderboardEntry, 0, len(l.Entries)),
	}

	for _, entry := range l.Entries {
		data.Entries = append(data.Entries, LeaderboardEntry{
			SessionID: entry.SessionID,
			Score:     strconv.FormatFloat(entry.Score, 'f', -1, 64),
		})
	}

	return data
}

// PublishGameEvent sends the session snapshot carried by a game event to the players of that session.
func (a *API) PublishGameEvent(ctx context.Context, e event.Event) error {
	var ss domain.Session
	switch e := e.(type) {
	case domain.EventGameStarted:
		ss = e.Session
	case domain.EventQuestionAsked:
		ss = e.Session
	case domain.EventRoundScored:
		ss = e.Session
	case domain.EventGameFinished:
		ss = e.Session
	default:
		return fmt.Errorf("pubsub: unexpected event %s", e.Name())
	}

	return a.publishNotification(ctx, ss.SessionID, e.Name(), ss)
}

// PublishLeaderboardUpdated sends a document's leaderboard to every ranked session.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	data := toLeaderboard(e.Leaderboard)

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, entry := range data.Entries {
		eg.Go(func() error {
			return a.publishNotification(ctx, entry.SessionID, e.Name(), data)
		})
	}

	return eg.Wait()
}

func (a *API) publishNotification(ctx context.Context, sessionID, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	a.broker.Publish(sessionID, b)

	return a.redis.Publish(ctx, a.channel(sessionID), b).Err()
}

func (a *API) channel(sessionID string) string {
	return fmt.Sprintf("%s:game:%s", a.prefix, sessionID)
}
