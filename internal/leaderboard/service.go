package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/victornm/docquiz/internal/domain"
	"github.com/victornm/docquiz/internal/errors"
	"github.com/victornm/docquiz/internal/event"
)

const (
	publishInterval = 200 * time.Millisecond
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	s.eb.Subscribe(domain.EventNameGameFinished, func(ctx context.Context, e event.Event) error {
		return s.RecordGame(ctx, e.(domain.EventGameFinished))
	})

	return s
}

type GetLeaderboardRequest struct {
	DocumentRef string
}

// GetLeaderboard returns the finished games of a document, best average first.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	res, err := s.redis.ZRevRangeWithScores(ctx, s.getLeaderboardKey(req.DocumentRef), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	if len(res) == 0 {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("leaderboard not found: document=%s", req.DocumentRef))
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		entries = append(entries, domain.LeaderboardEntry{
			SessionID: z.Member.(string),
			Score:     z.Score,
		})
	}

	return &domain.Leaderboard{
		DocumentRef: req.DocumentRef,
		Entries:     entries,
	}, nil
}

// RecordGame ranks a finished game by its average round score. Games finished
// before any round was answered are not ranked.
func (s *Service) RecordGame(ctx context.Context, e domain.EventGameFinished) error {
	ss := e.Session
	if len(ss.RoundHistory) == 0 {
		return nil
	}

	avg := AverageScore(ss)

	// TODO: retry on error
	if err := s.redis.ZAdd(ctx, s.getLeaderboardKey(ss.DocumentRef), redis.Z{
		Score:  avg.InexactFloat64(),
		Member: ss.SessionID,
	}).Err(); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx, ss.DocumentRef, time.Now())
}

// AverageScore is the mean score of the answered rounds, rounded to two decimals.
func AverageScore(ss domain.Session) decimal.Decimal {
	if len(ss.RoundHistory) == 0 {
		return decimal.Zero
	}

	total := decimal.Zero
	for _, r := range ss.RoundHistory {
		total = total.Add(decimal.NewFromInt(int64(r.Score)))
	}
	return total.Div(decimal.NewFromInt(int64(len(ss.RoundHistory)))).Round(2)
}

// schedulePublishLeaderboard publishes at most one leaderboard update per document and interval,
// so a burst of finishing games results in a single notification.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, documentRef string, at time.Time) error {
	// Only one instance wins the key within the interval.
	ok, err := s.redis.SetNX(ctx, s.getLeaderboardTimeKey(documentRef), at.UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	return s.publishLeaderboard(ctx, documentRef)
}

func (s *Service) publishLeaderboard(ctx context.Context, documentRef string) error {
	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{
		DocumentRef: documentRef,
	})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: document=%s: %w", documentRef, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return nil
}

func (s *Service) getLeaderboardKey(documentRef string) string {
	return fmt.Sprintf("%s:%s:leaderboard", s.prefix, documentRef)
}

func (s *Service) getLeaderboardTimeKey(documentRef string) string {
	return fmt.Sprintf("%s:%s:time", s.prefix, documentRef)
}
