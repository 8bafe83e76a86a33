package session

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/docquiz/internal/domain"
	"github.com/victornm/docquiz/internal/errors"
	"github.com/victornm/docquiz/internal/event"
	"github.com/victornm/docquiz/internal/question"
	"github.com/victornm/docquiz/internal/scoring"
	"github.com/victornm/docquiz/internal/task"
	"github.com/victornm/docquiz/internal/telemetry"
)

const (
	defaultIdleTTL = 2 * time.Hour

	FeedbackTimeout = "Time is up: no answer was submitted in time."
)

type Documents interface {
	Exists(ctx context.Context, documentRef string) (bool, error)
}

type Questions interface {
	Next(ctx context.Context, c *question.Cache, documentRef string, round int) string
	Prefill(ctx context.Context, c *question.Cache, documentRef string) error
}

type Evaluator interface {
	Evaluate(ctx context.Context, question, answer, documentRef string) scoring.Result
}

type Config struct {
	EventBus  *event.Bus
	Documents Documents
	Questions Questions
	Evaluator Evaluator

	// Tasks runs question pre-generation. A new supervisor is used when nil.
	Tasks *task.Supervisor
	// Now is the clock, time.Now when nil.
	Now func() time.Time
	// AnswerTimeout defaults to domain.AnswerTimeout.
	AnswerTimeout time.Duration
	// IdleTTL is how long an untouched session is kept by Sweep.
	IdleTTL time.Duration
}

// Service owns the state machine of every quiz session:
//
//	WAITING -> PLAYING -> WAITING_NEXT -> PLAYING -> ... -> FINISHED
//
// All operations on one session are serialised; different sessions never block each other.
type Service struct {
	eb        *event.Bus
	documents Documents
	questions Questions
	evaluator Evaluator

	tasks    *task.Supervisor
	registry *Registry

	now           func() time.Time
	answerTimeout time.Duration
	idleTTL       time.Duration
}

func NewService(c Config) *Service {
	s := &Service{
		eb:            c.EventBus,
		documents:     c.Documents,
		questions:     c.Questions,
		evaluator:     c.Evaluator,
		tasks:         c.Tasks,
		now:           c.Now,
		answerTimeout: c.AnswerTimeout,
		idleTTL:       c.IdleTTL,
	}

	if s.tasks == nil {
		s.tasks = task.NewSupervisor()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.answerTimeout <= 0 {
		s.answerTimeout = domain.AnswerTimeout
	}
	if s.idleTTL <= 0 {
		s.idleTTL = defaultIdleTTL
	}

	s.registry = NewRegistry(s.tasks)
	return s
}

// Registry exposes the live sessions.
func (s *Service) Registry() *Registry {
	return s.registry
}

// StartGameRequest represents a request to start a game over a document.
type StartGameRequest struct {
	DocumentRef string
}

// StartGame creates a WAITING session and starts pre-generating its questions in the background.
func (s *Service) StartGame(ctx context.Context, req StartGameRequest) (*domain.Session, error) {
	ref := strings.TrimSpace(req.DocumentRef)
	if ref == "" {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("document reference is required"))
	}

	ok, err := s.documents.Exists(ctx, ref)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("check document: %w", err))
	}
	if !ok {
		return nil, errors.DocumentNotFound(ref)
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("generate session ID: %w", err)
	}

	now := s.now()
	ss := &domain.Session{
		SessionID:    id.String(),
		Status:       domain.StatusWaiting,
		TotalRounds:  domain.TotalRounds,
		MaxScore:     domain.TotalRounds * domain.MaxRoundScore,
		DocumentRef:  ref,
		RoundHistory: []domain.RoundRecord{},
		CreatedAt:    now,
	}

	cache := question.NewCache()
	e := s.registry.add(ss, cache, now)

	s.tasks.Go(ctx, ss.SessionID, func(ctx context.Context) error {
		return s.questions.Prefill(ctx, cache, ref)
	})

	telemetry.SessionsStarted.Inc()
	slog.InfoContext(ctx, "session: game started", "session", ss.SessionID, "document", ref)

	e.mu.Lock()
	defer e.mu.Unlock()

	snap := s.snapshot(e, now)
	s.eb.Publish(ctx, domain.EventGameStarted{Session: snap})

	return &snap, nil
}

type GetStateRequest struct {
	SessionID string
}

// GetState returns the session. Reading a PLAYING session whose answer time ran out
// scores the round as a timeout first.
func (s *Service) GetState(ctx context.Context, req GetStateRequest) (*domain.Session, error) {
	e, unlock, err := s.lock(req.SessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.now()
	if e.session.Status == domain.StatusPlaying && s.remaining(e.session, now) <= 0 {
		slog.InfoContext(ctx, "session: answer time elapsed", "session", req.SessionID, "round", e.session.Round)
		s.submit(ctx, e, "", true, now)
	}

	snap := s.snapshot(e, now)
	return &snap, nil
}

type SubmitAnswerRequest struct {
	SessionID string
	Answer    string
	// Timeout marks a submission made because the client's timer ran out.
	Timeout bool
}

// SubmitAnswer scores the answer of the current round. Submitting outside PLAYING,
// which includes a second answer for a round already scored, fails with InvalidState.
func (s *Service) SubmitAnswer(ctx context.Context, req SubmitAnswerRequest) (*domain.Session, error) {
	e, unlock, err := s.lock(req.SessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if st := e.session.Status; st != domain.StatusPlaying {
		return nil, errors.InvalidState("cannot submit an answer while the game is %s", st)
	}

	now := s.now()
	s.submit(ctx, e, req.Answer, req.Timeout, now)

	snap := s.snapshot(e, now)
	return &snap, nil
}

type NextQuestionRequest struct {
	SessionID string
}

// NextQuestion advances to the next round. It is a no-op while a question is being
// played or once the game is finished.
func (s *Service) NextQuestion(ctx context.Context, req NextQuestionRequest) (*domain.Session, error) {
	e, unlock, err := s.lock(req.SessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ss := e.session
	now := s.now()

	switch ss.Status {
	case domain.StatusWaiting:
		ss.Round = 1
	case domain.StatusWaitingNext:
		ss.Round++
	default:
		slog.DebugContext(ctx, "session: next question ignored", "session", ss.SessionID, "status", ss.Status)
		snap := s.snapshot(e, now)
		return &snap, nil
	}

	if ss.Round > domain.TotalRounds {
		ss.Round = domain.TotalRounds
		s.finish(ctx, e, now)
		snap := s.snapshot(e, now)
		return &snap, nil
	}

	c := e.cache.Load()
	if c == nil {
		// removed while waiting for the lock
		c = question.NewCache()
	}

	q := s.questions.Next(ctx, c, ss.DocumentRef, ss.Round)

	ss.CurrentQuestion = q
	ss.QuestionStartedAt = &now
	ss.Status = domain.StatusPlaying

	slog.InfoContext(ctx, "session: question asked", "session", ss.SessionID, "round", ss.Round)

	snap := s.snapshot(e, now)
	s.eb.Publish(ctx, domain.EventQuestionAsked{Session: snap})

	return &snap, nil
}

type FinishGameRequest struct {
	SessionID string
}

// FinishGame ends the game early. Finishing a finished game returns it unchanged.
func (s *Service) FinishGame(ctx context.Context, req FinishGameRequest) (*domain.Session, error) {
	e, unlock, err := s.lock(req.SessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.now()
	if e.session.Status != domain.StatusFinished {
		s.finish(ctx, e, now)
	}

	snap := s.snapshot(e, now)
	return &snap, nil
}

// Sweep removes sessions idle for longer than the configured TTL.
func (s *Service) Sweep(ctx context.Context) int {
	removed := s.registry.Expire(s.now(), s.idleTTL)
	if len(removed) > 0 {
		slog.InfoContext(ctx, "session: idle sessions removed", "count", len(removed))
	}
	return len(removed)
}

// Close cancels background pre-generation and waits for it to stop.
func (s *Service) Close() {
	s.tasks.Stop()
}

func (s *Service) lock(id string) (*entry, func(), error) {
	e, ok := s.registry.get(id)
	if !ok {
		return nil, nil, errors.SessionNotFound(id)
	}

	e.mu.Lock()
	e.touch(s.now())
	return e, e.mu.Unlock, nil
}

// submit records the answer of the current round. The caller holds e.mu and has
// checked the session is PLAYING.
func (s *Service) submit(ctx context.Context, e *entry, answer string, timeout bool, now time.Time) {
	ss := e.session
	if ss.Answered(ss.Round) {
		slog.WarnContext(ctx, "session: duplicate answer ignored", "session", ss.SessionID, "round", ss.Round)
		return
	}

	timedOut := timeout || s.remaining(ss, now) <= 0

	rec := domain.RoundRecord{
		Round:    ss.Round,
		Question: ss.CurrentQuestion,
		Answer:   answer,
		Feedback: FeedbackTimeout,
		Timeout:  timedOut,
	}
	if !timedOut {
		res := s.evaluator.Evaluate(ctx, ss.CurrentQuestion, answer, ss.DocumentRef)
		rec.Score = res.Score
		rec.Feedback = res.Feedback
	}

	ss.RoundHistory = append(ss.RoundHistory, rec)
	ss.TotalScore += rec.Score
	ss.QuestionStartedAt = nil

	telemetry.RoundsScored.WithLabelValues(strconv.FormatBool(timedOut)).Inc()
	slog.InfoContext(ctx, "session: round scored",
		"session", ss.SessionID,
		"round", ss.Round,
		"score", rec.Score,
		"timeout", timedOut,
	)

	ss.Status = domain.StatusWaitingNext
	if ss.Round >= domain.TotalRounds {
		ss.Status = domain.StatusFinished
	}

	s.eb.Publish(ctx, domain.EventRoundScored{
		Session: s.snapshot(e, now),
		Record:  rec,
	})

	if ss.Status == domain.StatusFinished {
		s.finish(ctx, e, now)
	}
}

// finish moves the session to FINISHED and releases its cache and background work.
func (s *Service) finish(ctx context.Context, e *entry, now time.Time) {
	ss := e.session
	ss.Status = domain.StatusFinished
	ss.QuestionStartedAt = nil

	e.cache.Store(nil)
	s.tasks.Cancel(ss.SessionID)

	slog.InfoContext(ctx, "session: game finished",
		"session", ss.SessionID,
		"rounds", len(ss.RoundHistory),
		"score", ss.TotalScore,
	)

	s.eb.Publish(ctx, domain.EventGameFinished{Session: s.snapshot(e, now)})
}

// remaining returns the whole seconds left to answer the current question.
func (s *Service) remaining(ss *domain.Session, now time.Time) int64 {
	if ss.QuestionStartedAt == nil {
		return 0
	}

	elapsed := int64(now.Sub(*ss.QuestionStartedAt) / time.Second)
	return max(0, int64(s.answerTimeout/time.Second)-elapsed)
}

func (s *Service) snapshot(e *entry, now time.Time) domain.Session {
	snap := e.session.Clone()
	snap.RemainingSeconds = 0
	if snap.Status == domain.StatusPlaying {
		snap.RemainingSeconds = s.remaining(e.session, now)
	}
	return snap
}
