package session_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/victornm/docquiz/internal/domain"
	"github.com/victornm/docquiz/internal/event"
	"github.com/victornm/docquiz/internal/question"
	"github.com/victornm/docquiz/internal/scoring"
	"github.com/victornm/docquiz/internal/session"
)

type option func(c *session.Config)

func withDocuments(d fakeDocuments) option {
	return func(c *session.Config) { c.Documents = d }
}

func withQuestions(q *fakeQuestions) option {
	return func(c *session.Config) { c.Questions = q }
}

func withEvaluator(e session.Evaluator) option {
	return func(c *session.Config) { c.Evaluator = e }
}

func withClock(clock *fakeClock) option {
	return func(c *session.Config) { c.Now = clock.Now }
}

func withRecorder(r *recorder) option {
	return func(c *session.Config) { r.subscribe(c.EventBus) }
}

func makeService(t *testing.T, opts ...option) *session.Service {
	t.Helper()

	eb := event.NewBus()
	c := session.Config{
		EventBus:  eb,
		Documents: fakeDocuments{known: map[string]bool{"doc-1": true}},
		Questions: &fakeQuestions{},
		Evaluator: scoring.NewEvaluator(scoring.Config{Oracle: fixedOracle("5")}),
	}
	for _, opt := range opts {
		opt(&c)
	}

	s := session.NewService(c)
	t.Cleanup(func() {
		s.Close()
		eb.Stop()
	})

	return s
}

type fakeDocuments struct {
	known map[string]bool
	err   error
}

func (f fakeDocuments) Exists(_ context.Context, ref string) (bool, error) {
	return f.known[ref], f.err
}

type fakeQuestions struct {
	pool  []string
	block bool

	started   atomic.Int32
	cancelled atomic.Int32
}

func (f *fakeQuestions) Next(_ context.Context, c *question.Cache, ref string, round int) string {
	q := fmt.Sprintf("question %d about %s", round, ref)
	if pool := c.Pool(); len(pool) >= round {
		q = pool[round-1]
	}
	c.Add(q)
	return q
}

func (f *fakeQuestions) Prefill(ctx context.Context, c *question.Cache, _ string) error {
	f.started.Add(1)
	if f.block {
		<-ctx.Done()
		f.cancelled.Add(1)
		return ctx.Err()
	}
	if f.pool != nil {
		c.Publish(f.pool)
	}
	return nil
}

type fakeEvaluator struct {
	score int
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeEvaluator) Evaluate(context.Context, string, string, string) scoring.Result {
	f.calls.Add(1)
	time.Sleep(f.delay)
	return scoring.Result{Score: f.score, Feedback: scoring.Feedback(f.score)}
}

type fixedOracle string

func (o fixedOracle) Complete(context.Context, string, string) (string, error) {
	return string(o), nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *recorder) subscribe(eb *event.Bus) {
	for _, name := range []string{
		domain.EventNameGameStarted,
		domain.EventNameQuestionAsked,
		domain.EventNameRoundScored,
		domain.EventNameGameFinished,
	} {
		eb.Subscribe(name, func(_ context.Context, e event.Event) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.counts == nil {
				r.counts = make(map[string]int)
			}
			r.counts[e.Name()]++
			return nil
		})
	}
}

func (r *recorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[name]
}
