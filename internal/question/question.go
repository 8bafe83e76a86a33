// Package question supplies one question per round: from the pool pre-generated in the
// background, from the language model on demand, or from curated lists.
package question

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/victornm/docquiz/internal/dedup"
	"github.com/victornm/docquiz/internal/domain"
	"github.com/victornm/docquiz/internal/telemetry"
)

const (
	defaultMaxAttempts         = 8
	defaultPrefillAttempts     = 5
	defaultExcerptLimit        = 1000
	defaultPrefillExcerptLimit = 200
)

type Source string

const (
	SourcePool      Source = "pool"
	SourceGenerated Source = "generated"
	SourceFailover  Source = "failover"
	SourceDefault   Source = "default"
)

type Oracle interface {
	Complete(ctx context.Context, prompt, documentRef string) (string, error)
}

type ContextProvider interface {
	Excerpt(ctx context.Context, documentRef string) (string, error)
}

type Config struct {
	Oracle  Oracle
	Context ContextProvider
	Filter  *dedup.Filter

	// MaxAttempts bounds regeneration while a candidate is too similar to a used question.
	MaxAttempts int
	// PrefillAttempts is MaxAttempts for background pre-generation.
	PrefillAttempts int
	// ExcerptLimit is the number of characters of document context put in a prompt.
	ExcerptLimit        int
	PrefillExcerptLimit int
}

type Pipeline struct {
	oracle  Oracle
	context ContextProvider
	filter  *dedup.Filter

	maxAttempts         int
	prefillAttempts     int
	excerptLimit        int
	prefillExcerptLimit int
}

func NewPipeline(c Config) *Pipeline {
	p := &Pipeline{
		oracle:              c.Oracle,
		context:             c.Context,
		filter:              c.Filter,
		maxAttempts:         orDefault(c.MaxAttempts, defaultMaxAttempts),
		prefillAttempts:     orDefault(c.PrefillAttempts, defaultPrefillAttempts),
		excerptLimit:        orDefault(c.ExcerptLimit, defaultExcerptLimit),
		prefillExcerptLimit: orDefault(c.PrefillExcerptLimit, defaultPrefillExcerptLimit),
	}
	if p.filter == nil {
		p.filter = dedup.New(dedup.DefaultThreshold)
	}
	return p
}

// Next returns the question for round and records it as used in c.
func (p *Pipeline) Next(ctx context.Context, c *Cache, documentRef string, round int) string {
	q, src := p.next(ctx, c, documentRef, round)
	c.Add(q)

	telemetry.QuestionSource.WithLabelValues(string(src)).Inc()
	slog.InfoContext(ctx, "question: selected",
		"document", documentRef,
		"round", round,
		"source", src,
	)

	return q
}

func (p *Pipeline) next(ctx context.Context, c *Cache, documentRef string, round int) (string, Source) {
	if pool := c.Pool(); round > 0 && len(pool) >= round {
		q := pool[round-1]
		if !c.Contains(q) {
			return q, SourcePool
		}
		slog.WarnContext(ctx, "question: pooled question already used", "round", round)
	}

	return p.generate(ctx, documentRef, round, c.Used(), p.maxAttempts, p.excerptLimit)
}

// Prefill generates the questions of every round against its own used set and
// publishes them to c at once. It stops early when ctx is done.
func (p *Pipeline) Prefill(ctx context.Context, c *Cache, documentRef string) error {
	start := time.Now()

	questions := make([]string, 0, domain.TotalRounds)
	for round := 1; round <= domain.TotalRounds; round++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("prefill stopped at round %d: %w", round, err)
		}

		q, _ := p.generate(ctx, documentRef, round, questions, p.prefillAttempts, p.prefillExcerptLimit)
		questions = append(questions, q)
	}

	c.Publish(questions)

	elapsed := time.Since(start)
	telemetry.PrefillDuration.Observe(elapsed.Seconds())
	slog.InfoContext(ctx, "question: pool published",
		"document", documentRef,
		"size", len(questions),
		"elapsed", elapsed,
	)

	return nil
}

func (p *Pipeline) generate(ctx context.Context, documentRef string, round int, used []string, attempts, limit int) (string, Source) {
	excerpt := clip(p.excerpt(ctx, documentRef), limit)

	for attempt := 1; attempt <= attempts; attempt++ {
		q, src := p.ask(ctx, documentRef, round, attempt, excerpt)
		if !p.filter.IsSimilar(q, used) && !slices.Contains(used, q) {
			return q, src
		}
		slog.DebugContext(ctx, "question: candidate too similar",
			"round", round,
			"attempt", attempt,
		)
	}

	return DefaultQuestion(round, used), SourceDefault
}

func (p *Pipeline) ask(ctx context.Context, documentRef string, round, attempt int, excerpt string) (string, Source) {
	if p.oracle == nil {
		return FailoverQuestion(round), SourceFailover
	}

	out, err := p.oracle.Complete(ctx, questionPrompt(domain.DifficultyForRound(round), attempt, excerpt), documentRef)
	if err != nil {
		slog.WarnContext(ctx, "question: generation failed",
			"document", documentRef,
			"round", round,
			"error", err,
		)
		return FailoverQuestion(round), SourceFailover
	}

	q := clean(out)
	if q == "" {
		return FailoverQuestion(round), SourceFailover
	}
	return q, SourceGenerated
}

func (p *Pipeline) excerpt(ctx context.Context, documentRef string) string {
	if p.context == nil {
		return ""
	}

	text, err := p.context.Excerpt(ctx, documentRef)
	if err != nil {
		slog.WarnContext(ctx, "question: load excerpt failed", "document", documentRef, "error", err)
		return ""
	}
	return text
}

func questionPrompt(d domain.Difficulty, attempt int, excerpt string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write one %s quiz question about the study material.\n", d)
	b.WriteString("Rules:\n")
	b.WriteString("- Ask exactly one question that can be answered in a few sentences.\n")
	b.WriteString("- Do not number the question and do not include the answer.\n")
	b.WriteString("- Output only the question text.\n")
	if attempt > 1 {
		fmt.Fprintf(&b, "- This is attempt %d: ask about a different aspect than a typical first question.\n", attempt)
	}
	if excerpt != "" {
		b.WriteString("\nMaterial:\n")
		b.WriteString(excerpt)
		b.WriteString("\n")
	}

	return b.String()
}

var quotes = "\"'`“”‘’"

// clean keeps the first non-empty line of a completion, without surrounding quotes.
func clean(out string) string {
	for _, line := range strings.Split(out, "\n") {
		line = strings.Trim(strings.TrimSpace(line), quotes)
		line = strings.TrimSpace(strings.TrimPrefix(line, "Question:"))
		if line != "" {
			return line
		}
	}
	return ""
}

func clip(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
