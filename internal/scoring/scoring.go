// Package scoring turns a free-text answer into a bounded round score with feedback.
//
// A round score is the sum of a semantic component (0-7) judged by the language model
// and a lexical component (0-3) counting keyword overlap with the question and the
// document excerpt, capped at 10. Upstream failures only ever lower the score.
package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/docquiz/internal/dedup"
	"github.com/victornm/docquiz/internal/domain"
)

const (
	MaxSemanticScore = 7
	MaxLexicalScore  = 3

	minAnswerLength  = 5
	minKeywordLength = 3
)

const (
	FeedbackInvalid    = "The answer is empty, too short or meaningless. Please give a real answer."
	FeedbackIrrelevant = "The answer is off-topic or does not meet the requirements. Re-read the material and try again."
	FeedbackPartial    = "The answer is somewhat relevant but needs to be more accurate and detailed."
	FeedbackGood       = "Good answer. It largely meets the requirements, with room to improve."
	FeedbackExcellent  = "Excellent answer: accurate, detailed and on point."
)

type Oracle interface {
	Complete(ctx context.Context, prompt, documentRef string) (string, error)
}

type ContextProvider interface {
	Excerpt(ctx context.Context, documentRef string) (string, error)
}

// Result is the outcome of evaluating one answer.
type Result struct {
	Score    int
	Feedback string
	Semantic int
	Lexical  int
	// Rejected is set when the answer was refused before any evaluation.
	Rejected bool
}

type Config struct {
	Oracle  Oracle
	Context ContextProvider
}

type Evaluator struct {
	oracle  Oracle
	context ContextProvider
}

func NewEvaluator(c Config) *Evaluator {
	return &Evaluator{
		oracle:  c.Oracle,
		context: c.Context,
	}
}

// Evaluate scores answer against question. It never fails: degenerate answers, oracle
// failures and missing context all resolve to a (possibly zero) score.
func (e *Evaluator) Evaluate(ctx context.Context, question, answer, documentRef string) Result {
	if IsDegenerate(answer) {
		return Result{Score: 0, Feedback: FeedbackInvalid, Rejected: true}
	}

	var (
		semantic int
		excerpt  string
		eg       errgroup.Group
	)

	eg.Go(func() error {
		semantic = e.semanticScore(ctx, question, answer, documentRef)
		return nil
	})

	eg.Go(func() error {
		excerpt = e.excerpt(ctx, documentRef)
		return nil
	})

	_ = eg.Wait()

	lexical := LexicalScore(question, answer, excerpt)
	total := min(domain.MaxRoundScore, semantic+lexical)

	slog.InfoContext(ctx, "scoring: answer evaluated",
		"document", documentRef,
		"semantic", semantic,
		"lexical", lexical,
		"score", total,
	)

	return Result{
		Score:    total,
		Feedback: Feedback(total),
		Semantic: semantic,
		Lexical:  lexical,
	}
}

func (e *Evaluator) semanticScore(ctx context.Context, question, answer, documentRef string) int {
	if e.oracle == nil {
		return 0
	}

	out, err := e.oracle.Complete(ctx, semanticPrompt(question, answer), documentRef)
	if err != nil {
		slog.WarnContext(ctx, "scoring: semantic evaluation failed", "document", documentRef, "error", err)
		return 0
	}

	score, ok := ParseScore(out)
	if !ok {
		slog.WarnContext(ctx, "scoring: unparsable semantic score", "document", documentRef, "output", out)
		return 0
	}
	return score
}

func (e *Evaluator) excerpt(ctx context.Context, documentRef string) string {
	if e.context == nil {
		return ""
	}

	text, err := e.context.Excerpt(ctx, documentRef)
	if err != nil {
		slog.WarnContext(ctx, "scoring: load excerpt failed", "document", documentRef, "error", err)
		return ""
	}
	return text
}

var digits = regexp.MustCompile(`\d+`)

// ParseScore reads the first run of digits in out and clamps it to the semantic range.
func ParseScore(out string) (int, bool) {
	m := digits.FindString(out)
	if m == "" {
		return 0, false
	}

	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return max(0, min(MaxSemanticScore, n)), true
}

// LexicalScore counts answer keywords containing a question or excerpt keyword (both
// longer than two characters) and maps the count onto 0-3. Without an excerpt it is 0.
func LexicalScore(question, answer, excerpt string) int {
	if strings.TrimSpace(excerpt) == "" {
		return 0
	}

	var (
		qk = dedup.Keywords(question)
		ck = dedup.Keywords(excerpt)
		ak = dedup.Keywords(answer)
	)

	matches := 0
	for _, a := range ak {
		if utf8.RuneCountInString(a) < minKeywordLength {
			continue
		}
		matches += containing(a, qk)
		matches += containing(a, ck)
		if matches >= MaxLexicalScore {
			return MaxLexicalScore
		}
	}
	return matches
}

func containing(token string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if utf8.RuneCountInString(k) >= minKeywordLength && strings.Contains(token, k) {
			n++
		}
	}
	return n
}

// Feedback returns the fixed feedback for a round score.
func Feedback(score int) string {
	switch {
	case score <= 0:
		return FeedbackIrrelevant
	case score <= 3:
		return FeedbackPartial
	case score <= 6:
		return FeedbackGood
	default:
		return FeedbackExcellent
	}
}

func semanticPrompt(question, answer string) string {
	return fmt.Sprintf(`You are a strict grader. Score the answer below from 0 to 7.

Question: %s
Answer: %s

Rubric:
7: fully correct, detailed and logically clear
5-6: essentially correct with minor flaws
3-4: partially correct with clear errors
1-2: mostly wrong but somewhat related
0: wrong, irrelevant or meaningless

Output only the numeric score, nothing else:`, question, answer)
}
