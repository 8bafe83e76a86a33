// Package llm adapts hosted language models to the completion contract used by
// question generation and answer scoring.
package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/victornm/docquiz/internal/errors"
	"github.com/victornm/docquiz/internal/telemetry"
)

const defaultTimeout = 30 * time.Second

const (
	ProviderArk   = "ark"
	ProviderGenAI = "genai"
	ProviderNone  = "none"
)

const systemPrompt = "You are a study assistant that writes and grades quiz questions about technical documents. " +
	"Follow the instructions exactly and keep replies short."

var (
	ErrEmptyCompletion = stderrors.New("empty completion")
	ErrDisabled        = stderrors.New("language model disabled")
)

// Backend produces a single completion for a prompt.
type Backend interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

type Config struct {
	Provider string
	Timeout  time.Duration
	Ark      ArkConfig
	GenAI    GenAIConfig
}

type Client struct {
	backend Backend
	timeout time.Duration
}

// New builds the client for the configured provider.
func New(ctx context.Context, c Config) (*Client, error) {
	var (
		b   Backend
		err error
	)

	switch c.Provider {
	case ProviderArk:
		b, err = NewArk(ctx, c.Ark)
	case ProviderGenAI:
		b, err = NewGenAI(ctx, c.GenAI)
	case ProviderNone, "":
		b = disabled{}
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", c.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("llm: %s: %w", c.Provider, err)
	}

	return NewClient(b, c.Timeout), nil
}

func NewClient(b Backend, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		backend: b,
		timeout: timeout,
	}
}

// Enabled reports whether a language model backs the client.
func (c *Client) Enabled() bool {
	_, off := c.backend.(disabled)
	return !off
}

// Complete returns the trimmed completion of prompt. Every failure, including a
// blank completion, is reported as an upstream error.
func (c *Client) Complete(ctx context.Context, prompt, documentRef string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	name := c.backend.Name()
	start := time.Now()

	out, err := c.backend.Generate(ctx, prompt)
	out = strings.TrimSpace(out)
	if err == nil && out == "" {
		err = ErrEmptyCompletion
	}

	if err != nil {
		telemetry.OracleCalls.WithLabelValues(name, "error").Inc()
		slog.WarnContext(ctx, "llm: completion failed",
			"backend", name,
			"document", documentRef,
			"elapsed", time.Since(start),
			"error", err,
		)
		return "", errors.Upstream(fmt.Errorf("%s: %w", name, err))
	}

	telemetry.OracleCalls.WithLabelValues(name, "ok").Inc()
	slog.DebugContext(ctx, "llm: completion done",
		"backend", name,
		"document", documentRef,
		"elapsed", time.Since(start),
	)

	return out, nil
}

type disabled struct{}

func (disabled) Name() string { return ProviderNone }

func (disabled) Generate(context.Context, string) (string, error) { return "", ErrDisabled }
