package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

type ArkConfig struct {
	APIKey      string
	BaseURL     string
	Region      string
	Model       string
	MaxTokens   int
	Temperature float32
}

// Chain runs a prompt through a compiled eino chain: the fixed system message, the
// prompt as the user message, then the chat model.
type Chain struct {
	name     string
	runnable compose.Runnable[map[string]any, *schema.Message]
}

// NewArk connects to a Volcengine Ark chat model.
func NewArk(ctx context.Context, c ArkConfig) (*Chain, error) {
	if c.APIKey == "" || c.Model == "" {
		return nil, fmt.Errorf("api key and model are required")
	}

	cfg := &ark.ChatModelConfig{
		BaseURL: c.BaseURL,
		Region:  c.Region,
		APIKey:  c.APIKey,
		Model:   c.Model,
	}
	if c.MaxTokens > 0 {
		cfg.MaxTokens = &c.MaxTokens
	}
	if c.Temperature > 0 {
		cfg.Temperature = &c.Temperature
	}

	m, err := ark.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}

	return NewChain(ctx, ProviderArk, m)
}

func NewChain(ctx context.Context, name string, m model.ChatModel) (*Chain, error) {
	// the prompt travels as a message so that braces in it are never read as template variables
	tpl := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.MessagesPlaceholder("input", false),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(tpl)
	chain.AppendChatModel(m)

	r, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile chain: %w", err)
	}

	return &Chain{
		name:     name,
		runnable: r,
	}, nil
}

func (c *Chain) Name() string { return c.name }

func (c *Chain) Generate(ctx context.Context, p string) (string, error) {
	msg, err := c.runnable.Invoke(ctx, map[string]any{
		"input": []*schema.Message{schema.UserMessage(p)},
	})
	if err != nil {
		return "", fmt.Errorf("invoke chain: %w", err)
	}

	return msg.Content, nil
}
