package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const defaultGenAIModel = "gemini-2.5-flash"

type GenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// GenAI calls the Gemini API.
type GenAI struct {
	client *genai.Client
	model  string
}

func NewGenAI(ctx context.Context, c GenAIConfig) (*GenAI, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  c.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: c.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	m := c.Model
	if m == "" {
		m = defaultGenAIModel
	}

	return &GenAI{
		client: client,
		model:  m,
	}, nil
}

func (g *GenAI) Name() string { return ProviderGenAI }

func (g *GenAI) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	return resp.Text(), nil
}
