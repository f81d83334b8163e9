package klyptik

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Generator produces raw text for a prompt. The recovery pipeline never
// depends on which model runtime sits behind it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// BuildPrompt wraps an instruction into the quiz request sent to the model
func BuildPrompt(instruction string) string {
	return "Generate a JSON quiz based on this instruction: " + instruction
}

// OpenAIGenerator generates text through any OpenAI-compatible chat endpoint
type OpenAIGenerator struct {
	client *openai.Client
	cfg    ModelConfig
}

// NewOpenAIGenerator creates a generator from the model settings
func NewOpenAIGenerator(cfg ModelConfig) *OpenAIGenerator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}
}

// Model is the model name requests are sent to
func (g *OpenAIGenerator) Model() string {
	return g.cfg.Name
}

// Generate sends prompt as a single user message and returns the reply text
// unmodified.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.cfg.Name,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(g.cfg.Temperature),
		TopP:        float32(g.cfg.TopP),
		MaxTokens:   g.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in completion response")
	}

	VerboseLog("Completion from %s: %d tokens, finish reason %s",
		g.cfg.Name, resp.Usage.CompletionTokens, resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}
