package klyptik

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const submitInstructionTool = "submit_instruction"

// InstructionSuggestion is a fresh quiz instruction proposed by the model
type InstructionSuggestion struct {
	Instruction string `json:"instruction"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// InstructionDiscoverer asks the model for quiz instructions unlike the ones
// already stored
type InstructionDiscoverer struct {
	client *openai.Client
	model  string
}

func NewInstructionDiscoverer(cfg ModelConfig) *InstructionDiscoverer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &InstructionDiscoverer{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Name,
	}
}

// Discover returns one instruction, optionally within category, that differs
// from every entry of existing.
func (d *InstructionDiscoverer) Discover(ctx context.Context, existing []string, category string) (*InstructionSuggestion, error) {
	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You write short instructions for a quiz generator. Each instruction names a subject and the kind of quiz to produce.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: discoveryPrompt(existing, category),
			},
		},
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        submitInstructionTool,
				Description: "Submit the new quiz instruction",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"instruction": map[string]any{
							"type":        "string",
							"description": "One sentence asking for a multiple choice quiz, e.g. \"Create 5 questions about volcanoes\"",
						},
						"category": map[string]any{
							"type":        "string",
							"description": "Category of the subject (e.g., Science, History, Technology)",
						},
						"description": map[string]any{
							"type":        "string",
							"description": "What the quiz would cover",
						},
					},
					"required": []string{"instruction", "category", "description"},
				},
			},
		}},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: submitInstructionTool},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover instruction: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from model")
	}
	calls := resp.Choices[0].Message.ToolCalls
	if len(calls) == 0 {
		return nil, errors.New("no tool calls in response")
	}
	if calls[0].Function.Name != submitInstructionTool {
		return nil, fmt.Errorf("unexpected tool call: %s", calls[0].Function.Name)
	}

	var suggestion InstructionSuggestion
	if err := json.Unmarshal([]byte(calls[0].Function.Arguments), &suggestion); err != nil {
		return nil, fmt.Errorf("failed to parse tool arguments: %w", err)
	}
	if strings.TrimSpace(suggestion.Instruction) == "" {
		return nil, errors.New("model returned an empty instruction")
	}
	return &suggestion, nil
}

func discoveryPrompt(existing []string, category string) string {
	var sb strings.Builder
	sb.WriteString("Write ONE instruction for a multiple choice quiz on an engaging, educational subject.\n\n")
	if category != "" {
		fmt.Fprintf(&sb, "Focus on the category: %s\n\n", category)
	}
	if len(existing) > 0 {
		sb.WriteString("It must cover a different subject from these existing instructions:\n")
		for _, e := range existing {
			fmt.Fprintf(&sb, "- %s\n", e)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Return it with the " + submitInstructionTool + " tool.")
	return sb.String()
}
