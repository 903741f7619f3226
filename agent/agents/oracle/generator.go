package oracle

import (
	"context"
	"fmt"
	"strings"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go"

	contractx "github.com/tanpawarit/drivethru-sim/agent/contract"
	openrouterx "github.com/tanpawarit/drivethru-sim/pkg/openrouter"
)

// generatorImpl renders the customer prompt with eino and calls the
// completions API directly so sampling penalties reach the provider.
type generatorImpl struct {
	client      *openai.Client
	model       string
	temperature float64
	presence    float64
	frequency   float64
	maxTokens   int64
	template    einoprompt.ChatTemplate
}

func newGenerator(client *openai.Client, cfg openrouterx.Config, systemPrompt string) (*generatorImpl, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: generator client is required", contractx.ErrValidation)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("%w: generator model is required", contractx.ErrValidation)
	}

	g := &generatorImpl{
		client:      client,
		model:       model,
		temperature: float64(cfg.Temperature),
		presence:    float64(cfg.PresencePenalty),
		frequency:   float64(cfg.FrequencyPenalty),
		template: einoprompt.FromMessages(
			schema.FString,
			schema.SystemMessage(systemPrompt),
			schema.UserMessage("{query}"),
		),
	}
	if cfg.MaxCompletionToken != nil && *cfg.MaxCompletionToken > 0 {
		g.maxTokens = int64(*cfg.MaxCompletionToken)
	}
	return g, nil
}

func (g *generatorImpl) Generate(ctx context.Context, req contractx.GenerateRequest) (string, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return "", fmt.Errorf("%w: generation query is required", contractx.ErrValidation)
	}

	instruction := strings.TrimSpace(req.Instruction)
	if c := strings.TrimSpace(req.Constraint); c != "" {
		instruction = strings.TrimSpace(instruction + "\n\nIMPORTANT: " + c)
	}

	rendered, err := g.template.Format(ctx, map[string]any{
		"state":         string(req.State),
		"emotion":       req.Style.Emotion,
		"tone":          req.Style.Tone,
		"brevity":       req.Style.Brevity,
		"customer_name": req.CustomerName,
		"context":       req.Context,
		"instruction":   instruction,
		"query":         query,
	})
	if err != nil {
		return "", fmt.Errorf("%w: render customer prompt: %v", contractx.ErrPromptMissing, err)
	}

	params := openai.ChatCompletionNewParams{
		Model:            openai.ChatModel(g.model),
		Messages:         toOpenAIMessages(rendered),
		Temperature:      openai.Float(g.temperature),
		PresencePenalty:  openai.Float(g.presence),
		FrequencyPenalty: openai.Float(g.frequency),
	}
	if g.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(g.maxTokens)
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: generate utterance: %v", contractx.ErrModelInvoke, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: completion has no choices", contractx.ErrSchemaViolation)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty utterance", contractx.ErrSchemaViolation)
	}
	return text, nil
}

func toOpenAIMessages(msgs []*schema.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		switch m.Role {
		case schema.System:
			out = append(out, openai.SystemMessage(m.Content))
		case schema.Assistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
