package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	contractx "github.com/tanpawarit/drivethru-sim/agent/contract"
)

type extractorImpl struct {
	extract compose.Runnable[map[string]any, contractx.ItemUpdates]
	match   compose.Runnable[map[string]any, string]
}

func newExtractor(ctx context.Context, chatModel einomodel.BaseChatModel, extractPrompt, matchPrompt string) (*extractorImpl, error) {
	extract, err := compileStructuredLLMGraph[contractx.ItemUpdates](ctx, chatModel, extractPrompt, "extractor.items")
	if err != nil {
		return nil, fmt.Errorf("%w: compile extract graph: %v", contractx.ErrModelInvoke, err)
	}
	match, err := compileTextGraph(ctx, chatModel, matchPrompt, "extractor.match")
	if err != nil {
		return nil, fmt.Errorf("%w: compile match graph: %v", contractx.ErrModelInvoke, err)
	}
	return &extractorImpl{extract: extract, match: match}, nil
}

func (e *extractorImpl) Extract(ctx context.Context, req contractx.ExtractRequest) (contractx.ItemUpdates, error) {
	current := ""
	if req.CurrentItem != nil {
		current = req.CurrentItem.String()
	}
	input, err := json.Marshal(map[string]any{
		"full_conversation":       req.History,
		"latest_customer":         req.LastCustomer,
		"latest_staff":            req.LastStaff,
		"item_being_ordered":      current,
		"previous_reconstruction": partialStrings(req.Previous),
	})
	if err != nil {
		return contractx.ItemUpdates{}, fmt.Errorf("%w: marshal extract payload: %v", contractx.ErrValidation, err)
	}

	out, err := e.extract.Invoke(ctx, map[string]any{
		"input": string(input),
	})
	if err != nil {
		return contractx.ItemUpdates{}, fmt.Errorf("%w: extract invoke: %v", contractx.ErrModelInvoke, err)
	}

	out.NewItem = strings.TrimSpace(out.NewItem)
	out.MealType = strings.ToLower(strings.TrimSpace(out.MealType))
	options := out.Options[:0]
	for _, opt := range out.Options {
		opt.Value = strings.TrimSpace(opt.Value)
		opt.Type = strings.ToLower(strings.TrimSpace(opt.Type))
		if opt.Value == "" {
			continue
		}
		options = append(options, opt)
	}
	out.Options = options
	return out, nil
}

// Match resolves a detected item name against candidates. The answer is
// returned as the model wrote it.
func (e *extractorImpl) Match(ctx context.Context, detected string, candidates []string) (string, error) {
	detected = strings.TrimSpace(detected)
	if detected == "" {
		return "", fmt.Errorf("%w: detected item is empty", contractx.ErrValidation)
	}
	input, err := json.Marshal(map[string]any{
		"customer_item": detected,
		"menu_items":    candidates,
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshal match payload: %v", contractx.ErrValidation, err)
	}

	out, err := e.match.Invoke(ctx, map[string]any{
		"input": string(input),
	})
	if err != nil {
		return "", fmt.Errorf("%w: match invoke: %v", contractx.ErrModelInvoke, err)
	}
	return strings.Trim(out, "\"'` "), nil
}
