package oracle

import (
	"context"
	"encoding/json"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	contractx "github.com/tanpawarit/drivethru-sim/agent/contract"
)

type plannerImpl struct {
	runner compose.Runnable[map[string]any, string]
}

func newPlanner(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*plannerImpl, error) {
	runner, err := compileTextGraph(ctx, chatModel, systemPrompt, "planner.next_state")
	if err != nil {
		return nil, fmt.Errorf("%w: compile planner graph: %v", contractx.ErrModelInvoke, err)
	}
	return &plannerImpl{runner: runner}, nil
}

// PickState returns the model's raw answer. Parsing it into a state is the
// engine's job.
func (p *plannerImpl) PickState(ctx context.Context, req contractx.StateRequest) (string, error) {
	input, err := json.Marshal(map[string]any{
		"current_state":      req.State,
		"remaining_items":    itemStrings(req.OrderGoal),
		"current_item":       currentItemString(req),
		"ordered_items":      itemStrings(req.OrderedItems),
		"pending_questions":  req.PendingQuestions,
		"last_staff_message": req.LastAgentMessage,
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshal planner payload: %v", contractx.ErrValidation, err)
	}

	out, err := p.runner.Invoke(ctx, map[string]any{
		"input": string(input),
	})
	if err != nil {
		return "", fmt.Errorf("%w: planner invoke: %v", contractx.ErrModelInvoke, err)
	}
	return out, nil
}

func currentItemString(req contractx.StateRequest) string {
	if req.CurrentItem == nil {
		return "none"
	}
	return req.CurrentItem.String()
}
