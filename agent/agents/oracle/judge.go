package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	contractx "github.com/tanpawarit/drivethru-sim/agent/contract"
	orderx "github.com/tanpawarit/drivethru-sim/agent/order"
	statex "github.com/tanpawarit/drivethru-sim/agent/state"
)

type judgeImpl struct {
	runners map[contractx.Question]compose.Runnable[map[string]any, string]
}

func newJudge(ctx context.Context, chatModel einomodel.BaseChatModel, prompts map[contractx.Question]string) (*judgeImpl, error) {
	runners := make(map[contractx.Question]compose.Runnable[map[string]any, string], len(contractx.Questions))
	for _, q := range contractx.Questions {
		prompt := strings.TrimSpace(prompts[q])
		if prompt == "" {
			return nil, fmt.Errorf("%w: judge prompt %s", contractx.ErrPromptMissing, q)
		}
		runner, err := compileTextGraph(ctx, chatModel, prompt, "judge."+string(q))
		if err != nil {
			return nil, fmt.Errorf("%w: compile judge %s: %v", contractx.ErrModelInvoke, q, err)
		}
		runners[q] = runner
	}
	return &judgeImpl{runners: runners}, nil
}

// Classify only treats a literal "true" as yes.
func (j *judgeImpl) Classify(ctx context.Context, q contractx.Question, in contractx.ClassifyInput) (bool, error) {
	runner, ok := j.runners[q]
	if !ok {
		return false, fmt.Errorf("%w: unknown question %q", contractx.ErrValidation, q)
	}

	input, err := json.Marshal(judgePayload(q, in))
	if err != nil {
		return false, fmt.Errorf("%w: marshal judge payload: %v", contractx.ErrValidation, err)
	}

	out, err := runner.Invoke(ctx, map[string]any{
		"input": string(input),
	})
	if err != nil {
		return false, fmt.Errorf("%w: judge %s invoke: %v", contractx.ErrModelInvoke, q, err)
	}
	return strings.ToLower(strings.TrimSpace(out)) == "true", nil
}

func judgePayload(q contractx.Question, in contractx.ClassifyInput) map[string]any {
	switch q {
	case contractx.QuestionAnswered:
		return map[string]any{
			"question":          in.Question,
			"customer_response": in.Message,
			"conversation":      in.History,
		}
	case contractx.QuestionItemComplete:
		intended := ""
		if in.CurrentItem != nil {
			intended = in.CurrentItem.String()
		}
		return map[string]any{
			"intended":       intended,
			"reconstruction": partialStrings(in.ItemsInProgress),
			"staff_message":  in.Message,
		}
	case contractx.QuestionUtteranceValid:
		return map[string]any{
			"order_list": itemStrings(in.OrderGoal),
			"utterance":  in.Message,
		}
	default:
		return map[string]any{
			"staff_message": in.Message,
		}
	}
}

func itemStrings(items []orderx.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.String())
	}
	return out
}

func partialStrings(items []statex.PartialItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.String())
	}
	return out
}
