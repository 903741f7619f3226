package enginenode

import (
	"context"

	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/drivethru-sim/agent/contract"
	orderx "github.com/tanpawarit/drivethru-sim/agent/order"
	statex "github.com/tanpawarit/drivethru-sim/agent/state"
)

// ValidateUtterance checks the utterance against the order list. A judge
// error accepts the utterance.
func ValidateUtterance(ctx context.Context, in *TurnState, judge contractx.Judge, enabled bool) (*TurnState, error) {
	if in == nil {
		return nil, nilState()
	}
	in.Valid = true
	if !enabled || !orderingState(in.State) {
		return in, nil
	}

	full := append(orderx.CloneAll(in.Conv.OrderedItems), in.Conv.OrderGoal...)
	ok, err := judge.Classify(ctx, contractx.QuestionUtteranceValid, contractx.ClassifyInput{
		Message:   in.Utterance,
		OrderGoal: full,
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("utterance validation failed, accepting utterance")
		return in, nil
	}
	in.Valid = ok
	if !ok {
		zerolog.Ctx(ctx).Info().Str("utterance", in.Utterance).Msg("utterance strays from the order list, regenerating")
	}
	return in, nil
}

func orderingState(s statex.State) bool {
	return s == statex.StateOrder || s == statex.StateClarify
}

// AfterValidation picks the next node once the utterance was judged.
func AfterValidation(in *TurnState) string {
	if in != nil && !in.Valid {
		return NodeRegenerate
	}
	return NodeDrainQuestions
}
