package enginenode

import (
	"context"
	"slices"

	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/drivethru-sim/agent/contract"
	orderx "github.com/tanpawarit/drivethru-sim/agent/order"
	statex "github.com/tanpawarit/drivethru-sim/agent/state"
)

// NextState picks the state for the next turn: an ending reply forces DONE,
// a reply needing an answer forces CLARIFY, DONE stays DONE, otherwise the
// planner decides. Planner errors and unknown answers give DONE.
func NextState(ctx context.Context, in *TurnState, judge contractx.Judge, planner contractx.StatePicker) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, nilState()
	}
	in.Next = pickNext(ctx, in, judge, planner)

	return GraphOutput{
		Next:      in.Next,
		Utterance: in.Utterance,
		Reply:     in.Reply,
		Completed: in.Completed,
	}, nil
}

func pickNext(ctx context.Context, in *TurnState, judge contractx.Judge, planner contractx.StatePicker) statex.State {
	logger := zerolog.Ctx(ctx)
	conv := in.Conv

	ending, err := judge.Classify(ctx, contractx.QuestionConversationEnding, contractx.ClassifyInput{
		Message: in.Reply,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("ending check failed, assuming not ending")
		ending = false
	}
	switch {
	case ending:
		return statex.StateDone
	case conv.LastNeedsReply:
		return statex.StateClarify
	case in.State == statex.StateDone:
		return statex.StateDone
	}

	var current *orderx.Item
	if conv.CurrentItem != nil {
		c := conv.CurrentItem.Clone()
		current = &c
	}
	raw, err := planner.PickState(ctx, contractx.StateRequest{
		State:            in.State,
		OrderGoal:        orderx.CloneAll(conv.OrderGoal),
		CurrentItem:      current,
		OrderedItems:     orderx.CloneAll(conv.OrderedItems),
		PendingQuestions: slices.Clone(conv.PendingQuestions),
		LastAgentMessage: conv.LastAgentMessage,
	})
	if err != nil {
		logger.Error().Err(err).Msg("state planner failed, ending conversation")
		return statex.StateDone
	}

	next, ok := statex.ParseState(raw)
	if !ok {
		logger.Warn().Str("answer", raw).Msg("planner answered an unknown state, ending conversation")
	}
	return next
}
