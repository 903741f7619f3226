package enginenode

import (
	"context"

	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/drivethru-sim/agent/contract"
)

// CheckCompletion promotes the current item when the judge says the
// tracked progress and the staff reply complete it. It runs before and
// after item tracking, so one turn can complete up to two items. With no
// tracked progress the judge is not asked. Judge errors count as not
// complete.
func CheckCompletion(ctx context.Context, in *TurnState, judge contractx.Judge, phase string) (*TurnState, error) {
	if in == nil {
		return nil, nilState()
	}
	conv := in.Conv
	if conv.CurrentItem == nil || len(conv.ItemsInProgress) == 0 {
		return in, nil
	}

	done, err := judge.Classify(ctx, contractx.QuestionItemComplete, contractx.ClassifyInput{
		Message:         in.Reply,
		CurrentItem:     conv.CurrentItem,
		ItemsInProgress: conv.ItemsInProgress,
		History:         conv.Transcript(),
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("phase", phase).Msg("completion check failed, item stays open")
		return in, nil
	}
	if !done {
		return in, nil
	}

	item, ok := conv.CompleteCurrent()
	if !ok {
		return in, nil
	}
	in.Completed = append(in.Completed, item)
	zerolog.Ctx(ctx).Info().
		Str("item", item.ItemName).
		Str("phase", phase).
		Int("remaining", conv.Remaining()).
		Msg("item complete")

	if err := conv.Validate(); err != nil {
		return nil, err
	}
	return in, nil
}
