package enginenode

import (
	"context"
	"slices"

	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/drivethru-sim/agent/contract"
)

// DrainQuestions removes every pending question the upcoming utterance
// answers. Judge errors leave the question pending.
func DrainQuestions(ctx context.Context, in *TurnState, judge contractx.Judge) (*TurnState, error) {
	if in == nil {
		return nil, nilState()
	}
	if len(in.Conv.PendingQuestions) == 0 {
		return in, nil
	}

	history := in.Conv.Transcript()
	for _, q := range slices.Clone(in.Conv.PendingQuestions) {
		answered, err := judge.Classify(ctx, contractx.QuestionAnswered, contractx.ClassifyInput{
			Message:  in.Utterance,
			Question: q,
			History:  history,
		})
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("question", q).Msg("answer check failed, keeping question")
			continue
		}
		if answered {
			in.Conv.ResolveQuestion(q)
		}
	}
	return in, nil
}
