package enginenode

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/drivethru-sim/agent/contract"
)

// NoteQuestion asks once whether the staff reply needs an answer and adds
// it to the pending set if so. A judge error falls back to looking for a
// question mark.
func NoteQuestion(ctx context.Context, in *TurnState, judge contractx.Judge) (*TurnState, error) {
	if in == nil {
		return nil, nilState()
	}

	needs, err := judge.Classify(ctx, contractx.QuestionNeedsReply, contractx.ClassifyInput{
		Message: in.Reply,
	})
	if err != nil {
		needs = strings.Contains(in.Reply, "?")
		zerolog.Ctx(ctx).Warn().Err(err).Bool("needs_reply", needs).Msg("needs-reply check failed, using question mark heuristic")
	}

	in.Conv.LastNeedsReply = needs
	if needs {
		in.Conv.AddPendingQuestion(in.Reply)
	}
	return in, nil
}
