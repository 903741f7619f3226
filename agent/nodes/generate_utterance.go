package enginenode

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/drivethru-sim/agent/contract"
)

// GenerateUtterance writes the customer's next line. A generation error
// falls back to a canned line so the turn can continue.
func GenerateUtterance(ctx context.Context, in *TurnState, gen contractx.Generator) (*TurnState, error) {
	if in == nil {
		return nil, nilState()
	}
	in.Utterance, _ = generate(ctx, in, gen, "")
	return in, nil
}

// RegenerateUtterance retries once with an explicit constraint. If that
// fails too, the first utterance is kept.
func RegenerateUtterance(ctx context.Context, in *TurnState, gen contractx.Generator) (*TurnState, error) {
	if in == nil {
		return nil, nilState()
	}
	in.Regenerate = true

	names := make([]string, 0, len(in.Conv.OrderGoal)+len(in.Conv.OrderedItems))
	for _, it := range in.Conv.OrderedItems {
		names = append(names, it.String())
	}
	for _, it := range in.Conv.OrderGoal {
		names = append(names, it.String())
	}
	constraint := "Your last attempt asked for something that is not on your order list. " +
		"Only mention these items and options: " + strings.Join(names, "; ") + "."

	if text, ok := generate(ctx, in, gen, constraint); ok {
		in.Utterance = text
	}
	return in, nil
}

// generate reports ok=false when it had to fall back.
func generate(ctx context.Context, in *TurnState, gen contractx.Generator, constraint string) (string, bool) {
	g := BuildGeneration(in.Conv, in.State)
	in.Query = g.Query

	text, err := gen.Generate(ctx, contractx.GenerateRequest{
		State:        in.State,
		Style:        in.Conv.Style,
		CustomerName: in.Conv.CustomerName,
		Context:      g.Context,
		Instruction:  g.Instruction,
		Query:        g.Query,
		Constraint:   constraint,
	})
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		fallback := fallbackUtterance(g.Query)
		zerolog.Ctx(ctx).Warn().
			Err(err).
			Str("state", string(in.State)).
			Str("fallback", fallback).
			Msg("utterance generation failed, using fallback")
		return fallback, false
	}
	return text, true
}
