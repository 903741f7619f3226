package enginenode

import (
	"context"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/drivethru-sim/agent/contract"
	menux "github.com/tanpawarit/drivethru-sim/agent/menu"
	orderx "github.com/tanpawarit/drivethru-sim/agent/order"
	statex "github.com/tanpawarit/drivethru-sim/agent/state"
)

// TrackItems rebuilds the in-progress reconstruction from the whole
// transcript and replaces the previous one. Extraction errors keep the
// previous reconstruction.
func TrackItems(ctx context.Context, in *TurnState, extractor contractx.Extractor) (*TurnState, error) {
	if in == nil {
		return nil, nilState()
	}
	conv := in.Conv
	if conv.CurrentItem == nil {
		return in, nil
	}

	updates, err := extractor.Extract(ctx, contractx.ExtractRequest{
		History:      conv.Transcript(),
		LastCustomer: in.Utterance,
		LastStaff:    in.Reply,
		CurrentItem:  conv.CurrentItem,
		Previous:     conv.ItemsInProgress,
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("item extraction failed, keeping previous progress")
		return in, nil
	}
	if updates.Empty() {
		return in, nil
	}

	candidates := orderx.Names(conv.OrderGoal)
	resolve := func(name string) string {
		return resolveName(ctx, name, candidates, extractor)
	}
	progress := BuildProgress(updates, conv.ItemsInProgress, resolve)
	conv.ReplaceProgress(progress)

	zerolog.Ctx(ctx).Debug().Strs("progress", partialStrings(progress)).Msg("progress updated")
	return in, nil
}

// BuildProgress turns extractor output into the in-progress list. The main
// item comes first. Sides and drinks are options of the main item when it
// is a meal, and standalone items otherwise.
func BuildProgress(
	updates contractx.ItemUpdates,
	previous []statex.PartialItem,
	resolve func(string) string,
) []statex.PartialItem {
	name := strings.TrimSpace(updates.NewItem)
	if name == "" && len(previous) > 0 {
		name = previous[0].Name
	}
	if name == "" {
		return previous
	}
	if resolve != nil {
		name = resolve(name)
	}

	main := statex.PartialItem{
		Name:     name,
		MealType: strings.ToLower(strings.TrimSpace(updates.MealType)),
	}
	if main.MealType == "" && len(previous) > 0 && previous[0].Name == name {
		main.MealType = previous[0].MealType
	}
	meal := main.MealType == menux.MealChoice

	var standalone []statex.PartialItem
	for _, opt := range updates.Options {
		value := strings.TrimSpace(opt.Value)
		if value == "" {
			continue
		}
		kind := strings.ToLower(strings.TrimSpace(opt.Type))
		if (kind == "side" || kind == "drink") && !meal {
			item := value
			if resolve != nil {
				item = resolve(value)
			}
			if !slices.ContainsFunc(standalone, func(p statex.PartialItem) bool { return p.Name == item }) {
				standalone = append(standalone, statex.PartialItem{Name: item})
			}
			continue
		}
		if !slices.Contains(main.Options, value) {
			main.Options = append(main.Options, value)
		}
	}
	return append([]statex.PartialItem{main}, standalone...)
}

// resolveName maps a detected name onto a goal item name: exact match
// ignoring case, then the extractor's matcher, then the raw name.
func resolveName(ctx context.Context, name string, candidates []string, extractor contractx.Extractor) string {
	if c, ok := matchCandidate(name, candidates); ok {
		return c
	}
	if len(candidates) == 0 {
		return name
	}
	matched, err := extractor.Match(ctx, name, candidates)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("detected", name).Msg("item match failed, keeping detected name")
		return name
	}
	if c, ok := matchCandidate(matched, candidates); ok {
		return c
	}
	return name
}

func matchCandidate(name string, candidates []string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, c := range candidates {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	return "", false
}

func partialStrings(items []statex.PartialItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.String()
	}
	return out
}
