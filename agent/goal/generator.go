package goal

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/brianvoe/gofakeit/v7"

	menux "github.com/tanpawarit/drivethru-sim/agent/menu"
	orderx "github.com/tanpawarit/drivethru-sim/agent/order"
)

type Level string

const (
	LevelSimple  Level = "simple"
	LevelMedium  Level = "medium"
	LevelComplex Level = "complex"
)

// maxSelections caps how many labels are picked for a single option group.
const maxSelections = 4

var (
	ErrUnknownLevel = errors.New("unknown order level")
	ErrNoMealItems  = errors.New("menu has no meal-capable items")
	ErrInvalidGoal  = errors.New("generated goal violates menu rules")
)

func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelSimple:
		return LevelSimple, nil
	case LevelMedium:
		return LevelMedium, nil
	case LevelComplex:
		return LevelComplex, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
}

// Generator samples order goals from a catalog. It is safe for concurrent use.
type Generator struct {
	catalog *menux.Catalog

	mu    sync.Mutex
	faker *gofakeit.Faker
}

// New builds a generator. A zero seed draws a random one.
func New(cat *menux.Catalog, seed uint64) *Generator {
	return &Generator{
		catalog: cat,
		faker:   gofakeit.New(seed),
	}
}

func (g *Generator) Generate(level Level) ([]orderx.Item, error) {
	if g == nil || g.catalog.Len() == 0 {
		return nil, menux.ErrEmptyCatalog
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var items []orderx.Item
	switch level {
	case LevelSimple:
		def := g.pickItem(g.catalog.Items())
		items = append(items, g.build(def, true, menux.ALaCarteChoice))
	case LevelMedium:
		meals := g.catalog.MealCapable()
		if len(meals) == 0 {
			return nil, ErrNoMealItems
		}
		items = append(items, g.build(g.pickItem(meals), false, menux.MealChoice))
	case LevelComplex:
		meals := g.catalog.MealCapable()
		if len(meals) == 0 {
			return nil, ErrNoMealItems
		}
		items = append(items, g.build(g.pickItem(meals), false, menux.MealChoice))
		all := g.catalog.Items()
		for extra := g.faker.IntRange(1, 2); extra > 0; extra-- {
			items = append(items, g.build(g.pickItem(all), false, ""))
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownLevel, level)
	}

	if err := Validate(g.catalog, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (g *Generator) pickItem(defs []menux.ItemDef) menux.ItemDef {
	return defs[g.faker.IntRange(0, len(defs)-1)]
}

// build fills option groups in two passes: unconditional groups first, then
// conditional ones whose trigger was set to the expected value.
func (g *Generator) build(def menux.ItemDef, simple bool, mealChoice string) orderx.Item {
	item := orderx.Item{
		ItemName:     def.Name,
		OptionKeys:   []string{},
		OptionValues: [][]string{},
	}
	selected := make(map[string]string, len(def.Options))
	add := func(opt menux.OptionDef, values []string) {
		item.OptionKeys = append(item.OptionKeys, opt.Name)
		item.OptionValues = append(item.OptionValues, values)
		if len(values) > 0 {
			selected[opt.Name] = values[0]
		}
	}

	for _, opt := range def.Options {
		if opt.Conditional() || (simple && !opt.Required) {
			continue
		}
		if opt.Name == menux.MealOptionKey && mealChoice != "" && opt.HasChoice(mealChoice) {
			add(opt, []string{mealChoice})
			continue
		}
		add(opt, g.pickValues(opt, simple))
	}

	for _, opt := range def.Options {
		if !opt.Conditional() {
			continue
		}
		trigger, ok := selected[opt.Condition.Option]
		if !ok || !strings.EqualFold(trigger, opt.Condition.Value) {
			continue
		}
		add(opt, g.pickValues(opt, simple))
	}

	return item
}

func (g *Generator) pickValues(opt menux.OptionDef, simple bool) []string {
	if simple && opt.Minimum == 0 {
		return []string{}
	}

	if opt.Name == menux.CustomizationsKey {
		picked := g.sample(opt.Choices, g.count(opt, simple))
		modifiers := opt.Modifiers
		if len(modifiers) == 0 {
			modifiers = []string{""}
		}
		for i, choice := range picked {
			picked[i] = strings.TrimSpace(g.faker.RandomString(modifiers) + " " + choice)
		}
		return picked
	}

	if simple && opt.DefaultChoice != "" {
		return []string{opt.DefaultChoice}
	}
	return g.sample(opt.Choices, g.count(opt, simple))
}

func (g *Generator) count(opt menux.OptionDef, simple bool) int {
	upper := min(opt.Maximum, maxSelections, len(opt.Choices))
	lower := min(opt.Minimum, upper)
	if simple {
		return lower
	}
	return g.faker.IntRange(lower, upper)
}

func (g *Generator) sample(choices []string, n int) []string {
	if n <= 0 {
		return []string{}
	}
	pool := make([]string, len(choices))
	copy(pool, choices)
	g.faker.ShuffleStrings(pool)
	return pool[:n]
}

// Validate checks every item against the menu rules: required groups present
// with a count inside [minimum, maximum] and conditional groups present only
// when their trigger holds.
func Validate(cat *menux.Catalog, items []orderx.Item) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: empty goal", ErrInvalidGoal)
	}
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidGoal, err)
		}
		def, err := cat.Find(it.ItemName)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidGoal, err)
		}

		values := make(map[string][]string, len(it.OptionKeys))
		for i, key := range it.OptionKeys {
			values[key] = it.OptionValues[i]
		}

		for _, opt := range def.Options {
			got, present := values[opt.Name]
			required := opt.Required
			if opt.Conditional() {
				trigger := values[opt.Condition.Option]
				required = len(trigger) > 0 && strings.EqualFold(trigger[0], opt.Condition.Value)
				if present != required {
					return fmt.Errorf("%w: %s/%s present=%t but condition holds=%t",
						ErrInvalidGoal, it.ItemName, opt.Name, present, required)
				}
			}
			if !required {
				continue
			}
			if !present {
				return fmt.Errorf("%w: %s is missing required %q", ErrInvalidGoal, it.ItemName, opt.Name)
			}
			if len(got) < opt.Minimum || len(got) > opt.Maximum {
				return fmt.Errorf("%w: %s/%s has %d selections, want [%d, %d]",
					ErrInvalidGoal, it.ItemName, opt.Name, len(got), opt.Minimum, opt.Maximum)
			}
		}
	}
	return nil
}
