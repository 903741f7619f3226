package menu

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	MealOptionKey     = "meal option"
	MealChoice        = "meal"
	ALaCarteChoice    = "a la carte"
	CustomizationsKey = "customizations"
)

var (
	ErrEmptyCatalog = errors.New("menu catalog is empty")
	ErrUnknownItem  = errors.New("unknown menu item")
	ErrInvalidMenu  = errors.New("invalid menu definition")
)

//go:embed menu.yaml
var defaultMenu []byte

// Condition makes an option group required only when an earlier group was
// set to Value.
type Condition struct {
	Option string `yaml:"option" json:"option"`
	Value  string `yaml:"value" json:"value"`
}

type OptionDef struct {
	Name          string
	Required      bool
	Condition     *Condition
	Choices       []string
	Minimum       int
	Maximum       int
	DefaultChoice string
	Modifiers     []string
}

// Conditional reports whether the requirement depends on another group.
func (o OptionDef) Conditional() bool { return o.Condition != nil }

func (o OptionDef) HasChoice(label string) bool {
	return slices.ContainsFunc(o.Choices, func(c string) bool {
		return strings.EqualFold(c, label)
	})
}

type ItemDef struct {
	Name    string
	Options []OptionDef
}

func (d ItemDef) Option(name string) (OptionDef, bool) {
	for _, o := range d.Options {
		if o.Name == name {
			return o, true
		}
	}
	return OptionDef{}, false
}

// MealCapable reports whether the item can be bundled as a meal.
func (d ItemDef) MealCapable() bool {
	o, ok := d.Option(MealOptionKey)
	return ok && o.HasChoice(MealChoice)
}

type Catalog struct {
	items []ItemDef
	index map[string]int
}

var loadDefault = sync.OnceValues(func() (*Catalog, error) {
	return Parse(defaultMenu)
})

// Default returns the embedded menu.
func Default() (*Catalog, error) {
	return loadDefault()
}

func MustDefault() *Catalog {
	cat, err := Default()
	if err != nil {
		panic(err)
	}
	return cat
}

// Load reads a YAML or JSON menu file. An empty path returns the embedded menu.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read menu %s: %w", path, err)
	}
	cat, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse menu %s: %w", path, err)
	}
	return cat, nil
}

// Parse decodes a list of item definitions. JSON input works unchanged.
func Parse(raw []byte) (*Catalog, error) {
	var items []ItemDef
	if err := yaml.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMenu, err)
	}
	return New(items)
}

func New(items []ItemDef) (*Catalog, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCatalog
	}
	cat := &Catalog{
		items: make([]ItemDef, 0, len(items)),
		index: make(map[string]int, len(items)),
	}
	for _, it := range items {
		if err := validateItem(it); err != nil {
			return nil, err
		}
		key := strings.ToLower(strings.TrimSpace(it.Name))
		if _, dup := cat.index[key]; dup {
			return nil, fmt.Errorf("%w: duplicate item %q", ErrInvalidMenu, it.Name)
		}
		cat.index[key] = len(cat.items)
		cat.items = append(cat.items, it)
	}
	return cat, nil
}

func (c *Catalog) Items() []ItemDef {
	if c == nil {
		return nil
	}
	return slices.Clone(c.items)
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// Find looks an item up by name, ignoring case.
func (c *Catalog) Find(name string) (ItemDef, error) {
	if c == nil {
		return ItemDef{}, ErrEmptyCatalog
	}
	i, ok := c.index[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return ItemDef{}, fmt.Errorf("%w: %q", ErrUnknownItem, name)
	}
	return c.items[i], nil
}

func (c *Catalog) MealCapable() []ItemDef {
	if c == nil {
		return nil
	}
	var out []ItemDef
	for _, it := range c.items {
		if it.MealCapable() {
			out = append(out, it)
		}
	}
	return out
}

func validateItem(it ItemDef) error {
	if strings.TrimSpace(it.Name) == "" {
		return fmt.Errorf("%w: item without itemName", ErrInvalidMenu)
	}
	seen := make(map[string]OptionDef, len(it.Options))
	for _, o := range it.Options {
		if _, dup := seen[o.Name]; dup {
			return fmt.Errorf("%w: %s: duplicate option %q", ErrInvalidMenu, it.Name, o.Name)
		}
		if o.Minimum < 0 || o.Maximum < o.Minimum {
			return fmt.Errorf("%w: %s/%s: minimum %d maximum %d", ErrInvalidMenu, it.Name, o.Name, o.Minimum, o.Maximum)
		}
		if o.Minimum > len(o.Choices) {
			return fmt.Errorf("%w: %s/%s: minimum %d exceeds %d choices", ErrInvalidMenu, it.Name, o.Name, o.Minimum, len(o.Choices))
		}
		if o.DefaultChoice != "" && !o.HasChoice(o.DefaultChoice) {
			return fmt.Errorf("%w: %s/%s: default %q is not a choice", ErrInvalidMenu, it.Name, o.Name, o.DefaultChoice)
		}
		if o.Condition != nil {
			trigger, ok := seen[o.Condition.Option]
			if !ok {
				return fmt.Errorf("%w: %s/%s: condition references %q which is not defined above it",
					ErrInvalidMenu, it.Name, o.Name, o.Condition.Option)
			}
			if !trigger.HasChoice(o.Condition.Value) {
				return fmt.Errorf("%w: %s/%s: condition value %q is not a choice of %q",
					ErrInvalidMenu, it.Name, o.Name, o.Condition.Value, trigger.Name)
			}
		}
		seen[o.Name] = o
	}
	return nil
}
