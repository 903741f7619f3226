package order

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var ErrInvalidItem = errors.New("invalid order item")

// Item is one line of an order: the wire shape shared by goals and the
// remote agent's order screen.
type Item struct {
	ItemName     string     `json:"itemName"`
	OptionKeys   []string   `json:"optionKeys"`
	OptionValues [][]string `json:"optionValues"`
}

// Option is a single option group with its selected labels.
type Option struct {
	Key    string
	Values []string
}

func (it Item) Validate() error {
	if strings.TrimSpace(it.ItemName) == "" {
		return fmt.Errorf("%w: itemName is empty", ErrInvalidItem)
	}
	if len(it.OptionKeys) != len(it.OptionValues) {
		return fmt.Errorf("%w: %s has %d option keys but %d option values",
			ErrInvalidItem, it.ItemName, len(it.OptionKeys), len(it.OptionValues))
	}
	return nil
}

func (it Item) Clone() Item {
	out := Item{
		ItemName:   it.ItemName,
		OptionKeys: slices.Clone(it.OptionKeys),
	}
	if it.OptionValues != nil {
		out.OptionValues = make([][]string, len(it.OptionValues))
		for i, v := range it.OptionValues {
			out.OptionValues[i] = slices.Clone(v)
		}
	}
	return out
}

// CloneAll deep-copies an item list. A nil input stays nil.
func CloneAll(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}

// Options returns the canonical option view: empty-valued groups are dropped,
// each value list is ordered by SortKey and the groups are ordered by key.
func (it Item) Options() []Option {
	n := min(len(it.OptionKeys), len(it.OptionValues))
	out := make([]Option, 0, n)
	for i := 0; i < n; i++ {
		if len(it.OptionValues[i]) == 0 {
			continue
		}
		values := slices.Clone(it.OptionValues[i])
		slices.SortStableFunc(values, compareLabels)
		out = append(out, Option{Key: it.OptionKeys[i], Values: values})
	}
	slices.SortStableFunc(out, func(a, b Option) int {
		if c := strings.Compare(a.Key, b.Key); c != 0 {
			return c
		}
		return slices.Compare(a.Values, b.Values)
	})
	return out
}

// Equal reports whether two items denote the same order line.
func (it Item) Equal(other Item) bool {
	if it.ItemName != other.ItemName {
		return false
	}
	a, b := it.Options(), other.Options()
	return slices.EqualFunc(a, b, func(x, y Option) bool {
		return x.Key == y.Key && slices.Equal(x.Values, y.Values)
	})
}

func (it Item) String() string {
	var b strings.Builder
	b.WriteString(it.ItemName)
	opts := make([]string, 0, len(it.OptionKeys))
	for i, key := range it.OptionKeys {
		if i >= len(it.OptionValues) || len(it.OptionValues[i]) == 0 {
			continue
		}
		opts = append(opts, key+": "+strings.Join(it.OptionValues[i], ", "))
	}
	if len(opts) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(opts, "; "))
		b.WriteString(")")
	}
	return b.String()
}

// SortKey is the last whitespace-separated token of a label, so
// "extra ketchup" and "no ketchup" order next to each other.
func SortKey(label string) string {
	fields := strings.Fields(label)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// compareLabels breaks SortKey ties on the full label so the order never
// depends on the input order.
func compareLabels(a, b string) int {
	if c := strings.Compare(SortKey(a), SortKey(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// Names lists the item names in order.
func Names(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ItemName
	}
	return out
}
