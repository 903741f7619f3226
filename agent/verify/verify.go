package verify

import (
	"fmt"

	"github.com/google/go-cmp/cmp"

	orderx "github.com/tanpawarit/drivethru-sim/agent/order"
)

type Field string

const (
	FieldLength   Field = "length"
	FieldItemName Field = "itemName"
	FieldOptions  Field = "options"
)

// Result is a verdict plus the first mismatch, if any.
type Result struct {
	Match  bool         `json:"match"`
	Index  int          `json:"index"`
	Field  Field        `json:"field,omitempty"`
	Goal   *orderx.Item `json:"goal,omitempty"`
	Final  *orderx.Item `json:"final,omitempty"`
	Reason string       `json:"reason,omitempty"`
	Diff   string       `json:"diff,omitempty"`
}

func (r Result) String() string {
	if r.Match {
		return "order verified: final order matches goal"
	}
	return "order mismatch: " + r.Reason
}

// Compare checks the final order against the goal position by position.
// Swapped items fail even when the multisets agree.
func Compare(goal, final []orderx.Item) Result {
	if len(goal) != len(final) {
		return Result{
			Index:  min(len(goal), len(final)),
			Field:  FieldLength,
			Reason: fmt.Sprintf("goal has %d items, final order has %d", len(goal), len(final)),
			Diff:   cmp.Diff(orderx.Names(goal), orderx.Names(final)),
		}
	}

	for i := range goal {
		g, f := goal[i], final[i]
		if g.ItemName != f.ItemName {
			return mismatch(i, FieldItemName, g, f,
				fmt.Sprintf("item %d: expected %q, got %q", i, g.ItemName, f.ItemName),
				cmp.Diff(g.ItemName, f.ItemName))
		}
		if !g.Equal(f) {
			return mismatch(i, FieldOptions, g, f,
				fmt.Sprintf("item %d (%s): options differ", i, g.ItemName),
				cmp.Diff(g.Options(), f.Options()))
		}
	}

	return Result{Match: true, Index: -1}
}

func mismatch(i int, field Field, g, f orderx.Item, reason, diff string) Result {
	return Result{
		Index:  i,
		Field:  field,
		Goal:   &g,
		Final:  &f,
		Reason: reason,
		Diff:   diff,
	}
}
