package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderx "github.com/tanpawarit/drivethru-sim/agent/order"
)

func classicALaCarte() orderx.Item {
	return orderx.Item{
		ItemName:     "Classic Hot Dog",
		OptionKeys:   []string{"meal option"},
		OptionValues: [][]string{{"a la carte"}},
	}
}

func friesLarge() orderx.Item {
	return orderx.Item{
		ItemName:     "French Fries",
		OptionKeys:   []string{"size", "seasoning"},
		OptionValues: [][]string{{"large"}, {"cajun", "sea salt"}},
	}
}

func TestCompareMatch(t *testing.T) {
	t.Parallel()

	res := Compare([]orderx.Item{classicALaCarte()}, []orderx.Item{classicALaCarte()})
	assert.True(t, res.Match)
	assert.Equal(t, "order verified: final order matches goal", res.String())
}

func TestCompareIgnoresValueOrderAndEmptyOptions(t *testing.T) {
	t.Parallel()

	final := orderx.Item{
		ItemName:     "French Fries",
		OptionKeys:   []string{"seasoning", "size", "dipping sauce"},
		OptionValues: [][]string{{"sea salt", "cajun"}, {"large"}, {}},
	}
	res := Compare([]orderx.Item{friesLarge()}, []orderx.Item{final})
	assert.True(t, res.Match, res.Diff)
}

func TestCompareLengthMismatch(t *testing.T) {
	t.Parallel()

	res := Compare([]orderx.Item{classicALaCarte(), friesLarge()}, []orderx.Item{classicALaCarte()})
	require.False(t, res.Match)
	assert.Equal(t, FieldLength, res.Field)
	assert.Contains(t, res.Reason, "goal has 2 items, final order has 1")
	assert.NotEmpty(t, res.Diff)
}

func TestCompareIsPositionSensitive(t *testing.T) {
	t.Parallel()

	goal := []orderx.Item{classicALaCarte(), friesLarge()}
	swapped := []orderx.Item{friesLarge(), classicALaCarte()}

	res := Compare(goal, swapped)
	require.False(t, res.Match)
	assert.Equal(t, FieldItemName, res.Field)
	assert.Equal(t, 0, res.Index)
	require.NotNil(t, res.Goal)
	require.NotNil(t, res.Final)
	assert.Equal(t, "Classic Hot Dog", res.Goal.ItemName)
	assert.Equal(t, "French Fries", res.Final.ItemName)
}

func TestCompareOptionMismatch(t *testing.T) {
	t.Parallel()

	final := classicALaCarte()
	final.OptionValues = [][]string{{"meal"}}

	res := Compare([]orderx.Item{classicALaCarte()}, []orderx.Item{final})
	require.False(t, res.Match)
	assert.Equal(t, FieldOptions, res.Field)
	assert.Contains(t, res.Diff, "a la carte")
	assert.Contains(t, res.String(), "options differ")
}
