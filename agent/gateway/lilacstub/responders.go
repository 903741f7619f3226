package lilacstub

import (
	"slices"
	"strings"

	orderx "github.com/tanpawarit/drivethru-sim/agent/order"
)

// EchoGoal puts the whole goal on the order screen at the first turn and
// closes the conversation on the second.
func EchoGoal() Responder {
	return func(t Turn) (string, []orderx.Item) {
		if t.Number == 1 {
			return "Got it, I have " + strings.Join(orderx.Names(t.Goal), " and ") +
				". Anything else?", t.Goal
		}
		return "Thanks! Please pull forward to the window.", t.Order
	}
}

// NeverComplete keeps the order empty and always asks the customer to repeat.
func NeverComplete() Responder {
	return func(Turn) (string, []orderx.Item) {
		return "Sorry, could you say that again?", nil
	}
}

// Swapped records the goal in reverse item order.
func Swapped() Responder {
	return func(t Turn) (string, []orderx.Item) {
		order := slices.Clone(t.Goal)
		slices.Reverse(order)
		if t.Number == 1 {
			return "Okay, that's all on your order. Anything else?", order
		}
		return "Thanks! Please pull forward to the window.", order
	}
}

// Script replies with lines in sequence and repeats the last one.
func Script(lines ...string) Responder {
	return func(t Turn) (string, []orderx.Item) {
		if len(lines) == 0 {
			return "", t.Order
		}
		i := min(t.Number, len(lines)) - 1
		return lines[i], t.Order
	}
}
