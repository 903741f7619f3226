package enginenode

import (
	"context"
	"fmt"
	"slices"
	"strings"

	contractx "github.com/tanpawarit/drivethru-sim/agent/contract"
	orderx "github.com/tanpawarit/drivethru-sim/agent/order"
	statex "github.com/tanpawarit/drivethru-sim/agent/state"
)

// SendTurn delivers the utterance. Gateway errors end the run.
func SendTurn(ctx context.Context, in *TurnState, gateway contractx.Gateway) (*TurnState, error) {
	if in == nil {
		return nil, nilState()
	}
	reply, err := gateway.Chat(ctx, in.OrderID, in.Utterance)
	if err != nil {
		return nil, err
	}
	in.Reply = strings.TrimSpace(reply.LastMessage())
	in.AgentOrder = reply.Order
	return in, nil
}

func RecordExchange(in *TurnState) (*TurnState, error) {
	if in == nil {
		return nil, nilState()
	}
	in.Conv.RecordExchange(in.Utterance, in.Reply)
	in.Conv.AgentOrder = orderx.CloneAll(in.AgentOrder)
	in.Conv.Correction = CorrectionNote(in.Conv)
	return in, nil
}

// CorrectionNote asks the staff to fix the first order-screen line that
// names an item the customer never wanted. It is empty when the screen
// only holds wanted items.
func CorrectionNote(conv *statex.Conversation) string {
	wanted := append(orderx.Names(conv.OrderedItems), orderx.Names(conv.OrderGoal)...)
	for _, line := range conv.AgentOrder {
		if slices.ContainsFunc(wanted, func(name string) bool {
			return strings.EqualFold(name, line.ItemName)
		}) {
			continue
		}
		if conv.CurrentItem != nil {
			return fmt.Sprintf("Sorry, I meant to order %s instead of %s", conv.CurrentItem.ItemName, line.ItemName)
		}
		return fmt.Sprintf("Sorry, I didn't order %s, please take it off", line.ItemName)
	}
	return ""
}
