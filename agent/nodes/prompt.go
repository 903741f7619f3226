package enginenode

import (
	"fmt"
	"strings"

	orderx "github.com/tanpawarit/drivethru-sim/agent/order"
	statex "github.com/tanpawarit/drivethru-sim/agent/state"
)

const (
	FallbackOrder = "I'd like to order that, please."
	FallbackReply = "Yes, please."
)

// Generation is the per-state prompt material for the customer utterance.
type Generation struct {
	Context     string
	Instruction string
	Query       string
}

func BuildGeneration(conv *statex.Conversation, state statex.State) Generation {
	return Generation{
		Context:     describeContext(conv),
		Instruction: instructionFor(conv, state),
		Query:       queryFor(state),
	}
}

func describeContext(conv *statex.Conversation) string {
	var b strings.Builder

	b.WriteString("Your full order list:\n")
	writeItems(&b, append(orderx.CloneAll(conv.OrderedItems), conv.OrderGoal...))

	b.WriteString("\nItems you still have to order:\n")
	writeItems(&b, conv.OrderGoal)

	if conv.CurrentItem != nil {
		fmt.Fprintf(&b, "\nItem you are ordering now: %s\n", conv.CurrentItem)
	}
	if len(conv.ItemsInProgress) > 0 {
		b.WriteString("What you have said so far about it:\n")
		for _, p := range conv.ItemsInProgress {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}

	b.WriteString("\nItems already ordered:\n")
	writeItems(&b, conv.OrderedItems)

	if len(conv.PendingQuestions) > 0 {
		b.WriteString("\nStaff questions you have not answered yet:\n")
		for _, q := range conv.PendingQuestions {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}

	if history := conv.Transcript(); history != "" {
		b.WriteString("\nConversation so far:\n")
		b.WriteString(history)
	}
	return b.String()
}

func writeItems(b *strings.Builder, items []orderx.Item) {
	if len(items) == 0 {
		b.WriteString("- none\n")
		return
	}
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
}

func instructionFor(conv *statex.Conversation, state statex.State) string {
	var out string
	switch state {
	case statex.StateGreet:
		out = "Greet the staff briefly. Do not order anything yet."
	case statex.StateQuestion:
		topic := conv.QuestionTopic
		if topic == "" {
			topic = "menu items"
		}
		out = fmt.Sprintf("Ask the staff one short question about their %s. Do not order anything in this message.", topic)
	case statex.StateOrder:
		if conv.CurrentItem == nil {
			out = "You have ordered everything. Tell the staff that is all."
			break
		}
		out = fmt.Sprintf("Order this item: %s. Say the item name and only some of its options if there are many.", conv.CurrentItem)
	case statex.StateClarify:
		out = fmt.Sprintf("Answer the staff's last message: %q. Use only details from your order list.", conv.LastAgentMessage)
	case statex.StatePreDone:
		out = "You have ordered everything on your list. Confirm the order is complete and say that is all."
	default:
		out = "Thank the staff and end the conversation."
	}

	if conv.Correction != "" && (state == statex.StateOrder || state == statex.StateClarify) {
		out += "\nThe order screen shows something you did not order. Tell the staff: " + conv.Correction
	}
	return out
}

func queryFor(state statex.State) string {
	switch state {
	case statex.StateOrder:
		return "What do you say to order it?"
	case statex.StateClarify:
		return "How do you answer the staff?"
	case statex.StateQuestion:
		return "What do you ask?"
	case statex.StateGreet:
		return "What do you say when the staff greets you?"
	default:
		return "What do you say to wrap up?"
	}
}

// fallbackUtterance is used when generation fails.
func fallbackUtterance(query string) string {
	if strings.Contains(strings.ToLower(query), "order") {
		return FallbackOrder
	}
	return FallbackReply
}
