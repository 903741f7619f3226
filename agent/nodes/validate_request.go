package enginenode

import (
	"errors"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/drivethru-sim/agent/contract"
	orderx "github.com/tanpawarit/drivethru-sim/agent/order"
	statex "github.com/tanpawarit/drivethru-sim/agent/state"
)

var (
	ErrNoConversation = errors.New("conversation is missing")
	ErrNoOrderID      = errors.New("order id is empty")
	ErrInvalidState   = errors.New("conversation state is invalid")
)

// GraphInput is one turn of the conversation engine.
type GraphInput struct {
	Conversation *statex.Conversation
	State        statex.State
	OrderID      string
	Turn         int
}

type GraphOutput struct {
	Next      statex.State
	Utterance string
	Reply     string
	Completed []orderx.Item
}

// TurnState flows through every node of a turn.
type TurnState struct {
	Conv    *statex.Conversation
	State   statex.State
	OrderID string
	Turn    int

	Query      string
	Utterance  string
	Valid      bool
	Regenerate bool

	Reply      string
	AgentOrder []orderx.Item

	Completed []orderx.Item
	Next      statex.State
}

func ValidateRequest(in GraphInput) (*TurnState, error) {
	if in.Conversation == nil {
		return nil, ErrNoConversation
	}
	orderID := strings.TrimSpace(in.OrderID)
	if orderID == "" {
		return nil, ErrNoOrderID
	}
	if !in.State.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, in.State)
	}
	if err := in.Conversation.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrValidation, err)
	}

	return &TurnState{
		Conv:    in.Conversation,
		State:   in.State,
		OrderID: orderID,
		Turn:    in.Turn,
		Valid:   true,
	}, nil
}

func nilState() error {
	return fmt.Errorf("%w: turn state is nil", contractx.ErrValidation)
}
