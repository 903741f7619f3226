package contract

import (
	"context"

	orderx "github.com/tanpawarit/drivethru-sim/agent/order"
)

// Judge answers yes/no questions about the dialogue.
type Judge interface {
	Classify(ctx context.Context, q Question, in ClassifyInput) (bool, error)
}

// StatePicker proposes the next conversation state as free text.
type StatePicker interface {
	PickState(ctx context.Context, req StateRequest) (string, error)
}

// Generator writes the next customer utterance.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Extractor rebuilds the item under discussion from the transcript.
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) (ItemUpdates, error)
	Match(ctx context.Context, detected string, candidates []string) (string, error)
}

type Oracle interface {
	Judge() Judge
	Planner() StatePicker
	Generator() Generator
	Extractor() Extractor
}

// Gateway is the remote order-taking agent under test.
type Gateway interface {
	Start(ctx context.Context) (string, error)
	Chat(ctx context.Context, orderID, input string) (ChatReply, error)
	Order(ctx context.Context, orderID string) ([]orderx.Item, error)
}
