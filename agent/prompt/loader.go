package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/drivethru-sim/agent/contract"
)

var (
	//go:embed template/needs_reply.txt
	needsReplyRaw string

	//go:embed template/question_answered.txt
	questionAnsweredRaw string

	//go:embed template/item_complete.txt
	itemCompleteRaw string

	//go:embed template/conversation_ending.txt
	conversationEndingRaw string

	//go:embed template/utterance_valid.txt
	utteranceValidRaw string

	//go:embed template/next_state.txt
	nextStateRaw string

	//go:embed template/extract_items.txt
	extractItemsRaw string

	//go:embed template/match_item.txt
	matchItemRaw string

	//go:embed template/customer.txt
	customerRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Judges    map[contractx.Question]string
	NextState string
	Extract   string
	Match     string
	Customer  string
}

func LoadPromptSet() PromptSet {
	return PromptSet{
		Judges: map[contractx.Question]string{
			contractx.QuestionNeedsReply:         strings.TrimSpace(needsReplyRaw),
			contractx.QuestionAnswered:           strings.TrimSpace(questionAnsweredRaw),
			contractx.QuestionItemComplete:       strings.TrimSpace(itemCompleteRaw),
			contractx.QuestionConversationEnding: strings.TrimSpace(conversationEndingRaw),
			contractx.QuestionUtteranceValid:     strings.TrimSpace(utteranceValidRaw),
		},
		NextState: strings.TrimSpace(nextStateRaw),
		Extract:   strings.TrimSpace(extractItemsRaw),
		Match:     strings.TrimSpace(matchItemRaw),
		Customer:  strings.TrimSpace(customerRaw),
	}
}

// Validate reports the first empty prompt.
func (p PromptSet) Validate() error {
	for _, q := range contractx.Questions {
		if strings.TrimSpace(p.Judges[q]) == "" {
			return fmt.Errorf("%w: judge prompt %s", contractx.ErrPromptMissing, q)
		}
	}
	named := map[string]string{
		"next_state": p.NextState,
		"extract":    p.Extract,
		"match":      p.Match,
		"customer":   p.Customer,
	}
	for name, text := range named {
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("%w: %s", contractx.ErrPromptMissing, name)
		}
	}
	return nil
}
