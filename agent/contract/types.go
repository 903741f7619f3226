package contract

import (
	orderx "github.com/tanpawarit/drivethru-sim/agent/order"
	statex "github.com/tanpawarit/drivethru-sim/agent/state"
)

type Role string

const (
	RoleJudge     Role = "judge"
	RolePlanner   Role = "planner"
	RoleGenerator Role = "generator"
	RoleExtractor Role = "extractor"
)

type Question string

const (
	QuestionNeedsReply         Question = "needs_reply"
	QuestionAnswered           Question = "question_answered"
	QuestionItemComplete       Question = "item_complete"
	QuestionConversationEnding Question = "conversation_ending"
	QuestionUtteranceValid     Question = "utterance_valid"
)

var Questions = []Question{
	QuestionNeedsReply,
	QuestionAnswered,
	QuestionItemComplete,
	QuestionConversationEnding,
	QuestionUtteranceValid,
}

// ClassifyInput carries whatever a question needs; unused fields stay empty.
type ClassifyInput struct {
	Message         string               `json:"message"`
	Question        string               `json:"question,omitempty"`
	CurrentItem     *orderx.Item         `json:"current_item,omitempty"`
	ItemsInProgress []statex.PartialItem `json:"items_in_progress,omitempty"`
	OrderGoal       []orderx.Item        `json:"order_goal,omitempty"`
	History         string               `json:"history,omitempty"`
}

type StateRequest struct {
	State            statex.State  `json:"current_state"`
	OrderGoal        []orderx.Item `json:"remaining_items"`
	CurrentItem      *orderx.Item  `json:"current_item"`
	OrderedItems     []orderx.Item `json:"ordered_items"`
	PendingQuestions []string      `json:"pending_questions"`
	LastAgentMessage string        `json:"last_staff_message"`
}

type GenerateRequest struct {
	State        statex.State
	Style        statex.Style
	CustomerName string
	Context      string
	Instruction  string
	Query        string
	Constraint   string
}

type ExtractRequest struct {
	History      string               `json:"full_conversation"`
	LastCustomer string               `json:"latest_customer"`
	LastStaff    string               `json:"latest_staff"`
	CurrentItem  *orderx.Item         `json:"item_being_ordered,omitempty"`
	Previous     []statex.PartialItem `json:"previous_reconstruction,omitempty"`
}

// ItemUpdates is the extractor's view of the item under discussion.
type ItemUpdates struct {
	NewItem  string         `json:"new_item"`
	MealType string         `json:"meal_type"`
	Options  []OptionUpdate `json:"options"`
}

type OptionUpdate struct {
	Value string `json:"value"`
	Type  string `json:"type"`
}

// Empty reports whether the extractor found nothing.
func (u ItemUpdates) Empty() bool {
	return u.NewItem == "" && u.MealType == "" && len(u.Options) == 0
}

type ChatReply struct {
	Messages []statex.Message `json:"messages"`
	Order    []orderx.Item    `json:"order"`
}

// LastMessage is the latest agent utterance, or empty when there is none.
func (r ChatReply) LastMessage() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[len(r.Messages)-1].Content
}
