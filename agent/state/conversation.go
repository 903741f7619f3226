package state

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	orderx "github.com/tanpawarit/drivethru-sim/agent/order"
)

var (
	ErrNilConversation     = errors.New("conversation is nil")
	ErrInvalidConversation = errors.New("conversation invariant violated")
)

type State string

const (
	StateGreet    State = "GREET"
	StateQuestion State = "QUESTION"
	StateOrder    State = "ORDER"
	StateClarify  State = "CLARIFY"
	StatePreDone  State = "PRE-DONE"
	StateDone     State = "DONE"
)

var States = []State{StateGreet, StateQuestion, StateOrder, StateClarify, StatePreDone, StateDone}

func (s State) Valid() bool {
	return slices.Contains(States, s)
}

// ParseState uppercases a state name. Anything that is not exactly a known
// state after trimming whitespace maps to DONE with ok=false.
func ParseState(raw string) (State, bool) {
	s := State(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return StateDone, false
	}
	return s, true
}

const (
	RoleCustomer = "customer"
	RoleStaff    = "staff"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Style is the customer's manner, fixed for a whole run.
type Style struct {
	Emotion string `json:"emotion"`
	Tone    string `json:"tone"`
	Brevity string `json:"brevity"`
}

// PartialItem is the working reconstruction of one item under discussion.
type PartialItem struct {
	Name     string   `json:"name"`
	MealType string   `json:"meal_type,omitempty"`
	Options  []string `json:"options,omitempty"`
}

func (p PartialItem) String() string {
	var b strings.Builder
	b.WriteString(p.Name)
	if p.MealType != "" {
		b.WriteString(" [" + p.MealType + "]")
	}
	if len(p.Options) > 0 {
		b.WriteString(" with " + strings.Join(p.Options, ", "))
	}
	return b.String()
}

// Conversation is the per-run context owned by the engine.
type Conversation struct {
	RunID            string        `json:"run_id"`
	OrderGoal        []orderx.Item `json:"order_goal"`
	CurrentItem      *orderx.Item  `json:"current_item,omitempty"`
	ItemsInProgress  []PartialItem `json:"items_in_progress"`
	OrderedItems     []orderx.Item `json:"ordered_items"`
	PendingQuestions []string      `json:"pending_questions"`
	ChatHistory      []Message     `json:"chat_history"`
	LastAgentMessage string        `json:"last_agent_message"`
	LastNeedsReply   bool          `json:"last_needs_reply"`
	AgentOrder       []orderx.Item `json:"agent_order,omitempty"`
	Correction       string        `json:"correction,omitempty"`
	Style            Style         `json:"style"`
	CustomerName     string        `json:"customer_name"`
	QuestionTopic    string        `json:"question_topic"`
	total            int

	// goal is the untouched target; goalSlots and orderedSlots index it
	// in step with OrderGoal and OrderedItems.
	goal         []orderx.Item
	goalSlots    []int
	orderedSlots []int
}

// NewConversation copies goal so the caller's slice stays untouched.
func NewConversation(runID string, goal []orderx.Item, style Style, customerName string) *Conversation {
	c := &Conversation{
		RunID:            runID,
		OrderGoal:        orderx.CloneAll(goal),
		ItemsInProgress:  []PartialItem{},
		OrderedItems:     []orderx.Item{},
		PendingQuestions: []string{},
		ChatHistory:      []Message{},
		Style:            style,
		CustomerName:     customerName,
		total:            len(goal),
		goal:             orderx.CloneAll(goal),
		goalSlots:        make([]int, len(goal)),
		orderedSlots:     []int{},
	}
	for i := range c.goalSlots {
		c.goalSlots[i] = i
	}
	c.promote()
	return c
}

func (c *Conversation) promote() {
	c.CurrentItem = nil
	if len(c.OrderGoal) > 0 {
		next := c.OrderGoal[0].Clone()
		c.CurrentItem = &next
	}
}

func (c *Conversation) RecordExchange(customer, staff string) {
	c.ChatHistory = append(c.ChatHistory,
		Message{Role: RoleCustomer, Content: customer},
		Message{Role: RoleStaff, Content: staff},
	)
	c.LastAgentMessage = staff
}

// CompleteCurrent moves the current item from the goal to the ordered list
// and promotes the next goal entry.
func (c *Conversation) CompleteCurrent() (orderx.Item, bool) {
	if c.CurrentItem == nil || len(c.OrderGoal) == 0 {
		return orderx.Item{}, false
	}
	done := c.OrderGoal[0]
	c.OrderGoal = c.OrderGoal[1:]
	c.OrderedItems = append(c.OrderedItems, done)
	if len(c.goalSlots) > 0 {
		c.orderedSlots = append(c.orderedSlots, c.goalSlots[0])
		c.goalSlots = c.goalSlots[1:]
	}
	c.ItemsInProgress = []PartialItem{}
	c.promote()
	return done, true
}

// AddPendingQuestion reports whether the question was newly added.
func (c *Conversation) AddPendingQuestion(q string) bool {
	q = strings.TrimSpace(q)
	if q == "" || slices.Contains(c.PendingQuestions, q) {
		return false
	}
	c.PendingQuestions = append(c.PendingQuestions, q)
	return true
}

func (c *Conversation) ResolveQuestion(q string) {
	c.PendingQuestions = slices.DeleteFunc(c.PendingQuestions, func(p string) bool {
		return p == q
	})
}

func (c *Conversation) ReplaceProgress(items []PartialItem) {
	if items == nil {
		items = []PartialItem{}
	}
	c.ItemsInProgress = items
}

func (c *Conversation) Remaining() int { return len(c.OrderGoal) }

func (c *Conversation) Total() int { return c.total }

// Transcript renders the chat history one line per message.
func (c *Conversation) Transcript() string {
	var b strings.Builder
	for _, m := range c.ChatHistory {
		b.WriteString(Speaker(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	return b.String()
}

// Speaker is the transcript label for a message role.
func Speaker(role string) string {
	switch role {
	case RoleCustomer:
		return "Customer"
	case RoleStaff:
		return "Staff"
	default:
		return role
	}
}

func (c *Conversation) Validate() error {
	if c == nil {
		return ErrNilConversation
	}
	if got := len(c.OrderGoal) + len(c.OrderedItems); got != c.total {
		return fmt.Errorf("%w: %d remaining + %d ordered != %d total",
			ErrInvalidConversation, len(c.OrderGoal), len(c.OrderedItems), c.total)
	}
	if err := c.checkSlots(); err != nil {
		return err
	}
	if len(c.OrderGoal) == 0 {
		if c.CurrentItem != nil {
			return fmt.Errorf("%w: current item set with empty goal", ErrInvalidConversation)
		}
		return nil
	}
	if c.CurrentItem == nil || !c.CurrentItem.Equal(c.OrderGoal[0]) {
		return fmt.Errorf("%w: current item is not the head of the goal", ErrInvalidConversation)
	}
	return nil
}

// checkSlots rejects an item that sits in both lists, or an entry that no
// longer matches the goal item it was taken from.
func (c *Conversation) checkSlots() error {
	if len(c.goalSlots) != len(c.OrderGoal) || len(c.orderedSlots) != len(c.OrderedItems) {
		return fmt.Errorf("%w: goal and ordered lists changed outside CompleteCurrent", ErrInvalidConversation)
	}
	for i, slot := range c.goalSlots {
		if slices.Contains(c.orderedSlots, slot) {
			return fmt.Errorf("%w: goal item %d is both remaining and ordered", ErrInvalidConversation, slot)
		}
		if !c.OrderGoal[i].Equal(c.goal[slot]) {
			return fmt.Errorf("%w: remaining item %d differs from goal item %d", ErrInvalidConversation, i, slot)
		}
	}
	for i, slot := range c.orderedSlots {
		if !c.OrderedItems[i].Equal(c.goal[slot]) {
			return fmt.Errorf("%w: ordered item %d differs from goal item %d", ErrInvalidConversation, i, slot)
		}
	}
	return nil
}
