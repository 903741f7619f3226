package state

import (
	"errors"
	"strings"
	"testing"

	orderx "github.com/tanpawarit/drivethru-sim/agent/order"
)

func twoItemGoal() []orderx.Item {
	return []orderx.Item{
		{ItemName: "Classic Hot Dog", OptionKeys: []string{"meal option"}, OptionValues: [][]string{{"a la carte"}}},
		{ItemName: "French Fries", OptionKeys: []string{"size"}, OptionValues: [][]string{{"large"}}},
	}
}

func TestNewConversationCopiesGoal(t *testing.T) {
	t.Parallel()

	goal := twoItemGoal()
	conv := NewConversation("run-1", goal, Style{Emotion: "tired"}, "Sam")

	conv.OrderGoal[0].OptionValues[0][0] = "meal"
	if goal[0].OptionValues[0][0] != "a la carte" {
		t.Fatal("conversation must not share storage with the caller's goal")
	}
	if conv.CurrentItem == nil || conv.CurrentItem.ItemName != "Classic Hot Dog" {
		t.Fatalf("CurrentItem = %+v, want head of goal", conv.CurrentItem)
	}
	if conv.Total() != 2 {
		t.Fatalf("Total() = %d, want 2", conv.Total())
	}
}

func TestCompleteCurrentPromotesNext(t *testing.T) {
	t.Parallel()

	conv := NewConversation("run-1", twoItemGoal(), Style{}, "Sam")
	conv.ReplaceProgress([]PartialItem{{Name: "Classic Hot Dog", MealType: "a la carte"}})

	done, ok := conv.CompleteCurrent()
	if !ok || done.ItemName != "Classic Hot Dog" {
		t.Fatalf("CompleteCurrent() = %v, %t", done, ok)
	}
	if len(conv.ItemsInProgress) != 0 {
		t.Fatalf("progress not cleared: %+v", conv.ItemsInProgress)
	}
	if conv.CurrentItem == nil || conv.CurrentItem.ItemName != "French Fries" {
		t.Fatalf("CurrentItem = %+v, want French Fries", conv.CurrentItem)
	}
	if err := conv.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if _, ok := conv.CompleteCurrent(); !ok {
		t.Fatal("expected second completion")
	}
	if conv.CurrentItem != nil || conv.Remaining() != 0 || len(conv.OrderedItems) != 2 {
		t.Fatalf("unexpected final state: %+v", conv)
	}
	if _, ok := conv.CompleteCurrent(); ok {
		t.Fatal("completion with empty goal must be a no-op")
	}
	if err := conv.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateDetectsDrift(t *testing.T) {
	t.Parallel()

	conv := NewConversation("run-1", twoItemGoal(), Style{}, "Sam")
	conv.OrderedItems = append(conv.OrderedItems, conv.OrderGoal[0])
	if err := conv.Validate(); err == nil {
		t.Fatal("expected count invariant violation")
	}

	conv = NewConversation("run-1", twoItemGoal(), Style{}, "Sam")
	other := conv.OrderGoal[1]
	conv.CurrentItem = &other
	if err := conv.Validate(); err == nil {
		t.Fatal("expected head invariant violation")
	}
}

func TestValidateRejectsItemInBothLists(t *testing.T) {
	t.Parallel()

	conv := NewConversation("run-1", twoItemGoal(), Style{}, "Sam")
	if _, ok := conv.CompleteCurrent(); !ok {
		t.Fatal("expected completion")
	}
	if err := conv.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	// Same counts, but the ordered hot dog also shows up as remaining.
	conv.OrderGoal[0] = conv.OrderedItems[0].Clone()
	hotDog := conv.OrderGoal[0]
	conv.CurrentItem = &hotDog
	if err := conv.Validate(); !errors.Is(err, ErrInvalidConversation) {
		t.Fatalf("Validate() error = %v, want ErrInvalidConversation", err)
	}

	conv = NewConversation("run-1", twoItemGoal(), Style{}, "Sam")
	conv.CompleteCurrent()
	conv.goalSlots[0] = conv.orderedSlots[0]
	if err := conv.Validate(); !errors.Is(err, ErrInvalidConversation) {
		t.Fatalf("Validate() error = %v, want ErrInvalidConversation", err)
	}
}

func TestPendingQuestionsAreASet(t *testing.T) {
	t.Parallel()

	conv := NewConversation("run-1", twoItemGoal(), Style{}, "Sam")
	if !conv.AddPendingQuestion("Would you like a drink?") {
		t.Fatal("first add should succeed")
	}
	if conv.AddPendingQuestion("Would you like a drink?") {
		t.Fatal("duplicate add should be ignored")
	}
	if conv.AddPendingQuestion("   ") {
		t.Fatal("blank question should be ignored")
	}
	conv.AddPendingQuestion("What size?")
	conv.ResolveQuestion("Would you like a drink?")

	if len(conv.PendingQuestions) != 1 || conv.PendingQuestions[0] != "What size?" {
		t.Fatalf("PendingQuestions = %v", conv.PendingQuestions)
	}
}

func TestTranscript(t *testing.T) {
	t.Parallel()

	conv := NewConversation("run-1", twoItemGoal(), Style{}, "Sam")
	conv.RecordExchange("Hi there.", "Welcome to Ben Franks, what can I get you?")

	got := conv.Transcript()
	want := "Customer: Hi there.\nStaff: Welcome to Ben Franks, what can I get you?\n"
	if got != want {
		t.Fatalf("Transcript() = %q, want %q", got, want)
	}
	if conv.LastAgentMessage != "Welcome to Ben Franks, what can I get you?" {
		t.Fatalf("LastAgentMessage = %q", conv.LastAgentMessage)
	}
}

func TestParseState(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		want State
		ok   bool
	}{
		"order":      {StateOrder, true},
		" CLARIFY\n": {StateClarify, true},
		"pre-done":   {StatePreDone, true},
		"done":       {StateDone, true},
		`"QUESTION"`: {StateDone, false},
		"order.":     {StateDone, false},
		"PAY":        {StateDone, false},
		"":           {StateDone, false},
	}
	for in, tc := range cases {
		got, ok := ParseState(in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseState(%q) = %s, %t; want %s, %t", in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestPartialItemString(t *testing.T) {
	t.Parallel()

	p := PartialItem{Name: "Classic Hot Dog", MealType: "meal", Options: []string{"Coke", "French Fries"}}
	if got := p.String(); !strings.Contains(got, "[meal]") || !strings.Contains(got, "Coke, French Fries") {
		t.Fatalf("String() = %q", got)
	}
}
