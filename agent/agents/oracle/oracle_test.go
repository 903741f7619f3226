package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/drivethru-sim/agent/contract"
	orderx "github.com/tanpawarit/drivethru-sim/agent/order"
	promptx "github.com/tanpawarit/drivethru-sim/agent/prompt"
	statex "github.com/tanpawarit/drivethru-sim/agent/state"
	openrouterx "github.com/tanpawarit/drivethru-sim/pkg/openrouter"
)

type fakeChatModel struct {
	mu     sync.Mutex
	reply  func(input []*schema.Message) (string, error)
	inputs [][]*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, input)
	f.mu.Unlock()

	text, err := f.reply(input)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(text, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (f *fakeChatModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return f, nil
}

func (f *fakeChatModel) last() []*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inputs) == 0 {
		return nil
	}
	return f.inputs[len(f.inputs)-1]
}

func answer(text string) *fakeChatModel {
	return &fakeChatModel{reply: func([]*schema.Message) (string, error) { return text, nil }}
}

func hotDog() *orderx.Item {
	return &orderx.Item{
		ItemName:     "Classic Hot Dog",
		OptionKeys:   []string{"meal option"},
		OptionValues: [][]string{{"a la carte"}},
	}
}

func TestJudgeNormalisesAnswers(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"true":     true,
		" TRUE\n":  true,
		"True":     true,
		"false":    false,
		"yes":      false,
		"true.":    false,
		"":         false,
		"probably": false,
	}
	for raw, want := range cases {
		judge, err := newJudge(context.Background(), answer(raw), promptx.LoadPromptSet().Judges)
		if err != nil {
			t.Fatalf("newJudge() error = %v", err)
		}
		got, err := judge.Classify(context.Background(), contractx.QuestionNeedsReply, contractx.ClassifyInput{
			Message: "What size drink would you like?",
		})
		if err != nil {
			t.Fatalf("Classify() error = %v", err)
		}
		if got != want {
			t.Fatalf("Classify() with answer %q = %t, want %t", raw, got, want)
		}
	}
}

func TestJudgeUsesQuestionPrompt(t *testing.T) {
	t.Parallel()

	fake := answer("true")
	prompts := promptx.LoadPromptSet()
	judge, err := newJudge(context.Background(), fake, prompts.Judges)
	if err != nil {
		t.Fatalf("newJudge() error = %v", err)
	}

	_, err = judge.Classify(context.Background(), contractx.QuestionItemComplete, contractx.ClassifyInput{
		Message:         "One classic dog, anything else?",
		CurrentItem:     hotDog(),
		ItemsInProgress: []statex.PartialItem{{Name: "Classic Hot Dog", MealType: "a la carte"}},
	})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	input := fake.last()
	if len(input) != 2 {
		t.Fatalf("model saw %d messages, want 2", len(input))
	}
	if input[0].Content != prompts.Judges[contractx.QuestionItemComplete] {
		t.Fatalf("system prompt = %q", input[0].Content)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(input[1].Content), &payload); err != nil {
		t.Fatalf("user message is not JSON: %v", err)
	}
	if payload["intended"] != "Classic Hot Dog (meal option: a la carte)" {
		t.Fatalf("intended = %v", payload["intended"])
	}
	if !strings.Contains(fmt.Sprint(payload["reconstruction"]), "Classic Hot Dog [a la carte]") {
		t.Fatalf("reconstruction = %v", payload["reconstruction"])
	}
}

func TestJudgeErrors(t *testing.T) {
	t.Parallel()

	failing := &fakeChatModel{reply: func([]*schema.Message) (string, error) {
		return "", errors.New("provider down")
	}}
	judge, err := newJudge(context.Background(), failing, promptx.LoadPromptSet().Judges)
	if err != nil {
		t.Fatalf("newJudge() error = %v", err)
	}

	if _, err := judge.Classify(context.Background(), contractx.QuestionConversationEnding, contractx.ClassifyInput{}); !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("Classify() error = %v, want ErrModelInvoke", err)
	}
	if _, err := judge.Classify(context.Background(), "nonsense", contractx.ClassifyInput{}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Classify() error = %v, want ErrValidation", err)
	}

	if _, err := newJudge(context.Background(), failing, map[contractx.Question]string{}); !errors.Is(err, contractx.ErrPromptMissing) {
		t.Fatalf("newJudge() error = %v, want ErrPromptMissing", err)
	}
}

func TestPlannerReturnsTrimmedAnswer(t *testing.T) {
	t.Parallel()

	fake := answer("  order \n")
	planner, err := newPlanner(context.Background(), fake, promptx.LoadPromptSet().NextState)
	if err != nil {
		t.Fatalf("newPlanner() error = %v", err)
	}

	got, err := planner.PickState(context.Background(), contractx.StateRequest{
		State:            statex.StateGreet,
		OrderGoal:        []orderx.Item{*hotDog()},
		CurrentItem:      hotDog(),
		LastAgentMessage: "Welcome to Ben Franks!",
	})
	if err != nil {
		t.Fatalf("PickState() error = %v", err)
	}
	if got != "order" {
		t.Fatalf("PickState() = %q, want order", got)
	}
	if !strings.Contains(fake.last()[1].Content, `"current_state":"GREET"`) {
		t.Fatalf("planner payload = %s", fake.last()[1].Content)
	}
}

func TestExtractorParsesFencedJSON(t *testing.T) {
	t.Parallel()

	fake := answer("```json\n" + `{"new_item":" Chili Cheese Dog ","meal_type":"Meal","options":[{"value":"French Fries","type":"Side"},{"value":"  ","type":"drink"}]}` + "\n```")
	prompts := promptx.LoadPromptSet()
	extractor, err := newExtractor(context.Background(), fake, prompts.Extract, prompts.Match)
	if err != nil {
		t.Fatalf("newExtractor() error = %v", err)
	}

	got, err := extractor.Extract(context.Background(), contractx.ExtractRequest{
		History:      "Customer: chili cheese dog meal with fries\n",
		LastCustomer: "chili cheese dog meal with fries",
		LastStaff:    "What drink?",
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got.NewItem != "Chili Cheese Dog" || got.MealType != "meal" {
		t.Fatalf("Extract() = %+v", got)
	}
	if len(got.Options) != 1 || got.Options[0] != (contractx.OptionUpdate{Value: "French Fries", Type: "side"}) {
		t.Fatalf("Options = %+v", got.Options)
	}
}

func TestExtractorRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	prompts := promptx.LoadPromptSet()
	extractor, err := newExtractor(context.Background(), answer("I think it is a hot dog"), prompts.Extract, prompts.Match)
	if err != nil {
		t.Fatalf("newExtractor() error = %v", err)
	}
	if _, err := extractor.Extract(context.Background(), contractx.ExtractRequest{}); !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("Extract() error = %v, want ErrModelInvoke", err)
	}
}

func TestExtractorMatch(t *testing.T) {
	t.Parallel()

	prompts := promptx.LoadPromptSet()
	extractor, err := newExtractor(context.Background(), answer(`"Polish Sausage Dog"`), prompts.Extract, prompts.Match)
	if err != nil {
		t.Fatalf("newExtractor() error = %v", err)
	}

	got, err := extractor.Match(context.Background(), "polish dog", []string{"Classic Hot Dog", "Polish Sausage Dog"})
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if got != "Polish Sausage Dog" {
		t.Fatalf("Match() = %q", got)
	}
	if _, err := extractor.Match(context.Background(), " ", nil); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Match() error = %v, want ErrValidation", err)
	}
}

func TestStripFences(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		`{"a":1}`:                  `{"a":1}`,
		"```json\n{\"a\":1}\n```":  `{"a":1}`,
		"```\n{\"a\":1}\n```":      `{"a":1}`,
		"  ```json{\"a\":1}```  ":  `{"a":1}`,
	}
	for in, want := range cases {
		if got := stripFences(in); got != want {
			t.Fatalf("stripFences(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGeneratorSendsSamplingParams(t *testing.T) {
	t.Parallel()

	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cmpl-1","object":"chat.completion","created":1,"model":"test-model",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":" Hi, can I get a classic hot dog? "}}]}`)
	}))
	t.Cleanup(server.Close)

	maxTokens := 300
	cfg := openrouterx.Config{
		BaseURL:            server.URL,
		APIKey:             "key",
		Model:              "test-model",
		MaxCompletionToken: &maxTokens,
		Temperature:        0.7,
		PresencePenalty:    -0.1,
		FrequencyPenalty:   0.1,
	}
	gen, err := newGenerator(openrouterx.NewClient(cfg), cfg, promptx.LoadPromptSet().Customer)
	if err != nil {
		t.Fatalf("newGenerator() error = %v", err)
	}

	got, err := gen.Generate(context.Background(), contractx.GenerateRequest{
		State:        statex.StateOrder,
		Style:        statex.Style{Emotion: "hungry", Tone: "polite", Brevity: "short"},
		CustomerName: "Avery",
		Context:      "Order list: Classic Hot Dog",
		Instruction:  "Order the next item.",
		Query:        "What do you say next?",
		Constraint:   "Only order Classic Hot Dog.",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "Hi, can I get a classic hot dog?" {
		t.Fatalf("Generate() = %q", got)
	}

	if body["model"] != "test-model" {
		t.Fatalf("model = %v", body["model"])
	}
	for key, want := range map[string]float64{"temperature": 0.7, "presence_penalty": -0.1, "frequency_penalty": 0.1} {
		v, _ := body[key].(float64)
		if math.Abs(v-want) > 1e-6 {
			t.Fatalf("%s = %v, want %v", key, body[key], want)
		}
	}

	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %v", body["messages"])
	}
	system := fmt.Sprint(msgs[0].(map[string]any)["content"])
	for _, want := range []string{"Current conversation state: ORDER", "Emotion: hungry", "Avery", "Only order Classic Hot Dog."} {
		if !strings.Contains(system, want) {
			t.Fatalf("system prompt missing %q:\n%s", want, system)
		}
	}
}

func TestGeneratorValidation(t *testing.T) {
	t.Parallel()

	if _, err := newGenerator(nil, openrouterx.Config{Model: "m"}, "p"); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("newGenerator() error = %v, want ErrValidation", err)
	}

	cfg := openrouterx.Config{APIKey: "k", Model: "m"}
	gen, err := newGenerator(openrouterx.NewClient(cfg), cfg, "p")
	if err != nil {
		t.Fatalf("newGenerator() error = %v", err)
	}
	if _, err := gen.Generate(context.Background(), contractx.GenerateRequest{}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Generate() error = %v, want ErrValidation", err)
	}
}

func TestNewRegistryRequiresModels(t *testing.T) {
	t.Parallel()

	models := map[contractx.Role]einomodel.BaseChatModel{
		contractx.RoleJudge:   answer("true"),
		contractx.RolePlanner: answer("ORDER"),
	}
	_, err := newRegistry(context.Background(), models, &generatorImpl{}, promptx.LoadPromptSet())
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("newRegistry() error = %v, want ErrValidation", err)
	}

	models[contractx.RoleExtractor] = answer(`{}`)
	reg, err := newRegistry(context.Background(), models, &generatorImpl{}, promptx.LoadPromptSet())
	if err != nil {
		t.Fatalf("newRegistry() error = %v", err)
	}
	if reg.Judge() == nil || reg.Planner() == nil || reg.Generator() == nil || reg.Extractor() == nil {
		t.Fatal("registry has nil roles")
	}
}
