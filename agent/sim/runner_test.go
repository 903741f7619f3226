package sim

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/tanpawarit/drivethru-sim/agent/agents/engine"
	"github.com/tanpawarit/drivethru-sim/agent/agents/oracle/oracletest"
	contractx "github.com/tanpawarit/drivethru-sim/agent/contract"
	gatewayx "github.com/tanpawarit/drivethru-sim/agent/gateway"
	"github.com/tanpawarit/drivethru-sim/agent/gateway/lilacstub"
	goalx "github.com/tanpawarit/drivethru-sim/agent/goal"
	menux "github.com/tanpawarit/drivethru-sim/agent/menu"
	orderx "github.com/tanpawarit/drivethru-sim/agent/order"
	statex "github.com/tanpawarit/drivethru-sim/agent/state"
	verifyx "github.com/tanpawarit/drivethru-sim/agent/verify"
)

type memStore struct {
	mu      sync.Mutex
	records map[string]*statex.RunRecord
	err     error
}

func (m *memStore) Save(ctx context.Context, rec *statex.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.records == nil {
		m.records = map[string]*statex.RunRecord{}
	}
	m.records[rec.RunID] = rec
	return nil
}

func (m *memStore) Load(ctx context.Context, runID string) (*statex.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[runID]
	if !ok {
		return nil, statex.ErrRunNotFound
	}
	return rec, nil
}

func (m *memStore) Delete(ctx context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, runID)
	return nil
}

func customer() *oracletest.Oracle {
	return &oracletest.Oracle{
		ClassifyFunc: func(q contractx.Question, in contractx.ClassifyInput) (bool, error) {
			switch q {
			case contractx.QuestionItemComplete:
				return in.CurrentItem != nil && strings.Contains(in.Message, in.CurrentItem.ItemName), nil
			case contractx.QuestionConversationEnding:
				return strings.Contains(in.Message, "pull forward"), nil
			case contractx.QuestionUtteranceValid:
				return true, nil
			}
			return false, nil
		},
		PickStateFunc: func(req contractx.StateRequest) (string, error) {
			if len(req.OrderGoal) == 0 {
				return "PRE-DONE", nil
			}
			return "ORDER", nil
		},
		ExtractFunc: func(req contractx.ExtractRequest) (contractx.ItemUpdates, error) {
			if req.CurrentItem == nil || !strings.Contains(req.LastStaff, req.CurrentItem.ItemName) {
				return contractx.ItemUpdates{}, nil
			}
			return contractx.ItemUpdates{NewItem: req.CurrentItem.ItemName}, nil
		},
	}
}

func newRunner(t *testing.T, stub *lilacstub.Stub, maxTurns int, opts ...Option) *Runner {
	t.Helper()
	server := httptest.NewServer(stub.Handler())
	t.Cleanup(server.Close)

	p := gatewayx.DefaultPolicy()
	p.InitialBackoff = 0
	p.TurnDelay = 0
	gw, err := gatewayx.NewClient(
		gatewayx.Config{APIBaseURL: server.URL, APIToken: "token"},
		gatewayx.WithHTTPClient(server.Client()),
		gatewayx.WithPolicy(p),
	)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	eng, err := engine.New(gw, customer(), engine.Config{MaxTurns: maxTurns, ValidateUtterances: true})
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}

	opts = append([]Option{WithStartHook(stub.Expect)}, opts...)
	runner, err := NewRunner(menux.MustDefault(), gw, eng, opts...)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	return runner
}

func TestRunVerifiesEchoedOrder(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	runner := newRunner(t, lilacstub.New(lilacstub.EchoGoal()), 0, WithStore(store))

	rep := runner.Run(context.Background(), goalx.LevelSimple, 11)
	if !rep.Success() {
		t.Fatalf("Run() = %+v", rep)
	}
	if len(rep.Goal) != 1 || rep.Conversation.FinalState != statex.StateDone {
		t.Fatalf("report = %+v", rep)
	}
	if rep.Duration <= 0 {
		t.Fatalf("Duration = %v", rep.Duration)
	}

	rec, err := store.Load(context.Background(), rep.RunID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !rec.Match || rec.OrderID != rep.OrderID || rec.Level != "simple" || len(rec.Transcript) == 0 {
		t.Fatalf("record = %+v", rec)
	}
	if rec.FinishedAt.Before(rec.StartedAt) {
		t.Fatalf("FinishedAt %v before StartedAt %v", rec.FinishedAt, rec.StartedAt)
	}
}

func TestRunReportsMismatch(t *testing.T) {
	t.Parallel()

	runner := newRunner(t, lilacstub.New(lilacstub.NeverComplete()), 3)
	rep := runner.Run(context.Background(), goalx.LevelMedium, 5)

	if rep.Success() || rep.Err != nil {
		t.Fatalf("Run() = %+v, want a clean mismatch", rep)
	}
	if rep.Verdict.Field != verifyx.FieldLength || rep.Conversation.Turns != 3 || !rep.Conversation.CeilingHit {
		t.Fatalf("report = %+v", rep)
	}
	if !strings.HasPrefix(rep.Record().Verdict, "order mismatch") {
		t.Fatalf("record verdict = %q", rep.Record().Verdict)
	}
}

func TestRunSwappedOrderFailsOnItemName(t *testing.T) {
	t.Parallel()

	runner := newRunner(t, lilacstub.New(lilacstub.Swapped()), 4)
	rep := runner.Run(context.Background(), goalx.LevelComplex, 21)

	if rep.Err != nil {
		t.Fatalf("Run() error = %v", rep.Err)
	}
	if len(rep.Goal) < 2 {
		t.Fatalf("complex goal has %d items", len(rep.Goal))
	}
	if rep.Goal[0].ItemName == rep.Goal[len(rep.Goal)-1].ItemName {
		t.Skip("seeded goal starts and ends with the same item")
	}
	if rep.Verdict.Match || rep.Verdict.Field != verifyx.FieldItemName || rep.Verdict.Index != 0 {
		t.Fatalf("verdict = %+v", rep.Verdict)
	}
}

type downGateway struct{}

func (downGateway) Start(context.Context) (string, error) {
	return "", errors.New("remote agent unreachable")
}
func (downGateway) Chat(context.Context, string, string) (contractx.ChatReply, error) {
	return contractx.ChatReply{}, nil
}
func (downGateway) Order(context.Context, string) ([]orderx.Item, error) { return nil, nil }

func TestRunStartFailureIsRecorded(t *testing.T) {
	t.Parallel()

	eng, err := engine.New(downGateway{}, customer(), engine.Config{})
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	store := &memStore{}
	runner, err := NewRunner(menux.MustDefault(), downGateway{}, eng, WithStore(store))
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	rep := runner.Run(context.Background(), goalx.LevelSimple, 1)
	if rep.Err == nil || rep.Success() {
		t.Fatalf("Run() = %+v, want failure", rep)
	}
	if rep.Verified {
		t.Fatal("a run without a session cannot be verified")
	}
	rec, err := store.Load(context.Background(), rep.RunID)
	if err != nil || rec.Error == "" || rec.Verdict != "run failed: remote agent unreachable; not verified" {
		t.Fatalf("record = %+v, %v", rec, err)
	}
}

// chatDownGateway opens sessions but fails every turn.
type chatDownGateway struct {
	mu     sync.Mutex
	orders int
}

func (g *chatDownGateway) Start(context.Context) (string, error) { return "order-7", nil }

func (g *chatDownGateway) Chat(context.Context, string, string) (contractx.ChatReply, error) {
	return contractx.ChatReply{}, fmt.Errorf("%w: chat status 503 after retries", contractx.ErrGateway)
}

func (g *chatDownGateway) Order(context.Context, string) ([]orderx.Item, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders++
	return nil, nil
}

func TestRunVerifiesAfterConversationFailure(t *testing.T) {
	t.Parallel()

	gw := &chatDownGateway{}
	eng, err := engine.New(gw, customer(), engine.Config{})
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	store := &memStore{}
	runner, err := NewRunner(menux.MustDefault(), gw, eng, WithStore(store))
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	rep := runner.Run(context.Background(), goalx.LevelSimple, 1)
	if rep.Err == nil || !strings.Contains(rep.Err.Error(), "503") || rep.Success() {
		t.Fatalf("Run() = %+v, want gateway failure", rep)
	}
	if gw.orders != 1 {
		t.Fatalf("final order fetched %d times, want 1", gw.orders)
	}
	if !rep.Verified || rep.Verdict.Match || rep.Verdict.Field != verifyx.FieldLength {
		t.Fatalf("verdict = %+v, verified = %t", rep.Verdict, rep.Verified)
	}
	if rep.Conversation.FinalState != statex.StateDone {
		t.Fatalf("FinalState = %s", rep.Conversation.FinalState)
	}

	rec, err := store.Load(context.Background(), rep.RunID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !strings.HasPrefix(rec.Verdict, "run failed") || !strings.Contains(rec.Verdict, "order mismatch") {
		t.Fatalf("record verdict = %q", rec.Verdict)
	}
}

func TestStoreErrorsAreNotFatal(t *testing.T) {
	t.Parallel()

	store := &memStore{err: errors.New("redis down")}
	runner := newRunner(t, lilacstub.New(lilacstub.EchoGoal()), 0, WithStore(store))
	if rep := runner.Run(context.Background(), goalx.LevelSimple, 3); !rep.Success() {
		t.Fatalf("Run() = %+v", rep)
	}
}

func TestUnknownLevelFails(t *testing.T) {
	t.Parallel()

	runner := newRunner(t, lilacstub.New(lilacstub.EchoGoal()), 0)
	rep := runner.Run(context.Background(), "huge", 1)
	if !errors.Is(rep.Err, goalx.ErrUnknownLevel) || rep.OrderID != "" {
		t.Fatalf("Run() = %+v", rep)
	}
}

func TestNewRunnerPreconditions(t *testing.T) {
	t.Parallel()

	eng, _ := engine.New(downGateway{}, customer(), engine.Config{})
	if _, err := NewRunner(nil, downGateway{}, eng); !errors.Is(err, ErrNoCatalog) {
		t.Fatalf("error = %v", err)
	}
	if _, err := NewRunner(menux.MustDefault(), nil, eng); !errors.Is(err, ErrNoGateway) {
		t.Fatalf("error = %v", err)
	}
	if _, err := NewRunner(menux.MustDefault(), downGateway{}, nil); !errors.Is(err, ErrNoEngine) {
		t.Fatalf("error = %v", err)
	}
}
