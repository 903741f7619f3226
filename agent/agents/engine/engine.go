package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/drivethru-sim/agent/contract"
	enginenode "github.com/tanpawarit/drivethru-sim/agent/nodes"
	orderx "github.com/tanpawarit/drivethru-sim/agent/order"
	statex "github.com/tanpawarit/drivethru-sim/agent/state"
)

const DefaultMaxTurns = 20

var (
	ErrNoGateway = errors.New("gateway is required")
	ErrNoOracle  = errors.New("oracle is required")
	ErrNoOrderID = errors.New("order id is required")
	ErrEmptyGoal = errors.New("order goal is empty")
)

type Config struct {
	MaxTurns           int  `envconfig:"MAX_TURNS" default:"20"`
	ValidateUtterances bool `envconfig:"VALIDATE_UTTERANCES" default:"true"`
}

// Engine drives one simulated customer through a conversation with the
// remote agent. It holds no per-run state and is safe for concurrent runs.
type Engine struct {
	gateway contractx.Gateway
	oracle  contractx.Oracle
	cfg     Config

	graphRunner compose.Runnable[enginenode.GraphInput, enginenode.GraphOutput]
}

func New(gateway contractx.Gateway, oracle contractx.Oracle, cfg Config) (*Engine, error) {
	if gateway == nil {
		return nil, ErrNoGateway
	}
	if oracle == nil {
		return nil, ErrNoOracle
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}

	e := &Engine{
		gateway: gateway,
		oracle:  oracle,
		cfg:     cfg,
	}

	graphRunner, err := e.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	e.graphRunner = graphRunner

	return e, nil
}

type Input struct {
	RunID   string
	OrderID string
	Goal    []orderx.Item
	// Seed fixes the persona. Zero picks a random one.
	Seed uint64
	// AfterTurn, if set, observes the context after every completed turn.
	// It must not modify it.
	AfterTurn func(turn int, conv *statex.Conversation)
}

type Result struct {
	Transcript   []statex.Message
	Conversation *statex.Conversation
	FinalState   statex.State
	Turns        int
	CeilingHit   bool
	// Err is the error that ended the run early, if any.
	Err error
}

// RunConversation loops turns until the state is DONE or the turn ceiling
// is reached. Turn failures end the run in DONE and are reported in
// Result.Err; only bad input is returned as an error.
func (e *Engine) RunConversation(ctx context.Context, in Input) (Result, error) {
	orderID := strings.TrimSpace(in.OrderID)
	if orderID == "" {
		return Result{}, ErrNoOrderID
	}
	if len(in.Goal) == 0 {
		return Result{}, ErrEmptyGoal
	}
	for _, it := range in.Goal {
		if err := it.Validate(); err != nil {
			return Result{}, fmt.Errorf("%w: %v", contractx.ErrValidation, err)
		}
	}

	persona := NewPersona(in.Seed)
	conv := statex.NewConversation(in.RunID, in.Goal, persona.Style, persona.Name)
	conv.QuestionTopic = persona.QuestionTopic

	logger := zerolog.Ctx(ctx).With().
		Str("run_id", in.RunID).
		Str("order_id", orderID).
		Logger()
	ctx = logger.WithContext(ctx)

	logger.Info().
		Strs("goal", orderx.Names(in.Goal)).
		Str("emotion", persona.Style.Emotion).
		Str("tone", persona.Style.Tone).
		Str("brevity", persona.Style.Brevity).
		Msg("conversation started")

	res := Result{Conversation: conv}
	state := statex.StateGreet
	for state != statex.StateDone && res.Turns < e.cfg.MaxTurns {
		res.Turns++
		out, err := e.turn(ctx, enginenode.GraphInput{
			Conversation: conv,
			State:        state,
			OrderID:      orderID,
			Turn:         res.Turns,
		})
		if err == nil {
			err = conv.Validate()
		}
		if err != nil {
			logger.Error().Err(err).Int("turn", res.Turns).Str("state", string(state)).Msg("turn failed, ending conversation")
			res.Err = err
			state = statex.StateDone
			break
		}
		if in.AfterTurn != nil {
			in.AfterTurn(res.Turns, conv)
		}

		logger.Info().
			Int("turn", res.Turns).
			Str("state", string(state)).
			Str("customer", out.Utterance).
			Str("staff", out.Reply).
			Str("next", string(out.Next)).
			Msg("turn")
		logger.Debug().
			Int("remaining", conv.Remaining()).
			Int("ordered", len(conv.OrderedItems)).
			Strs("pending", conv.PendingQuestions).
			Msg("conversation snapshot")

		state = out.Next
	}

	if state != statex.StateDone {
		logger.Warn().Int("turns", res.Turns).Str("state", string(state)).Msg("turn ceiling reached")
		res.CeilingHit = true
		state = statex.StateDone
	}

	res.FinalState = state
	res.Transcript = append([]statex.Message(nil), conv.ChatHistory...)
	logger.Info().
		Int("turns", res.Turns).
		Int("ordered", len(conv.OrderedItems)).
		Int("total", conv.Total()).
		Msg("conversation finished")
	return res, nil
}

// turn runs one graph invocation and turns a panic into an error.
func (e *Engine) turn(ctx context.Context, in enginenode.GraphInput) (out enginenode.GraphOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("turn %d panicked: %v", in.Turn, r)
		}
	}()
	return e.graphRunner.Invoke(ctx, in)
}
