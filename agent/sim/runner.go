package sim

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tanpawarit/drivethru-sim/agent/agents/engine"
	contractx "github.com/tanpawarit/drivethru-sim/agent/contract"
	goalx "github.com/tanpawarit/drivethru-sim/agent/goal"
	menux "github.com/tanpawarit/drivethru-sim/agent/menu"
	orderx "github.com/tanpawarit/drivethru-sim/agent/order"
	statex "github.com/tanpawarit/drivethru-sim/agent/state"
	verifyx "github.com/tanpawarit/drivethru-sim/agent/verify"
)

var (
	ErrNoCatalog = errors.New("menu catalog is required")
	ErrNoGateway = errors.New("gateway is required")
	ErrNoEngine  = errors.New("conversation engine is required")
)

type Option func(*Runner)

// WithStore persists every run record. Store errors are only logged.
func WithStore(store statex.Store) Option {
	return func(r *Runner) { r.store = store }
}

// WithStartHook is called once a session is open, before the first turn.
func WithStartHook(fn func(orderID string, goal []orderx.Item)) Option {
	return func(r *Runner) { r.onStart = fn }
}

// Runner executes the pipeline for a single run: goal, session, conversation,
// final order, verdict and record.
type Runner struct {
	catalog *menux.Catalog
	gateway contractx.Gateway
	engine  *engine.Engine
	store   statex.Store
	onStart func(orderID string, goal []orderx.Item)
	now     func() time.Time
}

func NewRunner(cat *menux.Catalog, gateway contractx.Gateway, eng *engine.Engine, opts ...Option) (*Runner, error) {
	if cat == nil {
		return nil, ErrNoCatalog
	}
	if gateway == nil {
		return nil, ErrNoGateway
	}
	if eng == nil {
		return nil, ErrNoEngine
	}

	r := &Runner{
		catalog: cat,
		gateway: gateway,
		engine:  eng,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Report is the outcome of one run.
type Report struct {
	RunID        string
	OrderID      string
	Level        goalx.Level
	Goal         []orderx.Item
	Final        []orderx.Item
	Conversation engine.Result
	Verdict      verifyx.Result
	// Verified is set once the final order was fetched and compared.
	Verified     bool
	Err          error
	StartedAt    time.Time
	Duration     time.Duration
}

// Success reports whether the run finished cleanly and the order verified.
func (r Report) Success() bool {
	return r.Err == nil && r.Verdict.Match
}

// Run never returns an error: every failure is recorded on the report. Once a
// session is open the final order is always fetched and compared, even when
// the conversation ended early.
func (r *Runner) Run(ctx context.Context, level goalx.Level, seed uint64) (rep Report) {
	rep = Report{
		RunID:     uuid.NewString(),
		Level:     level,
		StartedAt: r.now().UTC(),
	}

	logger := zerolog.Ctx(ctx).With().
		Str("run_id", rep.RunID).
		Str("level", string(level)).
		Logger()
	ctx = logger.WithContext(ctx)

	defer func() {
		rep.Duration = r.now().Sub(rep.StartedAt)
		r.save(ctx, rep)
	}()

	goal, err := goalx.New(r.catalog, seed).Generate(level)
	if err != nil {
		rep.Err = err
		logger.Error().Err(err).Msg("goal generation failed")
		return rep
	}
	rep.Goal = goal

	orderID, err := r.gateway.Start(ctx)
	if err != nil {
		rep.Err = err
		logger.Error().Err(err).Msg("start session failed")
		return rep
	}
	rep.OrderID = orderID
	if r.onStart != nil {
		r.onStart(orderID, orderx.CloneAll(goal))
	}

	res, err := r.engine.RunConversation(ctx, engine.Input{
		RunID:   rep.RunID,
		OrderID: orderID,
		Goal:    orderx.CloneAll(goal),
		Seed:    seed,
	})
	rep.Conversation = res
	if err == nil {
		err = res.Err
	}
	if err != nil {
		rep.Err = err
		logger.Error().Err(err).Msg("conversation failed, verifying partial order")
	}

	final, err := r.gateway.Order(ctx, orderID)
	if err != nil {
		if rep.Err == nil {
			rep.Err = err
		}
		logger.Error().Err(err).Msg("fetch final order failed")
		return rep
	}
	rep.Final = final
	rep.Verdict = verifyx.Compare(goal, final)
	rep.Verified = true

	event := logger.Info()
	if !rep.Verdict.Match {
		event = logger.Warn().Str("field", string(rep.Verdict.Field)).Str("diff", rep.Verdict.Diff)
	}
	event.Bool("match", rep.Verdict.Match).Msg(rep.Verdict.String())
	return rep
}

func (r *Runner) save(ctx context.Context, rep Report) {
	if r.store == nil {
		return
	}
	if err := r.store.Save(ctx, rep.Record()); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("save run record failed")
	}
}

// Record converts the report into its persisted form.
func (r Report) Record() *statex.RunRecord {
	rec := &statex.RunRecord{
		RunID:      r.RunID,
		OrderID:    r.OrderID,
		Level:      string(r.Level),
		Goal:       r.Goal,
		FinalOrder: r.Final,
		Match:      r.Verdict.Match,
		Verdict:    r.Verdict.String(),
		FinalState: r.Conversation.FinalState,
		Turns:      r.Conversation.Turns,
		Transcript: r.Conversation.Transcript,
		StartedAt:  r.StartedAt,
		FinishedAt: r.StartedAt.Add(r.Duration),
	}
	if conv := r.Conversation.Conversation; conv != nil {
		rec.OrderedItems = conv.OrderedItems
	}
	if !r.Verified {
		rec.Verdict = "not verified"
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
		rec.Verdict = "run failed: " + r.Err.Error() + "; " + rec.Verdict
	}
	return rec
}
