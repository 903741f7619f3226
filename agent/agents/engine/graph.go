package engine

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	enginenode "github.com/tanpawarit/drivethru-sim/agent/nodes"
)

func (e *Engine) compileTurnGraph(
	ctx context.Context,
) (compose.Runnable[enginenode.GraphInput, enginenode.GraphOutput], error) {
	graph := compose.NewGraph[enginenode.GraphInput, enginenode.GraphOutput]()
	judge := e.oracle.Judge()

	if err := graph.AddLambdaNode(enginenode.NodeValidateRequest,
		compose.InvokableLambda(func(ctx context.Context, in enginenode.GraphInput) (*enginenode.TurnState, error) {
			return enginenode.ValidateRequest(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", enginenode.NodeValidateRequest, err)
	}

	steps := []struct {
		name string
		fn   func(context.Context, *enginenode.TurnState) (*enginenode.TurnState, error)
	}{
		{enginenode.NodeGenerate, func(ctx context.Context, in *enginenode.TurnState) (*enginenode.TurnState, error) {
			return enginenode.GenerateUtterance(ctx, in, e.oracle.Generator())
		}},
		{enginenode.NodeValidate, func(ctx context.Context, in *enginenode.TurnState) (*enginenode.TurnState, error) {
			return enginenode.ValidateUtterance(ctx, in, judge, e.cfg.ValidateUtterances)
		}},
		{enginenode.NodeRegenerate, func(ctx context.Context, in *enginenode.TurnState) (*enginenode.TurnState, error) {
			return enginenode.RegenerateUtterance(ctx, in, e.oracle.Generator())
		}},
		{enginenode.NodeDrainQuestions, func(ctx context.Context, in *enginenode.TurnState) (*enginenode.TurnState, error) {
			return enginenode.DrainQuestions(ctx, in, judge)
		}},
		{enginenode.NodeSendTurn, func(ctx context.Context, in *enginenode.TurnState) (*enginenode.TurnState, error) {
			return enginenode.SendTurn(ctx, in, e.gateway)
		}},
		{enginenode.NodeRecordExchange, func(ctx context.Context, in *enginenode.TurnState) (*enginenode.TurnState, error) {
			return enginenode.RecordExchange(in)
		}},
		{enginenode.NodeCompletionBefore, func(ctx context.Context, in *enginenode.TurnState) (*enginenode.TurnState, error) {
			return enginenode.CheckCompletion(ctx, in, judge, "before_tracking")
		}},
		{enginenode.NodeTrackItems, func(ctx context.Context, in *enginenode.TurnState) (*enginenode.TurnState, error) {
			return enginenode.TrackItems(ctx, in, e.oracle.Extractor())
		}},
		{enginenode.NodeCompletionAfter, func(ctx context.Context, in *enginenode.TurnState) (*enginenode.TurnState, error) {
			return enginenode.CheckCompletion(ctx, in, judge, "after_tracking")
		}},
		{enginenode.NodeNoteQuestion, func(ctx context.Context, in *enginenode.TurnState) (*enginenode.TurnState, error) {
			return enginenode.NoteQuestion(ctx, in, judge)
		}},
	}
	for _, step := range steps {
		if err := graph.AddLambdaNode(step.name, compose.InvokableLambda(step.fn)); err != nil {
			return nil, fmt.Errorf("add node %s: %w", step.name, err)
		}
	}

	if err := graph.AddLambdaNode(enginenode.NodeNextState,
		compose.InvokableLambda(func(ctx context.Context, in *enginenode.TurnState) (enginenode.GraphOutput, error) {
			return enginenode.NextState(ctx, in, judge, e.oracle.Planner())
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", enginenode.NodeNextState, err)
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *enginenode.TurnState) (string, error) {
			return enginenode.AfterValidation(in), nil
		},
		map[string]bool{
			enginenode.NodeRegenerate:     true,
			enginenode.NodeDrainQuestions: true,
		},
	)
	if err := graph.AddBranch(enginenode.NodeValidate, branch); err != nil {
		return nil, fmt.Errorf("add validation branch: %w", err)
	}

	edges := [][2]string{
		{compose.START, enginenode.NodeValidateRequest},
		{enginenode.NodeValidateRequest, enginenode.NodeGenerate},
		{enginenode.NodeGenerate, enginenode.NodeValidate},
		{enginenode.NodeRegenerate, enginenode.NodeDrainQuestions},
		{enginenode.NodeDrainQuestions, enginenode.NodeSendTurn},
		{enginenode.NodeSendTurn, enginenode.NodeRecordExchange},
		{enginenode.NodeRecordExchange, enginenode.NodeCompletionBefore},
		{enginenode.NodeCompletionBefore, enginenode.NodeTrackItems},
		{enginenode.NodeTrackItems, enginenode.NodeCompletionAfter},
		{enginenode.NodeCompletionAfter, enginenode.NodeNoteQuestion},
		{enginenode.NodeNoteQuestion, enginenode.NodeNextState},
		{enginenode.NodeNextState, compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("engine.turn"))
	if err != nil {
		return nil, fmt.Errorf("compile turn graph: %w", err)
	}
	return runner, nil
}
