package oracle

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"

	contractx "github.com/tanpawarit/drivethru-sim/agent/contract"
	llmx "github.com/tanpawarit/drivethru-sim/agent/llm"
	promptx "github.com/tanpawarit/drivethru-sim/agent/prompt"
	openrouterx "github.com/tanpawarit/drivethru-sim/pkg/openrouter"
)

type registryImpl struct {
	judge     contractx.Judge
	planner   contractx.StatePicker
	generator contractx.Generator
	extractor contractx.Extractor
}

func (r *registryImpl) Judge() contractx.Judge {
	return r.judge
}

func (r *registryImpl) Planner() contractx.StatePicker {
	return r.planner
}

func (r *registryImpl) Generator() contractx.Generator {
	return r.generator
}

func (r *registryImpl) Extractor() contractx.Extractor {
	return r.extractor
}

// NewRegistry builds the LLM-backed oracle. Each role gets its own model
// settings from cfg.
func NewRegistry(ctx context.Context, cfg llmx.Config) (contractx.Oracle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	prompts := promptx.LoadPromptSet()

	models := make(map[contractx.Role]einomodel.BaseChatModel, 3)
	for _, role := range []contractx.Role{contractx.RoleJudge, contractx.RolePlanner, contractx.RoleExtractor} {
		roleCfg := cfg.OpenRouterFor(role)
		m, err := roleCfg.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: create %s model: %v", contractx.ErrModelInvoke, role, err)
		}
		models[role] = m
	}

	genCfg := cfg.OpenRouterFor(contractx.RoleGenerator)
	generator, err := newGenerator(openrouterx.NewClient(genCfg), genCfg, prompts.Customer)
	if err != nil {
		return nil, err
	}

	return newRegistry(ctx, models, generator, prompts)
}

func newRegistry(
	ctx context.Context,
	models map[contractx.Role]einomodel.BaseChatModel,
	generator contractx.Generator,
	prompts promptx.PromptSet,
) (*registryImpl, error) {
	if err := prompts.Validate(); err != nil {
		return nil, err
	}
	if generator == nil {
		return nil, fmt.Errorf("%w: generator is required", contractx.ErrValidation)
	}
	for _, role := range []contractx.Role{contractx.RoleJudge, contractx.RolePlanner, contractx.RoleExtractor} {
		if models[role] == nil {
			return nil, fmt.Errorf("%w: %s model is required", contractx.ErrValidation, role)
		}
	}

	judge, err := newJudge(ctx, models[contractx.RoleJudge], prompts.Judges)
	if err != nil {
		return nil, err
	}
	planner, err := newPlanner(ctx, models[contractx.RolePlanner], prompts.NextState)
	if err != nil {
		return nil, err
	}
	extractor, err := newExtractor(ctx, models[contractx.RoleExtractor], prompts.Extract, prompts.Match)
	if err != nil {
		return nil, err
	}

	return &registryImpl{
		judge:     judge,
		planner:   planner,
		generator: generator,
		extractor: extractor,
	}, nil
}
