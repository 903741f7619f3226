// Package oracletest provides a deterministic Oracle for engine tests.
package oracletest

import (
	"context"
	"strings"
	"sync"

	contractx "github.com/tanpawarit/drivethru-sim/agent/contract"
)

var _ contractx.Oracle = (*Oracle)(nil)

// Oracle answers every call through the matching func field. A nil field
// gives a neutral answer: false, "ORDER", "Yes, please.", no updates, or
// the detected name unchanged.
type Oracle struct {
	ClassifyFunc  func(q contractx.Question, in contractx.ClassifyInput) (bool, error)
	PickStateFunc func(req contractx.StateRequest) (string, error)
	GenerateFunc  func(req contractx.GenerateRequest) (string, error)
	ExtractFunc   func(req contractx.ExtractRequest) (contractx.ItemUpdates, error)
	MatchFunc     func(detected string, candidates []string) (string, error)

	mu        sync.Mutex
	events    []string
	generated []contractx.GenerateRequest
}

func (o *Oracle) Judge() contractx.Judge         { return o }
func (o *Oracle) Planner() contractx.StatePicker { return o }
func (o *Oracle) Generator() contractx.Generator { return o }
func (o *Oracle) Extractor() contractx.Extractor { return o }

func (o *Oracle) record(event string) {
	o.mu.Lock()
	o.events = append(o.events, event)
	o.mu.Unlock()
}

// Events lists calls in order, e.g. "classify:item_complete" or "extract".
func (o *Oracle) Events() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.events...)
}

// Count reports how many recorded events start with prefix.
func (o *Oracle) Count(prefix string) int {
	n := 0
	for _, e := range o.Events() {
		if strings.HasPrefix(e, prefix) {
			n++
		}
	}
	return n
}

// Generated returns every generation request seen so far.
func (o *Oracle) Generated() []contractx.GenerateRequest {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]contractx.GenerateRequest(nil), o.generated...)
}

func (o *Oracle) Classify(ctx context.Context, q contractx.Question, in contractx.ClassifyInput) (bool, error) {
	o.record("classify:" + string(q))
	if o.ClassifyFunc == nil {
		return false, nil
	}
	return o.ClassifyFunc(q, in)
}

func (o *Oracle) PickState(ctx context.Context, req contractx.StateRequest) (string, error) {
	o.record("pick_state")
	if o.PickStateFunc == nil {
		return "ORDER", nil
	}
	return o.PickStateFunc(req)
}

func (o *Oracle) Generate(ctx context.Context, req contractx.GenerateRequest) (string, error) {
	o.record("generate")
	o.mu.Lock()
	o.generated = append(o.generated, req)
	o.mu.Unlock()
	if o.GenerateFunc == nil {
		return "Yes, please.", nil
	}
	return o.GenerateFunc(req)
}

func (o *Oracle) Extract(ctx context.Context, req contractx.ExtractRequest) (contractx.ItemUpdates, error) {
	o.record("extract")
	if o.ExtractFunc == nil {
		return contractx.ItemUpdates{}, nil
	}
	return o.ExtractFunc(req)
}

func (o *Oracle) Match(ctx context.Context, detected string, candidates []string) (string, error) {
	o.record("match")
	if o.MatchFunc == nil {
		return detected, nil
	}
	return o.MatchFunc(detected, candidates)
}
