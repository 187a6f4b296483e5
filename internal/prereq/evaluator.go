package prereq

import (
	"context"
	"fmt"

	"snapstate/internal/kvstore"
	"snapstate/internal/template"
	"snapstate/pkg/cmdexec"
	"snapstate/pkg/log"
)

// UnmetPrerequisite describes one prerequisite that did not pass.
type UnmetPrerequisite struct {
	Name   string
	Policy template.MissingPolicy
	Reason string
}

// Result is the outcome of evaluating a template's prerequisite list.
// Proceed is false only when at least one on_missing=fail prerequisite is
// unmet; unmet warn-policy prerequisites are listed but do not block.
type Result struct {
	Proceed bool
	Unmet   []UnmetPrerequisite
}

// Evaluator runs prerequisite checks. It is side-effect-free beyond whatever
// the checks' own commands do, and evaluating the same list twice yields the
// same gating decision.
type Evaluator struct {
	runner cmdexec.Runner
	store  kvstore.Store
}

// NewEvaluator creates an Evaluator using the given command runner and
// key/value store.
func NewEvaluator(runner cmdexec.Runner, store kvstore.Store) *Evaluator {
	return &Evaluator{runner: runner, store: store}
}

// Evaluate runs every check independently and reports the aggregate gating
// decision for the named operation. A check that cannot execute at all is
// unmet, never a panic or a propagated error.
func (e *Evaluator) Evaluate(ctx context.Context, specs []template.PrerequisiteSpec, operation string) Result {
	result := Result{Proceed: true}

	for _, spec := range specs {
		check, err := e.buildCheck(spec)
		if err != nil {
			result.Unmet = append(result.Unmet, UnmetPrerequisite{
				Name:   spec.Name,
				Policy: spec.OnMissing,
				Reason: err.Error(),
			})
			if spec.OnMissing == template.MissingFail {
				result.Proceed = false
			}
			continue
		}

		if err := check.Evaluate(ctx); err != nil {
			unmet := UnmetPrerequisite{
				Name:   check.Name(),
				Policy: check.Policy(),
				Reason: err.Error(),
			}
			result.Unmet = append(result.Unmet, unmet)

			if unmet.Policy == template.MissingFail {
				result.Proceed = false
				log.Error("Prerequisite not met", "prerequisite", unmet.Name, "operation", operation, "reason", unmet.Reason)
			} else {
				log.Warn("Prerequisite not met, continuing", "prerequisite", unmet.Name, "operation", operation, "reason", unmet.Reason)
			}
			continue
		}

		log.Debug("Prerequisite met", "prerequisite", check.Name(), "operation", operation)
	}

	return result
}

// buildCheck maps a spec to its Check implementation.
func (e *Evaluator) buildCheck(spec template.PrerequisiteSpec) (Check, error) {
	switch spec.Type {
	case template.PrereqScript:
		return &scriptCheck{spec: spec, runner: e.runner}, nil
	case template.PrereqRegistry:
		return &registryCheck{spec: spec, store: e.store}, nil
	case template.PrereqFile:
		return &fileCheck{spec: spec}, nil
	case template.PrereqApplication:
		return &applicationCheck{spec: spec, runner: e.runner}, nil
	case template.PrereqService:
		return &serviceCheck{spec: spec, runner: e.runner}, nil
	default:
		return nil, fmt.Errorf("unknown prerequisite type %q", string(spec.Type))
	}
}
