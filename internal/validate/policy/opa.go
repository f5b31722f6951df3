package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ibn-labs/fulcrum/internal/config"
	"github.com/ibn-labs/fulcrum/internal/types"
	"github.com/open-policy-agent/opa/rego"
)

// Evaluator runs order business rules expressed as Rego deny rules.
// Policies live under data.fulcrum.order and contribute messages to the
// deny set; an empty set means the order passes policy.
type Evaluator struct {
	mu       sync.RWMutex
	prepared *rego.PreparedEvalQuery
	cfg      func() config.PolicyConfig
}

// NewEvaluator creates a policy evaluator. Call Load() to compile policies.
func NewEvaluator(cfg func() config.PolicyConfig) *Evaluator {
	return &Evaluator{cfg: cfg}
}

func (e *Evaluator) Enabled() bool { return e.cfg().Enabled }

// Load compiles Rego modules from the bundle path.
func (e *Evaluator) Load() error {
	cfg := e.cfg()
	modules, err := LoadRegoFiles(cfg.BundlePath)
	if err != nil {
		return fmt.Errorf("load rego files: %w", err)
	}
	if len(modules) == 0 {
		slog.Warn("no rego files found", "path", cfg.BundlePath)
		return nil
	}
	return e.LoadFromModules(modules)
}

// LoadFromModules compiles policies from provided module sources (useful for testing).
func (e *Evaluator) LoadFromModules(modules map[string]string) error {
	r := rego.New(
		rego.Query("data.fulcrum.order.deny"),
		func() func(*rego.Rego) {
			mods := make([]func(*rego.Rego), 0, len(modules))
			for name, src := range modules {
				mods = append(mods, rego.Module(name, src))
			}
			return func(r *rego.Rego) {
				for _, m := range mods {
					m(r)
				}
			}
		}(),
	)

	prepared, err := r.PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("prepare rego: %w", err)
	}

	e.mu.Lock()
	e.prepared = &prepared
	e.mu.Unlock()

	slog.Info("order policies loaded", "modules", len(modules))
	return nil
}

// Evaluate runs the deny rules against an order and returns the messages.
// When no policies are loaded the order passes; structural validation is not
// OPA's job here.
func (e *Evaluator) Evaluate(ctx context.Context, order *types.ServiceOrder) ([]string, error) {
	e.mu.RLock()
	prepared := e.prepared
	e.mu.RUnlock()

	if prepared == nil {
		return nil, nil
	}

	timeout := e.cfg().EvaluationTimeout
	if timeout == 0 {
		timeout = 100 * time.Millisecond
	}
	evalCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	input, err := toInput(order)
	if err != nil {
		return nil, fmt.Errorf("prepare policy input: %w", err)
	}

	results, err := prepared.Eval(evalCtx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("policy evaluation: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return nil, nil
	}

	raw, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected policy result type %T", results[0].Expressions[0].Value)
	}
	msgs := make([]string, 0, len(raw))
	for _, m := range raw {
		if s, ok := m.(string); ok {
			msgs = append(msgs, s)
		}
	}
	return msgs, nil
}

// toInput converts the order to plain JSON types so Rego sees the wire shape.
func toInput(order *types.ServiceOrder) (interface{}, error) {
	data, err := json.Marshal(order)
	if err != nil {
		return nil, err
	}
	var input map[string]interface{}
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, err
	}
	return input, nil
}
