package policy

import (
	"context"
	"testing"
	"time"

	"github.com/ibn-labs/fulcrum/internal/config"
	"github.com/ibn-labs/fulcrum/internal/types"
)

func testCfg() func() config.PolicyConfig {
	return func() config.PolicyConfig {
		return config.PolicyConfig{
			Enabled:           true,
			EvaluationTimeout: 100 * time.Millisecond,
		}
	}
}

const orderPolicy = `
package fulcrum.order

import rego.v1

valid_priorities := {"low", "medium", "high", "critical"}

deny contains msg if {
	input.priority
	not valid_priorities[input.priority]
	msg := sprintf("priority %q is not allowed", [input.priority])
}

deny contains msg if {
	some item in input.serviceOrderItem
	item.action == "delete"
	msg := sprintf("item %q: delete actions require manual approval", [item.id])
}
`

func loadTestEvaluator(t *testing.T, module string) *Evaluator {
	t.Helper()
	e := NewEvaluator(testCfg())
	if err := e.LoadFromModules(map[string]string{"order.rego": module}); err != nil {
		t.Fatalf("failed to load policy: %v", err)
	}
	return e
}

func order(priority string, action types.ItemAction) *types.ServiceOrder {
	return &types.ServiceOrder{
		Priority: priority,
		ServiceOrderItem: []types.OrderItem{
			{
				ID:     "1",
				Action: action,
				Service: types.OrderedService{
					ServiceSpecification: types.SpecificationRef{ID: "spec-1"},
				},
			},
		},
	}
}

func TestEvaluate_PassesCleanOrder(t *testing.T) {
	e := loadTestEvaluator(t, orderPolicy)
	msgs, err := e.Evaluate(context.Background(), order("medium", types.ActionAdd))
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected no denials, got %v", msgs)
	}
}

func TestEvaluate_DeniesBadPriority(t *testing.T) {
	e := loadTestEvaluator(t, orderPolicy)
	msgs, err := e.Evaluate(context.Background(), order("urgent!!", types.ActionAdd))
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 denial, got %v", msgs)
	}
}

func TestEvaluate_DeniesDeleteAction(t *testing.T) {
	e := loadTestEvaluator(t, orderPolicy)
	msgs, err := e.Evaluate(context.Background(), order("medium", types.ActionDelete))
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 denial, got %v", msgs)
	}
}

func TestEvaluate_NoPoliciesLoadedPasses(t *testing.T) {
	e := NewEvaluator(testCfg())
	msgs, err := e.Evaluate(context.Background(), order("medium", types.ActionAdd))
	if err != nil {
		t.Fatal(err)
	}
	if msgs != nil {
		t.Errorf("expected nil denials, got %v", msgs)
	}
}
