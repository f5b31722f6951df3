package validate

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/ibn-labs/fulcrum/internal/types"
	"github.com/ibn-labs/fulcrum/internal/validate/policy"
)

// Report is the validation verdict for one order. Corrected is a best-effort
// repaired copy of the order; it being nil does not change the error list,
// it only means no suggestion is available.
type Report struct {
	Valid     bool
	Errors    []string
	Corrected *types.ServiceOrder
}

// Validator checks a service order for structural completeness and business
// rules before it is submitted. Business policy is delegated to OPA when an
// evaluator is configured.
type Validator struct {
	policy *policy.Evaluator
}

func New(policyEval *policy.Evaluator) *Validator {
	return &Validator{policy: policyEval}
}

// Validate decides whether an order may be submitted. Policy evaluation
// errors abort validation of the current attempt rather than silently
// passing the order through.
func (v *Validator) Validate(ctx context.Context, order *types.ServiceOrder) Report {
	errs := structural(order)
	errs = append(errs, business(order)...)

	if v.policy != nil && v.policy.Enabled() {
		denials, err := v.policy.Evaluate(ctx, order)
		if err != nil {
			slog.Error("order policy evaluation failed", "error", err)
			errs = append(errs, "policy evaluation failed: "+err.Error())
		} else {
			errs = append(errs, denials...)
		}
	}

	report := Report{Valid: len(errs) == 0, Errors: errs}
	if !report.Valid {
		report.Corrected = correct(order, errs)
	}
	return report
}

func structural(order *types.ServiceOrder) []string {
	var errs []string

	if len(order.ServiceOrderItem) == 0 {
		errs = append(errs, "order has no serviceOrderItem")
		return errs
	}

	seen := make(map[string]bool, len(order.ServiceOrderItem))
	for i, item := range order.ServiceOrderItem {
		if item.ID == "" {
			errs = append(errs, fmt.Sprintf("item %d has an empty id", i))
		} else if seen[item.ID] {
			errs = append(errs, fmt.Sprintf("item id %q is not unique", item.ID))
		}
		seen[item.ID] = true

		if !item.Action.Valid() {
			errs = append(errs, fmt.Sprintf("item %q has invalid action %q", item.ID, item.Action))
		}
		if item.Service.ServiceSpecification.ID == "" {
			errs = append(errs, fmt.Sprintf("item %q has no serviceSpecification id", item.ID))
		}
		for _, c := range item.Service.ServiceCharacteristic {
			if c.Name == "" {
				errs = append(errs, fmt.Sprintf("item %q has a characteristic with an empty name", item.ID))
			}
		}
	}
	return errs
}

func business(order *types.ServiceOrder) []string {
	var errs []string
	if order.RequestedStartDate != nil && order.RequestedCompletionDate != nil {
		if order.RequestedStartDate.After(*order.RequestedCompletionDate) {
			errs = append(errs, "requestedStartDate must not be after requestedCompletionDate")
		}
	}
	return errs
}

// correct produces a repaired copy for the defects it knows how to fix:
// missing item ids, invalid actions, inverted dates. Anything else is left
// alone; a nil return means no useful suggestion could be made.
func correct(order *types.ServiceOrder, errs []string) *types.ServiceOrder {
	fixed := *order
	fixed.ServiceOrderItem = make([]types.OrderItem, len(order.ServiceOrderItem))
	copy(fixed.ServiceOrderItem, order.ServiceOrderItem)

	changed := false
	seen := map[string]bool{}
	for i := range fixed.ServiceOrderItem {
		item := &fixed.ServiceOrderItem[i]
		if item.ID == "" || seen[item.ID] {
			item.ID = strconv.Itoa(i + 1)
			changed = true
		}
		seen[item.ID] = true
		if !item.Action.Valid() {
			item.Action = types.ActionAdd
			changed = true
		}
	}

	if fixed.RequestedStartDate != nil && fixed.RequestedCompletionDate != nil &&
		fixed.RequestedStartDate.After(*fixed.RequestedCompletionDate) {
		fixed.RequestedStartDate, fixed.RequestedCompletionDate = fixed.RequestedCompletionDate, fixed.RequestedStartDate
		changed = true
	}

	if !changed {
		return nil
	}
	return &fixed
}
