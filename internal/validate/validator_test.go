package validate

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ibn-labs/fulcrum/internal/types"
)

func validOrder() *types.ServiceOrder {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	return &types.ServiceOrder{
		ExternalID: "intent-1",
		Priority:   "medium",
		State:      types.StateAcknowledged,
		RequestedStartDate:      &start,
		RequestedCompletionDate: &end,
		ServiceOrderItem: []types.OrderItem{
			{
				ID:     "1",
				Action: types.ActionAdd,
				Service: types.OrderedService{
					ServiceSpecification: types.SpecificationRef{ID: "spec-1"},
				},
			},
		},
	}
}

func TestValidate_AcceptsWellFormedOrder(t *testing.T) {
	report := New(nil).Validate(context.Background(), validOrder())
	if !report.Valid {
		t.Errorf("expected valid order, got errors: %v", report.Errors)
	}
	if report.Corrected != nil {
		t.Error("valid order should carry no correction")
	}
}

func TestValidate_RejectsEmptyOrder(t *testing.T) {
	order := validOrder()
	order.ServiceOrderItem = nil
	report := New(nil).Validate(context.Background(), order)
	if report.Valid {
		t.Fatal("expected invalid")
	}
	if len(report.Errors) != 1 || !strings.Contains(report.Errors[0], "no serviceOrderItem") {
		t.Errorf("errors = %v", report.Errors)
	}
}

func TestValidate_RejectsDuplicateItemIDs(t *testing.T) {
	order := validOrder()
	dup := order.ServiceOrderItem[0]
	order.ServiceOrderItem = append(order.ServiceOrderItem, dup)

	report := New(nil).Validate(context.Background(), order)
	if report.Valid {
		t.Fatal("expected invalid")
	}
	if report.Corrected == nil {
		t.Fatal("expected a correction suggestion")
	}
	if report.Corrected.ServiceOrderItem[1].ID == report.Corrected.ServiceOrderItem[0].ID {
		t.Error("correction did not deduplicate item ids")
	}
}

func TestValidate_RejectsInvalidAction(t *testing.T) {
	order := validOrder()
	order.ServiceOrderItem[0].Action = "destroy"

	report := New(nil).Validate(context.Background(), order)
	if report.Valid {
		t.Fatal("expected invalid")
	}
	if report.Corrected == nil || report.Corrected.ServiceOrderItem[0].Action != types.ActionAdd {
		t.Errorf("expected corrected action add, got %+v", report.Corrected)
	}
}

func TestValidate_RejectsMissingSpecificationRef(t *testing.T) {
	order := validOrder()
	order.ServiceOrderItem[0].Service.ServiceSpecification.ID = ""

	report := New(nil).Validate(context.Background(), order)
	if report.Valid {
		t.Fatal("expected invalid")
	}
	// No known repair for a missing catalog reference.
	if report.Corrected != nil {
		t.Errorf("expected no correction, got %+v", report.Corrected)
	}
}

func TestValidate_RejectsInvertedDates(t *testing.T) {
	order := validOrder()
	order.RequestedStartDate, order.RequestedCompletionDate = order.RequestedCompletionDate, order.RequestedStartDate

	report := New(nil).Validate(context.Background(), order)
	if report.Valid {
		t.Fatal("expected invalid")
	}
	found := false
	for _, e := range report.Errors {
		if strings.Contains(e, "requestedCompletionDate") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected date error, got %v", report.Errors)
	}
	if report.Corrected == nil || report.Corrected.RequestedStartDate.After(*report.Corrected.RequestedCompletionDate) {
		t.Error("expected correction to reorder dates")
	}
}

func TestValidate_CorrectionDoesNotMutateOriginal(t *testing.T) {
	order := validOrder()
	order.ServiceOrderItem[0].ID = ""

	report := New(nil).Validate(context.Background(), order)
	if report.Valid {
		t.Fatal("expected invalid")
	}
	if order.ServiceOrderItem[0].ID != "" {
		t.Error("validation mutated the input order")
	}
}
