package translate

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ibn-labs/fulcrum/internal/types"
)

// ErrUntranslatable marks an intent/candidate combination that cannot be
// represented as a wire-format order. It is distinguishable from transient
// failures: the orchestrator treats it as fatal, not retryable.
var ErrUntranslatable = errors.New("untranslatable")

const defaultLeadTime = 30 * 24 * time.Hour

// Translator maps an intent plus its selected catalog candidates onto a
// TMF641 service order. It is stateless; the same inputs and hints always
// produce the same order.
type Translator struct {
	Requester string
	Priority  string

	// now is swappable for tests.
	now func() time.Time
}

func New(requester string) *Translator {
	return &Translator{
		Requester: requester,
		Priority:  "medium",
		now:       time.Now,
	}
}

// Translate builds a service order. Each candidate becomes one order item
// with ids "1", "2", ... assigned in candidate order. Requirements of the
// i-th sub-intent attach to the i-th item; sub-intents beyond the candidate
// count fold into the last item. Hints are validation errors from a prior
// attempt; known defects are repaired before re-emitting.
func (t *Translator) Translate(intent *types.Intent, candidates []types.Candidate, hints []string) (*types.ServiceOrder, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates supplied", ErrUntranslatable)
	}

	items := make([]types.OrderItem, 0, len(candidates))
	for i, cand := range candidates {
		chars, err := t.characteristicsFor(intent, i, len(candidates))
		if err != nil {
			return nil, err
		}
		items = append(items, types.OrderItem{
			ID:     strconv.Itoa(i + 1),
			Action: types.ActionAdd,
			State:  types.StateAcknowledged,
			Service: types.OrderedService{
				Name:                  cand.Name,
				ServiceSpecification:  types.SpecificationRef{ID: cand.ID, Name: cand.Name},
				ServiceCharacteristic: chars,
			},
		})
	}

	now := t.now().UTC()
	start := now
	completion := now.Add(defaultLeadTime)

	order := &types.ServiceOrder{
		ExternalID:              intent.IntentID,
		Description:             describe(intent),
		Priority:                t.Priority,
		State:                   types.StateAcknowledged,
		OrderDate:               &now,
		RequestedStartDate:      &start,
		RequestedCompletionDate: &completion,
		ServiceOrderItem:        items,
	}
	if t.Requester != "" {
		order.RelatedParty = []types.RelatedParty{{Name: t.Requester, Role: "requester"}}
	}

	t.repair(order, hints)
	return order, nil
}

// characteristicsFor collects the typed characteristics for item index i.
// Global location and qos constraints attach to the first item.
func (t *Translator) characteristicsFor(intent *types.Intent, i, itemCount int) ([]types.Characteristic, error) {
	var chars []types.Characteristic

	if i == 0 {
		if intent.Location != "" {
			chars = append(chars, types.Characteristic{
				Name:      "location",
				Value:     types.String(intent.Location),
				ValueType: types.KindString.String(),
			})
		}
		for _, key := range sortedKeys(intent.QoS) {
			c, err := characteristic(key, intent.QoS[key])
			if err != nil {
				return nil, err
			}
			chars = append(chars, c)
		}
	}

	for si, sub := range intent.SubIntents {
		target := si
		if target >= itemCount {
			target = itemCount - 1
		}
		if target != i {
			continue
		}
		for _, key := range sortedKeys(sub.Requirements) {
			c, err := characteristic(key, sub.Requirements[key])
			if err != nil {
				return nil, err
			}
			chars = append(chars, c)
		}
	}
	return chars, nil
}

func characteristic(name string, v types.Value) (types.Characteristic, error) {
	if name == "" {
		return types.Characteristic{}, fmt.Errorf("%w: requirement with empty name", ErrUntranslatable)
	}
	return types.Characteristic{
		Name:      name,
		Value:     v,
		ValueType: v.Kind().String(),
	}, nil
}

// repair applies deterministic fixes for defects named in prior validation
// errors, so a retried translation has a chance of passing.
func (t *Translator) repair(order *types.ServiceOrder, hints []string) {
	for _, h := range hints {
		switch {
		case strings.Contains(h, "requestedCompletionDate"):
			if order.RequestedStartDate != nil {
				fixed := order.RequestedStartDate.Add(defaultLeadTime)
				order.RequestedCompletionDate = &fixed
			}
		case strings.Contains(h, "priority"):
			order.Priority = "medium"
		}
	}
}

func describe(intent *types.Intent) string {
	domains := make([]string, 0, len(intent.SubIntents))
	for _, si := range intent.SubIntents {
		domains = append(domains, si.Domain)
	}
	desc := "Service order for " + strings.Join(domains, ", ")
	if intent.Location != "" {
		desc += " in " + intent.Location
	}
	return desc
}

func sortedKeys(m map[string]types.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
