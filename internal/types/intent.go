package types

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Service kinds. An intent with exactly one sub-intent is a simple service,
// anything more is composite.
const (
	ServiceSimple    = "simple_service"
	ServiceComposite = "composite_service"
)

// SubIntent is one domain-scoped facet of an intent. The domain is an open
// set: "compute", "database", "connectivity", whatever the request calls for.
type SubIntent struct {
	Domain       string           `json:"domain"`
	Requirements map[string]Value `json:"requirements"`
}

// Intent is the canonical structured representation of a service request,
// produced once by interpretation and immutable afterwards. A failed
// translation retries against the same Intent.
type Intent struct {
	IntentID   string           `json:"intent_id,omitempty"`
	Kind       string           `json:"type"`
	SubIntents []SubIntent      `json:"sub_intents"`
	Location   string           `json:"location,omitempty"`
	QoS        map[string]Value `json:"qos,omitempty"`
}

// KindFor returns the service kind matching a sub-intent count.
func KindFor(subIntents int) string {
	if subIntents <= 1 {
		return ServiceSimple
	}
	return ServiceComposite
}

// Normalize fills in generated fields on a freshly interpreted intent:
// a UUID intent_id when absent and the kind derived from sub-intent
// cardinality when the extraction left it empty. It never adds, removes,
// or reorders sub-intents.
func (in *Intent) Normalize() {
	if in.IntentID == "" {
		in.IntentID = uuid.NewString()
	}
	if in.Kind == "" {
		in.Kind = KindFor(len(in.SubIntents))
	}
}

// Validate enforces the structural invariants: at least one sub-intent,
// every sub-intent names a domain, and the kind matches the sub-intent
// cardinality. Violations are rejected, never coerced.
func (in *Intent) Validate() error {
	if len(in.SubIntents) == 0 {
		return errors.New("intent has no sub-intents")
	}
	if want := KindFor(len(in.SubIntents)); in.Kind != want {
		return fmt.Errorf("intent kind %q does not match %d sub-intent(s), want %q", in.Kind, len(in.SubIntents), want)
	}
	for i, si := range in.SubIntents {
		if si.Domain == "" {
			return fmt.Errorf("sub-intent %d has an empty domain", i)
		}
	}
	return nil
}
