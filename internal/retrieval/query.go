package retrieval

import (
	"sort"
	"strings"

	"github.com/ibn-labs/fulcrum/internal/types"
)

// BuildQuery flattens an intent into the text embedded for catalog search.
// The field order is fixed: kind, location, qos pairs, then each sub-intent
// in input order with its requirement pairs. Map-backed fields emit their
// keys sorted, so structurally equal intents always produce byte-identical
// query text.
func BuildQuery(intent *types.Intent) string {
	var parts []string

	if intent.Kind != "" {
		parts = append(parts, strings.ReplaceAll(intent.Kind, "_", " "))
	}
	if intent.Location != "" {
		parts = append(parts, "location: "+intent.Location)
	}
	for _, key := range sortedKeys(intent.QoS) {
		parts = append(parts, key+": "+intent.QoS[key].Text())
	}

	for _, sub := range intent.SubIntents {
		parts = append(parts, sub.Domain+" domain")
		for _, key := range sortedKeys(sub.Requirements) {
			parts = append(parts, key+": "+sub.Requirements[key].Text())
		}
	}

	return strings.Join(parts, " ")
}

func sortedKeys(m map[string]types.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
