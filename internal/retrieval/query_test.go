package retrieval

import (
	"testing"

	"github.com/ibn-labs/fulcrum/internal/types"
)

func queryIntent() *types.Intent {
	return &types.Intent{
		IntentID: "q-1",
		Kind:     types.ServiceComposite,
		Location: "Nice",
		QoS: map[string]types.Value{
			"max_latency": types.String("5ms"),
		},
		SubIntents: []types.SubIntent{
			{Domain: "cloud", Requirements: map[string]types.Value{
				"cpu":          types.Number(4),
				"applications": types.StringList([]string{"ar_server", "vr_engine"}),
			}},
			{Domain: "ran", Requirements: map[string]types.Value{
				"network_type": types.String("5G"),
			}},
		},
	}
}

func TestBuildQuery_FieldOrder(t *testing.T) {
	got := BuildQuery(queryIntent())
	want := "composite service location: Nice max_latency: 5ms cloud domain applications: ar_server, vr_engine cpu: 4 ran domain network_type: 5G"
	if got != want {
		t.Errorf("BuildQuery =\n%q\nwant\n%q", got, want)
	}
}

func TestBuildQuery_Deterministic(t *testing.T) {
	// Same structure assembled twice; map iteration order must not leak into
	// the query text.
	for i := 0; i < 100; i++ {
		a := BuildQuery(queryIntent())
		b := BuildQuery(queryIntent())
		if a != b {
			t.Fatalf("query text differs between calls:\n%q\n%q", a, b)
		}
	}
}

func TestBuildQuery_SubIntentInputOrderPreserved(t *testing.T) {
	in := queryIntent()
	in.SubIntents[0], in.SubIntents[1] = in.SubIntents[1], in.SubIntents[0]
	got := BuildQuery(in)
	want := "composite service location: Nice max_latency: 5ms ran domain network_type: 5G cloud domain applications: ar_server, vr_engine cpu: 4"
	if got != want {
		t.Errorf("BuildQuery =\n%q\nwant\n%q", got, want)
	}
}

func TestBuildQuery_MinimalIntent(t *testing.T) {
	in := &types.Intent{
		Kind:       types.ServiceSimple,
		SubIntents: []types.SubIntent{{Domain: "database", Requirements: map[string]types.Value{"type": types.String("relational")}}},
	}
	got := BuildQuery(in)
	want := "simple service database domain type: relational"
	if got != want {
		t.Errorf("BuildQuery = %q, want %q", got, want)
	}
}
