package translate

import (
	"errors"
	"testing"
	"time"

	"github.com/ibn-labs/fulcrum/internal/types"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func testTranslator() *Translator {
	tr := New("fulcrum")
	tr.now = fixedNow
	return tr
}

func testIntent() *types.Intent {
	return &types.Intent{
		IntentID: "intent-42",
		Kind:     types.ServiceComposite,
		SubIntents: []types.SubIntent{
			{Domain: "cloud", Requirements: map[string]types.Value{
				"cpu": types.Number(4),
				"ram": types.String("2GB"),
			}},
			{Domain: "connectivity", Requirements: map[string]types.Value{
				"bandwidth": types.String("5Gbps"),
			}},
		},
		Location: "Nice",
		QoS:      map[string]types.Value{"max_latency": types.String("5ms")},
	}
}

func testCandidates() []types.Candidate {
	return []types.Candidate{
		{ID: "spec-a", Score: 0.9, Name: "Cloud Bundle"},
		{ID: "spec-b", Score: 0.8, Name: "Transport Link"},
	}
}

func TestTranslate_NoCandidatesIsUntranslatable(t *testing.T) {
	_, err := testTranslator().Translate(testIntent(), nil, nil)
	if !errors.Is(err, ErrUntranslatable) {
		t.Errorf("expected ErrUntranslatable, got %v", err)
	}
}

func TestTranslate_ItemIDsFollowCandidateOrder(t *testing.T) {
	order, err := testTranslator().Translate(testIntent(), testCandidates(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(order.ServiceOrderItem) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.ServiceOrderItem))
	}
	for i, item := range order.ServiceOrderItem {
		wantID := string(rune('1' + i))
		if item.ID != wantID {
			t.Errorf("item %d id = %s, want %s", i, item.ID, wantID)
		}
		if item.Action != types.ActionAdd {
			t.Errorf("item %d action = %s, want add", i, item.Action)
		}
	}
	if order.ServiceOrderItem[0].Service.ServiceSpecification.ID != "spec-a" {
		t.Errorf("first item should reference spec-a")
	}
	if order.ServiceOrderItem[1].Service.ServiceSpecification.ID != "spec-b" {
		t.Errorf("second item should reference spec-b")
	}
}

func TestTranslate_CharacteristicsTypedAndPlaced(t *testing.T) {
	order, err := testTranslator().Translate(testIntent(), testCandidates(), nil)
	if err != nil {
		t.Fatal(err)
	}

	first := order.ServiceOrderItem[0].Service.ServiceCharacteristic
	byName := map[string]types.Characteristic{}
	for _, c := range first {
		byName[c.Name] = c
	}

	if c, ok := byName["location"]; !ok || c.Value.AsString() != "Nice" {
		t.Errorf("expected location characteristic on first item, got %+v", byName)
	}
	if c, ok := byName["max_latency"]; !ok || c.Value.AsString() != "5ms" {
		t.Errorf("expected qos characteristic on first item")
	} else if c.ValueType != "string" {
		t.Errorf("max_latency valueType = %s, want string", c.ValueType)
	}
	if c, ok := byName["cpu"]; !ok || c.ValueType != "number" || c.Value.AsNumber() != 4 {
		t.Errorf("cpu characteristic = %+v", c)
	}

	second := order.ServiceOrderItem[1].Service.ServiceCharacteristic
	if len(second) != 1 || second[0].Name != "bandwidth" {
		t.Errorf("second item characteristics = %+v, want bandwidth only", second)
	}
}

func TestTranslate_ExtraSubIntentsFoldIntoLastItem(t *testing.T) {
	intent := testIntent()
	single := testCandidates()[:1]

	order, err := testTranslator().Translate(intent, single, nil)
	if err != nil {
		t.Fatal(err)
	}
	chars := order.ServiceOrderItem[0].Service.ServiceCharacteristic
	names := map[string]bool{}
	for _, c := range chars {
		names[c.Name] = true
	}
	// Requirements from both sub-intents land on the only item.
	for _, want := range []string{"cpu", "ram", "bandwidth"} {
		if !names[want] {
			t.Errorf("missing characteristic %s on folded item", want)
		}
	}
}

func TestTranslate_Deterministic(t *testing.T) {
	tr := testTranslator()
	a, err := tr.Translate(testIntent(), testCandidates(), nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := tr.Translate(testIntent(), testCandidates(), nil)
	if err != nil {
		t.Fatal(err)
	}
	ca := a.ServiceOrderItem[0].Service.ServiceCharacteristic
	cb := b.ServiceOrderItem[0].Service.ServiceCharacteristic
	if len(ca) != len(cb) {
		t.Fatalf("characteristic counts differ: %d vs %d", len(ca), len(cb))
	}
	for i := range ca {
		if ca[i].Name != cb[i].Name {
			t.Errorf("characteristic order differs at %d: %s vs %s", i, ca[i].Name, cb[i].Name)
		}
	}
}

func TestTranslate_CorrelationAndDates(t *testing.T) {
	order, err := testTranslator().Translate(testIntent(), testCandidates(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if order.ExternalID != "intent-42" {
		t.Errorf("externalId = %s, want intent-42", order.ExternalID)
	}
	if order.RequestedStartDate == nil || order.RequestedCompletionDate == nil {
		t.Fatal("expected both requested dates set")
	}
	if order.RequestedCompletionDate.Before(*order.RequestedStartDate) {
		t.Error("completion date before start date")
	}
}

func TestTranslate_RepairsDateHint(t *testing.T) {
	tr := testTranslator()
	hints := []string{"requestedStartDate must not be after requestedCompletionDate"}
	order, err := tr.Translate(testIntent(), testCandidates(), hints)
	if err != nil {
		t.Fatal(err)
	}
	if !order.RequestedCompletionDate.After(*order.RequestedStartDate) {
		t.Error("expected repaired completion date after start date")
	}
}

func TestTranslate_EmptyRequirementNameIsUntranslatable(t *testing.T) {
	intent := testIntent()
	intent.SubIntents[0].Requirements[""] = types.Bool(true)
	_, err := testTranslator().Translate(intent, testCandidates(), nil)
	if !errors.Is(err, ErrUntranslatable) {
		t.Errorf("expected ErrUntranslatable, got %v", err)
	}
}
