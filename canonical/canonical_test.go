package canonical_test

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/ledgerflow/ledgerflow/canonical"
)

func TestMarshal_SortsObjectKeys(t *testing.T) {
	a, err := canonical.Marshal(map[string]any{"b": 1, "a": 2, "c": 3})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	b, err := canonical.Marshal(map[string]any{"c": 3, "a": 2, "b": 1})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if string(a) != string(b) {
		t.Errorf("Expected identical output for reordered maps, got %s and %s", a, b)
	}
	if string(a) != `{"a":2,"b":1,"c":3}` {
		t.Errorf("Expected sorted keys, got %s", a)
	}
}

func TestMarshal_ArrayOrderIsSignificant(t *testing.T) {
	a, err := canonical.Marshal([]any{1, 2, 3})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	b, err := canonical.Marshal([]any{3, 2, 1})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if string(a) == string(b) {
		t.Error("Expected reordered arrays to produce different output")
	}
}

func TestMarshal_Scalars(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"nil", nil, "null"},
		{"true", true, "true"},
		{"false", false, "false"},
		{"int", 42, "42"},
		{"negative int", -7, "-7"},
		{"float", 1.5, "1.5"},
		{"float without exponent noise", 1000000.0, "1e+06"},
		{"string", "hello", `"hello"`},
		{"string without html escaping", "a<b>&c", `"a<b>&c"`},
		{"json number", json.Number("9007199254740993"), "9007199254740993"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := canonical.Marshal(tt.input)
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestMarshal_ForeignTypesRoundTripThroughJSON(t *testing.T) {
	type point struct {
		Y int `json:"y"`
		X int `json:"x"`
	}

	got, err := canonical.Marshal(point{Y: 2, X: 1})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if string(got) != `{"x":1,"y":2}` {
		t.Errorf("Expected struct keys sorted, got %s", got)
	}
}

func TestMarshal_RejectsCycles(t *testing.T) {
	inner := map[string]any{}
	outer := map[string]any{"inner": inner}
	inner["outer"] = outer

	if _, err := canonical.Marshal(outer); err == nil {
		t.Error("Expected an error for a cyclic structure")
	}
}

func TestMarshal_Golden(t *testing.T) {
	fixture := map[string]any{
		"b":      1,
		"a":      "héllo",
		"list":   []any{1.5, "x", nil},
		"nested": map[string]any{"z": true, "y": []any{}},
	}

	got, err := canonical.Marshal(fixture)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	g := goldie.New(t)
	g.Assert(t, "canonical", got)
}

func TestHash_DomainSeparation(t *testing.T) {
	payload := map[string]any{"key": "value"}

	stateHash := canonical.HashIn(canonical.DomainState, payload)
	eventHash := canonical.HashIn(canonical.DomainEvent, payload)

	if stateHash == eventHash {
		t.Error("Expected different hashes under different domains")
	}
	if len(stateHash) != 64 {
		t.Errorf("Expected 64 hex characters, got %d", len(stateHash))
	}
}

func TestHash_Deterministic(t *testing.T) {
	first := canonical.Hash(map[string]any{"x": 1, "y": []any{"a", "b"}})
	second := canonical.Hash(map[string]any{"y": []any{"a", "b"}, "x": 1})

	if first != second {
		t.Errorf("Expected equal hashes, got %s and %s", first, second)
	}
}

func TestEmptyHash_IsHashOfNull(t *testing.T) {
	if canonical.EmptyHash != canonical.Hash(nil) {
		t.Error("Expected EmptyHash to equal the hash of nil")
	}
}
