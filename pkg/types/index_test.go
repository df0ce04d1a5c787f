// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"testing"
)

func TestNormalizeRef(t *testing.T) {
	tests := []struct {
		name string
		ref  any
		want Index
	}{
		{"pair", []any{"Alpha", true}, Index{"alpha", true}},
		{"pair string flag", []any{"alpha", "true"}, Index{"alpha", true}},
		{"pair numeric string flag", []any{"alpha", "1"}, Index{"alpha", true}},
		{"pair mixed-case flag", []any{"alpha", "TRUE"}, Index{"alpha", true}},
		{"pair falsy string", []any{"alpha", "yes"}, Index{"alpha", false}},
		{"pair wrong arity", []any{"alpha"}, Index{}},
		{"pair non-string name", []any{7, true}, Index{}},
		{"object restricted", map[string]any{"name": "Beta", "restricted": true}, Index{"beta", true}},
		{"object is_restricted", map[string]any{"name": "beta", "is_restricted": "1"}, Index{"beta", true}},
		{"object no flag", map[string]any{"name": "beta"}, Index{"beta", false}},
		{"object missing name", map[string]any{"restricted": true}, Index{}},
		{"bare string", "Gamma ", Index{"gamma", false}},
		{"canonical", Index{Name: "Delta", Restricted: true}, Index{"delta", true}},
		{"nil", nil, Index{}},
		{"number", 42.0, Index{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeRef(tt.ref); got != tt.want {
				t.Errorf("NormalizeRef(%v) = %v, want %v", tt.ref, got, tt.want)
			}
		})
	}
}

func TestNormalizeRefIdempotent(t *testing.T) {
	shapes := []any{
		[]any{"Alpha", "true"},
		map[string]any{"name": "beta", "is_restricted": "1"},
		"gamma",
		Index{Name: "delta", Restricted: true},
		nil,
	}
	for _, s := range shapes {
		once := NormalizeRef(s)
		twice := NormalizeRef(once)
		if once != twice {
			t.Errorf("NormalizeRef not idempotent for %v: %v != %v", s, once, twice)
		}
	}
}

func TestIndexUnmarshalJSON(t *testing.T) {
	// One list mixing every wire shape the backend has produced.
	payload := `{"indexes": [
		"plain",
		["paired", "1"],
		{"name": "Tagged", "is_restricted": true},
		{"name": "modern", "restricted": "true"},
		12
	]}`

	var resp struct {
		Indexes []Index `json:"indexes"`
	}
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	want := []Index{
		{"plain", false},
		{"paired", true},
		{"tagged", true},
		{"modern", true},
		{},
	}
	if len(resp.Indexes) != len(want) {
		t.Fatalf("len = %d, want %d", len(resp.Indexes), len(want))
	}
	for i, w := range want {
		if resp.Indexes[i] != w {
			t.Errorf("indexes[%d] = %v, want %v", i, resp.Indexes[i], w)
		}
	}
}

func TestIndexIdentityPair(t *testing.T) {
	open := Index{Name: "docs", Restricted: false}
	locked := Index{Name: "docs", Restricted: true}
	if open.Equal(locked) {
		t.Error("same name with different restricted flags must be distinct")
	}
	if !open.Equal(Index{Name: "docs"}) {
		t.Error("equal pairs must compare equal")
	}
}

func TestJobStateTerminal(t *testing.T) {
	tests := []struct {
		state    JobState
		terminal bool
	}{
		{JobNotStarted, false},
		{JobInProgress, false},
		{JobCompleted, true},
		{JobFailed, true},
	}
	for _, tt := range tests {
		if got := tt.state.Terminal(); got != tt.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tt.state, got, tt.terminal)
		}
	}
}

func TestIndexString(t *testing.T) {
	if got := (Index{Name: "docs", Restricted: true}).String(); got != "docs (restricted)" {
		t.Errorf("String() = %q", got)
	}
	if got := (Index{Name: "docs"}).String(); got != "docs" {
		t.Errorf("String() = %q", got)
	}
}
