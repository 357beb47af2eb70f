package facematch

import (
	"math"
	"testing"
)

// probeAt returns a 2-d embedding at the given distance from the origin along x.
func probeAt(d float32) Embedding {
	return Embedding{d, 0}
}

func TestEuclideanDistance(t *testing.T) {
	tests := []struct {
		name     string
		a        Embedding
		b        Embedding
		expected float64
	}{
		{"identical", Embedding{1, 2, 3}, Embedding{1, 2, 3}, 0},
		{"3-4-5 triangle", Embedding{0, 0}, Embedding{3, 4}, 5},
		{"single dimension", Embedding{0.25}, Embedding{-0.25}, 0.5},
		{"dimension mismatch", Embedding{1, 2}, Embedding{1, 2, 3}, math.Inf(1)},
		{"empty", Embedding{}, Embedding{}, math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := EuclideanDistance(tt.a, tt.b)
			if math.IsInf(tt.expected, 1) {
				if !math.IsInf(result, 1) {
					t.Errorf("EuclideanDistance(%v, %v) = %v, want +Inf", tt.a, tt.b, result)
				}
				return
			}
			if math.Abs(result-tt.expected) > 1e-6 {
				t.Errorf("EuclideanDistance(%v, %v) = %v, want %v", tt.a, tt.b, result, tt.expected)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	origin := Embedding{0, 0}

	tests := []struct {
		name      string
		entries   []Entry
		tolerance float64
		expected  string
	}{
		{
			name:      "empty gallery",
			entries:   nil,
			tolerance: 0.6,
			expected:  "",
		},
		{
			name: "nearest wins over farther passing entry",
			entries: []Entry{
				{Name: "B", Embedding: probeAt(0.5)},
				{Name: "A", Embedding: probeAt(0.3)},
			},
			tolerance: 0.6,
			expected:  "A",
		},
		{
			name: "nearest beyond tolerance is unknown",
			entries: []Entry{
				{Name: "A", Embedding: probeAt(0.7)},
				{Name: "B", Embedding: probeAt(0.9)},
			},
			tolerance: 0.6,
			expected:  "",
		},
		{
			name: "distance equal to tolerance is accepted",
			entries: []Entry{
				{Name: "A", Embedding: probeAt(0.5)},
			},
			tolerance: 0.5,
			expected:  "A",
		},
		{
			name: "tie goes to earliest entry",
			entries: []Entry{
				{Name: "First", Embedding: Embedding{0.3, 0}},
				{Name: "Second", Embedding: Embedding{0, 0.3}},
			},
			tolerance: 0.6,
			expected:  "First",
		},
		{
			name: "mismatched dimension never matches",
			entries: []Entry{
				{Name: "A", Embedding: Embedding{0, 0, 0}},
			},
			tolerance: 10,
			expected:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Match(origin, tt.entries, tt.tolerance)
			if result.Name != tt.expected {
				t.Errorf("Match() = %q, want %q (distance %v)", result.Name, tt.expected, result.Distance)
			}
			if result.Identified() != (tt.expected != "") {
				t.Errorf("Identified() = %v, want %v", result.Identified(), tt.expected != "")
			}
		})
	}
}

func TestMatch_EmptyGalleryAnyProbe(t *testing.T) {
	probes := []Embedding{{0}, {1, 2, 3}, {-5, 5}, {}}
	for _, p := range probes {
		if r := Match(p, nil, 100); r.Identified() {
			t.Errorf("Match(%v, empty) identified %q", p, r.Name)
		}
	}
}

func TestMatch_ReportsNearestDistanceWhenUnknown(t *testing.T) {
	entries := []Entry{{Name: "A", Embedding: probeAt(0.7)}}

	result := Match(Embedding{0, 0}, entries, 0.6)

	if math.Abs(result.Distance-0.7) > 1e-6 {
		t.Errorf("expected distance 0.7, got %v", result.Distance)
	}
}

func TestMatchResultLabel(t *testing.T) {
	if got := (MatchResult{}).Label("Unknown"); got != "Unknown" {
		t.Errorf("Label() = %q, want Unknown", got)
	}
	if got := (MatchResult{Name: "Alice"}).Label("Unknown"); got != "Alice" {
		t.Errorf("Label() = %q, want Alice", got)
	}
}

func TestDistances(t *testing.T) {
	entries := []Entry{
		{Name: "A", Embedding: probeAt(3)},
		{Name: "B", Embedding: Embedding{0, 4}},
	}

	result := Distances(Embedding{0, 0}, entries)

	if len(result) != 2 || result[0] != 3 || result[1] != 4 {
		t.Errorf("Distances() = %v, want [3 4]", result)
	}
}
