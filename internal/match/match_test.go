package match

import (
	"math"
	"testing"

	"github.com/andresmejia3/rollcall/internal/types"
)

func TestEuclideanDist(t *testing.T) {
	tests := []struct {
		name string
		a    []float64
		b    []float64
		want float64
	}{
		{"Identical vectors", []float64{1, 2}, []float64{1, 2}, 0},
		{"3-4-5 triangle", []float64{0, 0}, []float64{3, 4}, 5},
		{"Empty vectors", []float64{}, []float64{}, 0},
		{"Length mismatch", []float64{1}, []float64{1, 2}, math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EuclideanDist(tt.a, tt.b)
			if math.IsInf(tt.want, 1) {
				if !math.IsInf(got, 1) {
					t.Errorf("EuclideanDist() = %v, want +Inf", got)
				}
				return
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("EuclideanDist() = %v, want %v", got, tt.want)
			}
		})
	}
}

// at returns a 2-d point at distance d from the origin along the x axis.
func at(d float64) []float64 { return []float64{d, 0} }

func TestMatch(t *testing.T) {
	alice := []float64{0, 0}
	bob := []float64{0, 1.3}
	known := [][]float64{alice, bob}
	names := []string{"ALICE", "BOB"}

	tests := []struct {
		name     string
		query    []float64
		wantName string
		wantIdx  int
	}{
		// 0.40 from ALICE, ~1.36 from BOB
		{"Closest below tolerance", at(0.40), "ALICE", 0},
		{"Just below tolerance", at(DefaultTolerance - 1e-6), "ALICE", 0},
		{"Just above tolerance", at(DefaultTolerance + 1e-6), types.Unknown, -1},
		{"Exactly at tolerance is rejected", at(DefaultTolerance), types.Unknown, -1},
		{"Closer to BOB", []float64{0, 1.1}, "BOB", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Match(known, names, tt.query, DefaultTolerance)
			if got.Name != tt.wantName || got.Index != tt.wantIdx {
				t.Errorf("Match() = %+v, want name %s index %d", got, tt.wantName, tt.wantIdx)
			}
		})
	}
}

func TestMatch_ThresholdExample(t *testing.T) {
	// query sits 0.40 from ALICE and exactly 0.90 from BOB
	known := [][]float64{{0, 0}, {0.4, 0.9}}
	query := at(0.40)

	d := FaceDistances(known, query)
	if math.Abs(d[0]-0.40) > 1e-9 || math.Abs(d[1]-0.90) > 1e-9 {
		t.Fatalf("Unexpected fixture distances %v", d)
	}

	got := Match(known, []string{"ALICE", "BOB"}, query, 0.55)
	if got.Name != "ALICE" || got.Index != 0 || math.Abs(got.Distance-0.40) > 1e-9 {
		t.Errorf("Match() = %+v, want ALICE at 0.40", got)
	}
}

func TestMatch_IdentityNamedUnknown(t *testing.T) {
	got := Match([][]float64{{0, 0}}, []string{"unknown"}, at(0.1), DefaultTolerance)
	if !got.Known() || got.Index != 0 {
		t.Errorf("Expected enrolled identity named unknown to match, got %+v", got)
	}
}

func TestMatch_UnknownKeepsBestDistance(t *testing.T) {
	known := [][]float64{{0, 0}, {10, 0}}
	got := Match(known, []string{"ALICE", "BOB"}, at(0.9), DefaultTolerance)
	if got.Known() {
		t.Fatalf("Expected UNKNOWN, got %s", got.Name)
	}
	if math.Abs(got.Distance-0.9) > 1e-9 {
		t.Errorf("Expected diagnostic distance 0.9, got %v", got.Distance)
	}
}

func TestMatch_TieBreaksOnFirstOccurrence(t *testing.T) {
	known := [][]float64{{1, 0}, {-1, 0}}
	got := Match(known, []string{"FIRST", "SECOND"}, []float64{0, 0}, 1.5)
	if got.Name != "FIRST" {
		t.Errorf("Expected FIRST on exact tie, got %s", got.Name)
	}
}

func TestMatch_EmptyKnownSet(t *testing.T) {
	got := Match(nil, nil, at(0), DefaultTolerance)
	if got.Known() {
		t.Errorf("Expected UNKNOWN for empty known set, got %s", got.Name)
	}
	if !math.IsInf(got.Distance, 1) {
		t.Errorf("Expected +Inf distance, got %v", got.Distance)
	}
}

func TestCompareFaces(t *testing.T) {
	known := [][]float64{{0, 0}, {1, 0}}
	got := CompareFaces(known, at(0.5), 0.5)
	if !got[0] || !got[1] {
		t.Errorf("CompareFaces() = %v, want both within inclusive tolerance", got)
	}
	got = CompareFaces(known, at(2), 0.5)
	if got[0] || got[1] {
		t.Errorf("CompareFaces() = %v, want none", got)
	}
}
