package evaluation

import (
	"math"
	"reflect"
	"testing"
)

func TestRankOf(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		candidates []string
		want       Rank
	}{
		{"first position", "cat", []string{"cat", "dog"}, 1},
		{"second position", "dog", []string{"cat", "dog"}, 2},
		{"absent", "fish", []string{"cat", "dog"}, NotFound},
		{"no candidates", "cat", nil, NotFound},
		{"duplicates resolve to earliest", "cat", []string{"dog", "cat", "cat"}, 2},
		{"case sensitive", "Cat", []string{"cat"}, NotFound},
		{"no trimming", "cat", []string{"cat "}, NotFound},
		{"empty query matches empty candidate", "", []string{"a", ""}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RankOf(tt.query, tt.candidates); got != tt.want {
				t.Errorf("RankOf(%q, %q) = %d, want %d", tt.query, tt.candidates, got, tt.want)
			}
		})
	}
}

func TestParseCandidates(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"two candidates", "cat\tdog", []string{"cat", "dog"}},
		{"single candidate", "cat", []string{"cat"}},
		{"empty line", "", nil},
		{"whitespace only", "  \t ", nil},
		{"surrounding whitespace trimmed", " cat\tdog\r", []string{"cat", "dog"}},
		{"inner empty kept", "cat\t\tdog", []string{"cat", "", "dog"}},
		{"inner spaces kept", "cat food\tdog", []string{"cat food", "dog"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCandidates(tt.line); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseCandidates(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

func TestScoreTable_WithinCutoff(t *testing.T) {
	const topK = 10
	table := NewScoreTable(topK)

	for r := 0; r <= topK; r++ {
		got := table.Lookup(Rank(r))

		wantMRR, wantSuccess := 0.0, 0.0
		if r > 0 {
			wantMRR, wantSuccess = 1.0/float64(r), 1.0
		}
		if math.Abs(got.MRR-wantMRR) > 1e-12 {
			t.Errorf("Lookup(%d).MRR = %v, want %v", r, got.MRR, wantMRR)
		}
		if got.Success != wantSuccess {
			t.Errorf("Lookup(%d).Success = %v, want %v", r, got.Success, wantSuccess)
		}
	}
}

func TestScoreTable_BeyondCutoffIsNotFound(t *testing.T) {
	table := NewScoreTable(10)
	notFound := table.Lookup(NotFound)

	for _, r := range []Rank{11, 15, 1000, -1} {
		if got := table.Lookup(r); got != notFound {
			t.Errorf("Lookup(%d) = %+v, want %+v", r, got, notFound)
		}
	}
}

func TestScoreTable_TopK(t *testing.T) {
	if got := NewScoreTable(5).TopK(); got != 5 {
		t.Errorf("TopK() = %d, want 5", got)
	}
	if got := NewScoreTable(-3).TopK(); got != 0 {
		t.Errorf("TopK() = %d, want 0 for negative cutoff", got)
	}
}

func TestReciprocalRankAndSuccessAt(t *testing.T) {
	tests := []struct {
		rank        Rank
		k           int
		wantRR      float64
		wantSuccess float64
	}{
		{1, 10, 1, 1},
		{4, 10, 0.25, 1},
		{10, 10, 0.1, 1},
		{11, 10, 0, 0},
		{NotFound, 10, 0, 0},
	}

	for _, tt := range tests {
		if got := ReciprocalRank(tt.rank, tt.k); got != tt.wantRR {
			t.Errorf("ReciprocalRank(%d, %d) = %v, want %v", tt.rank, tt.k, got, tt.wantRR)
		}
		if got := SuccessAt(tt.rank, tt.k); got != tt.wantSuccess {
			t.Errorf("SuccessAt(%d, %d) = %v, want %v", tt.rank, tt.k, got, tt.wantSuccess)
		}
	}
}
