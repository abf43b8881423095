package evaluation

import "strings"

// RankOf returns the 1-based position of the first candidate equal to query,
// or NotFound. Matching is exact; callers normalize beforehand.
func RankOf(query string, candidates []string) Rank {
	for i, c := range candidates {
		if c == query {
			return Rank(i + 1)
		}
	}
	return NotFound
}

// ParseCandidates splits a tab-separated completion line.
// Surrounding whitespace is trimmed; an empty line has no candidates.
func ParseCandidates(line string) []string {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	return strings.Split(line, "\t")
}

// ReciprocalRank returns 1/rank for ranks within the top k, else 0.
func ReciprocalRank(rank Rank, k int) float64 {
	if rank < 1 || int(rank) > k {
		return 0
	}
	return 1.0 / float64(rank)
}

// SuccessAt returns 1 if rank falls within the top k, else 0.
func SuccessAt(rank Rank, k int) float64 {
	if rank < 1 || int(rank) > k {
		return 0
	}
	return 1
}

// ScoreTable maps ranks to scores. Index 0 is the not-found bucket; the
// table holds topK+1 entries and is immutable after construction.
type ScoreTable struct {
	topK    int
	mrr     []float64
	success []float64
}

// NewScoreTable builds the lookup tables for a cutoff of topK.
func NewScoreTable(topK int) *ScoreTable {
	if topK < 0 {
		topK = 0
	}
	t := &ScoreTable{
		topK:    topK,
		mrr:     make([]float64, topK+1),
		success: make([]float64, topK+1),
	}
	for r := 1; r <= topK; r++ {
		t.mrr[r] = ReciprocalRank(Rank(r), topK)
		t.success[r] = SuccessAt(Rank(r), topK)
	}
	return t
}

// TopK returns the cutoff the table was built for.
func (t *ScoreTable) TopK() int {
	return t.topK
}

// Lookup returns the score for rank. Ranks beyond the cutoff, and negative
// ranks, fall into the not-found bucket.
func (t *ScoreTable) Lookup(rank Rank) Score {
	idx := int(rank)
	if idx < 0 || idx > t.topK {
		idx = int(NotFound)
	}
	return Score{
		MRR:     t.mrr[idx],
		Success: t.success[idx],
	}
}
