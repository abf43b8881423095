package evaluation

import "time"

// Rank is the 1-based position of a query inside its candidate list.
// NotFound (0) means the query is absent.
type Rank int

// NotFound is the rank of a query missing from its candidates.
const NotFound Rank = 0

// Partition names a report bucket.
type Partition string

const (
	PartitionSeen   Partition = "seen"
	PartitionUnseen Partition = "unseen"
	PartitionTotal  Partition = "total"
)

// AllPartitions lists partitions in report order.
var AllPartitions = []Partition{PartitionSeen, PartitionUnseen, PartitionTotal}

// QueryRecord is one evaluation instance: a target query and the
// model's ranked completions for its prefix.
type QueryRecord struct {
	Query      string   `json:"query"`
	Candidates []string `json:"candidates"`
}

// Score is the per-record contribution of a rank to each metric.
type Score struct {
	MRR     float64 `json:"mrr"`
	Success float64 `json:"success"`
}

// Report aggregates scores over one partition.
type Report struct {
	Partition       Partition `json:"partition"`
	Count           int       `json:"count"`
	MeanMRR         float64   `json:"mean_mrr"`
	MeanSuccessRate float64   `json:"mean_success_rate"`
}

// RunSummary describes one finished evaluation run for publication and history.
type RunSummary struct {
	ID               string        `json:"id"`
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration"`
	TopK             int           `json:"top_k"`
	QueryFile        string        `json:"query_file"`
	CompletionFile   string        `json:"completion_file"`
	SeenFile         string        `json:"seen_file,omitempty"`
	QueryDigest      string        `json:"query_digest,omitempty"`
	CompletionDigest string        `json:"completion_digest,omitempty"`
	Records          int           `json:"records"`
	Truncated        bool          `json:"truncated,omitempty"`
	Reports          []Report      `json:"reports"`
}

// Report returns the report for partition p, if the run has one.
func (s *RunSummary) Report(p Partition) (Report, bool) {
	for _, r := range s.Reports {
		if r.Partition == p {
			return r, true
		}
	}
	return Report{}, false
}
