package evaluation

import (
	"github.com/ricesearch/qac-eval/internal/pkg/errors"
)

// Accumulator sums scores for one partition.
type Accumulator struct {
	count      int
	mrrSum     float64
	successSum float64
}

// Add folds one score into the running sums.
func (a *Accumulator) Add(s Score) {
	a.count++
	a.mrrSum += s.MRR
	a.successSum += s.Success
}

// Count returns the number of records added.
func (a *Accumulator) Count() int {
	return a.count
}

// Report returns the partition means. An empty partition has no mean.
func (a *Accumulator) Report(p Partition) (Report, error) {
	if a.count == 0 {
		return Report{}, errors.EmptyPartitionError(string(p))
	}
	n := float64(a.count)
	return Report{
		Partition:       p,
		Count:           a.count,
		MeanMRR:         a.mrrSum / n,
		MeanSuccessRate: a.successSum / n,
	}, nil
}

// Aggregator feeds seen, unseen and total accumulators in a single pass.
type Aggregator struct {
	table  *ScoreTable
	seen   Accumulator
	unseen Accumulator
	total  Accumulator
}

// NewAggregator creates an aggregator scoring through table.
func NewAggregator(table *ScoreTable) *Aggregator {
	return &Aggregator{table: table}
}

// Add scores rank once and adds it to its partition and to the total.
func (a *Aggregator) Add(rank Rank, p Partition) {
	s := a.table.Lookup(rank)
	if p == PartitionSeen {
		a.seen.Add(s)
	} else {
		a.unseen.Add(s)
	}
	a.total.Add(s)
}

// AddAll adds ranks that all belong to partition p.
func (a *Aggregator) AddAll(ranks []Rank, p Partition) {
	for _, r := range ranks {
		a.Add(r, p)
	}
}

// Count returns the number of records in partition p.
func (a *Aggregator) Count(p Partition) int {
	return a.accumulator(p).Count()
}

// Report returns the report for a single partition.
func (a *Aggregator) Report(p Partition) (Report, error) {
	return a.accumulator(p).Report(p)
}

// Reports returns one report per requested partition, in order. It fails on
// the first empty partition without returning any report.
func (a *Aggregator) Reports(partitions ...Partition) ([]Report, error) {
	if len(partitions) == 0 {
		partitions = AllPartitions
	}
	reports := make([]Report, 0, len(partitions))
	for _, p := range partitions {
		r, err := a.Report(p)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func (a *Aggregator) accumulator(p Partition) *Accumulator {
	switch p {
	case PartitionSeen:
		return &a.seen
	case PartitionUnseen:
		return &a.unseen
	default:
		return &a.total
	}
}
