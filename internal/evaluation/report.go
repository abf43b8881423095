package evaluation

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ricesearch/qac-eval/internal/pkg/errors"
)

// WriteReports prints each report as a three-line stanza:
//
//	# seen queries: 12
//	MRR: 0.4321
//	Success Rate: 0.8000
func WriteReports(w io.Writer, reports []Report) error {
	bw := bufio.NewWriter(w)
	for _, r := range reports {
		fmt.Fprintf(bw, "# %s queries: %d\n", r.Partition, r.Count)
		fmt.Fprintf(bw, "MRR: %0.4f\n", r.MeanMRR)
		fmt.Fprintf(bw, "Success Rate: %0.4f\n", r.MeanSuccessRate)
	}
	return bw.Flush()
}

// ReportPartitions returns the partitions worth reporting for seen. Without a
// seen file nothing can be seen, so only unseen and total are reported; with
// one (even an empty file) all three are, and an empty seen partition fails.
func ReportPartitions(seen *SeenSet) []Partition {
	if seen == nil || !seen.Supplied() {
		return []Partition{PartitionUnseen, PartitionTotal}
	}
	return AllPartitions
}

// RunFiles opens the query and completion files and runs the evaluator over them.
func (e *Evaluator) RunFiles(ctx context.Context, queryPath, completionPath string) (*Result, error) {
	qf, err := os.Open(queryPath)
	if err != nil {
		return nil, errors.IOError(queryPath, err)
	}
	defer qf.Close()

	cf, err := os.Open(completionPath)
	if err != nil {
		return nil, errors.IOError(completionPath, err)
	}
	defer cf.Close()

	return e.Run(ctx, qf, cf)
}

// Partitions returns the partitions this evaluator's run should report.
func (e *Evaluator) Partitions() []Partition {
	return ReportPartitions(e.seen)
}
