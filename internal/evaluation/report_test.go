package evaluation

import (
	"bytes"
	stderrors "errors"
	"testing"

	"github.com/ricesearch/qac-eval/internal/pkg/errors"
)

func asAppError(err error, target **errors.AppError) bool {
	return stderrors.As(err, target)
}

func TestWriteReports(t *testing.T) {
	reports := []Report{
		{Partition: PartitionSeen, Count: 1, MeanMRR: 1, MeanSuccessRate: 1},
		{Partition: PartitionUnseen, Count: 3, MeanMRR: 1.0 / 3, MeanSuccessRate: 2.0 / 3},
		{Partition: PartitionTotal, Count: 4, MeanMRR: 0.5, MeanSuccessRate: 0.75},
	}

	var buf bytes.Buffer
	if err := WriteReports(&buf, reports); err != nil {
		t.Fatalf("WriteReports() error = %v", err)
	}

	want := "# seen queries: 1\n" +
		"MRR: 1.0000\n" +
		"Success Rate: 1.0000\n" +
		"# unseen queries: 3\n" +
		"MRR: 0.3333\n" +
		"Success Rate: 0.6667\n" +
		"# total queries: 4\n" +
		"MRR: 0.5000\n" +
		"Success Rate: 0.7500\n"
	if buf.String() != want {
		t.Errorf("WriteReports() output:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestReportPartitions(t *testing.T) {
	if got := ReportPartitions(nil); len(got) != 2 {
		t.Errorf("ReportPartitions(nil) = %v, want unseen and total", got)
	}
	if got := ReportPartitions(EmptySeenSet()); len(got) != 2 {
		t.Errorf("ReportPartitions(EmptySeenSet()) = %v, want unseen and total", got)
	}
	if got := ReportPartitions(NewSeenSet()); len(got) != 3 {
		t.Errorf("ReportPartitions(NewSeenSet()) = %v, want all partitions", got)
	}
}
