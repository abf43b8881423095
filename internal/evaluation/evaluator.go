package evaluation

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ricesearch/qac-eval/internal/pkg/errors"
	"github.com/ricesearch/qac-eval/internal/pkg/lineio"
	"github.com/ricesearch/qac-eval/internal/pkg/logger"
)

// ctxCheckEvery is how many records are scored between cancellation checks.
const ctxCheckEvery = 1024

// Options configures an Evaluator.
type Options struct {
	// TopK is the cutoff for both metrics.
	TopK int

	// Truncate stops at the end of the shorter stream instead of failing
	// when query and completion streams differ in length.
	Truncate bool

	// ProgressInterval throttles progress logging. Zero disables it.
	ProgressInterval time.Duration

	Logger *logger.Logger
}

// Evaluator scores completion lists against target queries.
type Evaluator struct {
	seen     *SeenSet
	table    *ScoreTable
	truncate bool
	progress *rate.Sometimes
	log      *logger.Logger
}

// Result is the outcome of one pass over the input streams.
type Result struct {
	Records    int
	Truncated  bool
	Aggregator *Aggregator
}

// NewEvaluator creates a new evaluator. A nil seen set marks every query unseen.
func NewEvaluator(seen *SeenSet, opts Options) (*Evaluator, error) {
	if opts.TopK < 1 {
		return nil, errors.ValidationError("topk must be positive").
			WithDetail("topk", strconv.Itoa(opts.TopK))
	}
	if seen == nil {
		seen = EmptySeenSet()
	}
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}

	e := &Evaluator{
		seen:     seen,
		table:    NewScoreTable(opts.TopK),
		truncate: opts.Truncate,
		log:      log,
	}
	if opts.ProgressInterval > 0 {
		e.progress = &rate.Sometimes{Interval: opts.ProgressInterval}
	}
	return e, nil
}

// Table returns the score table in use.
func (e *Evaluator) Table() *ScoreTable {
	return e.table
}

// Score ranks a single record and returns its partition, rank and score.
func (e *Evaluator) Score(rec QueryRecord) (Partition, Rank, Score) {
	rank := RankOf(rec.Query, rec.Candidates)
	return e.seen.Partition(rec.Query), rank, e.table.Lookup(rank)
}

// Run reads queries and completions in lock-step, one record per line pair,
// and aggregates their scores.
func (e *Evaluator) Run(ctx context.Context, queries, completions io.Reader) (*Result, error) {
	qs := lineio.NewScanner(queries)
	cs := lineio.NewScanner(completions)
	agg := NewAggregator(e.table)
	res := &Result{Aggregator: agg}

	for {
		if res.Records%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		qok := qs.Scan()
		cok := cs.Scan()
		if !qok || !cok {
			if err := firstErr(qs.Err(), cs.Err()); err != nil {
				return nil, errors.IOError("", err)
			}
			if qok == cok {
				break
			}
			if e.truncate {
				res.Truncated = true
				e.log.Warn("Input streams differ in length, truncating",
					"records", res.Records,
					"longer", longerStream(qok),
				)
				break
			}
			return nil, alignmentError(res.Records, qok, qs, cs)
		}

		rec := QueryRecord{
			Query:      strings.TrimSpace(qs.Text()),
			Candidates: ParseCandidates(cs.Text()),
		}
		p, rank, _ := e.Score(rec)
		if int(rank) > len(rec.Candidates) {
			return nil, errors.RankOutOfRangeError(res.Records+1, int(rank), len(rec.Candidates))
		}
		agg.Add(rank, p)
		res.Records++

		if e.progress != nil {
			e.progress.Do(func() {
				e.log.Debug("Evaluation progress", "records", res.Records)
			})
		}
	}

	e.log.Debug("Evaluation pass complete",
		"records", res.Records,
		"seen", agg.Count(PartitionSeen),
		"unseen", agg.Count(PartitionUnseen),
	)
	return res, nil
}

// alignmentError counts what is left of the longer stream so the error can
// report both lengths.
func alignmentError(paired int, queryLonger bool, qs, cs *bufio.Scanner) error {
	longer := cs
	if queryLonger {
		longer = qs
	}
	extra := 1
	for longer.Scan() {
		extra++
	}
	if queryLonger {
		return errors.InputAlignmentError(paired+extra, paired)
	}
	return errors.InputAlignmentError(paired, paired+extra)
}

func longerStream(queryLonger bool) string {
	if queryLonger {
		return "queries"
	}
	return "completions"
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
