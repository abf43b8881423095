package prep

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/ricesearch/qac-eval/internal/pkg/errors"
	"github.com/ricesearch/qac-eval/internal/pkg/lineio"
)

// SplitOptions configures Split.
type SplitOptions struct {
	Seed         int64
	Valid        float64 // fraction of lines for validation, in [0, 1)
	Test         float64 // fraction of lines for test, in [0, 1)
	OutputPrefix string  // files are written to <prefix>_{train,val,test}.txt
}

// Validate checks the split ratios.
func (o SplitOptions) Validate() error {
	if o.Valid < 0 || o.Valid >= 1 {
		return errors.ValidationError("valid ratio must be in [0, 1)")
	}
	if o.Test < 0 || o.Test >= 1 {
		return errors.ValidationError("test ratio must be in [0, 1)")
	}
	if o.Valid+o.Test >= 1 {
		return errors.ValidationError("valid + test ratio must be below 1")
	}
	return nil
}

// Partitions holds disjoint train, validation and test lines.
type Partitions struct {
	Train []string
	Valid []string
	Test  []string
}

// Paths returns the train, validation and test file names for prefix.
func Paths(prefix string) (train, valid, test string) {
	return prefix + "_train.txt", prefix + "_val.txt", prefix + "_test.txt"
}

// newRand returns a deterministic generator for seed.
func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

// SplitLines shuffles lines with a seeded generator and cuts them into
// floor(n*valid) validation lines, floor(n*test) test lines and the rest
// for training. lines is shuffled in place.
func SplitLines(lines []string, opts SplitOptions) (Partitions, error) {
	if err := opts.Validate(); err != nil {
		return Partitions{}, err
	}

	rng := newRand(opts.Seed)
	rng.Shuffle(len(lines), func(i, j int) {
		lines[i], lines[j] = lines[j], lines[i]
	})

	n := len(lines)
	nValid := int(math.Floor(float64(n) * opts.Valid))
	nTest := int(math.Floor(float64(n) * opts.Test))
	nTrain := n - nValid - nTest

	return Partitions{
		Train: lines[:nTrain],
		Valid: lines[nTrain : nTrain+nValid],
		Test:  lines[nTrain+nValid:],
	}, nil
}

// ReadQueries reads non-empty lines with trailing whitespace removed.
// Invalid UTF-8 sequences are dropped.
func ReadQueries(r io.Reader) ([]string, error) {
	return lineio.ReadLines(r, func(s string) (string, bool) {
		s = strings.TrimRightFunc(s, unicode.IsSpace)
		s = strings.ToValidUTF8(s, "")
		return s, s != ""
	})
}

// Split reads queries from r, splits them and writes the three partition
// files concurrently.
func Split(ctx context.Context, r io.Reader, opts SplitOptions) (Partitions, error) {
	if err := opts.Validate(); err != nil {
		return Partitions{}, err
	}

	lines, err := ReadQueries(r)
	if err != nil {
		return Partitions{}, errors.IOError("", err)
	}

	parts, err := SplitLines(lines, opts)
	if err != nil {
		return Partitions{}, err
	}

	trainPath, validPath, testPath := Paths(opts.OutputPrefix)
	g, ctx := errgroup.WithContext(ctx)
	for path, content := range map[string][]string{
		trainPath: parts.Train,
		validPath: parts.Valid,
		testPath:  parts.Test,
	} {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := lineio.WriteFile(path, content); err != nil {
				return errors.IOError(path, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Partitions{}, err
	}

	return parts, nil
}
