package evaluation

import (
	"io"
	"os"
	"strings"

	"github.com/ricesearch/qac-eval/internal/pkg/errors"
	"github.com/ricesearch/qac-eval/internal/pkg/lineio"
)

// SeenSet holds queries that appeared in a reference set such as training data.
type SeenSet struct {
	queries  map[string]struct{}
	supplied bool
}

// NewSeenSet builds a set from already-normalized queries.
func NewSeenSet(queries ...string) *SeenSet {
	s := &SeenSet{
		queries:  make(map[string]struct{}, len(queries)),
		supplied: true,
	}
	for _, q := range queries {
		s.queries[q] = struct{}{}
	}
	return s
}

// EmptySeenSet is used when no seen file is given. Every query is unseen.
func EmptySeenSet() *SeenSet {
	return &SeenSet{queries: map[string]struct{}{}}
}

// ReadSeenSet loads one query per line from r, trimming surrounding whitespace.
func ReadSeenSet(r io.Reader) (*SeenSet, error) {
	lines, err := lineio.ReadLines(r, func(s string) (string, bool) {
		return strings.TrimSpace(s), true
	})
	if err != nil {
		return nil, err
	}
	return NewSeenSet(lines...), nil
}

// LoadSeenSet reads the seen file at path. An empty path yields EmptySeenSet.
func LoadSeenSet(path string) (*SeenSet, error) {
	if path == "" {
		return EmptySeenSet(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.IOError(path, err)
	}
	defer f.Close()

	s, err := ReadSeenSet(f)
	if err != nil {
		return nil, errors.IOError(path, err)
	}
	return s, nil
}

// Contains reports whether query is in the set.
func (s *SeenSet) Contains(query string) bool {
	_, ok := s.queries[query]
	return ok
}

// Len returns the number of distinct queries.
func (s *SeenSet) Len() int {
	return len(s.queries)
}

// Supplied reports whether the set came from a seen file, even an empty one.
func (s *SeenSet) Supplied() bool {
	return s.supplied
}

// Partition classifies query as seen or unseen.
func (s *SeenSet) Partition(query string) Partition {
	if s.Contains(query) {
		return PartitionSeen
	}
	return PartitionUnseen
}
