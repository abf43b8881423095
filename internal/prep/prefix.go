package prep

import (
	"bufio"
	"io"
	"math/rand/v2"
	"strings"

	"github.com/ricesearch/qac-eval/internal/pkg/errors"
	"github.com/ricesearch/qac-eval/internal/pkg/lineio"
)

// PrefixOptions configures prefix extraction. Lengths count runes.
type PrefixOptions struct {
	Seed         int64
	MinPrefixLen int
	MinSuffixLen int
}

// Validate checks the length bounds.
func (o PrefixOptions) Validate() error {
	if o.MinPrefixLen < 0 || o.MinSuffixLen < 0 {
		return errors.ValidationError("min prefix and suffix lengths must not be negative")
	}
	return nil
}

// PrefixExtractor draws random prefixes from queries.
type PrefixExtractor struct {
	opts PrefixOptions
	rng  *rand.Rand
}

// NewPrefixExtractor creates an extractor seeded from opts.
func NewPrefixExtractor(opts PrefixOptions) (*PrefixExtractor, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &PrefixExtractor{opts: opts, rng: newRand(opts.Seed)}, nil
}

// Extract trims query and returns a prefix whose length is drawn uniformly
// from [MinPrefixLen, n-MinSuffixLen+1] and then capped at n. With
// MinSuffixLen 0 the full query is therefore twice as likely as any other
// length. Queries shorter than MinPrefixLen+MinSuffixLen runes are rejected.
func (p *PrefixExtractor) Extract(query string) (prefix, full string, ok bool) {
	full = strings.TrimSpace(query)
	runes := []rune(full)
	n := len(runes)
	if n < p.opts.MinPrefixLen+p.opts.MinSuffixLen {
		return "", full, false
	}

	hi := n - p.opts.MinSuffixLen + 1
	l := min(p.opts.MinPrefixLen+p.rng.IntN(hi-p.opts.MinPrefixLen+1), n)
	return string(runes[:l]), full, true
}

// ExtractPrefixes writes "prefix<TAB>query" for every usable query in r.
func ExtractPrefixes(r io.Reader, w io.Writer, opts PrefixOptions) (Stats, error) {
	p, err := NewPrefixExtractor(opts)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	scanner := lineio.NewScanner(r)
	bw := bufio.NewWriter(w)

	for scanner.Scan() {
		stats.Read++
		prefix, full, ok := p.Extract(scanner.Text())
		if !ok {
			continue
		}
		bw.WriteString(prefix)
		bw.WriteByte('\t')
		bw.WriteString(full)
		if err := bw.WriteByte('\n'); err != nil {
			return stats, err
		}
		stats.Written++
	}
	if err := scanner.Err(); err != nil {
		return stats, err
	}
	return stats, bw.Flush()
}
