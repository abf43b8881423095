// Package prep prepares query logs for completion evaluation: ASCII
// normalization, train/validation/test splitting and prefix extraction.
package prep

import (
	"bufio"
	"io"
	"strings"
	"unicode"

	"github.com/ricesearch/qac-eval/internal/pkg/lineio"
)

// Stats counts lines read and written by a prep step.
type Stats struct {
	Read    int `json:"read"`
	Written int `json:"written"`
}

// Skipped returns how many input lines were dropped.
func (s Stats) Skipped() int {
	return s.Read - s.Written
}

// isPrintableASCII reports whether r is in the space..tilde range.
func isPrintableASCII(r rune) bool {
	return r >= ' ' && r <= '~'
}

// NormalizeLine trims trailing whitespace and lowercases line. It returns
// false when the line holds anything outside printable ASCII.
func NormalizeLine(line string) (string, bool) {
	line = strings.TrimRightFunc(line, unicode.IsSpace)
	for _, r := range line {
		if !isPrintableASCII(r) {
			return "", false
		}
	}
	return strings.ToLower(line), true
}

// Normalize copies r to w line by line, keeping only normalizable lines.
func Normalize(r io.Reader, w io.Writer) (Stats, error) {
	var stats Stats
	scanner := lineio.NewScanner(r)
	bw := bufio.NewWriter(w)

	for scanner.Scan() {
		stats.Read++
		line, ok := NormalizeLine(scanner.Text())
		if !ok {
			continue
		}
		bw.WriteString(line)
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
