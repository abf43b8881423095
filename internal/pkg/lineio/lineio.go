// Package lineio provides newline-delimited text reading and writing.
package lineio

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// MaxLineSize bounds a single line. Completion lines carry every candidate
// for a query, so the bufio default of 64KB is too small.
const MaxLineSize = 16 * 1024 * 1024

// NewScanner returns a line scanner over r with a MaxLineSize buffer.
func NewScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), MaxLineSize)
	return scanner
}

// ReadLines reads every line of r, applying fn to each before collecting it.
// A nil fn keeps lines unchanged. Lines for which keep returns false are skipped.
func ReadLines(r io.Reader, fn func(string) (string, bool)) ([]string, error) {
	var lines []string
	scanner := NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if fn != nil {
			var keep bool
			if line, keep = fn(line); !keep {
				continue
			}
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// WriteFile writes lines joined by newlines, without a trailing newline.
func WriteFile(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	if _, err := w.WriteString(strings.Join(lines, "\n")); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
