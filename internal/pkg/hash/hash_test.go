package hash

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const helloDigest = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func TestReader(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"hello", helloDigest},
		{"", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Reader(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("Reader() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Reader(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestShort(t *testing.T) {
	digest := helloDigest

	tests := []struct {
		n    int
		want string
	}{
		{8, digest[:8]},
		{16, digest[:16]},
		{100, digest},
	}

	for _, tt := range tests {
		if got := Short(digest, tt.n); got != tt.want {
			t.Errorf("Short(%d) = %s, want %s", tt.n, got, tt.want)
		}
	}
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.txt")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := File(path)
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}
	if want := helloDigest[:16]; got != want {
		t.Errorf("File() = %s, want %s", got, want)
	}

	if got, err := File(""); err != nil || got != "" {
		t.Errorf("File(\"\") = %q, %v, want empty", got, err)
	}

	if _, err := File(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("File(missing) expected error")
	}
}
