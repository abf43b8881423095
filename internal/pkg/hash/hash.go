// Package hash provides content fingerprints for evaluation inputs.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// digestLen is the number of hex characters kept in input fingerprints.
const digestLen = 16

// Short returns the first n characters of a hex digest.
func Short(digest string, n int) string {
	if n > len(digest) {
		return digest
	}
	return digest[:n]
}

// Reader returns the SHA256 hex digest of everything read from r.
func Reader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// File returns a short fingerprint of the file at path, or "" for an empty path.
func File(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	digest, err := Reader(f)
	if err != nil {
		return "", err
	}
	return Short(digest, digestLen), nil
}
