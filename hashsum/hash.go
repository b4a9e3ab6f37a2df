// Package hashsum provides the SHA-256 content hashing used for both
// per-block checksums and whole-file terminal checksums.
package hashsum

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Hash returns the lowercase hex-encoded SHA-256 of b.
func Hash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashFile returns the lowercase hex-encoded SHA-256 of the file at path,
// streaming it through the hasher rather than reading it into memory.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "opening %q", path)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrapf(err, "hashing %q", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
