package dataset

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns the hex BLAKE2b-256 digest of a file's bytes. Two
// identical dataset files always share a fingerprint.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &MissingInputError{Path: path, Err: err}
		}
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return FingerprintReader(f)
}

// FingerprintReader digests everything r yields.
func FingerprintReader(r io.Reader) (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
