// Package checksum computes the digests used for naming extracted blocks and for
// comparing assembled binaries.
package checksum

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// ShortLen is the number of hex characters kept by ShortDigest.
const ShortLen = 8

// HashFile returns the hex SHA-256 of the file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return HashReader(f)
}

func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, 4096)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ShortDigest returns the first ShortLen hex characters of the SHA-1 of text. It is a
// uniqueness suffix for file names, not an integrity check.
func ShortDigest(text string) string {
	sum := sha1.Sum([]byte(text))
	return hex.EncodeToString(sum[:])[:ShortLen]
}
