// Package hash provides the chunk digest algorithms shared by the scanner
// and the transfer engine.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	gohash "hash"

	"github.com/zeebo/blake3"
)

// Algorithm names a digest algorithm as it appears in metadata documents.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	BLAKE3 Algorithm = "blake3"
)

// Default is assumed for documents that do not name an algorithm.
const Default = SHA256

// Parse validates an algorithm name. The empty string maps to Default.
func Parse(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case "":
		return Default, nil
	case SHA256, BLAKE3:
		return Algorithm(s), nil
	default:
		return "", fmt.Errorf("unknown hash algorithm %q (use sha256 or blake3)", s)
	}
}

// New returns a fresh hasher for the algorithm.
func (a Algorithm) New() gohash.Hash {
	switch a {
	case BLAKE3:
		return blake3.New()
	default:
		return sha256.New()
	}
}

// DigestLen is the length of a hex-encoded digest for the algorithm.
func (a Algorithm) DigestLen() int {
	return hex.EncodedLen(a.New().Size())
}

func (a Algorithm) String() string {
	if a == "" {
		return string(Default)
	}
	return string(a)
}

// Sum returns the hex-encoded digest of data.
func (a Algorithm) Sum(data []byte) string {
	h := a.New()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// IsHex reports whether s is a lowercase hex digest of the algorithm's length.
// Uppercase is rejected because digests are compared as strings.
func (a Algorithm) IsHex(s string) bool {
	if len(s) != a.DigestLen() {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// JobID computes a deterministic id from a source/destination pair.
func JobID(src, dst string) string {
	h := blake3.New()
	h.Write([]byte(src))
	h.Write([]byte{0})
	h.Write([]byte(dst))
	digest := h.Sum(nil)
	return hex.EncodeToString(digest[:8])
}
