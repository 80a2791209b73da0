package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// HashAlgorithm names a content digest.
type HashAlgorithm string

// Supported algorithms.
const (
	HashSHA256  HashAlgorithm = "sha256"
	HashBLAKE2b HashAlgorithm = "blake2b"
)

// ParseHashAlgorithm parses an algorithm name. The empty string selects sha256.
func ParseHashAlgorithm(s string) (HashAlgorithm, error) {
	switch strings.ToLower(s) {
	case "", "sha256":
		return HashSHA256, nil
	case "blake2b", "blake2b-256":
		return HashBLAKE2b, nil
	default:
		return "", fmt.Errorf("%w: %s (use sha256 or blake2b)", ErrUnknownHash, s)
	}
}

func (a HashAlgorithm) newHash() hash.Hash {
	if a == HashBLAKE2b {
		// only fails for an oversized key
		h, _ := blake2b.New256(nil)
		return h
	}
	return sha256.New()
}

// Hasher digests file contents.
type Hasher struct {
	alg HashAlgorithm
}

// NewHasher returns a Hasher for alg.
func NewHasher(alg HashAlgorithm) *Hasher {
	if alg == "" {
		alg = HashSHA256
	}
	return &Hasher{alg: alg}
}

// Algorithm returns the configured algorithm.
func (h *Hasher) Algorithm() HashAlgorithm {
	return h.alg
}

// HashFile streams the file at path through the digest and returns the hex
// digest and the number of bytes read.
func (h *Hasher) HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, &FilesystemError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	return h.HashReader(f, path)
}

// HashReader digests r. name is used for error messages only.
func (h *Hasher) HashReader(r io.Reader, name string) (string, int64, error) {
	d := h.alg.newHash()
	size, err := io.Copy(d, r)
	if err != nil {
		return "", 0, &FilesystemError{Op: "read", Path: name, Err: err}
	}
	return hex.EncodeToString(d.Sum(nil)), size, nil
}
