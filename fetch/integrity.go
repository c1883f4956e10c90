package fetch

import (
	"crypto/sha1" //nolint:gosec // legacy npm shasums are sha1
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"hash"
	"strings"
)

// ErrIntegrityMismatch is returned when downloaded bytes do not match the expected integrity.
var ErrIntegrityMismatch = errors.New("integrity mismatch")

var integrityHashes = map[string]func() hash.Hash{
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha384": sha512.New384,
	"sha512": sha512.New,
}

// VerifyIntegrity checks data against an SRI string such as "sha512-<base64>".
// A string may list several space separated hashes; any match is accepted.
func VerifyIntegrity(data []byte, integrity string) error {
	var actual string
	checked := false

	for _, entry := range strings.Fields(integrity) {
		algo, want, ok := strings.Cut(entry, "-")
		if !ok {
			continue
		}
		newHash, known := integrityHashes[algo]
		if !known {
			continue
		}
		// Options like "?foo" may follow the digest.
		want, _, _ = strings.Cut(want, "?")

		h := newHash()
		_, _ = h.Write(data)
		actual = algo + "-" + base64.StdEncoding.EncodeToString(h.Sum(nil))
		if actual == algo+"-"+want {
			return nil
		}
		checked = true
	}

	if !checked {
		return fmt.Errorf("unsupported integrity %q", integrity)
	}
	return fmt.Errorf("%w: expected %s, got %s", ErrIntegrityMismatch, integrity, actual)
}
