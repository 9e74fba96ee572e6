// Package fingerprint computes a reproducible content hash of a compiled
// ROM image, generalizing the teacher's own `cmd/buildid` HashToString
// pattern (hashing an ELF/PE build-ID note) to anvil's byte images. Used by
// internal/debugsym to embed a fingerprint alongside the address map, so a
// symbol file can be checked against the image it describes.
package fingerprint

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// HashToString returns the hex-encoded blake2b-256 digest of data.
func HashToString(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
