package keys

import (
    "crypto/sha256"
    "encoding/hex"
)

// Hasher digests payload bytes into a short, URL-safe string for inclusion
// in unique keys. Implementations must be deterministic and produce
// fixed-width output.
type Hasher interface {
    Hash(data []byte) string
}

// DefaultHasher is used whenever no Hasher is supplied: the first 8 hex
// characters of the SHA-256 digest.
var DefaultHasher Hasher = shortSHA256{}

type shortSHA256 struct{}

func (shortSHA256) Hash(data []byte) string {
    sum := sha256.Sum256(data)
    return hex.EncodeToString(sum[:])[:8]
}

func orDefault(h Hasher) Hasher {
    if h == nil {
        return DefaultHasher
    }
    return h
}
