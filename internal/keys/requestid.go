package keys

import (
    "crypto/sha256"
    "encoding/base64"
    "fmt"
    "strings"
)

// DefaultRequestIDLength is the request ID length used across the service
// unless a caller asks for something else.
const DefaultRequestIDLength = 15

// ToRequestID maps a unique key to a short, URL-safe identifier: SHA-256 of
// the key's UTF-8 bytes, standard base64, with every '+', '/' and '=' removed
// (removal, not alphabet substitution, keeps the character distribution of
// identifiers generated historically), truncated to length characters.
//
// length must be at least 1 and no longer than the stripped encoding. How
// many characters stripping removes varies with the digest, so the ceiling
// is not fixed; a length beyond what remains would silently yield a shorter
// ID than asked for and is rejected instead.
func ToRequestID(uniqueKey string, length int) (string, error) {
    if length < 1 {
        return "", fmt.Errorf("request id length %d: must be at least 1", length)
    }

    sum := sha256.Sum256([]byte(uniqueKey))
    encoded := base64.StdEncoding.EncodeToString(sum[:])
    urlSafe := strings.NewReplacer("+", "", "/", "", "=", "").Replace(encoded)

    if length > len(urlSafe) {
        return "", fmt.Errorf("request id length %d: only %d characters available", length, len(urlSafe))
    }
    return urlSafe[:length], nil
}
