package v1

import (
    "encoding/json"
    "net/http"
    "strings"
)

// maxBodyBytes caps request bodies; identity descriptors are small, so 1 MiB
// leaves generous room for long URLs and header maps.
const maxBodyBytes = 1 << 20

// decodeJSONStrict validates an optional Content-Type header, enforces the
// body cap, and decodes JSON into dst while disallowing unknown fields. It
// returns ErrContentType when the header is present but not acceptable.
func decodeJSONStrict(w http.ResponseWriter, r *http.Request, dst any) error {
    if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
        return ErrContentType
    }
    r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
    dec := json.NewDecoder(r.Body)
    dec.DisallowUnknownFields()
    return dec.Decode(dst)
}
