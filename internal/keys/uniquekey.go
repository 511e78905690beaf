package keys

import "strings"

// Request describes a fetch request for identity purposes only. It is a
// plain value; nothing here performs I/O.
type Request struct {
    // URL is the target as given by the caller, prior to normalization.
    URL string
    // Method is the HTTP verb. Empty means GET.
    Method string
    // Payload is the request body, if any. Only consulted when
    // UseExtendedUniqueKey is set.
    Payload []byte
    // KeepURLFragment retains the #fragment during URL normalization.
    KeepURLFragment bool
    // UseExtendedUniqueKey folds the method and a payload digest into the
    // key so that e.g. two POSTs with different bodies stay distinct.
    UseExtendedUniqueKey bool
    // Headers are the request headers eligible for keying. Lookup is exact,
    // including case.
    Headers map[string]string
    // WhitelistedHeaders lists which header names take part in the key, in
    // the order they should appear.
    WhitelistedHeaders []string
}

// ComputeUniqueKey derives the deduplication key for a request. Two requests
// that target the same resource with the same relevant method, payload and
// headers yield the same key.
//
// The key is the normalized URL. With UseExtendedUniqueKey and a non-empty
// payload it becomes "METHOD(payloadDigest):normalizedURL". When both
// Headers and WhitelistedHeaders are non-empty, "name:value" pairs for the
// whitelisted headers present in Headers are appended, joined by "|", in
// whitelist order.
//
// Key computation never fails: when the URL cannot be normalized the raw URL
// stands in for it and fallback is reported true so the caller can log it.
func ComputeUniqueKey(r Request, h Hasher) (key string, fallback bool) {
    normalized, err := NormalizeURL(r.URL, r.KeepURLFragment)
    if err != nil {
        normalized = r.URL
        fallback = true
    }

    key = normalized
    if r.UseExtendedUniqueKey && len(r.Payload) > 0 {
        key = canonicalMethod(r.Method) + "(" + orDefault(h).Hash(r.Payload) + "):" + normalized
    }

    if len(r.Headers) > 0 && len(r.WhitelistedHeaders) > 0 {
        parts := make([]string, 0, len(r.WhitelistedHeaders))
        for _, name := range r.WhitelistedHeaders {
            if v, ok := r.Headers[name]; ok {
                parts = append(parts, name+":"+v)
            }
        }
        key = key + "|" + strings.Join(parts, "|")
    }

    return key, fallback
}

func canonicalMethod(m string) string {
    if m == "" {
        return "GET"
    }
    return strings.ToUpper(m)
}
