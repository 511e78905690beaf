package keys

import (
    "net/url"
    "strings"
)

// NormalizeURL cleans and standardizes a URL so that requests targeting the
// same resource compare equal as strings. It trims surrounding whitespace,
// drops query parameters with a "utm_" prefix, keeps the last occurrence of
// repeated parameters, discards parameters with empty values, sorts the rest
// by key, removes trailing slashes from the path, and lower-cases the
// resulting URL as a whole. The fragment survives only when keepFragment is
// set.
//
// A URL that cannot be parsed is reported as an error; callers that must not
// fail fall back to the raw input (see ComputeUniqueKey).
func NormalizeURL(raw string, keepFragment bool) (string, error) {
    u, err := url.Parse(strings.TrimSpace(raw))
    if err != nil {
        return "", err
    }

    u.RawQuery = normalizeQuery(u.RawQuery)
    u.ForceQuery = false

    // Every trailing slash is removed, so "/path//" and "/path/" collapse
    // alike. Escaped slashes (%2F) are not path separators and stay
    // untouched.
    esc := u.EscapedPath()
    if trimmed := strings.TrimRight(esc, "/"); trimmed != esc {
        p, perr := url.PathUnescape(trimmed)
        if perr != nil {
            // EscapedPath always yields valid escaping; TrimRight cannot
            // split an escape sequence, so this branch is unreachable.
            p = trimmed
        }
        u.Path = p
        u.RawPath = ""
        if p != trimmed {
            u.RawPath = trimmed
        }
    }

    if !keepFragment {
        u.Fragment = ""
        u.RawFragment = ""
    }

    return strings.ToLower(u.String()), nil
}

// normalizeQuery rebuilds a raw query string: tracking parameters ("utm_"
// prefix on the decoded key) and empty-valued pairs are dropped, the last
// non-empty value wins for repeated keys, and the survivors are re-encoded
// sorted by key. Pairs that fail to decode are dropped rather than failing
// the whole URL.
func normalizeQuery(rawQuery string) string {
    if rawQuery == "" {
        return ""
    }
    parsed, _ := url.ParseQuery(rawQuery)
    cleaned := make(url.Values, len(parsed))
    for k, vs := range parsed {
        if strings.HasPrefix(k, "utm_") {
            continue
        }
        for i := len(vs) - 1; i >= 0; i-- {
            if vs[i] != "" {
                cleaned.Set(k, vs[i])
                break
            }
        }
    }
    return cleaned.Encode()
}
