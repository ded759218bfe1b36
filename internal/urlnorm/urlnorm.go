// Package urlnorm canonicalizes URLs and paths before matching, so trivial
// variants of the same location (trailing slashes, default ports, host case)
// compare equal. Both the configured side of a path matcher and the incoming
// request pass through the same functions.
package urlnorm

import (
	"net/url"
	"strings"
)

// Path canonicalizes a URL path: guarantees a leading slash, strips a single
// trailing slash (the root path stays "/"), and drops any fragment.
func Path(p string) string {
	if i := strings.IndexByte(p, '#'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// URL canonicalizes a full or partial URL string. Absolute URLs get a
// lower-cased scheme and host with default ports removed; the path component
// is canonicalized with Path. Relative inputs are treated as bare paths.
// Query strings are preserved as-is; fragments are dropped.
func URL(raw string) string {
	if !strings.Contains(raw, "://") {
		return Path(raw)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	u.Host = host
	u.Path = Path(u.Path)
	u.Fragment = ""
	return u.String()
}
