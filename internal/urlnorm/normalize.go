// Package urlnorm canonicalises content URLs so the same item shared with
// different tracking parameters or fragments compares equal.
package urlnorm

import (
	"net/url"
	"strings"
)

// trackingParams lists query parameters removed during normalization.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_content":  {},
	"utm_term":     {},
	"feature":      {},
}

// Normalize strips tracking parameters and the fragment from rawURL.
// Remaining query parameters keep their order and encoding. Scheme and host
// are lowercased and an empty path on an http(s) URL becomes "/"; path and
// query are left case-sensitive. If rawURL is not an absolute URL it is
// returned unchanged.
func Normalize(rawURL string) string {
	u, ok := parse(rawURL)
	if !ok {
		return rawURL
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = stripTracking(u.RawQuery)
	u.ForceQuery = false
	return u.String()
}

// Equal reports whether a and b normalize to the same URL.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Parse parses rawURL the way Normalize does and reports whether it is a
// usable absolute URL.
func Parse(rawURL string) (*url.URL, bool) {
	return parse(rawURL)
}

var defaultPorts = map[string]string{"http": ":80", "https": ":443"}

func parse(rawURL string) (*url.URL, bool) {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return nil, false
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Opaque != "" {
		return nil, false
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme == "http" || u.Scheme == "https" {
		if u.Host == "" {
			return nil, false
		}
		if u.Path == "" {
			u.Path = "/"
			u.RawPath = ""
		}
	}
	u.Host = strings.ToLower(u.Host)
	if port, ok := defaultPorts[u.Scheme]; ok {
		u.Host = strings.TrimSuffix(u.Host, port)
	}
	return u, true
}

// stripTracking drops tracking pairs from a raw query, keeping every other
// pair byte-for-byte and in order.
func stripTracking(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	pairs := strings.Split(rawQuery, "&")
	kept := pairs[:0]
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		key := pair
		if i := strings.IndexByte(pair, '='); i >= 0 {
			key = pair[:i]
		}
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if _, tracking := trackingParams[key]; tracking {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}
