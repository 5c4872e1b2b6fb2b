package story

import (
	"net/url"
	"strings"
)

var trackingQueryKeys = map[string]struct{}{
	"gclid":  {},
	"fbclid": {},
	"mc_cid": {},
	"mc_eid": {},
	"ref":    {},
	"source": {},
	"spm":    {},
}

// Canonicalize reduces a link to a stable form so that trivially different
// URLs for the same page compare equal. The scheme is forced to https, the
// host is lower-cased, default ports and fragments are dropped, tracking
// query parameters are removed and a single trailing path slash is stripped.
//
// Canonicalize never fails. Input that cannot be parsed is returned trimmed.
func Canonicalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return trimmed
	}
	if parsed.Host == "" && parsed.Scheme == "" && parsed.Opaque == "" && !strings.HasPrefix(trimmed, "/") {
		// "example.com/path" parses as a bare path.
		if withScheme, parseErr := url.Parse("https://" + trimmed); parseErr == nil && withScheme.Host != "" {
			parsed = withScheme
		}
	}
	if parsed.Host == "" {
		if idx := strings.IndexByte(trimmed, '#'); idx >= 0 {
			return trimmed[:idx]
		}
		return trimmed
	}

	host := strings.ToLower(parsed.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port := parsed.Port(); port != "" && port != "80" && port != "443" {
		host += ":" + port
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}

	var b strings.Builder
	b.Grow(len(trimmed))
	b.WriteString("https://")
	b.WriteString(host)
	b.WriteString(path)
	if query := stripTrackingParams(parsed.RawQuery); query != "" {
		b.WriteByte('?')
		b.WriteString(query)
	}
	return b.String()
}

// Hostname returns the lower-cased host of a link, or "" when it has none.
func Hostname(raw string) string {
	canonical := Canonicalize(raw)
	if canonical == "" {
		return ""
	}
	parsed, err := url.Parse(canonical)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

// stripTrackingParams keeps the original encoding and order of the query
// pairs it does not drop.
func stripTrackingParams(rawQuery string) string {
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
		if idx := strings.IndexByte(pair, '='); idx >= 0 {
			key = pair[:idx]
		}
		if unescaped, err := url.QueryUnescape(key); err == nil {
			key = unescaped
		}
		if isTrackingKey(key) {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}

func isTrackingKey(key string) bool {
	lowered := strings.ToLower(strings.TrimSpace(key))
	if strings.HasPrefix(lowered, "utm_") {
		return true
	}
	_, ok := trackingQueryKeys[lowered]
	return ok
}
