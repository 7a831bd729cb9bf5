package shared

import (
	"net/url"
	"strings"
)

// LocalPath returns raw when it is a path on this site starting with
// prefix, otherwise fallback. Backslashes are refused because browsers
// read them as slashes.
func LocalPath(raw, prefix, fallback string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.ContainsAny(raw, "\\\r\n\t") {
		return fallback
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return fallback
	}
	if !strings.HasPrefix(u.Path, prefix) {
		return fallback
	}
	return raw
}
