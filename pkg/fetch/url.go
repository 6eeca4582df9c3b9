package fetch

import (
	"net/url"
	"strings"
)

// CombineURLs joins the base URL and the path with exactly one slash.
// An absolute path is returned unchanged, the base is ignored.
func CombineURLs(path, base string) string {
	if base == "" || isAbsoluteURL(path) {
		return path
	}

	baseSlash := strings.HasSuffix(base, "/")
	pathSlash := strings.HasPrefix(path, "/")
	switch {
	case baseSlash && pathSlash:
		path = path[1:]
	case !baseSlash && !pathSlash:
		path = "/" + path
	}
	return base + path
}

// isAbsoluteURL returns true if the value parses as a URL with a scheme, for example "https://host/path" or "mailto:foo".
func isAbsoluteURL(v string) bool {
	u, err := url.Parse(v)
	return err == nil && u.Scheme != ""
}

// appendQuery appends the query string with "?" or "&", depending on the existing query.
func appendQuery(rawURL, query string) string {
	if query == "" {
		return rawURL
	}
	if strings.Contains(rawURL, "?") {
		return rawURL + "&" + query
	}
	return rawURL + "?" + query
}
