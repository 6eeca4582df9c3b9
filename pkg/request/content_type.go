package request

import (
	"github.com/umisama/go-regexpcache"
)

const (
	ContentTypeApplicationJSON       = "application/json"
	ContentTypeApplicationJSONRegexp = `^application/([a-zA-Z0-9\.\-]+\+)?json$`
)

// IsJSONContentType returns true for "application/json" and "application/*+json" media types.
func IsJSONContentType(contentType string) bool {
	return regexpcache.MustCompile(ContentTypeApplicationJSONRegexp).MatchString(contentType)
}
