package client

import (
	"net/http"
	"net/http/cookiejar"

	"golang.org/x/net/publicsuffix"
)

// NewCookieJar creates an in-memory cookie jar.
// Cookies cannot be set for a whole public suffix, for example ".co.uk".
func NewCookieJar() http.CookieJar {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		// cookiejar.New never returns an error
		panic(err)
	}
	return jar
}
