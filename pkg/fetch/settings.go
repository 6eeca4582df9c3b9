package fetch

import (
	"net/http"
	"time"
)

// Settings are call-level values, the highest layer of the resolution.
type Settings struct {
	header             http.Header
	includeCredentials *bool
	baseURL            *string
	timeout            time.Duration
	locale             string
	authToken          string
	result             any
}

// RequestOption modifies call-level Settings.
type RequestOption func(s *Settings)

func newSettings(opts []RequestOption) *Settings {
	s := &Settings{header: make(http.Header)}
	for _, o := range opts {
		o(s)
	}
	return s
}

// WithHeader sets a header of the request, it overwrites values from the lower layers.
func WithHeader(key, value string) RequestOption {
	return func(s *Settings) {
		s.header.Set(key, value)
	}
}

// WithHeaders sets headers of the request, they overwrite values from the lower layers.
func WithHeaders(headers map[string]string) RequestOption {
	return func(s *Settings) {
		for k, v := range headers {
			s.header.Set(k, v)
		}
	}
}

// WithIncludeCredentials overrides the credentials posture of the instance and the Defaults.
func WithIncludeCredentials(v bool) RequestOption {
	return func(s *Settings) {
		s.includeCredentials = &v
	}
}

// WithBaseURL overrides the base URL, an empty value disables it.
func WithBaseURL(v string) RequestOption {
	return func(s *Settings) {
		s.baseURL = &v
	}
}

// WithTimeout overrides the timeout, a zero value is ignored.
func WithTimeout(v time.Duration) RequestOption {
	return func(s *Settings) {
		s.timeout = v
	}
}

// WithLocale sets the "Accept-Language" header of the request, an empty value is ignored.
func WithLocale(v string) RequestOption {
	return func(s *Settings) {
		s.locale = v
	}
}

// WithAuthToken sets the "Authorization" header of the request, an empty value is ignored.
func WithAuthToken(v string) RequestOption {
	return func(s *Settings) {
		s.authToken = v
	}
}

// WithResult decodes the JSON body of a successful response to the target pointer.
// The target is returned as the payload, and passed to the response interceptor.
func WithResult(target any) RequestOption {
	return func(s *Settings) {
		s.result = target
	}
}
