package fetch

import (
	"fmt"
	"net/http"
	"reflect"
	"time"

	"golang.org/x/oauth2"

	"github.com/keboola/go-fetch/pkg/request"
)

// instanceSettings is a copy of the Fetch settings, taken at request configuration.
type instanceSettings struct {
	baseURL     string
	timeout     time.Duration
	header      http.Header
	removed     map[string]struct{}
	credentials credentials
	tokenSource oauth2.TokenSource
	onError     ErrorInterceptor
	onRequest   RequestInterceptor
	onRespond   ResponseInterceptor
}

func (f *Fetch) instance() instanceSettings {
	f.lock.RLock()
	defer f.lock.RUnlock()
	removed := make(map[string]struct{}, len(f.removed))
	for k := range f.removed {
		removed[k] = struct{}{}
	}
	return instanceSettings{
		baseURL:     f.baseURL,
		timeout:     f.timeout,
		header:      f.header.Clone(),
		removed:     removed,
		credentials: f.credentials,
		tokenSource: f.tokenSource,
		onError:     f.onError,
		onRequest:   f.onRequest,
		onRespond:   f.onRespond,
	}
}

// resolved is the outcome of the settings resolution for one call.
type resolved struct {
	request   *request.Request
	onError   ErrorInterceptor
	onRequest RequestInterceptor
	onRespond ResponseInterceptor
}

func (f *Fetch) resolve(method, path string, data any, call *Settings) (*resolved, error) {
	global := f.defaults.Settings()
	inst := f.instance()

	header, err := resolveHeader(global, inst, call, true)
	if err != nil {
		return nil, fmt.Errorf(`request %s "%s": %w`, method, path, err)
	}

	req := &request.Request{
		Method:  method,
		URL:     CombineURLs(path, resolveBaseURL(global, inst, call)),
		Header:  header,
		Timeout: resolveTimeout(global, inst, call),
	}

	if resolveCredentials(global, inst, call) {
		req.Credentials = request.CredentialsInclude
	}

	if !isNil(data) {
		body, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf(`request %s "%s": cannot encode JSON body: %w`, method, req.URL, err)
		}
		req.Body = body
	}

	out := &resolved{
		request:   req,
		onError:   inst.onError,
		onRequest: inst.onRequest,
		onRespond: inst.onRespond,
	}
	if out.onError == nil {
		out.onError = global.OnError
	}
	if out.onRequest == nil {
		out.onRequest = global.OnRequest
	}
	if out.onRespond == nil {
		out.onRespond = global.OnRespond
	}
	return out, nil
}

// resolveHeader merges headers of all layers.
// If tokens is false, token sources are skipped.
func resolveHeader(global GlobalSettings, inst instanceSettings, call *Settings, tokens bool) (http.Header, error) {
	h := make(http.Header)
	h.Set(HeaderContentType, ContentTypeJSON)

	// Locale
	if _, found := inst.header[HeaderAcceptLanguage]; !found && global.Locale != "" {
		h.Set(HeaderAcceptLanguage, global.Locale)
	}

	// Authorization
	if _, found := inst.header[HeaderAuthorization]; !found {
		switch {
		case inst.tokenSource != nil:
			if tokens {
				v, err := tokenAuthorization(inst.tokenSource)
				if err != nil {
					return nil, err
				}
				h.Set(HeaderAuthorization, v)
			}
		case global.AuthToken != "":
			h.Set(HeaderAuthorization, global.AuthToken)
		case global.TokenSource != nil:
			if tokens {
				v, err := tokenAuthorization(global.TokenSource)
				if err != nil {
					return nil, err
				}
				h.Set(HeaderAuthorization, v)
			}
		}
	}

	// Merge layers, values of a key are replaced, not appended
	for k, v := range global.Headers {
		h[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
	}
	for k, v := range inst.header {
		h[k] = append([]string(nil), v...)
	}
	for k := range inst.removed {
		h.Del(k)
	}

	if call != nil {
		if call.locale != "" {
			h.Set(HeaderAcceptLanguage, call.locale)
		}
		if call.authToken != "" {
			h.Set(HeaderAuthorization, call.authToken)
		}
		for k, v := range call.header {
			h[k] = append([]string(nil), v...)
		}
	}

	return h, nil
}

func tokenAuthorization(ts oauth2.TokenSource) (string, error) {
	token, err := ts.Token()
	if err != nil {
		return "", fmt.Errorf("cannot get auth token: %w", err)
	}
	return token.Type() + " " + token.AccessToken, nil
}

func resolveBaseURL(global GlobalSettings, inst instanceSettings, call *Settings) string {
	switch {
	case call.baseURL != nil:
		return *call.baseURL
	case inst.baseURL != "":
		return inst.baseURL
	default:
		return global.BaseURL
	}
}

func resolveTimeout(global GlobalSettings, inst instanceSettings, call *Settings) time.Duration {
	switch {
	case call.timeout > 0:
		return call.timeout
	case inst.timeout > 0:
		return inst.timeout
	case global.Timeout > 0:
		return global.Timeout
	default:
		return DefaultTimeout
	}
}

func resolveCredentials(global GlobalSettings, inst instanceSettings, call *Settings) bool {
	switch {
	case call.includeCredentials != nil:
		return *call.includeCredentials
	case inst.credentials == credentialsInclude:
		return true
	case inst.credentials == credentialsExclude:
		return false
	default:
		return global.IncludeCredentials
	}
}

// isNil returns true for nil and for a nil pointer, map, slice or interface, such data have no body.
func isNil(data any) bool {
	if data == nil {
		return true
	}
	v := reflect.ValueOf(data)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}
