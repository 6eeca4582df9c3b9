// Package fetch provides a configurable HTTP client with layered settings.
//
// Settings are resolved for each request from 3 layers, the higher layer wins:
//   - call-level RequestOption values,
//   - instance-level settings of the Fetch, modified by its setters,
//   - Defaults shared by all instances, read live at request time.
//
// Each request has its own cancellation, it ends with a RequestTimeoutError
// if the resolved timeout elapses, or with a RequestAbortError on Fetch.Cancel.
// Requests are sent by a request.Sender, client.Client is used by default.
package fetch

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/keboola/go-fetch/pkg/client"
	"github.com/keboola/go-fetch/pkg/request"
)

const (
	HeaderContentType    = "Content-Type"
	HeaderAcceptLanguage = "Accept-Language"
	HeaderAuthorization  = "Authorization"
	ContentTypeJSON      = "application/json"
	// DefaultTimeout is used if no layer sets a timeout.
	DefaultTimeout = 5 * time.Second
)

// RequestInterceptor is called before the request is sent.
// A non-nil returned request replaces the outbound one, an error fails the call.
type RequestInterceptor func(ctx context.Context, req *request.Request) (*request.Request, error)

// ResponseInterceptor transforms the parsed payload of a successful response.
type ResponseInterceptor func(ctx context.Context, payload any) (any, error)

// ErrorInterceptor is notified about an HTTPStatusError before it is returned, it cannot swallow the error.
type ErrorInterceptor func(ctx context.Context, err error)

type credentials int

const (
	credentialsUnset credentials = iota
	credentialsInclude
	credentialsExclude
)

// Fetch sends requests with settings resolved from the Defaults, the instance and the call.
// Setters modify the instance in place and return it for chaining.
// Fetch is safe for concurrent use, concurrent requests share only the settings.
type Fetch struct {
	defaults *Defaults
	sender   request.Sender
	trace    TraceFactory

	lock        sync.RWMutex
	baseURL     string
	timeout     time.Duration
	header      http.Header
	removed     map[string]struct{}
	credentials credentials
	tokenSource oauth2.TokenSource
	onError     ErrorInterceptor
	onRequest   RequestInterceptor
	onRespond   ResponseInterceptor

	calls *inFlightCalls
}

type Option func(f *Fetch)

// WithDefaults sets the shared Defaults, DefaultSettings() is used otherwise.
func WithDefaults(d *Defaults) Option {
	return func(f *Fetch) {
		f.defaults = d
	}
}

// WithSender sets the transport, client.New() is used otherwise.
func WithSender(s request.Sender) Option {
	return func(f *Fetch) {
		f.sender = s
	}
}

// WithTrace sets hooks called at stages of each request.
func WithTrace(factory TraceFactory) Option {
	return func(f *Fetch) {
		f.trace = factory
	}
}

// New creates a Fetch with empty instance settings.
func New(opts ...Option) *Fetch {
	f := &Fetch{
		header:  make(http.Header),
		removed: make(map[string]struct{}),
		calls:   newInFlightCalls(),
	}
	for _, o := range opts {
		o(f)
	}
	if f.defaults == nil {
		f.defaults = DefaultSettings()
	}
	if f.sender == nil {
		f.sender = client.New()
	}
	return f
}

// Defaults returns the shared settings used by the instance.
func (f *Fetch) Defaults() *Defaults {
	return f.defaults
}

// SetBaseURL sets the instance base URL, it takes priority over the Defaults base URL.
// An empty value unsets it.
func (f *Fetch) SetBaseURL(baseURL string) *Fetch {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.baseURL = baseURL
	return f
}

// SetTimeout sets the instance timeout, it takes priority over the Defaults timeout.
// A zero value unsets it.
func (f *Fetch) SetTimeout(timeout time.Duration) *Fetch {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.timeout = timeout
	return f
}

// SetLocale sets the "Accept-Language" header of the instance.
func (f *Fetch) SetLocale(locale string) (*Fetch, error) {
	if locale == "" {
		return f, ErrWrongLocale
	}
	f.setHeader(HeaderAcceptLanguage, locale)
	return f, nil
}

// SetAuthToken sets the "Authorization" header of the instance, the token is used as it is.
func (f *Fetch) SetAuthToken(token string) (*Fetch, error) {
	if token == "" {
		return f, ErrNoKeyProvided
	}
	f.setHeader(HeaderAuthorization, token)
	return f, nil
}

// SetTokenSource sets an OAuth2 token source, the "Authorization" header is set from it for each request,
// unless the instance has the header set explicitly. It takes priority over the Defaults token source.
func (f *Fetch) SetTokenSource(ts oauth2.TokenSource) *Fetch {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.tokenSource = ts
	return f
}

// IncludeCredentials attaches cookies to requests of the instance.
func (f *Fetch) IncludeCredentials() *Fetch {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.credentials = credentialsInclude
	return f
}

// ExcludeCredentials disables cookies for requests of the instance, even if the Defaults include them.
func (f *Fetch) ExcludeCredentials() *Fetch {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.credentials = credentialsExclude
	return f
}

// OnError sets the error interceptor of the instance, it replaces the Defaults one.
func (f *Fetch) OnError(fn ErrorInterceptor) *Fetch {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.onError = fn
	return f
}

// OnRequest sets the request interceptor of the instance, it replaces the Defaults one.
func (f *Fetch) OnRequest(fn RequestInterceptor) *Fetch {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.onRequest = fn
	return f
}

// OnRespond sets the response interceptor of the instance, it replaces the Defaults one.
func (f *Fetch) OnRespond(fn ResponseInterceptor) *Fetch {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.onRespond = fn
	return f
}

// Cancel aborts all requests of the instance which are in flight.
// It is idempotent, requests started later are not affected.
func (f *Fetch) Cancel() {
	f.calls.cancelAll()
}
