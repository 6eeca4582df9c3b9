package fetch

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

var (
	defaultSettings     *Defaults
	defaultSettingsOnce sync.Once
)

// GlobalSettings is a snapshot of the Defaults.
// Zero values mean "not set", lower layers are used then.
type GlobalSettings struct {
	BaseURL            string
	Timeout            time.Duration
	Headers            http.Header
	AuthToken          string
	TokenSource        oauth2.TokenSource
	Locale             string
	IncludeCredentials bool
	OnError            ErrorInterceptor
	OnRequest          RequestInterceptor
	OnRespond          ResponseInterceptor
}

// Defaults are settings shared by all Fetch instances created with them.
// Changes are visible to all instances from the next request, last writer wins.
type Defaults struct {
	lock     sync.RWMutex
	settings GlobalSettings
}

// DefaultSettings returns the process-wide Defaults, created on the first call.
func DefaultSettings() *Defaults {
	defaultSettingsOnce.Do(func() {
		defaultSettings = NewDefaults()
	})
	return defaultSettings
}

// NewDefaults creates independent Defaults, to be shared by instances using the WithDefaults option.
func NewDefaults() *Defaults {
	return &Defaults{settings: GlobalSettings{
		Timeout: DefaultTimeout,
		Headers: http.Header{HeaderContentType: []string{ContentTypeJSON}},
	}}
}

// Settings returns a copy of the current values.
func (d *Defaults) Settings() GlobalSettings {
	d.lock.RLock()
	defer d.lock.RUnlock()
	out := d.settings
	out.Headers = d.settings.Headers.Clone()
	return out
}

// Set replaces all values at once.
func (d *Defaults) Set(s GlobalSettings) *Defaults {
	s.Headers = canonicalHeader(s.Headers)
	d.lock.Lock()
	defer d.lock.Unlock()
	d.settings = s
	return d
}

func (d *Defaults) SetBaseURL(v string) *Defaults {
	return d.update(func(s *GlobalSettings) { s.BaseURL = v })
}

func (d *Defaults) SetTimeout(v time.Duration) *Defaults {
	return d.update(func(s *GlobalSettings) { s.Timeout = v })
}

// SetHeader sets a header for all requests, an existing value is replaced.
func (d *Defaults) SetHeader(key, value string) error {
	if key == "" {
		return ErrNoKeyProvided
	}
	d.update(func(s *GlobalSettings) {
		if s.Headers == nil {
			s.Headers = make(http.Header)
		}
		s.Headers.Set(key, value)
	})
	return nil
}

func (d *Defaults) DelHeader(key string) *Defaults {
	return d.update(func(s *GlobalSettings) { s.Headers.Del(key) })
}

// SetAuthToken sets the "Authorization" header value, used if an instance doesn't set it.
// An empty value unsets it.
func (d *Defaults) SetAuthToken(v string) *Defaults {
	return d.update(func(s *GlobalSettings) { s.AuthToken = v })
}

// SetTokenSource sets the OAuth2 token source, used if an instance sets neither a token nor a token source.
func (d *Defaults) SetTokenSource(v oauth2.TokenSource) *Defaults {
	return d.update(func(s *GlobalSettings) { s.TokenSource = v })
}

// SetLocale sets the "Accept-Language" header value, used if an instance doesn't set it.
// An empty value unsets it.
func (d *Defaults) SetLocale(v string) *Defaults {
	return d.update(func(s *GlobalSettings) { s.Locale = v })
}

func (d *Defaults) SetIncludeCredentials(v bool) *Defaults {
	return d.update(func(s *GlobalSettings) { s.IncludeCredentials = v })
}

func (d *Defaults) SetOnError(fn ErrorInterceptor) *Defaults {
	return d.update(func(s *GlobalSettings) { s.OnError = fn })
}

func (d *Defaults) SetOnRequest(fn RequestInterceptor) *Defaults {
	return d.update(func(s *GlobalSettings) { s.OnRequest = fn })
}

func (d *Defaults) SetOnRespond(fn ResponseInterceptor) *Defaults {
	return d.update(func(s *GlobalSettings) { s.OnRespond = fn })
}

func (d *Defaults) update(fn func(s *GlobalSettings)) *Defaults {
	d.lock.Lock()
	defer d.lock.Unlock()
	fn(&d.settings)
	return d
}

// canonicalHeader returns a copy with canonical keys, so a header can be set in any letter case.
func canonicalHeader(in http.Header) http.Header {
	if in == nil {
		return nil
	}
	out := make(http.Header, len(in))
	for k, v := range in {
		key := http.CanonicalHeaderKey(k)
		out[key] = append(out[key], v...)
	}
	return out
}
