package fetch

import (
	"fmt"
	"net/http"
)

// Header returns the value of the header which would be sent with the next request,
// from the instance settings merged with the Defaults. Keys are case-insensitive.
// Token sources are not called, they are resolved when a request is sent.
func (f *Fetch) Header(key string) (string, bool) {
	h, _ := resolveHeader(f.defaults.Settings(), f.instance(), nil, false)
	values, found := h[http.CanonicalHeaderKey(key)]
	if !found || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// SetHeader sets the header of the instance, an existing value is replaced.
func (f *Fetch) SetHeader(key, value string) error {
	if key == "" {
		return ErrNoKeyProvided
	}
	f.setHeader(key, value)
	return nil
}

// RemoveHeader removes the header from requests of the instance,
// no matter if it comes from the instance or from the Defaults.
func (f *Fetch) RemoveHeader(key string) error {
	if key == "" {
		return ErrNoKeyProvided
	}
	if _, found := f.Header(key); !found {
		return fmt.Errorf(`cannot remove header "%s": %w`, key, ErrKeyNotFound)
	}

	key = http.CanonicalHeaderKey(key)
	f.lock.Lock()
	defer f.lock.Unlock()
	f.header.Del(key)
	f.removed[key] = struct{}{}
	return nil
}

func (f *Fetch) setHeader(key, value string) {
	key = http.CanonicalHeaderKey(key)
	f.lock.Lock()
	defer f.lock.Unlock()
	f.header.Set(key, value)
	delete(f.removed, key)
}
