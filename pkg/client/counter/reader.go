// Package counter measures the size of a response body as it is consumed.
package counter

import (
	"errors"
	"io"
	"sync"
)

// OnClose is called once, when the body is closed, with the number of bytes read.
// The err is the first read error other than io.EOF, or the close error.
type OnClose func(bytes int64, err error)

// ReadCloser counts bytes read from the wrapped body.
type ReadCloser struct {
	wrapped   io.ReadCloser
	onClose   OnClose
	closeOnce sync.Once
	bytes     int64
	readErr   error
}

func NewReadCloser(wrapped io.ReadCloser, onClose OnClose) *ReadCloser {
	return &ReadCloser{wrapped: wrapped, onClose: onClose}
}

// Bytes returns number of bytes read so far.
func (r *ReadCloser) Bytes() int64 {
	return r.bytes
}

func (r *ReadCloser) Read(p []byte) (int, error) {
	n, err := r.wrapped.Read(p)
	r.bytes += int64(n)
	if err != nil && !errors.Is(err, io.EOF) && r.readErr == nil {
		r.readErr = err
	}
	return n, err
}

// Close closes the wrapped body, repeated calls only close it again.
func (r *ReadCloser) Close() error {
	closeErr := r.wrapped.Close()
	r.closeOnce.Do(func() {
		if r.onClose == nil {
			return
		}
		err := r.readErr
		if err == nil {
			err = closeErr
		}
		r.onClose(r.bytes, err)
	})
	return closeErr
}
