// Package decode unwraps a compressed response body according to the Content-Encoding header.
package decode

import (
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

const (
	EncodingGzip   = "gzip"
	EncodingBrotli = "br"
)

// Decode returns a reader of the decoded body.
// Unknown and empty encodings are returned unchanged, "identity" included.
// Closing the returned reader closes the wrapped body.
func Decode(body io.ReadCloser, contentEncoding string) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case EncodingGzip:
		r, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("cannot decode gzip: %w", err)
		}
		return &decodedBody{Reader: r, closers: []io.Closer{r, body}}, nil
	case EncodingBrotli:
		return &decodedBody{Reader: brotli.NewReader(body), closers: []io.Closer{body}}, nil
	default:
		return body, nil
	}
}

type decodedBody struct {
	io.Reader
	closers []io.Closer
}

func (b *decodedBody) Close() error {
	var firstErr error
	for _, c := range b.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
