package request

import (
	"context"
)

// Sender represents an HTTP transport, the client.Client is a default implementation using the standard net/http package.
type Sender interface {
	// Send method sends the request and returns the response.
	// The response is returned for any HTTP status code, error means the exchange itself failed.
	// The Sender must stop the request when the ctx is cancelled.
	Send(ctx context.Context, req *Request) (*Response, error)
}

// SenderFunc is an adapter to allow the use of an ordinary function as a Sender.
type SenderFunc func(ctx context.Context, req *Request) (*Response, error)

func (fn SenderFunc) Send(ctx context.Context, req *Request) (*Response, error) {
	return fn(ctx, req)
}
