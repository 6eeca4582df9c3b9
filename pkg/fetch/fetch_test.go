package fetch_test

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/keboola/go-fetch/pkg/client"
	"github.com/keboola/go-fetch/pkg/fetch"
	"github.com/keboola/go-fetch/pkg/request"
)

// recorder is a Sender which remembers sent requests and responds with a JSON object.
type recorder struct {
	lock     sync.Mutex
	requests []*request.Request
	respond  func(ctx context.Context, req *request.Request) (*request.Response, error)
}

func (r *recorder) Send(ctx context.Context, req *request.Request) (*request.Response, error) {
	r.lock.Lock()
	r.requests = append(r.requests, req.Clone())
	r.lock.Unlock()
	if r.respond != nil {
		return r.respond(ctx, req)
	}
	res := request.NewResponse(http.StatusOK, []byte(`{"ok":true}`))
	res.Header.Set("Content-Type", "application/json")
	return res, nil
}

func (r *recorder) Last() *request.Request {
	r.lock.Lock()
	defer r.lock.Unlock()
	if len(r.requests) == 0 {
		return nil
	}
	return r.requests[len(r.requests)-1]
}

func (r *recorder) Count() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.requests)
}

// newRecordedFetch creates a Fetch with its own Defaults and a recording Sender.
func newRecordedFetch(t *testing.T, opts ...fetch.Option) (*fetch.Fetch, *fetch.Defaults, *recorder) {
	t.Helper()
	d := fetch.NewDefaults()
	rec := &recorder{}
	opts = append([]fetch.Option{fetch.WithDefaults(d), fetch.WithSender(rec)}, opts...)
	return fetch.New(opts...), d, rec
}

// newMockedFetch creates a Fetch with its own Defaults, sending requests by the client.Client with a mocked transport.
func newMockedFetch(t *testing.T, opts ...fetch.Option) (*fetch.Fetch, *fetch.Defaults, *httpmock.MockTransport) {
	t.Helper()
	c, transport := client.NewMockedClient()
	d := fetch.NewDefaults()
	opts = append([]fetch.Option{fetch.WithDefaults(d), fetch.WithSender(c)}, opts...)
	return fetch.New(opts...), d, transport
}

// waitForCancel returns a respond function which blocks until the request context is done.
// The started channel is closed when the first request arrives.
func waitForCancel(started chan struct{}) func(ctx context.Context, req *request.Request) (*request.Response, error) {
	var once sync.Once
	return func(ctx context.Context, req *request.Request) (*request.Response, error) {
		if started != nil {
			once.Do(func() { close(started) })
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
}
