package fetch

import (
	"context"
	"net/http"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	// RunGroupConcurrencyLimit is the maximum number of concurrent requests in one RunGroup.
	RunGroupConcurrencyLimit = 32
	// WaitGroupConcurrencyLimit is the maximum number of concurrent requests in one WaitGroup.
	WaitGroupConcurrencyLimit = 8
)

// Sendable is a request which can be sent by a RunGroup or a WaitGroup.
type Sendable interface {
	SendOrErr(ctx context.Context) error
}

// SendFunc is an adapter to allow the use of an ordinary function as a Sendable.
type SendFunc func(ctx context.Context) error

func (fn SendFunc) SendOrErr(ctx context.Context) error {
	return fn(ctx)
}

// Call is a prepared request of a Fetch, it is sent later by a RunGroup or a WaitGroup.
type Call struct {
	fetch     *Fetch
	method    string
	url       string
	data      any
	opts      []RequestOption
	onSuccess func(ctx context.Context, payload any) error
}

// NewCall prepares a request. For the GET method, the data are serialized to the query string.
func (f *Fetch) NewCall(method, url string, data any, opts ...RequestOption) *Call {
	return &Call{fetch: f, method: method, url: url, data: data, opts: opts}
}

// WithOnSuccess sets a callback invoked with the payload of a successful request.
// More requests can be added to the group from the callback.
func (c *Call) WithOnSuccess(fn func(ctx context.Context, payload any) error) *Call {
	c.onSuccess = fn
	return c
}

func (c *Call) SendOrErr(ctx context.Context) error {
	var payload any
	var err error
	if c.method == http.MethodGet {
		payload, err = c.fetch.Get(ctx, c.url, c.data, c.opts...)
	} else {
		payload, err = c.fetch.Do(ctx, c.method, c.url, c.data, c.opts...)
	}
	if err != nil {
		return err
	}
	if c.onSuccess != nil {
		return c.onSuccess(ctx, payload)
	}
	return nil
}

// RunGroup allows scheduling requests by Add method
// and then send them concurrently by the RunAndWait method.
//
// The sending will stop when the first error occurs.
// The first error will be returned from the RunAndWait method.
//
// If you need to send requests immediately,
// or if you want to wait and collect all errors, use WaitGroup instead.
type RunGroup struct {
	ctx   context.Context
	start chan struct{} // postpone sending until RunAndWait will be called
	group *errgroup.Group
	sem   *semaphore.Weighted // limit concurrency
}

// NewRunGroup creates a new RunGroup.
func NewRunGroup(ctx context.Context) *RunGroup {
	return NewRunGroupWithLimit(ctx, RunGroupConcurrencyLimit)
}

// NewRunGroupWithLimit creates a new RunGroup with given concurrent requests limit.
func NewRunGroupWithLimit(ctx context.Context, limit int64) *RunGroup {
	group, ctx := errgroup.WithContext(ctx)
	return &RunGroup{
		ctx:   ctx,
		start: make(chan struct{}),
		group: group,
		sem:   semaphore.NewWeighted(limit),
	}
}

// Add request for sending.
// The request will be sent on call of the RunAndWait method.
// Additional requests can be added using the Add method (for example from an OnSuccess callback),
// even if RunAndWait has already been called, but is not yet finished.
func (g *RunGroup) Add(req Sendable) {
	g.group.Go(func() error {
		// Postpone sending until RunAndWait will be called
		<-g.start

		// Limit number of concurrent requests
		if err := g.sem.Acquire(g.ctx, 1); err != nil {
			// Ctx is done, return
			return err
		}
		defer g.sem.Release(1)

		return req.SendOrErr(g.ctx)
	})
}

// RunAndWait starts sending requests and waits for the result.
// After the first error the context of the other requests is canceled and the error is returned.
func (g *RunGroup) RunAndWait() error {
	close(g.start)
	return g.group.Wait()
}

// WaitGroup allows sending requests concurrently using Send method
// and wait until all requests are completed using the Wait method.
//
// The request starts immediately after calling the Send method.
// If an error occurs, sending will not stop, all requests will be sent.
// Wait method at the end returns all errors that have occurred, if any.
//
// If you need to schedule requests and send them later,
// or if you want to stop at the first error, use RunGroup instead.
type WaitGroup struct {
	ctx context.Context
	wg  *sync.WaitGroup     // wait for all
	sem *semaphore.Weighted // limit concurrency

	lock *sync.Mutex // for err
	err  *multierror.Error
}

// NewWaitGroup creates new WaitGroup.
func NewWaitGroup(ctx context.Context) *WaitGroup {
	return NewWaitGroupWithLimit(ctx, WaitGroupConcurrencyLimit)
}

// NewWaitGroupWithLimit creates new WaitGroup with given concurrent requests limit.
func NewWaitGroupWithLimit(ctx context.Context, limit int64) *WaitGroup {
	return &WaitGroup{ctx: ctx, wg: &sync.WaitGroup{}, sem: semaphore.NewWeighted(limit), lock: &sync.Mutex{}}
}

// Send a concurrent request.
func (g *WaitGroup) Send(req Sendable) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		// Limit number of concurrent requests
		if err := g.sem.Acquire(g.ctx, 1); err != nil {
			g.addError(err)
			return
		}
		defer g.sem.Release(1)

		if err := req.SendOrErr(g.ctx); err != nil {
			g.addError(err)
		}
	}()
}

// Wait for all requests to complete. All errors that have occurred will be returned.
func (g *WaitGroup) Wait() error {
	g.wg.Wait()
	// If there is only one error, then unwrap multierror
	if g.err != nil && len(g.err.Errors) == 1 {
		return g.err.Errors[0]
	}
	return g.err.ErrorOrNil()
}

func (g *WaitGroup) addError(err error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.err = multierror.Append(g.err, err)
}
