package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/keboola/go-fetch/pkg/qs"
	"github.com/keboola/go-fetch/pkg/request"
)

// errTimeout is the cancellation cause set by the request timer.
var errTimeout = errors.New("fetch: request timeout")

type sendResult struct {
	response *request.Response
	err      error
}

// Get sends a GET request, params are serialized to the query string and appended to the URL.
func (f *Fetch) Get(ctx context.Context, url string, params any, opts ...RequestOption) (any, error) {
	if params != nil {
		url = appendQuery(url, qs.Serialize(params))
	}
	return f.Do(ctx, http.MethodGet, url, nil, opts...)
}

// Post sends a POST request, the data are encoded to a JSON body.
func (f *Fetch) Post(ctx context.Context, url string, data any, opts ...RequestOption) (any, error) {
	return f.Do(ctx, http.MethodPost, url, data, opts...)
}

// Put sends a PUT request, the data are encoded to a JSON body.
func (f *Fetch) Put(ctx context.Context, url string, data any, opts ...RequestOption) (any, error) {
	return f.Do(ctx, http.MethodPut, url, data, opts...)
}

// Delete sends a DELETE request, the data are encoded to a JSON body.
func (f *Fetch) Delete(ctx context.Context, url string, data any, opts ...RequestOption) (any, error) {
	return f.Do(ctx, http.MethodDelete, url, data, opts...)
}

// Do sends a request with settings resolved from all layers.
//
// A successful response body is parsed as JSON, an unparsable body results in a nil payload.
// The payload is passed to the response interceptor, if any.
// A non-2xx response results in an HTTPStatusError, the error interceptor is notified.
func (f *Fetch) Do(ctx context.Context, method, url string, data any, opts ...RequestOption) (payload any, err error) {
	call := newSettings(opts)

	// Configuring
	cfg, err := f.resolve(method, url, data, call)
	if err != nil {
		return nil, err
	}
	req := cfg.request
	if cfg.onRequest != nil {
		replaced, err := cfg.onRequest(ctx, req)
		if err != nil {
			return nil, fmt.Errorf(`request %s "%s": request interceptor failed: %w`, req.Method, req.URL, err)
		}
		if replaced != nil {
			if replaced.Timeout <= 0 {
				replaced.Timeout = cfg.request.Timeout
			}
			req = replaced
		}
	}

	var trace *Trace
	if f.trace != nil {
		trace = f.trace()
	}
	if trace != nil && trace.Configured != nil {
		trace.Configured(req)
	}

	// InFlight
	res, err := f.send(ctx, trace, req)
	if trace != nil && trace.Completed != nil {
		defer func() {
			trace.Completed(req, res, err)
		}()
	}
	if err != nil {
		return nil, err
	}

	// Failed
	if !res.OK() {
		statusErr := &HTTPStatusError{
			Method:     req.Method,
			URL:        req.URL,
			StatusCode: res.StatusCode,
			StatusText: res.StatusText,
			Header:     res.Header,
			Body:       res.Body,
		}
		if cfg.onError != nil {
			cfg.onError(ctx, statusErr)
		}
		return nil, statusErr
	}

	// Succeeded
	if payload, err = decodePayload(res, call.result); err != nil {
		return nil, fmt.Errorf(`request %s "%s" failed: %w`, req.Method, req.URL, err)
	}
	if cfg.onRespond != nil {
		if payload, err = cfg.onRespond(ctx, payload); err != nil {
			return nil, fmt.Errorf(`request %s "%s": response interceptor failed: %w`, req.Method, req.URL, err)
		}
	}
	return payload, nil
}

// send races the transport against the timeout and the cancellation of the instance or the parent context.
func (f *Fetch) send(parentCtx context.Context, trace *Trace, req *request.Request) (*request.Response, error) {
	ctx, cancel := context.WithCancelCause(parentCtx)
	defer cancel(nil)

	unregister := f.calls.register(cancel)
	defer unregister()

	timer := time.AfterFunc(req.Timeout, func() {
		cancel(errTimeout)
	})
	defer timer.Stop()

	resultCh := make(chan sendResult, 1)
	go func() {
		res, err := f.sender.Send(ctx, req)
		resultCh <- sendResult{response: res, err: err}
	}()

	var result sendResult
	select {
	case result = <-resultCh:
		if result.err == nil && result.response == nil {
			result.err = errors.New("sender returned no response")
		}
		if result.err == nil {
			return result.response, nil
		}
		if ctx.Err() == nil {
			return nil, &RequestInitializationError{Method: req.Method, URL: req.URL, Err: result.err}
		}
		// The transport failed because of the cancellation
	case <-ctx.Done():
	}

	err := canceledError(req, context.Cause(ctx))
	if trace != nil && trace.Canceled != nil {
		trace.Canceled(req, err)
	}
	return nil, err
}

func canceledError(req *request.Request, cause error) error {
	if errors.Is(cause, errTimeout) {
		return &RequestTimeoutError{Method: req.Method, URL: req.URL, Timeout: req.Timeout}
	}
	return &RequestAbortError{Method: req.Method, URL: req.URL, Cause: cause}
}

// decodePayload parses the JSON body of a successful response.
// Without a target, an unparsable or empty body is a nil payload, not an error.
func decodePayload(res *request.Response, target any) (any, error) {
	if target != nil {
		if len(res.Body) == 0 || res.StatusCode == http.StatusNoContent {
			return nil, nil
		}
		if err := res.JSON(target); err != nil {
			return nil, err
		}
		return target, nil
	}

	var payload any
	if err := json.Unmarshal(res.Body, &payload); err != nil {
		return nil, nil //nolint:nilerr
	}
	return payload, nil
}
