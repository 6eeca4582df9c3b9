// Package client provides the default HTTP transport of the fetch pipeline.
//
// Client implements the request.Sender interface.
// It is based on the standard net/http package and contains cookie jar and tracing/telemetry support.
// It is easy to plug in a custom transport, by implementing the request.Sender interface.
//
// The Client performs exactly one round trip per Send call, there are no retries.
// Deadlines and cancellation are taken from the context.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"time"

	otelMetric "go.opentelemetry.io/otel/metric"
	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/keboola/go-fetch/pkg/client/counter"
	"github.com/keboola/go-fetch/pkg/client/decode"
	"github.com/keboola/go-fetch/pkg/client/trace"
	"github.com/keboola/go-fetch/pkg/client/trace/otel"
	"github.com/keboola/go-fetch/pkg/request"
)

const (
	DefaultUserAgent      = "keboola-go-fetch"
	DefaultAcceptEncoding = "gzip, br"
)

// Client is a default and configurable implementation of the request.Sender interface by Go native http.Client.
// It supports cookies and tracing/telemetry.
type Client struct {
	transport    http.RoundTripper
	header       http.Header
	jar          http.CookieJar
	traceFactory trace.Factory
}

// New creates new HTTP Client.
func New() Client {
	c := Client{transport: DefaultTransport(), header: make(http.Header), jar: NewCookieJar()}
	c.header.Set("User-Agent", DefaultUserAgent)
	c.header.Set("Accept-Encoding", DefaultAcceptEncoding)
	return c
}

// WithUserAgent returns a clone of the Client with user agent set.
func (c Client) WithUserAgent(v string) Client {
	c.header = c.header.Clone()
	c.header.Set("User-Agent", v)
	return c
}

// WithHeader returns a clone of the Client with common header set.
func (c Client) WithHeader(key, value string) Client {
	c.header = c.header.Clone()
	c.header.Set(key, value)
	return c
}

// WithHeaders returns a clone of the Client with common headers set.
func (c Client) WithHeaders(headers map[string]string) Client {
	c.header = c.header.Clone()
	for k, v := range headers {
		c.header.Set(k, v)
	}
	return c
}

// WithTransport returns a clone of the Client with a HTTP transport set.
func (c Client) WithTransport(transport http.RoundTripper) Client {
	if transport == nil {
		panic(fmt.Errorf("transport cannot be nil"))
	}
	c.transport = transport
	return c
}

// WithCookieJar returns a clone of the Client with a cookie jar set.
// The jar is used only by requests with request.CredentialsInclude.
func (c Client) WithCookieJar(jar http.CookieJar) Client {
	if jar == nil {
		panic(fmt.Errorf("cookie jar cannot be nil"))
	}
	c.jar = jar
	return c
}

// WithTrace returns a clone of the Client with Trace hooks set.
// Previous trace factory is replaced.
func (c Client) WithTrace(factory trace.Factory) Client {
	c.traceFactory = factory
	return c
}

// AndTrace returns a clone of the Client with Trace hooks added.
// Both trace factories are used, the previous hooks are called first.
func (c Client) AndTrace(fn trace.Factory) Client {
	oldFactory := c.traceFactory
	if oldFactory == nil {
		c.traceFactory = fn
		return c
	}
	c.traceFactory = func(ctx context.Context, req *request.Request) (context.Context, *trace.ClientTrace) {
		ctx, oldTrace := oldFactory(ctx, req)
		ctx, newTrace := fn(ctx, req)
		if newTrace == nil {
			return ctx, oldTrace
		}
		newTrace.Compose(oldTrace)
		return ctx, newTrace
	}
	return c
}

// WithTelemetry returns a clone of the Client with OpenTelemetry tracing and metrics added.
func (c Client) WithTelemetry(tracerProvider otelTrace.TracerProvider, meterProvider otelMetric.MeterProvider, opts ...otel.Option) Client {
	return c.AndTrace(otel.NewTrace(tracerProvider, meterProvider, opts...))
}

// Send method sends HTTP request and returns HTTP response, it implements the request.Sender interface.
// The response is returned for any status code, an error means the exchange itself failed.
func (c Client) Send(ctx context.Context, reqDef *request.Request) (res *request.Response, err error) {
	// Method cannot be called on an empty value
	if c.transport == nil {
		panic(fmt.Errorf("client value is not initialized"))
	}

	// Init trace
	var clientTrace *trace.ClientTrace
	if c.traceFactory != nil {
		ctx, clientTrace = c.traceFactory(ctx, reqDef)
		if clientTrace != nil {
			ctx = httptrace.WithClientTrace(ctx, &clientTrace.ClientTrace)
		}
	}

	// Trace request processed
	if clientTrace != nil && clientTrace.RequestProcessed != nil {
		defer func() {
			clientTrace.RequestProcessed(res, err)
		}()
	}

	// Create request
	req, err := c.newHTTPRequest(ctx, reqDef)
	if err != nil {
		return nil, err
	}

	// Setup native client, redirects are followed by the default policy
	nativeClient := http.Client{
		Transport: roundTripper{trace: clientTrace, wrapped: c.transport},
	}

	// Send request
	startedAt := time.Now()
	rawRes, err := nativeClient.Do(req)
	if err != nil {
		return nil, handleSendError(startedAt, req, err)
	}

	// Store cookies
	if reqDef.Credentials == request.CredentialsInclude && c.jar != nil {
		c.jar.SetCookies(req.URL, rawRes.Cookies())
	}

	// Read body
	res, err = readResponse(clientTrace, rawRes)
	if err != nil {
		return nil, fmt.Errorf(`cannot process request %s "%s": %w`, req.Method, req.URL.String(), err)
	}
	return res, nil
}

func (c Client) newHTTPRequest(ctx context.Context, reqDef *request.Request) (*http.Request, error) {
	if reqDef.Method == "" {
		return nil, fmt.Errorf(`request "%s": method is not set`, reqDef.URL)
	}

	var body io.Reader
	if reqDef.HasBody() {
		body = bytes.NewReader(reqDef.Body)
	}

	req, err := http.NewRequestWithContext(ctx, reqDef.Method, reqDef.URL, body)
	if err != nil {
		return nil, fmt.Errorf(`request %s "%s" failed: %w`, reqDef.Method, reqDef.URL, err)
	}

	// Client headers
	for k, values := range c.header {
		for _, v := range values {
			req.Header.Set(k, v)
		}
	}

	// Request headers
	for k, values := range reqDef.Header {
		req.Header.Del(k) // clear client values
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	// Cookies
	if reqDef.Credentials == request.CredentialsInclude && c.jar != nil {
		for _, cookie := range c.jar.Cookies(req.URL) {
			req.AddCookie(cookie)
		}
	}

	return req, nil
}

func readResponse(clientTrace *trace.ClientTrace, rawRes *http.Response) (*request.Response, error) {
	// Count bytes on the wire, before decoding
	rawRes.Body = counter.NewReadCloser(rawRes.Body, func(bytes int64, err error) {
		if clientTrace != nil && clientTrace.BodyReadDone != nil {
			clientTrace.BodyReadDone(rawRes, bytes, err)
		}
	})
	defer rawRes.Body.Close()

	if clientTrace != nil && clientTrace.BodyReadStart != nil {
		clientTrace.BodyReadStart(rawRes)
	}

	body, err := decode.Decode(rawRes.Body, rawRes.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, err
	}

	bodyBytes, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf(`cannot read response body: %w`, err)
	}

	return &request.Response{
		StatusCode:  rawRes.StatusCode,
		StatusText:  request.StatusTextOf(rawRes),
		Header:      rawRes.Header,
		Body:        bodyBytes,
		RawResponse: rawRes,
	}, nil
}

func handleSendError(startedAt time.Time, req *http.Request, err error) error {
	// Timeout
	var netErr net.Error
	if deadline, ok := req.Context().Deadline(); ok && errors.Is(err, context.DeadlineExceeded) {
		err = urlError(req, fmt.Errorf("timeout after %s: %w", deadline.Sub(startedAt), context.DeadlineExceeded))
	} else if errors.Is(err, context.Canceled) {
		err = urlError(req, fmt.Errorf("canceled after %s: %w", time.Since(startedAt), context.Canceled))
	} else if errors.As(err, &netErr) && netErr.Timeout() {
		err = urlError(req, fmt.Errorf("timeout after %s: %w", time.Since(startedAt), err))
	}

	// Url error
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = fmt.Errorf(`request %s "%s" failed: %w`, strings.ToUpper(urlErr.Op), urlErr.URL, urlErr.Err)
	}

	return err
}

// roundTripper wraps a http.RoundTripper and adds trace functionality.
type roundTripper struct {
	trace   *trace.ClientTrace
	wrapped http.RoundTripper
}

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// Trace request start
	if rt.trace != nil && rt.trace.HTTPRequestStart != nil {
		rt.trace.HTTPRequestStart(req)
	}

	// Send
	res, err := rt.wrapped.RoundTrip(req)

	// Trace request done
	if rt.trace != nil && rt.trace.HTTPRequestDone != nil {
		rt.trace.HTTPRequestDone(res, err)
	}

	return res, err
}

func urlError(req *http.Request, err error) *url.Error {
	return &url.Error{Op: req.Method, URL: req.URL.String(), Err: err}
}
