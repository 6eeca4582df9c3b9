// Package otel provides OpenTelemetry tracing and metrics for requests sent by the client.Client.
//
// The package provides 2 levels of telemetry:
//
// 1. Client-level telemetry:
//   - Span "go.fetch.client.request" wraps the whole Client.Send call, redirects included.
//   - Span "go.fetch.client.request.body.read" tracks reading of the response body.
//   - Metrics names start with "go.fetch.client." (clientMeterPrefix const).
//
// 2. HTTP-level telemetry:
//   - Span "http.request" for every round trip, including redirects.
//   - Spans "http.dns", "http.getconn", "http.connect", "http.tls" from the httptrace hooks.
//   - Metrics names start with "go.fetch.http.client." (httpMeterPrefix const).
//
// The package [otelhttptrace] is not used, it does not end spans reliably.
//
// [otelhttptrace]: https://pkg.go.dev/go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace
package otel

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/httptrace"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelMetric "go.opentelemetry.io/otel/metric"
	metricNoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	otelTrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/keboola/go-fetch/pkg/client/trace"
	"github.com/keboola/go-fetch/pkg/request"
)

const (
	traceAppName     = "github.com/keboola/go-fetch"
	attrResourceName = attribute.Key("resource.name")
	// Client-level.
	clientSpanPrefix       = "go.fetch.client."
	clientRequestSpanName  = clientSpanPrefix + "request"
	clientBodyReadSpanName = clientSpanPrefix + "request.body.read"
	clientMeterPrefix      = "go.fetch.client."
	// HTTP-level, for each redirect.
	httpSpanPrefix           = "http."
	httpRequestSpanName      = httpSpanPrefix + "request"
	httpDNSSpanName          = httpSpanPrefix + "dns"
	httpGetConnSpanName      = httpSpanPrefix + "getconn"
	httpConnectSpanName      = httpSpanPrefix + "connect"
	httpTLSHandshakeSpanName = httpSpanPrefix + "tls"
	httpMeterPrefix          = "go.fetch.http.client."
	attrDNSAddresses         = attribute.Key("http.dns.addrs")
	attrRemoteAddr           = attribute.Key("http.remote")
	attrLocalAddr            = attribute.Key("http.local")
	attrConnectionReused     = attribute.Key("http.conn.reused")
	attrConnectionWasIdle    = attribute.Key("http.conn.wasidle")
	attrConnectionIdleTime   = attribute.Key("http.conn.idletime")
	attrConnectionNetwork    = attribute.Key("http.conn.network")
	attrRedirect             = attribute.Key("http.redirect")
	attrReadBytes            = attribute.Key("http.read_bytes")
	// Extra attributes for DataDog.
	attrSpanKind            = attribute.Key("span.kind")
	attrSpanKindValueClient = "client"
	attrSpanType            = attribute.Key("span.type")
	attrSpanTypeValueHTTP   = "http"
)

// NewTrace creates a trace.Factory which reports spans and metrics to the providers.
// Nil providers are replaced by no-op implementations.
func NewTrace(tracerProvider otelTrace.TracerProvider, meterProvider otelMetric.MeterProvider, opts ...Option) trace.Factory {
	cfg := newConfig(opts)
	if tracerProvider == nil {
		tracerProvider = noop.NewTracerProvider()
	}
	if meterProvider == nil {
		meterProvider = metricNoop.NewMeterProvider()
	}
	tracer := tracerProvider.Tracer(traceAppName)
	meters := newMeters(meterProvider.Meter(traceAppName))

	return func(rootCtx context.Context, reqDef *request.Request) (context.Context, *trace.ClientTrace) {
		tc := &trace.ClientTrace{}
		attrs := newAttributes(cfg, reqDef)

		// Root span and metrics, it may contain multiple HTTP requests (redirects).
		var rootSpan otelTrace.Span
		{
			startTime := time.Now()
			meters.client.inFlight.Add(rootCtx, 1, otelMetric.WithAttributes(attrs.definition...))

			rootCtx, rootSpan = tracer.Start(
				rootCtx,
				clientRequestSpanName,
				otelTrace.WithSpanKind(otelTrace.SpanKindClient),
				otelTrace.WithAttributes(
					attrResourceName.String(reqDef.String()),
					attrSpanKind.String(attrSpanKindValueClient),
					attrSpanType.String(attrSpanTypeValueHTTP),
				),
				otelTrace.WithAttributes(attrs.definition...),
				otelTrace.WithAttributes(attrs.definitionExtra...),
			)
			tc.RequestProcessed = func(res *request.Response, err error) {
				elapsedTime := float64(time.Since(startTime)) / float64(time.Millisecond)
				attrs.SetResult(res, err)

				// Metrics
				meterAttrs := append(append([]attribute.KeyValue(nil), attrs.definition...), attrs.result...)
				meters.client.inFlight.Add(rootCtx, -1, otelMetric.WithAttributes(attrs.definition...)) // same attributes/dimensions as above (+1)!
				meters.client.duration.Record(rootCtx, elapsedTime, otelMetric.WithAttributes(meterAttrs...))

				// Tracing
				rootSpan.SetAttributes(attrs.result...)
				switch {
				case err != nil:
					rootSpan.RecordError(err)
					rootSpan.SetStatus(codes.Error, err.Error())
				case res != nil && res.IsError():
					rootSpan.SetStatus(codes.Error, fmt.Sprintf(`HTTP status code: %d %s`, res.StatusCode, res.StatusText))
				}
				rootSpan.End()
			}
		}

		// Handle HTTP requests
		var httpCtx context.Context
		var httpRequestSpan otelTrace.Span
		{
			var httpRequestStart time.Time
			tc.HTTPRequestStart = func(req *http.Request) {
				httpCtx, httpRequestSpan = tracer.Start(
					rootCtx,
					httpRequestSpanName,
					otelTrace.WithSpanKind(otelTrace.SpanKindClient),
					otelTrace.WithAttributes(
						attrResourceName.String(req.URL.Path),
						attrSpanKind.String(attrSpanKindValueClient),
						attrSpanType.String(attrSpanTypeValueHTTP),
					),
				)

				// Inject trace headers
				if cfg.propagators != nil {
					cfg.propagators.Inject(httpCtx, propagation.HeaderCarrier(req.Header))
				}

				httpRequestStart = time.Now()
				attrs.SetFromRequest(req)
				meters.http.inFlight.Add(rootCtx, 1, otelMetric.WithAttributes(attrs.httpRequest...))
				httpRequestSpan.SetAttributes(attrs.httpRequest...)
				httpRequestSpan.SetAttributes(attrs.httpRequestExtra...)
			}
			tc.HTTPRequestDone = func(res *http.Response, err error) {
				elapsedTime := float64(time.Since(httpRequestStart)) / float64(time.Millisecond)
				attrs.SetFromResponse(res, err)

				// Metrics
				meters.http.inFlight.Add(rootCtx, -1, otelMetric.WithAttributes(attrs.httpRequest...)) // same attributes/dimensions as in HTTPRequestStart!
				meters.http.duration.Record(
					rootCtx,
					elapsedTime,
					otelMetric.WithAttributes(attrs.httpRequest...),
					otelMetric.WithAttributes(attrs.httpResponse...),
				)

				// Tracing
				if httpRequestSpan == nil {
					return
				}
				httpRequestSpan.SetAttributes(attrs.httpResponse...)
				httpRequestSpan.SetAttributes(attrs.httpResponseExtra...)
				httpRequestSpan.SetAttributes(attrRedirect.Bool(isRedirection(res)))
				switch {
				case err != nil:
					httpRequestSpan.RecordError(err)
					httpRequestSpan.SetStatus(codes.Error, err.Error())
				case res != nil && res.StatusCode >= http.StatusBadRequest:
					httpRequestSpan.SetStatus(codes.Error, fmt.Sprintf(`HTTP status code: %d %s`, res.StatusCode, http.StatusText(res.StatusCode)))
				}
				httpRequestSpan.End()
				httpRequestSpan = nil
			}
		}

		// Handle body reading
		{
			var bodyReadSpan otelTrace.Span
			tc.BodyReadStart = func(res *http.Response) {
				_, bodyReadSpan = tracer.Start(
					rootCtx,
					clientBodyReadSpanName,
					otelTrace.WithSpanKind(otelTrace.SpanKindClient),
					otelTrace.WithAttributes(attrs.httpRequest...),
					otelTrace.WithAttributes(attrs.httpResponse...),
				)
			}
			tc.BodyReadDone = func(res *http.Response, bytes int64, err error) {
				meters.http.responseSize.Record(
					rootCtx,
					bytes,
					otelMetric.WithAttributes(attrs.httpRequest...),
					otelMetric.WithAttributes(attrs.httpResponse...),
				)
				if bodyReadSpan != nil {
					bodyReadSpan.SetAttributes(attrReadBytes.Int64(bytes))
					if err != nil {
						bodyReadSpan.RecordError(err)
						bodyReadSpan.SetStatus(codes.Error, err.Error())
					}
					bodyReadSpan.End()
					bodyReadSpan = nil
				}
			}
		}

		// Register low-level tracing.
		// httptrace: DNS
		{
			var dnsSpan otelTrace.Span
			tc.DNSStart = func(info httptrace.DNSStartInfo) {
				_, dnsSpan = tracer.Start(
					httpCtx,
					httpDNSSpanName,
					otelTrace.WithSpanKind(otelTrace.SpanKindClient),
					otelTrace.WithAttributes(semconv.ServerAddress(info.Host)),
				)
			}
			tc.DNSDone = func(info httptrace.DNSDoneInfo) {
				if dnsSpan != nil {
					var addrs []string
					for _, netAddr := range info.Addrs {
						addrs = append(addrs, netAddr.String())
					}
					dnsSpan.SetAttributes(attrDNSAddresses.String(strings.Join(addrs, ";")))
					if info.Err != nil {
						dnsSpan.RecordError(info.Err)
						dnsSpan.SetStatus(codes.Error, info.Err.Error())
					}
					dnsSpan.End()
					dnsSpan = nil
				}
			}
		}
		// httptrace: Get connection
		{
			var getConnSpan otelTrace.Span
			tc.GetConn = func(host string) {
				_, getConnSpan = tracer.Start(
					httpCtx,
					httpGetConnSpanName,
					otelTrace.WithSpanKind(otelTrace.SpanKindClient),
					otelTrace.WithAttributes(semconv.ServerAddress(host)),
				)
			}
			tc.GotConn = func(info httptrace.GotConnInfo) {
				if getConnSpan != nil {
					getConnSpan.SetAttributes(
						attrRemoteAddr.String(info.Conn.RemoteAddr().String()),
						attrLocalAddr.String(info.Conn.LocalAddr().String()),
						attrConnectionReused.Bool(info.Reused),
						attrConnectionWasIdle.Bool(info.WasIdle),
					)
					if info.WasIdle {
						getConnSpan.SetAttributes(attrConnectionIdleTime.String(info.IdleTime.String()))
					}
					getConnSpan.End()
					getConnSpan = nil
				}
			}
		}
		// httptrace: Connect
		{
			var connectSpan otelTrace.Span
			tc.ConnectStart = func(network, addr string) {
				_, connectSpan = tracer.Start(
					httpCtx,
					httpConnectSpanName,
					otelTrace.WithSpanKind(otelTrace.SpanKindClient),
					otelTrace.WithAttributes(
						attrRemoteAddr.String(addr),
						attrConnectionNetwork.String(network),
					),
				)
			}
			tc.ConnectDone = func(network, addr string, err error) {
				if connectSpan != nil {
					if err != nil {
						connectSpan.RecordError(err)
						connectSpan.SetStatus(codes.Error, err.Error())
					}
					connectSpan.End()
					connectSpan = nil
				}
			}
		}
		// httptrace: TLS handshake
		// Note: It is not reported if the http2.Transport is used directly, without upgrade from http.Transport.
		{
			var tlsSpan otelTrace.Span
			tc.TLSHandshakeStart = func() {
				_, tlsSpan = tracer.Start(
					httpCtx,
					httpTLSHandshakeSpanName,
					otelTrace.WithSpanKind(otelTrace.SpanKindClient),
				)
			}
			tc.TLSHandshakeDone = func(_ tls.ConnectionState, err error) {
				if tlsSpan != nil {
					if err != nil {
						tlsSpan.RecordError(err)
						tlsSpan.SetStatus(codes.Error, err.Error())
					}
					tlsSpan.End()
					tlsSpan = nil
				}
			}
		}

		return rootCtx, tc
	}
}
