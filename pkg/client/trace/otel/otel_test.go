package otel_test

import (
	"context"
	"encoding/binary"
	"net/http"
	"sort"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	export "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/keboola/go-fetch/pkg/client"
	"github.com/keboola/go-fetch/pkg/client/trace/otel"
	"github.com/keboola/go-fetch/pkg/request"
)

const (
	testTraceID    = 0xabcd
	testSpanIDBase = 0x1000
)

type testIDGenerator struct {
	spanID uint16
}

func (g *testIDGenerator) NewIDs(ctx context.Context) (otelTrace.TraceID, otelTrace.SpanID) {
	traceID := toTraceID(testTraceID)
	return traceID, g.NewSpanID(ctx, traceID)
}

func (g *testIDGenerator) NewSpanID(_ context.Context, _ otelTrace.TraceID) otelTrace.SpanID {
	g.spanID++
	return toSpanID(testSpanIDBase + g.spanID)
}

func toTraceID(in uint16) otelTrace.TraceID { //nolint: unparam
	tmp := make([]byte, 16)
	binary.BigEndian.PutUint16(tmp, in)
	return *(*[16]byte)(tmp)
}

func toSpanID(in uint16) otelTrace.SpanID {
	tmp := make([]byte, 8)
	binary.BigEndian.PutUint16(tmp, in)
	return *(*[8]byte)(tmp)
}

type testTelemetry struct {
	traceExporter  *tracetest.InMemoryExporter
	tracerProvider *trace.TracerProvider
	metricReader   metric.Reader
	meterProvider  *metric.MeterProvider
}

func newTestTelemetry(t *testing.T, ctx context.Context) *testTelemetry {
	t.Helper()

	res, err := resource.New(ctx)
	require.NoError(t, err)

	// Tracing
	traceExporter := tracetest.NewInMemoryExporter()
	tracerProvider := trace.NewTracerProvider(
		trace.WithSyncer(traceExporter),
		trace.WithResource(res),
		trace.WithIDGenerator(&testIDGenerator{}),
	)

	// Metrics, each test has its own registry
	metricExporter, err := export.New(export.WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	meterProvider := metric.NewMeterProvider(
		metric.WithReader(metricExporter),
		metric.WithResource(res),
	)

	return &testTelemetry{
		traceExporter:  traceExporter,
		tracerProvider: tracerProvider,
		metricReader:   metricExporter,
		meterProvider:  meterProvider,
	}
}

func TestMockedRequestWithRedirect(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Mocked responses (redirect, OK)
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", `https://api.example.com/redirect`, func(req *http.Request) (*http.Response, error) {
		res := httpmock.NewStringResponse(http.StatusMovedPermanently, "")
		res.Header.Set("Location", "https://api.example.com/index")
		return res, nil
	})
	transport.RegisterResponder("GET", `https://api.example.com/index`, func(req *http.Request) (*http.Response, error) {
		// Trace context is propagated
		assert.NotEmpty(t, req.Header.Get("Traceparent"))
		return httpmock.NewStringResponse(http.StatusOK, "OK"), nil
	})

	tel := newTestTelemetry(t, ctx)
	c := client.New().
		WithTransport(transport).
		WithTelemetry(
			tel.tracerProvider,
			tel.meterProvider,
			otel.WithRedactedQueryParams("token"),
			otel.WithRedactedHeaders("X-Api-Key"),
			otel.WithPropagators(propagation.TraceContext{}),
		)

	// Send request
	res, err := c.Send(ctx, &request.Request{
		Method: http.MethodGet,
		URL:    "https://api.example.com/redirect?foo=bar&token=my-secret",
		Header: http.Header{
			"Authorization": []string{"Bearer my-secret"},
			"X-Api-Key":     []string{"my-secret"},
			"Accept":        []string{"application/json"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "OK", string(res.Body))

	// Assert spans
	spans := actualSpans(tel.traceExporter)
	require.Equal(t, []string{
		"go.fetch.client.request",
		"http.request",
		"http.request",
		"go.fetch.client.request.body.read",
	}, spanNames(spans))

	root := spans[0]
	assert.False(t, root.Parent.IsValid())
	assert.Equal(t, otelTrace.SpanKindClient, root.SpanKind)
	assert.Equal(t, codes.Unset, root.Status.Code)
	assertAttr(t, root, "fetch.request.method", "GET")
	assertAttr(t, root, "fetch.request.url.host", "api.example.com")
	assertAttr(t, root, "fetch.request.url.path", "/redirect")
	assertAttr(t, root, "fetch.request.url.full", "https://api.example.com/redirect?foo=bar&token=****")
	assertAttr(t, root, "fetch.request.header.authorization", "****")
	assertAttr(t, root, "fetch.request.header.x-api-key", "****")
	assertAttr(t, root, "fetch.request.header.accept", "application/json")
	assertAttr(t, root, "fetch.response.success", true)
	assertAttr(t, root, "http.response.status_code", int64(200))

	for _, span := range spans[1:] {
		// All spans must be finished and must be children of the root span
		assert.NotZero(t, span.EndTime)
		assert.Equal(t, root.SpanContext.SpanID(), span.Parent.SpanID())
		assert.Equal(t, root.SpanContext.TraceID(), span.SpanContext.TraceID())
	}

	redirect := spans[1]
	assertAttr(t, redirect, "http.request.method", "GET")
	assertAttr(t, redirect, "url.path", "/redirect")
	assertAttr(t, redirect, "url.full", "https://api.example.com/redirect?foo=bar&token=****")
	assertAttr(t, redirect, "http.response.status_code", int64(301))
	assertAttr(t, redirect, "http.redirect", true)

	index := spans[2]
	assertAttr(t, index, "url.path", "/index")
	assertAttr(t, index, "http.response.status_code", int64(200))
	assertAttr(t, index, "http.redirect", false)

	assertAttr(t, spans[3], "http.read_bytes", int64(2))

	// Assert metrics
	metrics := actualMetrics(t, ctx, tel.metricReader)
	assert.Equal(t, []string{
		"go.fetch.client.request.duration",
		"go.fetch.client.request.in_flight",
		"go.fetch.http.client.request.duration",
		"go.fetch.http.client.request.in_flight",
		"go.fetch.http.client.response.body.size",
	}, metricNames(metrics))

	clientDuration := metrics["go.fetch.client.request.duration"].Data.(metricdata.Histogram[float64])
	require.Len(t, clientDuration.DataPoints, 1)
	assert.Equal(t, uint64(1), clientDuration.DataPoints[0].Count)

	clientInFlight := metrics["go.fetch.client.request.in_flight"].Data.(metricdata.Sum[int64])
	require.Len(t, clientInFlight.DataPoints, 1)
	assert.Equal(t, int64(0), clientInFlight.DataPoints[0].Value)

	httpDuration := metrics["go.fetch.http.client.request.duration"].Data.(metricdata.Histogram[float64])
	assert.Len(t, httpDuration.DataPoints, 2) // redirect + index

	for _, point := range metrics["go.fetch.http.client.request.in_flight"].Data.(metricdata.Sum[int64]).DataPoints {
		assert.Equal(t, int64(0), point.Value)
	}

	bodySize := metrics["go.fetch.http.client.response.body.size"].Data.(metricdata.Histogram[int64])
	require.Len(t, bodySize.DataPoints, 1)
	assert.Equal(t, int64(2), bodySize.DataPoints[0].Sum)
}

func TestMockedRequestError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", `https://api.example.com/missing`, httpmock.NewStringResponder(http.StatusNotFound, "not found"))

	tel := newTestTelemetry(t, ctx)
	c := client.New().WithTransport(transport).WithTelemetry(tel.tracerProvider, tel.meterProvider)

	// HTTP error status is not a Send error, but the span is marked
	res, err := c.Send(ctx, &request.Request{Method: http.MethodGet, URL: "https://api.example.com/missing"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	// Transport error
	_, err = c.Send(ctx, &request.Request{Method: http.MethodGet, URL: "https://api.example.com/no-responder"})
	require.Error(t, err)

	spans := actualSpans(tel.traceExporter)
	require.Equal(t, []string{
		"go.fetch.client.request",
		"http.request",
		"go.fetch.client.request.body.read",
		"go.fetch.client.request",
		"http.request",
	}, spanNames(spans))

	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "HTTP status code: 404 Not Found", spans[0].Status.Description)
	assertAttr(t, spans[0], "fetch.response.success", false)
	assert.Equal(t, codes.Error, spans[1].Status.Code)

	assert.Equal(t, codes.Error, spans[3].Status.Code)
	assertAttr(t, spans[3], "fetch.response.error.has", true)
	assert.NotEmpty(t, spans[3].Events) // recorded error
	assert.Equal(t, codes.Error, spans[4].Status.Code)
}

func TestNilProviders(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", `https://api.example.com`, httpmock.NewStringResponder(http.StatusOK, "OK"))

	c := client.New().WithTransport(transport).WithTelemetry(nil, nil)
	res, err := c.Send(context.Background(), &request.Request{Method: http.MethodGet, URL: "https://api.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "OK", string(res.Body))
}

func actualSpans(exporter *tracetest.InMemoryExporter) tracetest.SpanStubs {
	spans := exporter.GetSpans()
	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].SpanContext.SpanID().String() < spans[j].SpanContext.SpanID().String()
	})
	return spans
}

func spanNames(spans tracetest.SpanStubs) (out []string) {
	for _, span := range spans {
		out = append(out, span.Name)
	}
	return out
}

func assertAttr(t *testing.T, span tracetest.SpanStub, key string, expected any) {
	t.Helper()
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			assert.Equal(t, expected, attr.Value.AsInterface(), `span "%s", attribute "%s"`, span.Name, key)
			return
		}
	}
	assert.Fail(t, "attribute not found", `span "%s", attribute "%s"`, span.Name, key)
}

func actualMetrics(t *testing.T, ctx context.Context, reader metric.Reader) map[string]metricdata.Metrics {
	t.Helper()
	all := &metricdata.ResourceMetrics{}
	require.NoError(t, reader.Collect(ctx, all))
	require.Len(t, all.ScopeMetrics, 1)

	out := make(map[string]metricdata.Metrics)
	for _, m := range all.ScopeMetrics[0].Metrics {
		out[m.Name] = m
	}
	return out
}

func metricNames(metrics map[string]metricdata.Metrics) (out []string) {
	for name := range metrics {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
