package otel

import otelMetric "go.opentelemetry.io/otel/metric"

type allMeters struct {
	client clientMeters
	http   httpMeters
}

// clientMeters measure the whole Client.Send call.
type clientMeters struct {
	inFlight otelMetric.Int64UpDownCounter
	duration otelMetric.Float64Histogram
}

// httpMeters measure each round trip, redirects included.
type httpMeters struct {
	inFlight     otelMetric.Int64UpDownCounter
	duration     otelMetric.Float64Histogram
	responseSize otelMetric.Int64Histogram
}

func newMeters(meter otelMetric.Meter) *allMeters {
	return &allMeters{
		client: clientMeters{
			inFlight: upDownCounter(meter, clientMeterPrefix+"request.in_flight", "Fetch client: in flight requests."),
			duration: histogram(meter, clientMeterPrefix+"request.duration", "Fetch client: requests duration, body included.", "ms"),
		},
		http: httpMeters{
			inFlight:     upDownCounter(meter, httpMeterPrefix+"request.in_flight", "HTTP request: in flight requests."),
			duration:     histogram(meter, httpMeterPrefix+"request.duration", "HTTP request: response headers received duration.", "ms"),
			responseSize: intHistogram(meter, httpMeterPrefix+"response.body.size", "HTTP response: body size on the wire.", "By"),
		},
	}
}

func upDownCounter(meter otelMetric.Meter, name, desc string) otelMetric.Int64UpDownCounter {
	return mustInstrument(meter.Int64UpDownCounter(name, otelMetric.WithDescription(desc)))
}

func histogram(meter otelMetric.Meter, name, desc string, unit string) otelMetric.Float64Histogram {
	return mustInstrument(meter.Float64Histogram(name, otelMetric.WithDescription(desc), otelMetric.WithUnit(unit)))
}

func intHistogram(meter otelMetric.Meter, name, desc string, unit string) otelMetric.Int64Histogram {
	return mustInstrument(meter.Int64Histogram(name, otelMetric.WithDescription(desc), otelMetric.WithUnit(unit)))
}

func mustInstrument[T any](instrument T, err error) T {
	if err != nil {
		panic(err)
	}
	return instrument
}
