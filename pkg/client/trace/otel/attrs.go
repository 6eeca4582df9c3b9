package otel

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/keboola/go-fetch/pkg/request"
)

const (
	maskedAttrValue = "****"
)

type attributes struct {
	config config
	// definition attributes for span and metrics
	definition []attribute.KeyValue
	// definitionExtra attributes for span only
	definitionExtra []attribute.KeyValue
	// httpRequest attributes for span and metrics
	httpRequest []attribute.KeyValue
	// httpRequestExtra attributes for span only
	httpRequestExtra []attribute.KeyValue
	// httpResponse attributes for span and metrics
	httpResponse []attribute.KeyValue
	// httpResponseExtra attributes for span only
	httpResponseExtra []attribute.KeyValue
	// result attributes of the whole Send call, for span and metrics
	result []attribute.KeyValue
}

func newAttributes(cfg config, reqDef *request.Request) *attributes {
	out := &attributes{config: cfg}

	out.definition = []attribute.KeyValue{
		attribute.String("fetch.request.method", reqDef.Method),
		attribute.Bool("fetch.request.credentials", reqDef.Credentials == request.CredentialsInclude),
	}
	if reqURL, err := url.Parse(reqDef.URL); err == nil {
		out.definition = append(out.definition,
			attribute.String("fetch.request.url.host", reqURL.Host),
			attribute.String("fetch.request.url.path", reqURL.Path),
		)
	}

	out.definitionExtra = []attribute.KeyValue{
		attribute.String("fetch.request.url.full", redactURL(cfg, reqDef.URL)),
		attribute.Int("fetch.request.body.size", len(reqDef.Body)),
		attribute.String("fetch.request.timeout", reqDef.Timeout.String()),
	}
	out.definitionExtra = append(out.definitionExtra, headerAttributes(cfg, "fetch.request.header.", reqDef.Header)...)
	return out
}

func (v *attributes) SetFromRequest(req *http.Request) {
	if req == nil {
		v.httpRequest = nil
		v.httpRequestExtra = nil
		return
	}

	v.httpRequest = []attribute.KeyValue{
		semconv.HTTPRequestMethodKey.String(req.Method),
		semconv.URLScheme(req.URL.Scheme),
		semconv.ServerAddress(req.URL.Hostname()),
		semconv.URLPath(req.URL.Path),
	}
	if port, err := strconv.Atoi(req.URL.Port()); err == nil {
		v.httpRequest = append(v.httpRequest, semconv.ServerPort(port))
	}

	v.httpRequestExtra = []attribute.KeyValue{
		semconv.URLFull(redactURL(v.config, req.URL.String())),
		semconv.UserAgentOriginal(req.UserAgent()),
	}
	v.httpRequestExtra = append(v.httpRequestExtra, headerAttributes(v.config, "http.request.header.", req.Header)...)
}

func (v *attributes) SetFromResponse(res *http.Response, err error) {
	if res == nil {
		v.httpResponse = nil
		v.httpResponseExtra = nil
	} else {
		v.httpResponse = []attribute.KeyValue{
			semconv.HTTPResponseStatusCode(res.StatusCode),
		}
		v.httpResponseExtra = headerAttributes(v.config, "http.response.header.", res.Header)
		if res.ProtoMajor > 0 {
			v.httpResponseExtra = append(v.httpResponseExtra, semconv.NetworkProtocolVersion(strconv.Itoa(res.ProtoMajor)+"."+strconv.Itoa(res.ProtoMinor)))
		}
	}
	v.httpResponse = append(v.httpResponse, errorAttributes("http.response.", err)...)
}

func (v *attributes) SetResult(res *request.Response, err error) {
	var statusCode int
	if res != nil {
		statusCode = res.StatusCode
	}
	v.result = []attribute.KeyValue{
		semconv.HTTPResponseStatusCode(statusCode),
		attribute.Bool("fetch.response.success", isSuccess(res, err)),
	}
	v.result = append(v.result, errorAttributes("fetch.response.", err)...)
}

func errorAttributes(prefix string, err error) []attribute.KeyValue {
	var netErr net.Error
	errors.As(err, &netErr)
	return []attribute.KeyValue{
		attribute.Bool(prefix+"error.has", err != nil),
		attribute.Bool(prefix+"error.net", netErr != nil),
		attribute.Bool(prefix+"error.timeout", (netErr != nil && netErr.Timeout()) || errors.Is(err, context.DeadlineExceeded)),
		attribute.Bool(prefix+"error.canceled", errors.Is(err, context.Canceled)),
	}
}

func headerAttributes(cfg config, prefix string, header http.Header) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for key, values := range header {
		key = strings.ToLower(key)
		value := strings.Join(values, ";")
		if _, found := cfg.redactedHeaders[key]; found {
			value = maskedAttrValue
		}
		attrs = append(attrs, attribute.String(prefix+key, value))
	}
	sort.SliceStable(attrs, func(i, j int) bool {
		return attrs[i].Key < attrs[j].Key
	})
	return attrs
}

// redactURL masks values of the redacted query parameters, order of the parameters is kept.
func redactURL(cfg config, in string) string {
	u, err := url.Parse(in)
	if err != nil || u.RawQuery == "" || len(cfg.redactedQueryParams) == 0 {
		return in
	}

	pairs := strings.Split(u.RawQuery, "&")
	for i, pair := range pairs {
		key, _, _ := strings.Cut(pair, "=")
		if unescaped, err := url.QueryUnescape(key); err == nil {
			key = unescaped
		}
		if _, found := cfg.redactedQueryParams[strings.ToLower(key)]; found {
			rawKey, _, _ := strings.Cut(pair, "=")
			pairs[i] = rawKey + "=" + maskedAttrValue
		}
	}
	u.RawQuery = strings.Join(pairs, "&")
	return u.String()
}
