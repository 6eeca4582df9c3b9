// Package trace extends the httptrace.ClientTrace and adds additional Request hooks.
// A custom ClientTrace definition can be registered in the client.Client by the AndTrace method.
package trace

import (
	"context"
	"net/http"
	"net/http/httptrace"
	"reflect"

	"github.com/keboola/go-fetch/pkg/request"
)

// Factory creates ClientTrace hooks for a request.
type Factory func(ctx context.Context, req *request.Request) (context.Context, *ClientTrace)

// ClientTrace is a set of hooks to run at various stages of an outgoing Request.
type ClientTrace struct {
	httptrace.ClientTrace // native, low level trace
	// HTTPRequestStart is called when the request begins. It includes redirects.
	HTTPRequestStart func(request *http.Request)
	// HTTPRequestDone is called when the response headers are received. It includes redirects.
	HTTPRequestDone func(response *http.Response, err error)
	// BodyReadStart is called when reading of the final response body begins.
	BodyReadStart func(response *http.Response)
	// BodyReadDone is called when the response body is read and closed, bytes is the size on the wire.
	BodyReadDone func(response *http.Response, bytes int64, err error)
	// RequestProcessed is called when Client.Send method is done.
	RequestProcessed func(response *request.Response, err error)
}

// Compose modifies t such that it respects the previously-registered hooks in old.
// Both hooks are called, the old one first.
// Copy of httptrace.compose.
func (t *ClientTrace) Compose(old *ClientTrace) {
	if old == nil {
		return
	}
	tv := reflect.ValueOf(t).Elem()
	ov := reflect.ValueOf(old).Elem()
	structType := tv.Type()
	for i := 0; i < structType.NumField(); i++ {
		tf := tv.Field(i)
		hookType := tf.Type()
		if hookType.Kind() == reflect.Struct {
			// Embedded httptrace.ClientTrace
			composeStruct(tf, ov.Field(i))
			continue
		}
		if hookType.Kind() != reflect.Func {
			continue
		}
		composeFunc(tf, ov.Field(i))
	}
}

func composeStruct(tv, ov reflect.Value) {
	for i := 0; i < tv.NumField(); i++ {
		if tv.Field(i).Kind() == reflect.Func {
			composeFunc(tv.Field(i), ov.Field(i))
		}
	}
}

func composeFunc(tf, of reflect.Value) {
	if of.IsNil() {
		return
	}
	if tf.IsNil() {
		tf.Set(of)
		return
	}

	// Make a copy of tf for tf to call. (Otherwise it
	// creates a recursive call cycle and stack overflows)
	tfCopy := reflect.ValueOf(tf.Interface())

	// We need to call both tf and of in some order.
	newFunc := reflect.MakeFunc(tf.Type(), func(args []reflect.Value) []reflect.Value {
		of.Call(args)
		return tfCopy.Call(args)
	})
	tf.Set(newFunc)
}
