package fetch

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/keboola/go-fetch/pkg/request"
)

// TraceFactory creates hooks for one request, it may return nil.
type TraceFactory func() *Trace

// Trace is a set of hooks called at stages of a request.
// The low-level HTTP hooks are provided by the client.Client, see the trace package.
type Trace struct {
	// Configured is called when settings are resolved and the request interceptor is applied.
	Configured func(req *request.Request)
	// Canceled is called when the request is stopped by the timeout or by a cancellation, before the error is returned.
	Canceled func(req *request.Request, err error)
	// Completed is called at the end of each request which reached the transport.
	Completed func(req *request.Request, res *request.Response, err error)
}

// LogTracer writes one line for each stage of each request to the writer.
func LogTracer(wr io.Writer) TraceFactory {
	var idGenerator uint64
	return func() *Trace {
		requestID := atomic.AddUint64(&idGenerator, 1)
		log := func(a ...any) {
			a = append([]any{fmt.Sprintf("FETCH[%04d]", requestID)}, a...)
			_, _ = fmt.Fprintln(wr, a...)
		}

		var startTime time.Time
		return &Trace{
			Configured: func(req *request.Request) {
				startTime = time.Now()
				log(fmt.Sprintf(`CONFIGURED %s | timeout=%s`, req, req.Timeout))
			},
			Canceled: func(req *request.Request, err error) {
				log(fmt.Sprintf(`CANCELED   %s | %s | %s`, req, time.Since(startTime), err))
			},
			Completed: func(req *request.Request, res *request.Response, err error) {
				var status string
				if res != nil {
					status = fmt.Sprintf(" | %d", res.StatusCode)
				}
				var errStr string
				if err != nil {
					errStr = fmt.Sprintf(" | error=%s", err)
				}
				log(fmt.Sprintf(`COMPLETED  %s%s | %s%s`, req, status, time.Since(startTime), errStr))
			},
		}
	}
}
