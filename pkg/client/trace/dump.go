package trace

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/keboola/go-fetch/pkg/request"
)

const dumpTraceMaxLength = 2000

type dumpTrace struct {
	ClientTrace
	wr   io.Writer
	lock *sync.Mutex
}

// DumpTracer dumps HTTP request and response to a writer.
// Output may contain unmasked tokens, do not use it in production!
func DumpTracer(wr io.Writer) Factory {
	lock := &sync.Mutex{}
	return func(ctx context.Context, reqDef *request.Request) (context.Context, *ClientTrace) {
		var requestDump, responseDump []byte
		var startTime, headersTime time.Time

		t := &dumpTrace{wr: wr, lock: lock}
		t.HTTPRequestStart = func(r *http.Request) {
			startTime = time.Now()
			requestDump, _ = httputil.DumpRequestOut(r, false)
		}
		t.HTTPRequestDone = func(r *http.Response, err error) {
			headersTime = time.Now()
			if r != nil {
				responseDump, _ = httputil.DumpResponse(r, false)
			}
		}
		t.RequestProcessed = func(res *request.Response, err error) {
			t.lock.Lock()
			defer t.lock.Unlock()

			t.log(">>>>>> HTTP DUMP")
			if requestDump != nil {
				t.dump(string(requestDump))
				if reqDef.HasBody() {
					t.log("------")
					t.dump(string(reqDef.Body))
				}
				t.log("------")
			}
			if err != nil {
				t.log("ERROR: ", err)
			} else {
				t.dump(string(responseDump))
				if res != nil && len(res.Body) > 0 {
					t.log("------")
					t.dump(prettyBody(res))
				}
			}
			t.log("<<<<<< HTTP DUMP END | HEADERS AT:", headersTime.Sub(startTime), "| DONE AT:", time.Since(startTime))
		}
		return ctx, &t.ClientTrace
	}
}

func prettyBody(res *request.Response) string {
	if res.IsJSON() {
		var out bytes.Buffer
		if err := jsonIndent(&out, res.Body); err == nil {
			return out.String()
		}
	}
	return string(res.Body)
}

func (t *dumpTrace) dump(body string) {
	body = strings.TrimSpace(strings.ReplaceAll(body, "\r\n", "\n"))
	if len(body) > dumpTraceMaxLength && os.Getenv("HTTP_DUMP_TRACE_FULL") != "true" { //nolint:forbidigo
		t.log(body[:dumpTraceMaxLength])
		t.log("... (set env HTTP_DUMP_TRACE_FULL=true to see full output)")
	} else {
		t.log(body)
	}
}

func (t *dumpTrace) log(a ...any) {
	_, _ = fmt.Fprintln(t.wr, a...)
}
