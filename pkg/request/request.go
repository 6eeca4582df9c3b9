// Package request defines the boundary between the fetch pipeline and an HTTP transport.
//
// Request is a fully resolved request: all settings layers are already merged,
// the URL is absolute (or final) and the body is encoded.
// Requests are sent by the Sender interface,
// the client.Client is a default implementation based on the standard net/http package.
//
// Response is the transport result. It is returned for any HTTP status code,
// classification of non-2xx codes is up to the caller.
package request

import (
	"fmt"
	"net/http"
	"time"
)

// Credentials controls whether the client cookies are attached to the request.
type Credentials string

// CredentialsInclude attaches cookies from the client cookie jar and stores cookies from the response.
// An empty Credentials value means the default posture: no cookies are sent or stored.
const CredentialsInclude Credentials = "include"

// Request is a resolved HTTP request, ready to be sent by a Sender.
// The cancellation signal is the context passed to Sender.Send together with the request.
type Request struct {
	Method      string
	URL         string
	Header      http.Header
	Body        []byte
	Credentials Credentials
	// Timeout is informative for the transport, the caller enforces it.
	Timeout time.Duration
}

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	out := *r
	out.Header = r.Header.Clone()
	if r.Body != nil {
		out.Body = append([]byte(nil), r.Body...)
	}
	return &out
}

// HasBody returns true if the request has a non-empty body.
func (r *Request) HasBody() bool {
	return len(r.Body) > 0
}

func (r *Request) String() string {
	return fmt.Sprintf(`%s "%s"`, r.Method, r.URL)
}
