package request

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Response is a completed HTTP exchange, the body is already read and decoded.
type Response struct {
	StatusCode int
	StatusText string
	Header     http.Header
	Body       []byte
	// RawResponse is the standard HTTP response, if any, its body is already consumed.
	RawResponse *http.Response
}

// NewResponse creates a Response from a status code and body, status text is derived from the code.
func NewResponse(statusCode int, body []byte) *Response {
	return &Response{StatusCode: statusCode, StatusText: http.StatusText(statusCode), Header: make(http.Header), Body: body}
}

// StatusTextOf returns the reason phrase of the response,
// for example "Not Found" from the "404 Not Found" status line.
func StatusTextOf(r *http.Response) string {
	code := strconv.Itoa(r.StatusCode)
	if text := strings.TrimSpace(strings.TrimPrefix(r.Status, code)); text != "" {
		return text
	}
	return http.StatusText(r.StatusCode)
}

// OK method returns true if HTTP status `code >= 200 and <= 299` otherwise false.
func (r *Response) OK() bool {
	return r.StatusCode > 199 && r.StatusCode < 300
}

// IsError method returns true if HTTP status `code >= 400` otherwise false.
func (r *Response) IsError() bool {
	return r.StatusCode > 399
}

// ContentType returns the media type of the response, without parameters.
func (r *Response) ContentType() string {
	if r.Header == nil {
		return ""
	}
	v, _, _ := strings.Cut(r.Header.Get("Content-Type"), ";")
	return strings.TrimSpace(v)
}

// IsJSON returns true if the response content type is JSON, for example "application/json" or "application/vnd.foo+json".
func (r *Response) IsJSON() bool {
	return IsJSONContentType(r.ContentType())
}

// JSON decodes the body to the target.
func (r *Response) JSON(target any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return fmt.Errorf("cannot decode JSON: body is empty")
	}
	if err := json.Unmarshal(r.Body, target); err != nil {
		return fmt.Errorf("cannot decode JSON: %w", err)
	}
	return nil
}
