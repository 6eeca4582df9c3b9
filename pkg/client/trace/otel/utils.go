package otel

import (
	"net/http"

	"github.com/keboola/go-fetch/pkg/request"
)

func isSuccess(r *request.Response, err error) bool {
	if err != nil {
		return false
	}
	return r != nil && r.OK()
}

func isRedirection(r *http.Response) bool {
	return r != nil && r.StatusCode >= http.StatusMultipleChoices && r.StatusCode < http.StatusBadRequest
}
