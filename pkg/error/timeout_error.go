package error

import "net/http"

// TimeoutError means waiting on another owner's in-flight conversion
// exceeded the caller's budget. The caller may retry later; the conversion
// usually finishes in the meantime.
type TimeoutError string

func (err TimeoutError) Error() string {
	return string(err)
}

func (err TimeoutError) ErrCode() string {
	return "CONVERSION_TIMEOUT"
}

func (err TimeoutError) StatusCode() int {
	return http.StatusGatewayTimeout
}
