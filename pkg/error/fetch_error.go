package error

import "net/http"

// FetchFailedError means the source document could not be downloaded, so
// the converter never ran.
type FetchFailedError string

func (err FetchFailedError) Error() string {
	return string(err)
}

func (err FetchFailedError) ErrCode() string {
	return "FETCH_FAILED"
}

func (err FetchFailedError) StatusCode() int {
	return http.StatusBadGateway
}
