package error

import "net/http"

// ConversionRejectedError means the converter ran and refused the input.
// Retrying the same bytes will fail the same way.
type ConversionRejectedError string

func (err ConversionRejectedError) Error() string {
	return string(err)
}

func (err ConversionRejectedError) ErrCode() string {
	return "CONVERSION_REJECTED"
}

func (err ConversionRejectedError) StatusCode() int {
	return http.StatusBadGateway
}

// ConverterCrashedError means the converter itself failed (panic, timeout,
// process error) rather than judging the input.
type ConverterCrashedError string

func (err ConverterCrashedError) Error() string {
	return string(err)
}

func (err ConverterCrashedError) ErrCode() string {
	return "CONVERTER_CRASHED"
}

func (err ConverterCrashedError) StatusCode() int {
	return http.StatusInternalServerError
}
