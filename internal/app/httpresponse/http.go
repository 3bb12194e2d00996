package httpresponse

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// APIError is the JSON body of every failed admin or control request.
type APIError struct {
	ErrorMessage string `json:"error_message"`
	Details      any    `json:"details,omitempty"`
}

func (e *APIError) Error() string { return e.ErrorMessage }

// WithDetails attaches a structured explanation, e.g. a mismatch report.
func (e *APIError) WithDetails(details any) *APIError {
	e.Details = details
	return e
}

func Error(error string) *APIError {
	log.Error(error)
	e := &APIError{
		ErrorMessage: error,
	}
	return e
}

func Errorf(error string, a ...interface{}) *APIError {
	return Error(fmt.Sprintf(error, a...))
}
