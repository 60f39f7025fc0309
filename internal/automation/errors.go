package automation

import (
	"errors"
	"fmt"
)

// APIError is a non-200 response from the automation backend.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("automation backend error %d on %s: %s", e.StatusCode, e.Endpoint, e.Message)
}

// IsAPIError reports whether err is a backend APIError and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
