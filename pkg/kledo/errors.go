// kledo/errors.go
package kledo

import (
	"errors"
	"fmt"
)

// ErrUpstreamTimeout indicates the accounting platform did not respond
// within the call deadline
var ErrUpstreamTimeout = errors.New("accounting API request timed out")

// APIError carries the upstream HTTP status and raw body of a failed call
type APIError struct {
	Status  int
	Body    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("Kledo API error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("Kledo API returned status %d: %s", e.Status, e.Body)
}
