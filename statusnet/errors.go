package statusnet

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingID is returned when a path identifier is empty
	ErrMissingID = errors.New("missing id")
	// ErrUnexpectedStatus is returned for any non-2xx response
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// maxErrorBody limits how much of a failed response is kept on the error
const maxErrorBody = 512

// ServiceCallError is the only error the client returns.
// StatusCode is 0 when no response was received.
type ServiceCallError struct {
	Op         string
	Method     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *ServiceCallError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "statusnet %s", e.Op)
	if e.URL != "" {
		fmt.Fprintf(&b, " %s %s", e.Method, e.URL)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %s", e.Err)
	}
	return b.String()
}

func (e *ServiceCallError) Unwrap() error {
	return e.Err
}

// AsServiceCallError extracts a ServiceCallError from an error chain
func AsServiceCallError(err error) (*ServiceCallError, bool) {
	var sce *ServiceCallError
	if errors.As(err, &sce) {
		return sce, true
	}
	return nil, false
}

func truncateBody(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}
