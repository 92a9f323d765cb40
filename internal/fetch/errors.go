package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when a request exceeds its deadline.
	ErrTimeout = errors.New("request timed out")
	// ErrNetwork covers connection-level failures (refused, reset, DNS).
	ErrNetwork = errors.New("network error")

	ErrInvalidURL       = errors.New("invalid URL")
	ErrInvalidScheme    = errors.New("only http and https schemes are allowed")
	ErrMethodNotAllowed = errors.New("only GET and HEAD are allowed")
	ErrPrivateIP        = errors.New("target resolves to a private or reserved IP address")
)

// HTTPError carries a non-success status code from the target site. The
// probes decide for themselves which statuses they tolerate, so the fetch
// layer only raises this when asked to.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d from %s", e.StatusCode, e.URL)
}

// IsTimeout reports whether err is a deadline failure, unwrapping as needed.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
