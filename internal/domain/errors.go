package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidLocation means a report has no usable location.
	ErrInvalidLocation = errors.New("invalid location")
	// ErrNotFound means a mutation referenced an alert id that is not in the store.
	ErrNotFound = errors.New("alert not found")
	// ErrInvalidAlert means an alert update would break a stored-alert invariant.
	ErrInvalidAlert = errors.New("invalid alert")
	// ErrUploadFailed means a photo attachment could not be uploaded.
	ErrUploadFailed = errors.New("photo upload failed")

	// ErrMissingCoordinates means a raw incident had no complete coordinate pair.
	ErrMissingCoordinates = errors.New("missing coordinates")
	// ErrCoordinatesOutOfRange means a raw incident's coordinates are not on Earth.
	ErrCoordinatesOutOfRange = errors.New("coordinates out of range")
	// ErrUnparseableLocation means a legacy location string could not be parsed.
	ErrUnparseableLocation = errors.New("unparseable location string")
	// ErrDuplicateIncident means a batch repeated an incident id.
	ErrDuplicateIncident = errors.New("duplicate incident id")
)

// NetworkErrorKind classifies a gateway failure.
type NetworkErrorKind string

const (
	NetworkTransport NetworkErrorKind = "transport"
	NetworkTimeout   NetworkErrorKind = "timeout"
	NetworkStatus    NetworkErrorKind = "status"
	NetworkDecode    NetworkErrorKind = "decode"
)

// NetworkError wraps any failure talking to the incidents service.
type NetworkError struct {
	Kind   NetworkErrorKind
	Detail string
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("network error (%s): %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("network error (%s): %s: %v", e.Kind, e.Detail, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// AsNetworkError returns err as a *NetworkError, wrapping it as a transport
// failure when it is not one already.
func AsNetworkError(err error, detail string) *NetworkError {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne
	}
	return &NetworkError{Kind: NetworkTransport, Detail: detail, Err: err}
}
