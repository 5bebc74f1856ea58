package device

import (
	"errors"
	"fmt"
)

// Error codes for device session operations.
const (
	ErrCodeBridgeUnavailable   = "BRIDGE_UNAVAILABLE"
	ErrCodeMalformedCapture    = "MALFORMED_CAPTURE"
	ErrCodeDecompressionFailed = "DECOMPRESSION_FAILED"
	ErrCodeKeyLayoutUnreadable = "KEYLAYOUT_UNREADABLE"
	ErrCodeWakeIneffective     = "WAKE_INEFFECTIVE"
	ErrCodeNotConnected        = "NOT_CONNECTED"
)

// ErrSessionStopped is returned for requests made after the session loop exited.
var ErrSessionStopped = errors.New("session stopped")

// Error represents a device-specific error with a code.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsCode reports whether err carries the given device error code.
func IsCode(err error, code string) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}
