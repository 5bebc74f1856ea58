package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/fbmirror/internal/device"
)

// sessionErrorToHuma maps session errors onto HTTP status codes.
func sessionErrorToHuma(err error) error {
	var devErr *device.Error
	if errors.As(err, &devErr) {
		switch devErr.Code {
		case device.ErrCodeNotConnected:
			return huma.Error409Conflict(devErr.Message, err)
		case device.ErrCodeWakeIneffective:
			return huma.Error422UnprocessableEntity(devErr.Message, err)
		case device.ErrCodeBridgeUnavailable, device.ErrCodeMalformedCapture,
			device.ErrCodeDecompressionFailed, device.ErrCodeKeyLayoutUnreadable:
			return huma.Error502BadGateway(devErr.Message, err)
		default:
			return huma.Error500InternalServerError("internal server error", err)
		}
	}
	switch {
	case errors.Is(err, device.ErrSessionStopped):
		return huma.Error503ServiceUnavailable("session stopped", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return huma.Error503ServiceUnavailable("request cancelled", err)
	}
	return huma.Error500InternalServerError("internal server error", err)
}
