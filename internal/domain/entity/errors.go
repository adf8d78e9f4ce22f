package entity

import (
	"errors"
	"fmt"
)

var (
	ErrSourceUnavailable  = errors.New("source unavailable")
	ErrNoVideoStream      = errors.New("no video stream")
	ErrDecode             = errors.New("decode error")
	ErrRescale            = errors.New("rescale error")
	ErrRasterConstruction = errors.New("raster construction error")
	ErrFilter             = errors.New("filter error")
	ErrEncode             = errors.New("encode error")
	ErrWrite              = errors.New("write error")
)

// FrameError ties a failure kind to the frame index it happened on.
// errors.Is matches both the kind sentinel and the wrapped cause.
type FrameError struct {
	Kind  error
	Index uint64
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %d: %v: %v", e.Index, e.Kind, e.Err)
}

func (e *FrameError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// IsPermanent reports whether retrying the same input cannot succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrSourceUnavailable) ||
		errors.Is(err, ErrNoVideoStream) ||
		errors.Is(err, ErrDecode)
}

// RetryError reports a failed attempt that may succeed on redelivery.
type RetryError struct {
	Attempt     int
	MaxAttempts int
	Err         error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("retryable failure (attempt %d/%d): %v", e.Attempt, e.MaxAttempts, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

// RetryAttempt lets transports size their backoff without knowing the domain.
func (e *RetryError) RetryAttempt() int { return e.Attempt }
