package scanner

import (
	"errors"
	"fmt"

	"reposter/internal/platform"
)

// Error kinds returned by Scan.
var (
	// ErrChannelNotFound means the channel identifier did not resolve. Not retryable.
	ErrChannelNotFound = platform.ErrChannelNotFound
	// ErrInvalidRequest means the scan arguments were rejected before connecting.
	ErrInvalidRequest = errors.New("invalid scan request")
)

// ScanFailedError wraps any connection or history failure of a scan.
// Nothing from a failed scan is returned, so re-running it from the last
// stored cursor is safe.
type ScanFailedError struct {
	Channel string
	Err     error
}

func (e *ScanFailedError) Error() string {
	return fmt.Sprintf("scan %q failed: %v", e.Channel, e.Err)
}

func (e *ScanFailedError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err came from a scan that may succeed when re-run.
func IsRetryable(err error) bool {
	var sf *ScanFailedError
	return errors.As(err, &sf)
}
