package capture

import (
	"context"
	"errors"
	"fmt"
)

type Class string

const (
	ClassCamera     Class = "camera"
	ClassMicrophone Class = "microphone"
)

var (
	// ErrDeviceAccessDenied matches every failed hardware acquisition.
	ErrDeviceAccessDenied = errors.New("device access denied")
	ErrSessionStopped     = errors.New("capture session stopped")
	ErrManagerClosed      = errors.New("capture manager closed")
)

// DeviceError wraps an acquisition failure for one device class.
type DeviceError struct {
	Class Class
	Err   error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Class, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

func (e *DeviceError) Is(target error) bool { return target == ErrDeviceAccessDenied }

// Microphone opens PCM streams (16 kHz mono s16le).
type Microphone interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is one open microphone handle.
type Stream interface {
	Label() string
	Chunks() <-chan []byte
	RawPCM() []byte
	Stop() error
}

// Camera opens live previews. Open returns only once the device has
// delivered a frame; a preview that never does is a failed acquisition.
type Camera interface {
	Open(ctx context.Context) (Preview, error)
}

// Preview is one open camera handle.
type Preview interface {
	Label() string
	// Latest returns the most recent complete frame.
	Latest(ctx context.Context) ([]byte, error)
	Stop() error
}
