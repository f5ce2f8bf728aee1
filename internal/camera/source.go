// Package camera defines the frame source collaborator and the device
// implementations that need no cgo.
package camera

import (
	"context"

	"github.com/specimen-imaging/labelstation/pkg/models"
)

// FrameSource is one opened camera device
type FrameSource interface {
	// Read returns the next frame or an error with code NO_FRAME.
	// It is called from a single goroutine.
	Read() (models.Frame, error)
	// Release closes the device; calling it twice is harmless
	Release() error
	// Describe returns a human readable device description
	Describe() string
}

// DeviceOpener opens devices by identifier
type DeviceOpener interface {
	Open(ctx context.Context, deviceID string) (FrameSource, error)
}

// DeviceCanonicalizer is implemented by openers whose identifiers have
// aliases. Canonical returns the same key for every identifier naming one
// physical device.
type DeviceCanonicalizer interface {
	Canonical(deviceID string) (string, error)
}

// OpenerFunc adapts a function to the DeviceOpener interface
type OpenerFunc func(ctx context.Context, deviceID string) (FrameSource, error)

func (f OpenerFunc) Open(ctx context.Context, deviceID string) (FrameSource, error) {
	return f(ctx, deviceID)
}
