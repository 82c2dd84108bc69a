//go:build !gocv

package capture

import "context"

// DeviceCamera is unavailable without the gocv build tag.
type DeviceCamera struct{}

// OpenDevice always fails in builds without camera support.
func OpenDevice(int) (*DeviceCamera, error) {
	return nil, ErrNoDeviceSupport
}

func (c *DeviceCamera) Capture(context.Context) ([]byte, error) {
	return nil, ErrNoDeviceSupport
}

func (c *DeviceCamera) Close() error { return nil }
