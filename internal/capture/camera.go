// Package capture acquires frames from a camera and stores them.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrNoDeviceSupport is returned by OpenDevice in builds without the gocv tag.
var ErrNoDeviceSupport = errors.New("capture: binary built without camera support (build with -tags gocv)")

// FileCamera returns the contents of a fixed image file on every capture.
// It stands in for a device in development and tests.
type FileCamera struct {
	Path string
}

func (c *FileCamera) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.Path, err)
	}
	return data, nil
}
