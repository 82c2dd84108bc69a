//go:build gocv

package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

// DeviceCamera reads frames from a local video device through OpenCV.
type DeviceCamera struct {
	id int

	mu  sync.Mutex
	cap *gocv.VideoCapture
}

// OpenDevice opens the video device with the given index.
func OpenDevice(id int) (*DeviceCamera, error) {
	vc, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", id, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open camera %d: device not available", id)
	}
	log.Info().Int("camera_id", id).Msg("camera opened")
	return &DeviceCamera{id: id, cap: vc}, nil
}

// Capture grabs one frame and encodes it as JPEG.
func (c *DeviceCamera) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cap == nil {
		return nil, errors.New("camera closed")
	}

	mat := gocv.NewMat()
	defer mat.Close()

	if ok := c.cap.Read(&mat); !ok || mat.Empty() {
		return nil, fmt.Errorf("camera %d: failed to read frame", c.id)
	}

	buf, err := gocv.IMEncode(".jpg", mat)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// Close releases the device.
func (c *DeviceCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cap == nil {
		return nil
	}
	err := c.cap.Close()
	c.cap = nil
	return err
}
