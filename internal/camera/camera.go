// Package camera reads frames from a local video device through OpenCV.
package camera

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// ErrReadFailed is returned when the device yields no frame.
var ErrReadFailed = errors.New("failed to read frame")

// Device is an open video capture device.
type Device struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
	mu      sync.Mutex
}

// Open opens the video device with the given index.
func Open(index int) (*Device, error) {
	capture, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("opening camera %d: %w", index, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("opening camera %d: device not available", index)
	}
	return &Device{capture: capture, mat: gocv.NewMat()}, nil
}

// Read grabs the next frame.
func (d *Device) Read() (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ok := d.capture.Read(&d.mat); !ok || d.mat.Empty() {
		return nil, ErrReadFailed
	}
	img, err := d.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("converting frame: %w", err)
	}
	return img, nil
}

// Close releases the device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.mat.Close(); err != nil {
		return err
	}
	return d.capture.Close()
}
