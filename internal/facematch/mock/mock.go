// Package mock provides a mock face engine and image helpers for testing.
package mock

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// MockEngine is a mock implementation of facematch.Engine.
// By default it "finds" one face in every image whose top-left pixel is not black;
// the face covers FaceRect (or the whole image) and its descriptor encodes that
// pixel's color, so differently colored images belong to different people.
type MockEngine struct {
	mu    sync.Mutex
	calls int

	// FaceRect overrides the reported face position when not empty
	FaceRect image.Rectangle

	// Error injection
	RecognizeError error
}

// NewMockEngine creates a new mock engine
func NewMockEngine() *MockEngine {
	return &MockEngine{}
}

// Recognize implements facematch.Engine
func (m *MockEngine) Recognize(img image.Image) ([]facematch.Face, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.RecognizeError != nil {
		return nil, m.RecognizeError
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, nil
	}
	c := img.At(bounds.Min.X, bounds.Min.Y)
	if isBlack(c) {
		return nil, nil
	}

	rect := bounds
	if !m.FaceRect.Empty() {
		rect = m.FaceRect
	}
	return []facematch.Face{{Rect: rect, Descriptor: ColorDescriptor(c)}}, nil
}

// Calls returns how many times Recognize was invoked
func (m *MockEngine) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func isBlack(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r < 0x0800 && g < 0x0800 && b < 0x0800
}

// ColorDescriptor returns the descriptor MockEngine reports for a face of color c.
func ColorDescriptor(c color.Color) facematch.Descriptor {
	r, g, b, _ := c.RGBA()
	var d facematch.Descriptor
	d[0] = float32(r) / 0xffff
	d[1] = float32(g) / 0xffff
	d[2] = float32(b) / 0xffff
	return d
}

// SolidImage returns a w x h image filled with c.
func SolidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

// PNG encodes img as PNG.
func PNG(img image.Image) []byte {
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// JPEG encodes img as JPEG.
func JPEG(img image.Image) []byte {
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95})
	return buf.Bytes()
}
