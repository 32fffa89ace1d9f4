// Package facematch provides the face matching primitives shared between the CLI,
// the live frame processor and the web handlers.
package facematch

import "image"

// Descriptor is a 128-dimensional face embedding as produced by dlib.
type Descriptor [128]float32

// Face is one face found in an image.
type Face struct {
	Rect       image.Rectangle
	Descriptor Descriptor
}

// Known pairs a reference descriptor with the identity it was computed from.
// The identity travels with the descriptor so filtering never misaligns them.
type Known struct {
	Identity   string
	Descriptor Descriptor
}

// Engine detects faces and computes their descriptors.
type Engine interface {
	Recognize(img image.Image) ([]Face, error)
}
