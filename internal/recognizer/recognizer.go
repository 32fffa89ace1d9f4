// Package recognizer adapts the dlib-based go-face recognizer to facematch.Engine.
package recognizer

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"github.com/Kagami/go-face"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// Engine detects and encodes faces with dlib.
// The underlying recognizer is not safe for concurrent use, so calls are serialized.
type Engine struct {
	rec     *face.Recognizer
	cnn     bool
	quality int
	mu      sync.Mutex
}

// New loads the dlib models from modelsDir. With cnn set, detection uses the slower
// but more accurate CNN detector.
func New(modelsDir string, cnn bool, quality int) (*Engine, error) {
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("loading face models from %s: %w", modelsDir, err)
	}
	if quality < 1 || quality > 100 {
		quality = constants.DefaultJPEGQuality
	}
	return &Engine{rec: rec, cnn: cnn, quality: quality}, nil
}

// Recognize implements facematch.Engine.
func (e *Engine) Recognize(img image.Image) ([]facematch.Face, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.quality}); err != nil {
		return nil, fmt.Errorf("encoding image: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var (
		faces []face.Face
		err   error
	)
	if e.cnn {
		faces, err = e.rec.RecognizeCNN(buf.Bytes())
	} else {
		faces, err = e.rec.Recognize(buf.Bytes())
	}
	if err != nil {
		return nil, err
	}

	offset := img.Bounds().Min
	result := make([]facematch.Face, 0, len(faces))
	for _, f := range faces {
		result = append(result, facematch.Face{
			Rect:       f.Rectangle.Add(offset),
			Descriptor: facematch.Descriptor(f.Descriptor),
		})
	}
	return result, nil
}

// Close frees the dlib resources.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rec.Close()
}
