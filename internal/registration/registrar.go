// Package registration adds new people to the reference store from a captured photo.
package registration

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

var (
	ErrMissingCapture = errors.New("please take a photo first")
	ErrBlankName      = errors.New("please enter a name")
	ErrInvalidName    = errors.New("name must contain at least one letter or digit")
	ErrDuplicate      = errors.New("name is already registered")
	ErrInvalidImage   = errors.New("captured photo is not a valid image")
)

// DuplicateError carries the stem that collided with an existing reference.
type DuplicateError struct {
	Identity string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("Name '%s' is already registered!", e.Identity)
}

func (e *DuplicateError) Unwrap() error {
	return ErrDuplicate
}

// ReferenceStore is the part of refstore.Store registration writes to.
type ReferenceStore interface {
	Dir() string
	Invalidate()
}

// Result describes a saved reference photo.
type Result struct {
	Identity string `json:"identity"`
	Path     string `json:"path"`
}

// Registrar saves reference photos.
type Registrar struct {
	store   ReferenceStore
	quality int
}

// NewRegistrar creates a registrar writing JPEGs of the given quality into store.
func NewRegistrar(store ReferenceStore, quality int) *Registrar {
	if quality < 1 || quality > 100 {
		quality = constants.DefaultJPEGQuality
	}
	return &Registrar{store: store, quality: quality}
}

// Register validates name and capture and saves the capture as <identity>.jpg.
// An existing reference with the same identity is never overwritten.
func (r *Registrar) Register(name string, capture []byte) (Result, error) {
	if len(capture) == 0 {
		return Result{}, ErrMissingCapture
	}
	if strings.TrimSpace(name) == "" {
		return Result{}, ErrBlankName
	}

	identity := facematch.SanitizeIdentity(name)
	if identity == "" {
		return Result{}, ErrInvalidName
	}

	dir := r.store.Dir()
	if exists(dir, identity) {
		return Result{}, &DuplicateError{Identity: identity}
	}

	img, _, err := image.Decode(bytes.NewReader(capture))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	img = resize.Thumbnail(constants.MaxReferenceImageSize, constants.MaxReferenceImageSize, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality}); err != nil {
		return Result{}, fmt.Errorf("encoding photo: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("creating reference directory: %w", err)
	}
	path := filepath.Join(dir, identity+constants.SavedReferenceExtension)
	if err := writeNew(path, buf.Bytes()); err != nil {
		if errors.Is(err, os.ErrExist) {
			return Result{}, &DuplicateError{Identity: identity}
		}
		return Result{}, fmt.Errorf("saving photo: %w", err)
	}

	r.store.Invalidate()
	return Result{Identity: identity, Path: path}, nil
}

// exists reports whether a reference photo of identity is already stored, whatever
// the case of its filename or extension.
func exists(dir, identity string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if entry.IsDir() || !facematch.HasReferenceExtension(entry.Name(), constants.ReferenceExtensions) {
			continue
		}
		if facematch.IdentityFromFilename(entry.Name()) == identity {
			return true
		}
	}
	return false
}

func writeNew(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec // sanitized filename
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
