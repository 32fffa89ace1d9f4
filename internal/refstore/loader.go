// Package refstore loads the directory of reference photos (one per person) and
// keeps the decoded images and their face descriptors cached until a write
// to the directory invalidates them.
package refstore

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// ErrNoFace is returned by Encode when a reference photo contains no detectable face.
var ErrNoFace = errors.New("no face detected")

// Reference is a decoded reference photo and the identity it belongs to.
type Reference struct {
	Identity string
	Path     string
	Image    image.Image
}

// decodeFile decodes the image stored at path.
func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from a directory listing
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}

// LoadReferences returns every decodable .jpg/.jpeg/.png file in dir, ordered by filename.
// Files with other extensions or that fail to decode are skipped without error.
func LoadReferences(dir string) ([]Reference, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading reference directory %s: %w", dir, err)
	}

	refs := make([]Reference, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !facematch.HasReferenceExtension(entry.Name(), constants.ReferenceExtensions) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		img, err := decodeFile(path)
		if err != nil {
			continue
		}
		refs = append(refs, Reference{
			Identity: facematch.IdentityFromFilename(entry.Name()),
			Path:     path,
			Image:    img,
		})
	}
	return refs, nil
}

// EncodeReferences computes one descriptor per reference using the first face the
// engine finds. References without a detectable face are dropped; every result
// keeps the identity of the photo it came from.
func EncodeReferences(engine facematch.Engine, refs []Reference) []facematch.Known {
	known := make([]facematch.Known, 0, len(refs))
	for _, ref := range refs {
		k, err := Encode(engine, ref)
		if err != nil {
			log.Printf("Skipping reference %s: %v", ref.Path, err)
			continue
		}
		known = append(known, k)
	}
	return known
}

// Encode computes the descriptor of the first face in ref.
func Encode(engine facematch.Engine, ref Reference) (facematch.Known, error) {
	faces, err := engine.Recognize(ref.Image)
	if err != nil {
		return facematch.Known{}, err
	}
	if len(faces) == 0 {
		return facematch.Known{}, ErrNoFace
	}
	return facematch.Known{
		Identity:   ref.Identity,
		Descriptor: faces[0].Descriptor,
	}, nil
}
