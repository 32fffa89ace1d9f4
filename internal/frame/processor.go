// Package frame turns raw camera frames into annotated frames: faces are detected on a
// downscaled copy, matched against the known set, boxed and labelled, and every recognized
// person is marked in the attendance ledger.
package frame

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

var (
	boxColor   = color.RGBA{G: 255, A: 255}
	labelColor = color.White
)

// Marker records attendance for a recognized identity.
type Marker interface {
	Mark(name string) (ledger.Record, bool, error)
}

// Recognition describes one accepted face in a processed frame.
type Recognition struct {
	Identity string          `json:"identity"`
	Distance float64         `json:"distance"`
	Box      image.Rectangle `json:"-"`
	Added    bool            `json:"added"`
}

// Result is the output of Process.
type Result struct {
	Frame   image.Image
	Matches []Recognition
}

// Processor recognizes and annotates frames.
type Processor struct {
	engine    facematch.Engine
	marker    Marker
	tolerance float64
	factor    int
}

// NewProcessor creates a processor. Non-positive tolerance or factor fall back to the defaults.
func NewProcessor(engine facematch.Engine, marker Marker, tolerance float64, factor int) *Processor {
	if tolerance <= 0 {
		tolerance = constants.DefaultTolerance
	}
	if factor < 1 {
		factor = constants.DefaultDownscaleFactor
	}
	return &Processor{
		engine:    engine,
		marker:    marker,
		tolerance: tolerance,
		factor:    factor,
	}
}

// Process recognizes the faces in frame against known. When nothing is recognized
// the input frame is returned as is; otherwise an annotated copy is returned.
// Marking errors stop processing and are returned with the matches found so far.
func (p *Processor) Process(frame image.Image, known []facematch.Known) (Result, error) {
	result := Result{Frame: frame}
	if len(known) == 0 {
		return result, nil
	}

	small, factor := downscale(frame, p.factor)
	faces, err := p.engine.Recognize(small)
	if err != nil {
		return result, fmt.Errorf("recognizing faces: %w", err)
	}

	var canvas *image.RGBA
	for _, face := range faces {
		match, ok := facematch.BestMatch(known, face.Descriptor, p.tolerance)
		if !ok {
			continue
		}

		if canvas == nil {
			canvas = cloneRGBA(frame)
			result.Frame = canvas
		}
		box := facematch.ScaleRect(face.Rect, factor)
		annotate(canvas, box, match.Identity)

		_, added, err := p.marker.Mark(match.Identity)
		if err != nil {
			return result, fmt.Errorf("marking %s: %w", match.Identity, err)
		}
		result.Matches = append(result.Matches, Recognition{
			Identity: match.Identity,
			Distance: match.Distance,
			Box:      box,
			Added:    added,
		})
	}
	return result, nil
}

// downscale shrinks img by factor. It returns the image to detect on and the factor actually applied.
func downscale(img image.Image, factor int) (image.Image, int) {
	b := img.Bounds()
	w, h := b.Dx()/factor, b.Dy()/factor
	if factor <= 1 || w == 0 || h == 0 {
		return img, 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst, factor
}

func cloneRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// annotate draws the face box, the label strip and the name.
func annotate(dst *image.RGBA, box image.Rectangle, name string) {
	fill := image.NewUniform(boxColor)
	for _, r := range facematch.Border(box, constants.BoxThickness) {
		draw.Draw(dst, r, fill, image.Point{}, draw.Src)
	}
	draw.Draw(dst, facematch.LabelStrip(box, constants.LabelStripHeight), fill, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(labelColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(box.Min.X+constants.LabelPaddingX, box.Max.Y-constants.LabelPaddingY),
	}
	d.DrawString(name)
}
