package facematch

import "image"

// ScaleRect multiplies every coordinate of r by factor.
// Used to map a box found on a downscaled frame back onto the original.
func ScaleRect(r image.Rectangle, factor int) image.Rectangle {
	if factor <= 1 {
		return r
	}
	return image.Rect(r.Min.X*factor, r.Min.Y*factor, r.Max.X*factor, r.Max.Y*factor)
}

// LabelStrip returns the filled band of the given height along the bottom edge of box.
func LabelStrip(box image.Rectangle, height int) image.Rectangle {
	return image.Rect(box.Min.X, box.Max.Y-height, box.Max.X, box.Max.Y)
}

// Border returns the four rectangles that make up a frame of the given thickness
// drawn inside box: top, bottom, left, right.
func Border(box image.Rectangle, thickness int) []image.Rectangle {
	if thickness <= 0 || box.Empty() {
		return nil
	}
	return []image.Rectangle{
		image.Rect(box.Min.X, box.Min.Y, box.Max.X, box.Min.Y+thickness),
		image.Rect(box.Min.X, box.Max.Y-thickness, box.Max.X, box.Max.Y),
		image.Rect(box.Min.X, box.Min.Y, box.Min.X+thickness, box.Max.Y),
		image.Rect(box.Max.X-thickness, box.Min.Y, box.Max.X, box.Max.Y),
	}
}
