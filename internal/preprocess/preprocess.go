// Package preprocess converts raw camera frames into the classifier's
// expected input tensor. The camera carries a fisheye lens, so frames are
// first cropped to the largest centered square to discard the most distorted
// periphery, then resized and normalized.
package preprocess

import (
	"image"

	xdraw "golang.org/x/image/draw"

	"signwatch/internal/errors"
)

// Processor is a pure frame-to-tensor converter. It holds no shared state and
// is safe for reuse across cycles.
type Processor struct {
	width  int // classifier input width
	height int // classifier input height
}

// New returns a Processor producing width x height RGB tensors.
func New(width, height int) *Processor {
	return &Processor{width: width, height: height}
}

// Process applies, in order: center-crop to the largest inscribed square,
// resize to the classifier input dimensions, and normalization of 8-bit RGB
// channels into [0, 1] floats. The returned slice has length width*height*3
// in row-major RGB order.
func (p *Processor) Process(frame image.Image) ([]float32, error) {
	if frame == nil {
		return nil, errors.Newf("cannot preprocess nil frame").
			Component("preprocess").
			Category(errors.CategoryPreprocess).
			Build()
	}

	bounds := frame.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, errors.Newf("cannot preprocess empty frame: %dx%d", bounds.Dx(), bounds.Dy()).
			Component("preprocess").
			Category(errors.CategoryPreprocess).
			Context("width", bounds.Dx()).
			Context("height", bounds.Dy()).
			Build()
	}

	square := CenterSquare(bounds)

	// Resize the cropped region directly into the target raster. ApproxBiLinear
	// trades a little quality for speed, which matters on the Pi.
	resized := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	xdraw.ApproxBiLinear.Scale(resized, resized.Bounds(), frame, square, xdraw.Src, nil)

	return normalizeRGB(resized), nil
}

// CenterSquare returns the largest square inscribed in bounds, centered on
// the longer axis.
func CenterSquare(bounds image.Rectangle) image.Rectangle {
	width := bounds.Dx()
	height := bounds.Dy()

	switch {
	case width > height:
		// Landscape, crop the center square
		left := bounds.Min.X + (width-height)/2
		return image.Rect(left, bounds.Min.Y, left+height, bounds.Min.Y+height)
	case height > width:
		// Portrait, crop the center square
		top := bounds.Min.Y + (height-width)/2
		return image.Rect(bounds.Min.X, top, bounds.Min.X+width, top+width)
	default:
		return bounds
	}
}

// normalizeRGB flattens an RGBA raster into [0,1] float RGB triplets.
func normalizeRGB(img *image.RGBA) []float32 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	out := make([]float32, 0, width*height*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := img.Pix[(y-bounds.Min.Y)*img.Stride:]
		for x := 0; x < width; x++ {
			pixel := row[x*4 : x*4+3]
			out = append(out,
				float32(pixel[0])/255.0,
				float32(pixel[1])/255.0,
				float32(pixel[2])/255.0)
		}
	}
	return out
}
