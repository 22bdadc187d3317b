// Package service holds the verification pipeline: image normalization,
// similarity scoring and the upload verdict.
package service

import (
	"errors"
	"fmt"

	"github.com/h2non/bimg"
)

// ErrImageDecode is returned when the upload isn't an image libvips can read.
var ErrImageDecode = errors.New("cannot decode image")

// ImageProcessor converts uploads into the canonical form sent to the
// embedding backend: an RGB JPEG no larger than maxSide on its longest edge.
// It uses bimg (Go bindings for libvips), so libvips is a system dependency.
type ImageProcessor struct {
	maxSide int
	quality int
}

// NewImageProcessor creates a processor. maxSide <= 0 keeps the original size.
func NewImageProcessor(maxSide int) *ImageProcessor {
	return &ImageProcessor{maxSide: maxSide, quality: 90}
}

// Normalize decodes imageData in any format libvips supports (JPEG, PNG,
// WebP, GIF, TIFF...), flattens transparency onto white, applies EXIF
// rotation and re-encodes as sRGB JPEG. The same input always produces the
// same output, which keeps embedding cache keys stable.
func (p *ImageProcessor) Normalize(imageData []byte) ([]byte, error) {
	if len(imageData) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrImageDecode)
	}
	if bimg.DetermineImageType(imageData) == bimg.UNKNOWN {
		return nil, fmt.Errorf("%w: unrecognized format", ErrImageDecode)
	}

	img := bimg.NewImage(imageData)
	size, err := img.Size()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}

	opts := bimg.Options{
		Type:           bimg.JPEG,
		Quality:        p.quality,
		Flatten:        true,
		Background:     bimg.Color{R: 255, G: 255, B: 255},
		Interpretation: bimg.InterpretationSRGB,
		StripMetadata:  true,
	}

	// Only one dimension is set so libvips keeps the aspect ratio.
	if p.maxSide > 0 && (size.Width > p.maxSide || size.Height > p.maxSide) {
		if size.Width >= size.Height {
			opts.Width = p.maxSide
		} else {
			opts.Height = p.maxSide
		}
	}

	out, err := img.Process(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	return out, nil
}
