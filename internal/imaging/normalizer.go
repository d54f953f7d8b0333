// Package imaging converts uploaded receipt photos into a canonical JPEG
// form suitable for OCR submission.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	// Phone cameras commonly produce HEIC, which has no stdlib decoder.
	_ "github.com/gen2brain/heic"
	"golang.org/x/image/draw"
)

// ErrDecode indicates the input bytes could not be parsed as any
// supported image format.
var ErrDecode = errors.New("unsupported or corrupt image data")

// Normalizer re-encodes arbitrary still images as bounded JPEGs.
type Normalizer struct {
	// MaxDimension bounds the longer side of the output image in pixels.
	MaxDimension int
	// Quality is the JPEG encoding quality (1-100).
	Quality int
}

// NewNormalizer creates a Normalizer. Non-positive arguments fall back to
// 1024 pixels and quality 85.
func NewNormalizer(maxDimension, quality int) *Normalizer {
	if maxDimension <= 0 {
		maxDimension = 1024
	}
	if quality <= 0 {
		quality = 85
	}
	return &Normalizer{MaxDimension: maxDimension, Quality: quality}
}

// Normalize decodes data, downscales it so neither dimension exceeds
// MaxDimension while preserving aspect ratio, and re-encodes it as JPEG.
// Images already within bounds are re-encoded without resizing; Normalize
// never upscales.
func (n *Normalizer) Normalize(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	img = n.downscale(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: n.Quality}); err != nil {
		return nil, fmt.Errorf("encoding normalized image: %w", err)
	}

	return buf.Bytes(), nil
}

func (n *Normalizer) downscale(img image.Image) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	ratio := min(
		float64(n.MaxDimension)/float64(width),
		float64(n.MaxDimension)/float64(height),
	)
	if ratio >= 1 {
		return img
	}

	targetW := int(float64(width) * ratio)
	targetH := int(float64(height) * ratio)
	if targetW < 1 {
		targetW = 1
	}
	if targetH < 1 {
		targetH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
