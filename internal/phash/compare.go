package phash

import (
	"fmt"
	"image"
)

const (
	// DefaultCompareSize is the side both images are stretched to before
	// the per-pixel scores are taken.
	DefaultCompareSize = 512

	// pixelTolerance is the largest summed RGB difference for which two
	// pixels still count as matching.
	pixelTolerance = 30
	maxRGBDiff     = 3 * 255

	pixelWeight      = 0.4
	structuralWeight = 0.3
	perceptualWeight = 0.3
)

// Scores holds the similarity of two images, each in 0..100.
type Scores struct {
	// Pixel is the share of pixels whose RGB difference is below the tolerance.
	Pixel float64
	// Structural is 100 minus the mean RGB difference as a percentage.
	Structural float64
	// Perceptual is Similarity of the two hashes.
	Perceptual float64
	// Overall is the weighted blend verify decides on.
	Overall float64

	Distance int
}

// Comparison scores two images after stretching both to Width x Height.
type Comparison struct {
	Width  int
	Height int
	Filter string
}

// Score compares a and b, whose perceptual hashes are ha and hb.
func (c Comparison) Score(a, b image.Image, ha, hb Hash) (Scores, error) {
	ra, err := Resize(a, c.Width, c.Height, c.Filter)
	if err != nil {
		return Scores{}, err
	}
	rb, err := Resize(b, c.Width, c.Height, c.Filter)
	if err != nil {
		return Scores{}, err
	}
	if len(ra.Pix) != len(rb.Pix) {
		return Scores{}, fmt.Errorf("resized buffers differ in size: %d and %d", len(ra.Pix), len(rb.Pix))
	}

	var matching, total int
	for i := 0; i < len(ra.Pix); i += 4 {
		diff := absDiff(ra.Pix[i], rb.Pix[i]) + absDiff(ra.Pix[i+1], rb.Pix[i+1]) + absDiff(ra.Pix[i+2], rb.Pix[i+2])
		total += diff
		if diff < pixelTolerance {
			matching++
		}
	}
	pixels := float64(c.Width * c.Height)

	s := Scores{
		Pixel:      100 * float64(matching) / pixels,
		Structural: max(0, 100-100*float64(total)/(pixels*maxRGBDiff)),
		Perceptual: Similarity(ha, hb),
		Distance:   Distance(ha, hb),
	}
	s.Overall = pixelWeight*s.Pixel + structuralWeight*s.Structural + perceptualWeight*s.Perceptual
	return s, nil
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
