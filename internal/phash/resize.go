package phash

import (
	"fmt"
	"image"
	"slices"

	"github.com/disintegration/imaging"
)

const (
	DefaultSize   = 256
	DefaultFilter = "catmullrom"
)

var filters = map[string]imaging.ResampleFilter{
	"nearest":    imaging.NearestNeighbor,
	"box":        imaging.Box,
	"linear":     imaging.Linear,
	"catmullrom": imaging.CatmullRom,
	"lanczos":    imaging.Lanczos,
}

// Filters returns the accepted resampling filter names.
func Filters() []string {
	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Resize stretches img to exactly width x height, ignoring aspect ratio.
// The source image is left untouched.
func Resize(img image.Image, width, height int, filter string) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid resize target %dx%d", width, height)
	}
	f, ok := filters[filter]
	if !ok {
		return nil, fmt.Errorf("unknown resample filter %q (want one of %v)", filter, Filters())
	}
	return imaging.Resize(img, width, height, f), nil
}
