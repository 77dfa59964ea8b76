package phash

import (
	"fmt"
	"image"

	"github.com/rs/zerolog/log"

	"kosshi.net/mriphash/internal/imageio"
)

// Pipeline loads an image, stretches it to Width x Height and hashes it.
type Pipeline struct {
	Width       int
	Height      int
	Filter      string
	Hasher      Hasher
	LoadOptions []imageio.Option
}

// NewPipeline returns a pipeline with the default 256x256 target, bicubic
// resampling and the dct engine.
func NewPipeline() *Pipeline {
	return &Pipeline{
		Width:  DefaultSize,
		Height: DefaultSize,
		Filter: DefaultFilter,
		Hasher: dctHasher{},
	}
}

// HashFile runs the full pipeline on the file at path.
func (p *Pipeline) HashFile(path string) (Hash, error) {
	img, err := imageio.Load(path, p.LoadOptions...)
	if err != nil {
		return 0, err
	}
	return p.HashImage(img)
}

// HashImage resizes img and hashes the result.
func (p *Pipeline) HashImage(img image.Image) (Hash, error) {
	if p.Hasher == nil {
		return 0, fmt.Errorf("pipeline has no hasher")
	}
	resized, err := Resize(img, p.Width, p.Height, p.Filter)
	if err != nil {
		return 0, err
	}
	log.Debug().Int("width", p.Width).Int("height", p.Height).Str("filter", p.Filter).Msg("Resized image")

	h, err := p.Hasher.Hash(resized)
	if err != nil {
		return 0, err
	}
	log.Debug().Stringer("hash", h).Msg("Computed phash")
	return h, nil
}
