// Package imageio opens image files from local disk and decodes them into
// pixel buffers, refusing anything that is not a supported image or that
// would be too expensive to decode.
package imageio

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrNotFound is returned when the path is missing or cannot be read.
	ErrNotFound = errors.New("image not found")
	// ErrUnsupportedFormat is returned for non-image files, image types
	// outside the allowed set and data the decoder rejects.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrTooLarge is returned when the file or its pixel count exceeds the
	// configured limits.
	ErrTooLarge = errors.New("image too large")
)

const (
	DefaultMaxFileSize = 10 << 20
	DefaultMaxPixels   = 100_000_000
)

// DefaultFormats are the MIME types accepted when no list is configured.
var DefaultFormats = []string{
	"image/jpeg",
	"image/png",
	"image/webp",
	"image/gif",
	"image/bmp",
	"image/tiff",
}

type options struct {
	maxFileSize int64
	maxPixels   int
	formats     []string
}

// Option tunes Load.
type Option func(*options)

// WithMaxFileSize caps the size of the file on disk, in bytes.
func WithMaxFileSize(n int64) Option {
	return func(o *options) { o.maxFileSize = n }
}

// WithMaxPixels caps width*height as declared by the image header.
func WithMaxPixels(n int) Option {
	return func(o *options) { o.maxPixels = n }
}

// WithFormats replaces the accepted MIME types.
func WithFormats(formats ...string) Option {
	return func(o *options) { o.formats = formats }
}

// Load reads and decodes the image at path. Pixels are returned as stored;
// EXIF orientation is not applied.
func Load(path string, opts ...Option) (image.Image, error) {
	o := options{
		maxFileSize: DefaultMaxFileSize,
		maxPixels:   DefaultMaxPixels,
		formats:     DefaultFormats,
	}
	for _, opt := range opts {
		opt(&o)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrNotFound, path)
	}
	if o.maxFileSize > 0 && info.Size() > o.maxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrTooLarge, path, info.Size(), o.maxFileSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}
	defer f.Close()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}
	if !accepted(mtype, o.formats) {
		return nil, fmt.Errorf("%w: %s has type %s", ErrUnsupportedFormat, path, mtype.String())
	}
	log.Debug().Str("path", path).Str("mime", mtype.String()).Int64("size", info.Size()).Msg("Detected image type")

	if err := rewind(f); err != nil {
		return nil, err
	}
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedFormat, path, err)
	}
	if o.maxPixels > 0 && cfg.Width*cfg.Height > o.maxPixels {
		return nil, fmt.Errorf("%w: %s is %dx%d, limit is %d pixels", ErrTooLarge, path, cfg.Width, cfg.Height, o.maxPixels)
	}

	if err := rewind(f); err != nil {
		return nil, err
	}
	img, err := imaging.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedFormat, path, err)
	}
	log.Debug().Str("path", path).Str("format", format).Int("width", cfg.Width).Int("height", cfg.Height).Msg("Decoded image")
	return img, nil
}

// FileDigest returns the hex SHA-256 of the raw file bytes.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func accepted(mtype *mimetype.MIME, formats []string) bool {
	for _, f := range formats {
		if mtype.Is(f) {
			return true
		}
	}
	return false
}

func rewind(f *os.File) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind %s: %w", f.Name(), err)
	}
	return nil
}
