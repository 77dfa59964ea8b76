package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kosshi.net/mriphash/internal/imageio"
)

var hashLine = regexp.MustCompile(`^Your MRI phash \(hex string\): ([0-9a-f]{16})\n$`)

func slice(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := 40 + (x*3+y*5)%60
			if (x-w/2)*(x-w/2)+(y-h/3)*(y-h/3) < (w/5)*(w/5) {
				v += 100
			}
			img.Set(x, y, color.NRGBA{R: uint8(v), G: uint8(v), B: uint8(v), A: 255})
		}
	}
	return img
}

func writeImage(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, imaging.Save(img, path))
	return path
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "mriphash.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHashCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeImage(t, dir, "tumor.png", slice(200, 160))

	out, err := execute(t, path)
	require.NoError(t, err)
	m := hashLine.FindStringSubmatch(out)
	require.NotNil(t, m, "unexpected output %q", out)

	again, err := execute(t, path)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestHashCommandDefaultPath(t *testing.T) {
	dir := t.TempDir()
	path := writeImage(t, dir, "tumor.jpg", slice(128, 128))
	cfg := writeConfig(t, dir, fmt.Sprintf("image_path = %q\n", path))

	byConfig, err := execute(t, "--config", cfg)
	require.NoError(t, err)
	byArg, err := execute(t, path)
	require.NoError(t, err)

	assert.Regexp(t, hashLine, byConfig)
	assert.Equal(t, byArg, byConfig)
}

func TestHashCommandResizeFlags(t *testing.T) {
	path := writeImage(t, t.TempDir(), "tumor.png", slice(200, 160))

	full, err := execute(t, path)
	require.NoError(t, err)
	coarse, err := execute(t, "--width", "2", "--height", "2", path)
	require.NoError(t, err)

	assert.Regexp(t, hashLine, coarse)
	assert.NotEqual(t, full, coarse)

	for _, engine := range []string{"dct", "goimagehash"} {
		out, err := execute(t, "--engine", engine, "--filter", "lanczos", path)
		require.NoError(t, err, engine)
		assert.Regexp(t, hashLine, out, engine)
	}
}

func TestHashCommandFailures(t *testing.T) {
	dir := t.TempDir()
	text := filepath.Join(dir, "tumor.jpg")
	require.NoError(t, os.WriteFile(text, []byte("not an image"), 0o644))

	tests := []struct {
		name string
		args []string
		want error
	}{
		{name: "missing file", args: []string{filepath.Join(dir, "missing.jpg")}, want: imageio.ErrNotFound},
		{name: "non-image", args: []string{text}, want: imageio.ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, out, "no hash line on failure")
			assert.Equal(t, 1, exitCode(err))
		})
	}

	out, err := execute(t, "--engine", "md5", text)
	assert.ErrorContains(t, err, "hash.engine")
	assert.Empty(t, out)

	_, err = execute(t, "a.jpg", "b.jpg")
	assert.Error(t, err)
}

func TestCompareCommand(t *testing.T) {
	dir := t.TempDir()
	src := slice(160, 160)
	a := writeImage(t, dir, "a.png", src)
	b := writeImage(t, dir, "b.png", imaging.AdjustBrightness(src, 4))

	out, err := execute(t, "compare", a, a)
	require.NoError(t, err)
	assert.Contains(t, out, "distance: 0/64")
	assert.Contains(t, out, "similarity: 100.00%")

	out, err = execute(t, "compare", a, b)
	require.NoError(t, err)
	assert.Contains(t, out, "distance: ")

	hashed, err := execute(t, a)
	require.NoError(t, err)
	hex := hashLine.FindStringSubmatch(hashed)[1]
	out, err = execute(t, "compare", a, "--hash", hex)
	require.NoError(t, err)
	assert.Contains(t, out, "distance: 0/64")

	_, err = execute(t, "compare", a)
	assert.Error(t, err)
	_, err = execute(t, "compare", a, b, "--hash", hex)
	assert.Error(t, err)
	_, err = execute(t, "compare", a, "--hash", "xyz")
	assert.Error(t, err)
}

func TestVerifyCommand(t *testing.T) {
	dir := t.TempDir()
	src := slice(160, 160)
	ref := writeImage(t, dir, "tumor.png", src)
	same := writeImage(t, dir, "copy.png", src)
	other := writeImage(t, dir, "other.png", imaging.Invert(src))
	cfg := writeConfig(t, dir, fmt.Sprintf("image_path = %q\nsimilarity_threshold = 95\n", ref))

	out, err := execute(t, "--config", cfg, "verify", same)
	require.NoError(t, err)
	assert.Contains(t, out, "sha256:")
	assert.Contains(t, out, "pixel:      100.00%")
	assert.Contains(t, out, "structural: 100.00%")
	assert.Contains(t, out, "perceptual: 100.00%")
	assert.Contains(t, out, "overall:    100.00%")
	assert.Contains(t, out, "MATCH")
	assert.NotContains(t, out, "NO MATCH")

	out, err = execute(t, "--config", cfg, "verify", other)
	assert.ErrorIs(t, err, errNoMatch)
	assert.Equal(t, 2, exitCode(err))
	assert.Contains(t, out, "overall:")
	assert.Contains(t, out, "NO MATCH")

	missingRef := writeConfig(t, t.TempDir(), fmt.Sprintf("image_path = %q\n", filepath.Join(dir, "gone.jpg")))
	_, err = execute(t, "--config", missingRef, "verify", same)
	assert.ErrorIs(t, err, imageio.ErrNotFound)
	assert.Equal(t, 1, exitCode(err))
}

func TestConfigShow(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "[resize]\nwidth = 64\n")

	out, err := execute(t, "--config", cfg, "--engine", "goimagehash", "config", "show")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# "+cfg+"\n"))
	assert.Contains(t, out, "width = 64")
	assert.Contains(t, out, "goimagehash")
}

func noise(w, h int) *image.NRGBA {
	rng := rand.New(rand.NewSource(1))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	rng.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}

func TestHashCommandFileSizeLimit(t *testing.T) {
	dir := t.TempDir()
	small := writeImage(t, dir, "small.png", slice(64, 64))
	// Random RGB does not compress, so this PNG is about 1.4 MiB.
	large := writeImage(t, dir, "large.png", noise(700, 700))
	info, err := os.Stat(large)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(1<<20))
	require.Less(t, info.Size(), int64(2<<20))

	tests := []struct {
		name  string
		limit int
		path  string
		want  error
	}{
		{name: "unlimited", limit: 0, path: large},
		{name: "small under 1 MiB", limit: 1, path: small},
		{name: "large over 1 MiB", limit: 1, path: large, want: imageio.ErrTooLarge},
		{name: "large under 2 MiB", limit: 2, path: large},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := writeConfig(t, t.TempDir(), fmt.Sprintf("[limits]\nmax_file_size_mb = %d\n", tt.limit))
			out, err := execute(t, "--config", cfg, tt.path)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				assert.Empty(t, out)
				return
			}
			require.NoError(t, err)
			assert.Regexp(t, hashLine, out)
		})
	}
}
