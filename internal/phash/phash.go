// Package phash computes DCT perceptual hashes of images normalized to a
// fixed resolution.
package phash

import (
	"fmt"
	"image"
	"strconv"

	azrphash "github.com/azr/phash"
	"github.com/corona10/goimagehash"
)

// Bits is the length of every Hash.
const Bits = 64

// Hash is a 64-bit perceptual hash.
type Hash uint64

// String renders the hash as 16 lowercase hex digits.
func (h Hash) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// ParseHash parses the form produced by Hash.String.
func ParseHash(s string) (Hash, error) {
	if len(s) != Bits/4 {
		return 0, fmt.Errorf("invalid hash %q: want %d hex digits, got %d", s, Bits/4, len(s))
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	return Hash(v), nil
}

// Engine names accepted by NewHasher.
const (
	EngineDCT         = "dct"
	EngineGoImageHash = "goimagehash"
)

// Engines lists the supported engines, default first.
var Engines = []string{EngineDCT, EngineGoImageHash}

// Hasher computes the perceptual hash of an image.
type Hasher interface {
	Hash(img image.Image) (Hash, error)
}

// NewHasher returns the hasher registered under engine.
func NewHasher(engine string) (Hasher, error) {
	switch engine {
	case EngineDCT, "":
		return dctHasher{}, nil
	case EngineGoImageHash:
		return goImageHasher{}, nil
	default:
		return nil, fmt.Errorf("unknown hash engine %q (want one of %v)", engine, Engines)
	}
}

type dctHasher struct{}

func (dctHasher) Hash(img image.Image) (Hash, error) {
	if img == nil {
		return 0, fmt.Errorf("phash: image is nil")
	}
	return Hash(azrphash.DTC(img)), nil
}

type goImageHasher struct{}

func (goImageHasher) Hash(img image.Image) (Hash, error) {
	if img == nil {
		return 0, fmt.Errorf("phash: image is nil")
	}
	h, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return 0, fmt.Errorf("failed to compute phash: %w", err)
	}
	return Hash(h.GetHash()), nil
}

// Distance is the Hamming distance between two hashes.
func Distance(a, b Hash) int {
	d, err := goimagehash.NewImageHash(uint64(a), goimagehash.PHash).
		Distance(goimagehash.NewImageHash(uint64(b), goimagehash.PHash))
	if err != nil {
		// Distance only fails when the two kinds differ, and both are PHash here.
		panic(err)
	}
	return d
}

// Similarity maps the Hamming distance onto 0..100, where 100 means equal.
func Similarity(a, b Hash) float64 {
	return 100 * (1 - float64(Distance(a, b))/Bits)
}
