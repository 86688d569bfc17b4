//go:build !linux || !cgo

package photo

import (
	"errors"
	"image"
	"io"
)

var errNoHEIC = errors.New("HEIC decoding not supported on this platform")

func decodeHEIC(r io.Reader) (image.Image, error) {
	return nil, errNoHEIC
}

func heicConfig(r io.Reader) (image.Config, error) {
	return image.Config{}, errNoHEIC
}

// heicSupported returns whether HEIC decoding is available on this platform
func heicSupported() bool {
	return false
}
