// Package photo decodes, orients and scales image files for display, and
// answers the scanner's "is this a photo" question.
package photo

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/justyntemme/photoframe/internal/debug"
)

var (
	// ErrNotFound is returned when the photo file does not exist.
	ErrNotFound = errors.New("photo: file not found")
	// ErrUnreadableFormat is returned when the file exists but cannot be decoded.
	ErrUnreadableFormat = errors.New("photo: unreadable format")
)

// Decoder produces a bitmap that fits within bounds. A zero bounds keeps the
// original size.
type Decoder interface {
	Decode(path string, bounds image.Point) (image.Image, error)
}

// FileDecoder decodes files from the local filesystem.
type FileDecoder struct{}

var _ Decoder = FileDecoder{}

// Decode reads path, applies its EXIF orientation and fits it into bounds.
func (FileDecoder) Decode(path string, bounds image.Point) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadableFormat, path, err)
	}

	var img image.Image
	if isHEIC(path) {
		if !heicSupported() {
			return nil, fmt.Errorf("%w: %s: heic not supported", ErrUnreadableFormat, path)
		}
		img, err = decodeHEIC(bytes.NewReader(data))
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
	}
	if err != nil {
		debug.Log(debug.IMAGE, "decode %s failed: %v", path, err)
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadableFormat, path, err)
	}

	img = applyOrientation(img, readExif(bytes.NewReader(data)).orientation)

	if bounds.X > 0 && bounds.Y > 0 {
		size := img.Bounds().Size()
		if size.X > bounds.X || size.Y > bounds.Y {
			img = imaging.Fit(img, bounds.X, bounds.Y, imaging.Lanczos)
		}
	}
	debug.Log(debug.IMAGE, "decoded %s (%dx%d)", path, img.Bounds().Dx(), img.Bounds().Dy())
	return img, nil
}

// IsImage reports whether path holds an image this package can decode. Only
// the header is read.
func IsImage(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		debug.Log(debug.IMAGE, "open %s: %v", path, err)
		return false
	}
	defer f.Close()

	if isHEIC(path) {
		_, err = heicConfig(f)
	} else {
		_, _, err = image.DecodeConfig(f)
	}
	return err == nil
}

func isHEIC(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".heic" || ext == ".heif"
}

// applyOrientation transforms an image according to EXIF orientation value.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
