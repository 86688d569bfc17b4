package photo

import (
	"io"
	"os"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

type exifInfo struct {
	orientation int
	description string
}

// readExif extracts the fields the frame uses. Missing EXIF is not an error.
func readExif(r io.Reader) exifInfo {
	info := exifInfo{orientation: 1}
	x, err := exif.Decode(r)
	if err != nil {
		return info
	}

	if orient, err := x.Get(exif.Orientation); err == nil {
		if v, err := orient.Int(0); err == nil && v >= 1 && v <= 8 {
			info.orientation = v
		}
	}
	if tag, err := x.Get(exif.ImageDescription); err == nil && tag.Format() == tiff.StringVal {
		s, _ := tag.StringVal()
		info.description = strings.TrimSpace(strings.Trim(s, "\x00"))
	}
	return info
}

// Caption returns the EXIF ImageDescription of path, or "".
func Caption(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	return readExif(f).description
}
