package photo

import (
	"image"

	"golang.org/x/image/draw"
)

// Thumbnail scales src down so neither side exceeds maxPixels. Images that
// already fit are returned unchanged. Bilinear is used instead of Lanczos;
// it is much cheaper for the small previews the TUI renders.
func Thumbnail(src image.Image, maxPixels int) image.Image {
	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if maxPixels <= 0 || (width <= maxPixels && height <= maxPixels) {
		return src
	}

	var scale float64
	if width > height {
		scale = float64(maxPixels) / float64(width)
	} else {
		scale = float64(maxPixels) / float64(height)
	}

	newWidth := max(1, int(float64(width)*scale))
	newHeight := max(1, int(float64(height)*scale))

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}
