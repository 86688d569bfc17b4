package tui

import (
	"fmt"
	"image"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/justyntemme/photoframe/internal/photo"
)

// previewPixels bounds the longer side of the terminal preview. Two pixel
// rows share one text row.
const previewPixels = 48

// preview renders img with upper half blocks, one pixel per column.
func preview(img image.Image, maxPixels int) string {
	if maxPixels <= 0 {
		maxPixels = previewPixels
	}
	thumb := photo.Thumbnail(img, maxPixels)
	r := thumb.Bounds()

	var b strings.Builder
	for y := r.Min.Y; y < r.Max.Y; y += 2 {
		for x := r.Min.X; x < r.Max.X; x++ {
			style := lipgloss.NewStyle().Foreground(hex(thumb, x, y))
			if y+1 < r.Max.Y {
				style = style.Background(hex(thumb, x, y+1))
			}
			b.WriteString(style.Render("▀"))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func hex(img image.Image, x, y int) lipgloss.Color {
	r, g, b, _ := img.At(x, y).RGBA()
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8))
}
