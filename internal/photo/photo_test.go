package photo

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestIsImage(t *testing.T) {
	dir := t.TempDir()
	pngPath := writePNG(t, dir, "a.png", 4, 4)
	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hello"), 0o644))
	fake := filepath.Join(dir, "fake.jpg")
	require.NoError(t, os.WriteFile(fake, []byte("not a jpeg"), 0o644))

	testCases := []struct {
		path     string
		expected bool
	}{
		{pngPath, true},
		{txt, false},
		{fake, false},
		{filepath.Join(dir, "missing.png"), false},
	}
	for _, tc := range testCases {
		if got := IsImage(tc.path); got != tc.expected {
			t.Errorf("IsImage(%q): expected %v, got %v", filepath.Base(tc.path), tc.expected, got)
		}
	}
}

func TestFileDecoderFitsBounds(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "wide.png", 200, 100)

	img, err := FileDecoder{}.Decode(path, image.Pt(50, 50))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(50, 25), img.Bounds().Size())

	img, err = FileDecoder{}.Decode(path, image.Point{})
	require.NoError(t, err)
	assert.Equal(t, image.Pt(200, 100), img.Bounds().Size(), "zero bounds keeps size")

	img, err = FileDecoder{}.Decode(path, image.Pt(400, 400))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(200, 100), img.Bounds().Size(), "never upscaled")
}

func TestFileDecoderErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := FileDecoder{}.Decode(filepath.Join(dir, "gone.jpg"), image.Pt(10, 10))
	assert.ErrorIs(t, err, ErrNotFound)

	bad := filepath.Join(dir, "bad.jpg")
	require.NoError(t, os.WriteFile(bad, []byte{0xff, 0xd8, 0x00}, 0o644))
	_, err = FileDecoder{}.Decode(bad, image.Pt(10, 10))
	assert.ErrorIs(t, err, ErrUnreadableFormat)
}

func TestCaptionWithoutExif(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "", Caption(writePNG(t, dir, "a.png", 2, 2)))
	assert.Equal(t, "", Caption(filepath.Join(dir, "missing.jpg")))
}

type countingDecoder struct {
	calls map[string]int
}

func (d *countingDecoder) Decode(path string, bounds image.Point) (image.Image, error) {
	d.calls[path]++
	if path == "broken" {
		return nil, ErrUnreadableFormat
	}
	return image.NewGray(image.Rect(0, 0, bounds.X, bounds.Y)), nil
}

func TestCacheLRU(t *testing.T) {
	dec := &countingDecoder{calls: map[string]int{}}
	c := NewCache(dec, 2)
	c.stat = func(string) error { return nil }
	b := image.Pt(8, 8)

	_, err := c.Decode("a", b)
	require.NoError(t, err)
	_, err = c.Decode("a", b)
	require.NoError(t, err)
	assert.Equal(t, 1, dec.calls["a"], "second decode is a hit")

	_, _ = c.Decode("a", image.Pt(4, 4))
	assert.Equal(t, 2, dec.calls["a"], "bounds are part of the key")
	assert.Equal(t, 2, c.Len())

	// "a"@8x8 is now least recent and gets evicted
	_, _ = c.Decode("b", b)
	assert.Equal(t, 2, c.Len())
	_, _ = c.Decode("a", b)
	assert.Equal(t, 3, dec.calls["a"])

	_, err = c.Decode("broken", b)
	assert.ErrorIs(t, err, ErrUnreadableFormat)
	_, _ = c.Decode("broken", b)
	assert.Equal(t, 2, dec.calls["broken"], "failures are not cached")

	c.Clear()
	assert.Zero(t, c.Len())
}

func TestCacheHitForDeletedFile(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "gone.png", 4, 4)
	c := NewCache(FileDecoder{}, 4)

	_, err := c.Decode(path, image.Point{})
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	require.NoError(t, os.Remove(path))
	_, err = c.Decode(path, image.Point{})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, c.Len(), "stale entry evicted")
}

func TestThumbnail(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 300, 150))
	thumb := Thumbnail(src, 100)
	assert.Equal(t, image.Pt(100, 50), thumb.Bounds().Size())

	small := image.NewRGBA(image.Rect(0, 0, 20, 10))
	assert.Same(t, small, Thumbnail(small, 100))
}
