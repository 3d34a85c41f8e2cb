package services

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestImageService(t *testing.T) *ImageService {
	s := NewImageService(t.TempDir())
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return s
}

func TestResizeUserPhoto(t *testing.T) {
	s := newTestImageService(t)

	name, err := s.ResizeUserPhoto("abc", bytes.NewReader(pngBytes(t, 120, 80)))
	require.NoError(t, err)
	assert.Equal(t, "user-abc-1700000000000.jpeg", name)

	img, err := imaging.Open(filepath.Join(s.dir, "users", name))
	require.NoError(t, err)
	assert.Equal(t, 500, img.Bounds().Dx())
	assert.Equal(t, 500, img.Bounds().Dy())
}

func TestResizeTourImages(t *testing.T) {
	s := newTestImageService(t)
	src := pngBytes(t, 300, 200)

	cover, names, err := s.ResizeTourImages("t1", bytes.NewReader(src), []io.Reader{
		bytes.NewReader(src), bytes.NewReader(src),
	})
	require.NoError(t, err)
	assert.Equal(t, "tour-t1-1700000000000-cover.jpeg", cover)
	assert.Equal(t, []string{"tour-t1-1700000000000-1.jpeg", "tour-t1-1700000000000-2.jpeg"}, names)

	img, err := imaging.Open(filepath.Join(s.dir, "tours", names[1]))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(2000, 1333), img.Bounds().Size())
}

func TestResizeRejectsNonImages(t *testing.T) {
	s := newTestImageService(t)

	_, err := s.ResizeUserPhoto("abc", strings.NewReader("%PDF-1.4 not an image"))
	assert.Equal(t, ErrNotAnImage, err)

	_, _, err = s.ResizeTourImages("t1", nil, make([]io.Reader, 4))
	assert.Error(t, err)
}

func TestIsImage(t *testing.T) {
	assert.True(t, IsImage("image/jpeg"))
	assert.False(t, IsImage("application/pdf"))
}
