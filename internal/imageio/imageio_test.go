package imageio

import (
	"bytes"
	"image"
	"image/color"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadLossless(t *testing.T) {
	pix := []uint8{0, 255, 0, 255, 17, 200}
	for _, ext := range []string{".png", ".bmp", ".tiff"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "map"+ext)
			require.NoError(t, Save(path, pix, 3, 2))

			g, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, 3, g.Width)
			assert.Equal(t, 2, g.Height)
			assert.Equal(t, pix, g.Pix)
		})
	}
}

func TestSaveRejectsShape(t *testing.T) {
	err := Save(filepath.Join(t.TempDir(), "x.png"), []uint8{1, 2, 3}, 2, 2)
	assert.Error(t, err)
}

func TestEncodeUnknownFormat(t *testing.T) {
	err := Encode(&bytes.Buffer{}, ".gif", &Gray{Pix: []uint8{0}, Width: 1, Height: 1})
	assert.Error(t, err)
}

func TestToGrayConvertsColor(t *testing.T) {
	src := image.NewRGBA(image.Rect(5, 5, 7, 6))
	src.Set(5, 5, color.White)
	src.Set(6, 5, color.Black)

	g := ToGray(src)
	assert.Equal(t, 2, g.Width)
	assert.Equal(t, 1, g.Height)
	assert.Equal(t, []uint8{255, 0}, g.Pix)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}

func TestRescale(t *testing.T) {
	assert.Equal(t, []uint8{0, 128, 255}, Rescale([]float64{-4, 0, 4}))
	assert.Equal(t, []uint8{0, 0}, Rescale([]float64{3, 3}))
	assert.Equal(t, []uint8{0, 0, 255}, Rescale([]float64{math.NaN(), 1, 2}))
	assert.Empty(t, Rescale(nil))
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a/b/c.PNG"))
	assert.True(t, Supported("x.webp"))
	assert.False(t, Supported("notes.txt"))
	assert.False(t, Supported("noext"))
}
