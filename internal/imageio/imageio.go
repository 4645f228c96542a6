// Package imageio decodes images into 8-bit grayscale grids and encodes grids
// back to files.
package imageio

import (
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Gray is a row-major 8-bit grid.
type Gray struct {
	Pix    []uint8
	Width  int
	Height int
}

// Extensions lists the file suffixes Load accepts.
var Extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// Supported reports whether path has a decodable extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Load decodes path and converts it to grayscale.
func Load(path string) (*Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads any registered format from r and converts it to grayscale.
func Decode(r io.Reader) (*Gray, error) {
	src, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("decoded %s image is empty", format)
	}
	return ToGray(src), nil
}

// ToGray converts any image to a tightly packed Gray grid.
func ToGray(src image.Image) *Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return &Gray{Pix: dst.Pix, Width: b.Dx(), Height: b.Dy()}
}

// Image wraps the grid as an image.Gray without copying.
func (g *Gray) Image() *image.Gray {
	return &image.Gray{
		Pix:    g.Pix,
		Stride: g.Width,
		Rect:   image.Rect(0, 0, g.Width, g.Height),
	}
}

// Save encodes pix to path, picking the encoder from the extension.
func Save(path string, pix []uint8, width, height int) error {
	if len(pix) != width*height {
		return fmt.Errorf("buffer of %d bytes does not match %dx%d", len(pix), width, height)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(out, filepath.Ext(path), &Gray{Pix: pix, Width: width, Height: height}); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Encode writes g in the format named by ext (with or without the dot).
func Encode(w io.Writer, ext string, g *Gray) error {
	m := g.Image()
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "png", "":
		return png.Encode(w, m)
	case "bmp":
		return bmp.Encode(w, m)
	case "tif", "tiff":
		return tiff.Encode(w, m, &tiff.Options{Compression: tiff.Deflate})
	case "jpg", "jpeg":
		return jpeg.Encode(w, m, &jpeg.Options{Quality: 95})
	}
	return fmt.Errorf("unsupported output format %q", ext)
}

// Rescale maps values linearly onto 0..255. A constant grid maps to 0.
// NaN and infinities are treated as the minimum.
func Rescale(values []float64) []uint8 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
	}
	out := make([]uint8, len(values))
	if !(hi > lo) {
		return out
	}
	span := hi - lo
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[i] = uint8(math.Round((v - lo) / span * 255))
	}
	return out
}
