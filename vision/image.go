// ABOUTME: Image IO and preprocessing for verification: load/save, crop, greyscale, binary threshold.
// ABOUTME: JPEG and PNG are chosen by file extension; everything operates on stdlib image types.
package vision

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
)

// Filter names the preprocessing applied to reference and source images.
type Filter string

const (
	FilterNone      Filter = "none"
	FilterGreyscale Filter = "greyscale"
	FilterBinary    Filter = "binary"
)

// BinaryCutoff is the greyscale threshold separating black from white pixels.
const BinaryCutoff = 127

// LoadImage decodes a PNG or JPEG file.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// SaveImage encodes the image as PNG or JPEG based on the path extension,
// creating parent directories as needed.
func SaveImage(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return png.Encode(f, img)
	default:
		return jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	}
}

// Crop extracts a rectangle from the image in source coordinates, clamped to
// the image bounds.
func Crop(img image.Image, r image.Rectangle) image.Image {
	r = r.Intersect(img.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), img, r.Min, draw.Src)
	return out
}

// Greyscale converts an image to 8-bit grey.
func Greyscale(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x-b.Min.X, y-b.Min.Y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return out
}

// BinaryThreshold converts to grey then maps every pixel to pure black or
// white around the cutoff.
func BinaryThreshold(img image.Image, cutoff uint8) *image.Gray {
	g := Greyscale(img)
	b := g.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if g.GrayAt(x, y).Y > cutoff {
				g.SetGray(x, y, color.Gray{Y: 255})
			} else {
				g.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return g
}

// ApplyFilter applies the named filter, passing the image through unchanged
// for FilterNone.
func ApplyFilter(img image.Image, f Filter) image.Image {
	switch f {
	case FilterGreyscale:
		return Greyscale(img)
	case FilterBinary:
		return BinaryThreshold(img, BinaryCutoff)
	default:
		return img
	}
}
