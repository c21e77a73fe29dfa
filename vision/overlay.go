// ABOUTME: Overlay rendering for image verification artifacts.
// ABOUTME: Matching pixels (grey diff <= tolerance) blend green over the source, mismatching blend red, 50% alpha.
package vision

import (
	"image"
	"image/color"
)

// OverlayTolerance is the greyscale absolute difference up to which two
// pixels count as matching.
const OverlayTolerance = 10

// Overlay renders the verification overlay for a source region against the
// reference: the source pixels blended 50/50 with green where they match the
// reference and red where they differ. The comparison region is the
// reference-sized rectangle at the given offset in the source.
func Overlay(source, reference image.Image, offset image.Point) *image.RGBA {
	src := Greyscale(source)
	ref := Greyscale(reference)
	rw, rh := ref.Bounds().Dx(), ref.Bounds().Dy()

	out := image.NewRGBA(image.Rect(0, 0, rw, rh))
	srcBounds := src.Bounds()
	for y := 0; y < rh; y++ {
		for x := 0; x < rw; x++ {
			sx, sy := offset.X+x, offset.Y+y
			var sv uint8
			if image.Pt(sx, sy).In(srcBounds) {
				sv = src.GrayAt(sx, sy).Y
			}
			rv := ref.GrayAt(x, y).Y

			diff := int(sv) - int(rv)
			if diff < 0 {
				diff = -diff
			}
			var tint color.RGBA
			if diff <= OverlayTolerance {
				tint = color.RGBA{G: 255}
			} else {
				tint = color.RGBA{R: 255}
			}
			out.SetRGBA(x, y, color.RGBA{
				R: uint8((int(sv) + int(tint.R)) / 2),
				G: uint8((int(sv) + int(tint.G)) / 2),
				B: uint8(int(sv) / 2),
				A: 255,
			})
		}
	}
	return out
}
