// ABOUTME: Template matching via normalized cross-correlation over greyscale pixels.
// ABOUTME: MatchTemplate slides the reference over the source and returns the best score and offset.
package vision

import (
	"image"
	"math"
)

// MatchResult is the outcome of one template match.
type MatchResult struct {
	Score  float64     // best normalized cross-correlation, 0..1
	Offset image.Point // top-left of the best-matching region in the source
}

// MatchTemplate computes the maximum normalized cross-correlation of the
// reference template over every placement inside the source. Scores are
// clamped to [0, 1]; a template that does not fit the source scores 0.
func MatchTemplate(source, template image.Image) MatchResult {
	src := Greyscale(source)
	tpl := Greyscale(template)

	sw, sh := src.Bounds().Dx(), src.Bounds().Dy()
	tw, th := tpl.Bounds().Dx(), tpl.Bounds().Dy()
	if tw == 0 || th == 0 || tw > sw || th > sh {
		return MatchResult{}
	}

	// Template statistics are placement-independent.
	n := float64(tw * th)
	var tplSum, tplSumSq float64
	for y := 0; y < th; y++ {
		for x := 0; x < tw; x++ {
			v := float64(tpl.GrayAt(x, y).Y)
			tplSum += v
			tplSumSq += v * v
		}
	}
	tplMean := tplSum / n
	tplVar := tplSumSq - tplSum*tplMean
	if tplVar <= 0 {
		// Flat template: correlate by mean distance instead.
		return matchFlat(src, tplMean, tw, th)
	}

	best := MatchResult{Score: -1}
	for oy := 0; oy <= sh-th; oy++ {
		for ox := 0; ox <= sw-tw; ox++ {
			var srcSum, srcSumSq, cross float64
			for y := 0; y < th; y++ {
				for x := 0; x < tw; x++ {
					s := float64(src.GrayAt(ox+x, oy+y).Y)
					tv := float64(tpl.GrayAt(x, y).Y)
					srcSum += s
					srcSumSq += s * s
					cross += s * tv
				}
			}
			srcMean := srcSum / n
			srcVar := srcSumSq - srcSum*srcMean
			if srcVar <= 0 {
				continue
			}
			num := cross - srcSum*tplMean
			score := num / math.Sqrt(srcVar*tplVar)
			if score > best.Score {
				best = MatchResult{Score: score, Offset: image.Pt(ox, oy)}
			}
		}
	}
	if best.Score < 0 {
		return MatchResult{}
	}
	if best.Score > 1 {
		best.Score = 1
	}
	return best
}

// matchFlat scores a constant-intensity template by inverse mean distance,
// which keeps solid-color references usable.
func matchFlat(src *image.Gray, tplMean float64, tw, th int) MatchResult {
	sw, sh := src.Bounds().Dx(), src.Bounds().Dy()
	n := float64(tw * th)
	best := MatchResult{Score: -1}
	for oy := 0; oy <= sh-th; oy++ {
		for ox := 0; ox <= sw-tw; ox++ {
			var sum float64
			for y := 0; y < th; y++ {
				for x := 0; x < tw; x++ {
					sum += float64(src.GrayAt(ox+x, oy+y).Y)
				}
			}
			score := 1 - math.Abs(sum/n-tplMean)/255
			if score > best.Score {
				best = MatchResult{Score: score, Offset: image.Pt(ox, oy)}
			}
		}
	}
	if best.Score < 0 {
		return MatchResult{}
	}
	return best
}
