// ABOUTME: Built-in image verification: reference resolution with a per-model cache, NCC matching, artifact rendering.
// ABOUTME: waitForImageToDisappear is the logical negation of waitForImageToAppear with inverted confidence.
package executor

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/virtualpytest/navigator/controller"
	"github.com/virtualpytest/navigator/navigation"
	"github.com/virtualpytest/navigator/objectstore"
	"github.com/virtualpytest/navigator/vision"
)

// Image verification commands.
const (
	CmdWaitForImageToAppear    = "waitForImageToAppear"
	CmdWaitForImageToDisappear = "waitForImageToDisappear"
)

// DefaultMatchThreshold is the NCC score at or above which an image
// verification passes, unless the params override it.
const DefaultMatchThreshold = 0.9

// verificationResultsDir is where artifact images land under the capture root.
const verificationResultsDir = "captures/verification_results"

// imageVerifier implements the image verification family against the local
// vision pipeline and the object store's reference images.
type imageVerifier struct {
	h *DeviceHandle
}

func newImageVerifier(h *DeviceHandle) *imageVerifier {
	return &imageVerifier{h: h}
}

func (v *imageVerifier) Type() navigation.VerificationType { return navigation.VerifyImage }

func (v *imageVerifier) AvailableVerifications() []string {
	return []string{CmdWaitForImageToAppear, CmdWaitForImageToDisappear}
}

func (v *imageVerifier) ExecuteVerification(ctx context.Context, cfg controller.VerificationConfig) controller.VerificationResult {
	imageName := stringParam(cfg.Params, "image_path")
	if imageName == "" {
		return controller.VerificationResult{Error: "image verification requires params.image_path"}
	}
	threshold := floatParam(cfg.Params, "threshold", DefaultMatchThreshold)
	filter := vision.Filter(stringParam(cfg.Params, "image_filter"))
	if filter == "" {
		filter = vision.FilterNone
	}
	area, hasArea := areaParam(cfg.Params)

	refPath, err := v.resolveReference(ctx, imageName, filter)
	if err != nil {
		return controller.VerificationResult{Error: err.Error()}
	}
	reference, err := vision.LoadImage(refPath)
	if err != nil {
		return controller.VerificationResult{Error: fmt.Sprintf("load reference: %v", err)}
	}
	// Pre-filtered references are already processed; only filter in memory
	// when we fell back to the plain one.
	if filter != vision.FilterNone && !isPrefiltered(refPath, filter) {
		reference = vision.ApplyFilter(reference, filter)
	}

	sources := v.candidateSources(cfg.SourceImagePath)
	if len(sources) == 0 {
		return controller.VerificationResult{Error: "no source image available"}
	}

	bestScore := -1.0
	bestPath := ""
	var bestImage image.Image
	var bestOffset image.Point
	for _, srcPath := range sources {
		src, err := vision.LoadImage(srcPath)
		if err != nil {
			v.h.logger.Warn("source image unreadable", zap.String("path", srcPath), zap.Error(err))
			continue
		}
		if hasArea {
			src = vision.Crop(src, area)
		}
		src = vision.ApplyFilter(src, filter)

		match := vision.MatchTemplate(src, reference)
		if match.Score > bestScore {
			bestScore = match.Score
			bestPath = srcPath
			bestImage = src
			bestOffset = match.Offset
		}
	}
	if bestImage == nil {
		return controller.VerificationResult{Error: "all source images unreadable"}
	}

	appeared := bestScore >= threshold
	success := appeared
	confidence := bestScore
	if cfg.Command == CmdWaitForImageToDisappear {
		success = !appeared
		confidence = clamp01(1 - bestScore)
	}

	srcOut, refOut, overlayOut := v.writeArtifacts(bestImage, reference, bestOffset)

	msg := fmt.Sprintf("best score %.3f against threshold %.3f", bestScore, threshold)
	return controller.VerificationResult{
		Success:      success,
		Message:      msg,
		Confidence:   confidence,
		SourceURL:    srcOut,
		ReferenceURL: refOut,
		OverlayURL:   overlayOut,
		Details: map[string]any{
			"best_score":  bestScore,
			"threshold":   threshold,
			"best_source": bestPath,
			"filter":      string(filter),
		},
	}
}

// resolveReference finds the reference image locally, fetching from the
// object store into the per-model cache on a miss. When a filter is active a
// pre-filtered variant is preferred.
func (v *imageVerifier) resolveReference(ctx context.Context, name string, filter vision.Filter) (string, error) {
	model := v.h.Device.Model
	cacheDir := filepath.Join(v.h.opts.ReferenceCacheDir, model)

	candidates := []struct {
		local string
		key   string
	}{}
	if filter != vision.FilterNone {
		filtered := filteredName(name, string(filter))
		candidates = append(candidates, struct{ local, key string }{
			filepath.Join(cacheDir, filtered),
			objectstore.ReferenceImageKey(model, name, string(filter)),
		})
	}
	candidates = append(candidates, struct{ local, key string }{
		filepath.Join(cacheDir, filepath.Base(name)),
		objectstore.ReferenceImageKey(model, name, ""),
	})

	for _, c := range candidates {
		if _, err := os.Stat(c.local); err == nil {
			return c.local, nil
		}
	}
	if v.h.opts.Store == nil {
		return "", fmt.Errorf("reference image %q not cached and no object store configured", name)
	}
	var lastErr error
	for _, c := range candidates {
		if err := v.h.opts.Store.DownloadFile(ctx, c.key, c.local); err != nil {
			lastErr = err
			continue
		}
		return c.local, nil
	}
	return "", fmt.Errorf("reference image %q unavailable: %v", name, lastErr)
}

// candidateSources returns the source images to score: the provided path, or
// a freshly captured screenshot.
func (v *imageVerifier) candidateSources(sourcePath string) []string {
	if sourcePath != "" {
		return []string{sourcePath}
	}
	if shot := v.h.CaptureScreenshot(); shot != "" {
		return []string{shot}
	}
	return nil
}

// writeArtifacts renders the three verification artifacts and returns their
// local paths. Failures log and return empty strings.
func (v *imageVerifier) writeArtifacts(source, reference image.Image, offset image.Point) (srcOut, refOut, overlayOut string) {
	dir := filepath.Join(v.h.Device.CaptureRoot, verificationResultsDir)
	stamp := fmt.Sprintf("%d", v.h.Actions.now().UnixNano())

	srcOut = filepath.Join(dir, "source_"+stamp+".png")
	refOut = filepath.Join(dir, "reference_"+stamp+".png")
	overlayOut = filepath.Join(dir, "overlay_"+stamp+".png")

	overlay := vision.Overlay(source, reference, offset)
	for _, artifact := range []struct {
		path string
		img  image.Image
	}{{srcOut, source}, {refOut, reference}, {overlayOut, overlay}} {
		if err := vision.SaveImage(artifact.path, artifact.img); err != nil {
			v.h.logger.Warn("artifact write failed", zap.String("path", artifact.path), zap.Error(err))
		}
	}
	return srcOut, refOut, overlayOut
}

func filteredName(name, filter string) string {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "_" + filter + ext
}

func isPrefiltered(path string, filter vision.Filter) bool {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return strings.HasSuffix(strings.TrimSuffix(base, ext), "_"+string(filter))
}

func floatParam(params map[string]any, key string, def float64) float64 {
	switch n := navigation.FlattenParam(params[key]).(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return def
	}
}

// areaParam reads an {x, y, width, height} object into a rectangle.
func areaParam(params map[string]any) (image.Rectangle, bool) {
	m, ok := navigation.FlattenParam(params["area"]).(map[string]any)
	if !ok {
		return image.Rectangle{}, false
	}
	x := int(floatParam(m, "x", 0))
	y := int(floatParam(m, "y", 0))
	w := int(floatParam(m, "width", 0))
	h := int(floatParam(m, "height", 0))
	if w <= 0 || h <= 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(x, y, x+w, y+h), true
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
