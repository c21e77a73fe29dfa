// ABOUTME: Built-in text verification: crop, binarize at 127, OCR, whitespace-insensitive substring match.
// ABOUTME: The OCR engine is pluggable; the default shells out to tesseract.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/virtualpytest/navigator/controller"
	"github.com/virtualpytest/navigator/navigation"
	"github.com/virtualpytest/navigator/vision"
)

// Text verification commands.
const (
	CmdWaitForTextToAppear    = "waitForTextToAppear"
	CmdWaitForTextToDisappear = "waitForTextToDisappear"
)

// OCREngine extracts text from an image file.
type OCREngine interface {
	// ExtractText returns the recognized text and a detected language hint
	// (empty when the engine cannot tell).
	ExtractText(ctx context.Context, imagePath, language string) (text, detectedLanguage string, err error)
}

// TesseractOCR shells out to the tesseract binary.
type TesseractOCR struct{}

func (TesseractOCR) ExtractText(ctx context.Context, imagePath, language string) (string, string, error) {
	args := []string{imagePath, "stdout"}
	if language != "" {
		args = append(args, "-l", language)
	}
	cmd := exec.CommandContext(ctx, "tesseract", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", "", fmt.Errorf("tesseract: %v: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), language, nil
}

type textVerifier struct {
	h   *DeviceHandle
	ocr OCREngine
}

func newTextVerifier(h *DeviceHandle) *textVerifier {
	ocr := h.opts.OCR
	if ocr == nil {
		ocr = TesseractOCR{}
	}
	return &textVerifier{h: h, ocr: ocr}
}

func (v *textVerifier) Type() navigation.VerificationType { return navigation.VerifyText }

func (v *textVerifier) AvailableVerifications() []string {
	return []string{CmdWaitForTextToAppear, CmdWaitForTextToDisappear}
}

func (v *textVerifier) ExecuteVerification(ctx context.Context, cfg controller.VerificationConfig) controller.VerificationResult {
	target := stringParam(cfg.Params, "text")
	if target == "" {
		return controller.VerificationResult{Error: "text verification requires params.text"}
	}
	language := stringParam(cfg.Params, "language")

	sourcePath := cfg.SourceImagePath
	if sourcePath == "" {
		sourcePath = v.h.CaptureScreenshot()
	}
	if sourcePath == "" {
		return controller.VerificationResult{Error: "no source image available"}
	}

	img, err := vision.LoadImage(sourcePath)
	if err != nil {
		return controller.VerificationResult{Error: fmt.Sprintf("load source: %v", err)}
	}
	if area, ok := areaParam(cfg.Params); ok {
		img = vision.Crop(img, area)
	}
	processed := vision.BinaryThreshold(vision.Greyscale(img), vision.BinaryCutoff)

	processedPath := filepath.Join(v.h.Device.CaptureRoot, verificationResultsDir,
		fmt.Sprintf("text_source_%d.png", v.h.Actions.now().UnixNano()))
	if err := vision.SaveImage(processedPath, processed); err != nil {
		return controller.VerificationResult{Error: fmt.Sprintf("write processed image: %v", err)}
	}

	extracted, detectedLang, err := v.ocr.ExtractText(ctx, processedPath, language)
	if err != nil {
		return controller.VerificationResult{Error: fmt.Sprintf("ocr: %v", err)}
	}
	if detectedLang == "" {
		detectedLang = "en"
	}

	found := TextMatches(extracted, target)
	success := found
	if cfg.Command == CmdWaitForTextToDisappear {
		success = !found
	}

	return controller.VerificationResult{
		Success:          success,
		Message:          fmt.Sprintf("searched %q, found=%t", target, found),
		SourceURL:        processedPath,
		ExtractedText:    strings.TrimSpace(extracted),
		SearchedText:     target,
		DetectedLanguage: detectedLang,
	}
}

// TextMatches reports whether the target occurs in the OCR output, comparing
// case-insensitively with all whitespace runs collapsed to single spaces.
func TextMatches(extracted, target string) bool {
	norm := func(s string) string {
		return strings.ToLower(strings.Join(strings.Fields(s), " "))
	}
	t := norm(target)
	if t == "" {
		return false
	}
	return strings.Contains(norm(extracted), t)
}
