// ABOUTME: Batch screenshot upload at script end: local paths become public URLs in place.
// ABOUTME: Positional slots are preserved; failed uploads keep their local path; uploaded cold files are deleted.
package script

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/virtualpytest/navigator/objectstore"
)

// UploadScreenshots pushes every local screenshot to the object store under
// script-screenshots/<device_id>/<basename> and rewrites the stored list:
// uploaded paths become public URLs and their local cold copies are removed,
// failed paths stay local, empty slots stay empty.
func (sc *ScriptContext) UploadScreenshots(ctx context.Context, store objectstore.Client) objectstore.UploadReport {
	local := sc.Screenshots()

	var files []objectstore.FileUpload
	for _, p := range local {
		if p == "" || isRemote(p) {
			continue
		}
		files = append(files, objectstore.FileUpload{
			LocalPath:  p,
			RemotePath: objectstore.ScriptScreenshotKey(sc.DeviceID, p),
		})
	}
	if len(files) == 0 {
		return objectstore.UploadReport{UploadedFiles: map[string]string{}}
	}

	report := store.UploadFiles(ctx, files)

	sc.mu.Lock()
	for i, p := range sc.screenshots {
		url, ok := report.UploadedFiles[p]
		if !ok {
			continue
		}
		sc.screenshots[i] = url
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			sc.logger.Warn("could not remove uploaded screenshot",
				zap.String("path", p), zap.Error(err))
		}
	}
	sc.mu.Unlock()

	if len(report.FailedUploads) > 0 {
		sc.logger.Warn("some screenshots failed to upload",
			zap.Int("failed", len(report.FailedUploads)),
			zap.Int("uploaded", len(report.UploadedFiles)))
	}
	return report
}

func isRemote(p string) bool {
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}
