// ABOUTME: Object-store client interface and upload types for screenshots, reports, and reference images.
// ABOUTME: The R2 implementation lives in r2.go; tests use an in-memory fake.
package objectstore

import "context"

// FileUpload describes one local file to push to the store.
type FileUpload struct {
	LocalPath   string
	RemotePath  string
	ContentType string
}

// UploadReport is the outcome of a batch upload. UploadedFiles maps local
// path to public URL; FailedUploads lists the local paths that did not make
// it.
type UploadReport struct {
	UploadedFiles map[string]string
	FailedUploads []string
}

// Client is the object-store surface the engine needs.
type Client interface {
	UploadFiles(ctx context.Context, files []FileUpload) UploadReport
	DownloadFile(ctx context.Context, remotePath, localPath string) error
	PublicURL(remotePath string) string
}
