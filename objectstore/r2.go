// ABOUTME: Cloudflare R2 client over the S3 API, configured from CLOUDFLARE_R2_* environment variables.
// ABOUTME: Batch uploads never fail the batch: per-file errors land in the report's failed list.
package objectstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// R2Config holds the connection settings for an R2 bucket.
type R2Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicURL       string
}

// R2ConfigFromEnv reads the standard CLOUDFLARE_R2_* variables.
func R2ConfigFromEnv() (R2Config, error) {
	cfg := R2Config{
		Endpoint:        os.Getenv("CLOUDFLARE_R2_ENDPOINT"),
		AccessKeyID:     os.Getenv("CLOUDFLARE_R2_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("CLOUDFLARE_R2_SECRET_ACCESS_KEY"),
		Bucket:          os.Getenv("CLOUDFLARE_R2_BUCKET"),
		PublicURL:       os.Getenv("CLOUDFLARE_R2_PUBLIC_URL"),
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "virtualpytest"
	}
	if cfg.Endpoint == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return R2Config{}, fmt.Errorf("object store not configured: CLOUDFLARE_R2_ENDPOINT, CLOUDFLARE_R2_ACCESS_KEY_ID, and CLOUDFLARE_R2_SECRET_ACCESS_KEY are required")
	}
	return cfg, nil
}

// R2Client implements Client against an R2 bucket.
type R2Client struct {
	s3     *s3.Client
	bucket string
	public string
	logger *zap.Logger
}

// NewR2Client builds an S3 client pointed at the R2 endpoint.
func NewR2Client(ctx context.Context, cfg R2Config, logger *zap.Logger) (*R2Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})
	return &R2Client{
		s3:     client,
		bucket: cfg.Bucket,
		public: strings.TrimRight(cfg.PublicURL, "/"),
		logger: logger,
	}, nil
}

// UploadFiles pushes each file and reports per-file outcomes. A file that
// cannot be opened or put counts as failed; the batch itself never errors.
func (c *R2Client) UploadFiles(ctx context.Context, files []FileUpload) UploadReport {
	report := UploadReport{UploadedFiles: make(map[string]string)}
	for _, f := range files {
		if err := c.putFile(ctx, f); err != nil {
			c.logger.Warn("upload failed",
				zap.String("local_path", f.LocalPath),
				zap.String("remote_path", f.RemotePath),
				zap.Error(err))
			report.FailedUploads = append(report.FailedUploads, f.LocalPath)
			continue
		}
		report.UploadedFiles[f.LocalPath] = c.PublicURL(f.RemotePath)
	}
	return report
}

func (c *R2Client) putFile(ctx context.Context, f FileUpload) error {
	file, err := os.Open(f.LocalPath)
	if err != nil {
		return err
	}
	defer file.Close()

	contentType := f.ContentType
	if contentType == "" {
		contentType = ContentTypeFor(f.LocalPath)
	}
	_, err = c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(f.RemotePath),
		Body:        file,
		ContentType: aws.String(contentType),
	})
	return err
}

// DownloadFile fetches an object to a local path, creating parent directories.
func (c *R2Client) DownloadFile(ctx context.Context, remotePath, localPath string) error {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(remotePath),
	})
	if err != nil {
		return fmt.Errorf("get %s: %w", remotePath, err)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return err
	}
	dst, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer dst.Close()
	if _, err := dst.ReadFrom(out.Body); err != nil {
		os.Remove(localPath)
		return fmt.Errorf("write %s: %w", localPath, err)
	}
	return nil
}

// PublicURL joins the configured public base with the object key.
func (c *R2Client) PublicURL(remotePath string) string {
	return c.public + "/" + strings.TrimLeft(remotePath, "/")
}
