// ABOUTME: Tests for object-store key layouts and config loading.
// ABOUTME: The S3 round trip itself needs a live endpoint and is exercised in staging.
package objectstore

import (
	"testing"
)

func TestReferenceImageKeyVariants(t *testing.T) {
	cases := []struct {
		name, filter, want string
	}{
		{"home.jpg", "", "reference-images/android_mobile/home.jpg"},
		{"home.jpg", "none", "reference-images/android_mobile/home.jpg"},
		{"home.jpg", "greyscale", "reference-images/android_mobile/home_greyscale.jpg"},
		{"home.jpg", "binary", "reference-images/android_mobile/home_binary.jpg"},
		{"home", "greyscale", "reference-images/android_mobile/home_greyscale.jpg"},
		{"home.png", "binary", "reference-images/android_mobile/home_binary.png"},
	}
	for _, c := range cases {
		got := ReferenceImageKey("android_mobile", c.name, c.filter)
		if got != c.want {
			t.Errorf("ReferenceImageKey(%q, %q) = %q, want %q", c.name, c.filter, got, c.want)
		}
	}
}

func TestScriptScreenshotKeyUsesBasename(t *testing.T) {
	got := ScriptScreenshotKey("device-1", "/var/captures/cold/step_003.jpg")
	if got != "script-screenshots/device-1/step_003.jpg" {
		t.Errorf("unexpected key %q", got)
	}
}

func TestScriptReportKey(t *testing.T) {
	got := ScriptReportKey("android_tv", "fullzap", "20260824", "143000")
	want := "script-reports/android_tv/fullzap_20260824_143000/report.html"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestContentTypeFor(t *testing.T) {
	if ct := ContentTypeFor("a.JPG"); ct != "image/jpeg" {
		t.Errorf("jpg: %s", ct)
	}
	if ct := ContentTypeFor("report.html"); ct != "text/html" {
		t.Errorf("html: %s", ct)
	}
	if ct := ContentTypeFor("weird.bin"); ct != "application/octet-stream" {
		t.Errorf("default: %s", ct)
	}
}

func TestR2ConfigFromEnv(t *testing.T) {
	t.Setenv("CLOUDFLARE_R2_ENDPOINT", "https://acct.r2.cloudflarestorage.com")
	t.Setenv("CLOUDFLARE_R2_ACCESS_KEY_ID", "ak")
	t.Setenv("CLOUDFLARE_R2_SECRET_ACCESS_KEY", "sk")
	t.Setenv("CLOUDFLARE_R2_PUBLIC_URL", "https://cdn.example.com/")
	t.Setenv("CLOUDFLARE_R2_BUCKET", "")

	cfg, err := R2ConfigFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Bucket != "virtualpytest" {
		t.Errorf("bucket must default, got %q", cfg.Bucket)
	}

	t.Setenv("CLOUDFLARE_R2_ENDPOINT", "")
	if _, err := R2ConfigFromEnv(); err == nil {
		t.Fatal("missing endpoint must error")
	}
}
