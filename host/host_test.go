// ABOUTME: Tests for the host runtime wiring and .env loading.
// ABOUTME: Bootstrap runs against a temp PROJECT_ROOT with a generated host config.
package host

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/virtualpytest/navigator/objectstore"
	"github.com/virtualpytest/navigator/script"
)

func writeHostConfig(t *testing.T, root string) {
	t.Helper()
	captureRoot := filepath.Join(root, "captures", "device-1")
	yaml := `host_name: host-1
devices:
  - id: device-1
    name: living-room
    model: android_mobile
    capture_root: ` + captureRoot + "\n"
	if err := os.MkdirAll(filepath.Join(root, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "config", "host.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeHostConfig(t, root)
	t.Setenv("PROJECT_ROOT", root)
	t.Setenv("CLOUDFLARE_R2_ENDPOINT", "")
	t.Setenv("TEAM_ID", "")
	return root
}

type fakeStore struct {
	uploaded []objectstore.FileUpload
}

func (f *fakeStore) UploadFiles(ctx context.Context, files []objectstore.FileUpload) objectstore.UploadReport {
	report := objectstore.UploadReport{UploadedFiles: make(map[string]string)}
	for _, file := range files {
		f.uploaded = append(f.uploaded, file)
		report.UploadedFiles[file.LocalPath] = f.PublicURL(file.RemotePath)
	}
	return report
}

func (f *fakeStore) DownloadFile(ctx context.Context, remotePath, localPath string) error {
	return nil
}

func (f *fakeStore) PublicURL(remotePath string) string {
	return "https://cdn.test/" + remotePath
}

func TestBootstrapAndRunLifecycle(t *testing.T) {
	testRoot(t)

	rt, err := Bootstrap(context.Background(), script.Args{UserinterfaceName: "horizon"}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()

	if rt.HostName != "host-1" || rt.Device.ID != "device-1" {
		t.Errorf("wrong wiring: host=%q device=%q", rt.HostName, rt.Device.ID)
	}
	if rt.TeamID != "default" {
		t.Errorf("missing TEAM_ID must default, got %q", rt.TeamID)
	}
	if rt.Store != nil {
		t.Error("store must stay nil without R2 configuration")
	}

	id, sc, err := rt.StartRun(context.Background(), "goto", "navigation", script.Args{UserinterfaceName: "horizon"})
	if err != nil {
		t.Fatal(err)
	}
	if id == "" || sc == nil {
		t.Fatal("run identity missing")
	}
	if nav := rt.Handle.Nav.Snapshot(); nav.ScriptID != id || nav.ScriptName != "goto" {
		t.Errorf("script identity not attached: %+v", nav)
	}

	out := rt.FinishRun(context.Background(), id, sc, true, "")
	if !out.Success {
		t.Errorf("outcome must carry the verdict: %+v", out)
	}
}

func TestBootstrapWithObjectStore(t *testing.T) {
	testRoot(t)
	t.Setenv("CLOUDFLARE_R2_ENDPOINT", "https://account.r2.cloudflarestorage.com")
	t.Setenv("CLOUDFLARE_R2_ACCESS_KEY_ID", "key")
	t.Setenv("CLOUDFLARE_R2_SECRET_ACCESS_KEY", "secret")
	t.Setenv("CLOUDFLARE_R2_PUBLIC_URL", "https://cdn.example.com")

	rt, err := Bootstrap(context.Background(), script.Args{UserinterfaceName: "horizon"}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()
	if rt.Store == nil {
		t.Error("configured R2 environment must yield a store")
	}
}

func TestFinishRunUploadsStdoutLog(t *testing.T) {
	testRoot(t)

	rt, err := Bootstrap(context.Background(), script.Args{UserinterfaceName: "horizon"}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()
	store := &fakeStore{}
	rt.Store = store

	orig := os.Stdout
	id, sc, err := rt.StartRun(context.Background(), "goto", "navigation", script.Args{UserinterfaceName: "horizon"})
	if err != nil {
		t.Fatal(err)
	}
	fmt.Println("navigating to live")

	out := rt.FinishRun(context.Background(), id, sc, true, "")
	if os.Stdout != orig {
		t.Fatal("FinishRun must restore the original stdout")
	}
	if want := "https://cdn.test/script-logs/device-1/goto_" + id + ".log"; out.LogsURL != want {
		t.Errorf("logs url = %q, want %q", out.LogsURL, want)
	}
	if len(store.uploaded) != 1 {
		t.Fatalf("expected one log upload, got %d", len(store.uploaded))
	}
	if !strings.HasPrefix(store.uploaded[0].RemotePath, "script-logs/device-1/") {
		t.Errorf("log key = %q", store.uploaded[0].RemotePath)
	}
	data, err := os.ReadFile(store.uploaded[0].LocalPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "navigating to live") {
		t.Errorf("uploaded log missing the run's output: %q", data)
	}
}

func TestBootstrapHostMismatch(t *testing.T) {
	testRoot(t)
	if _, err := Bootstrap(context.Background(), script.Args{Host: "other-host"}, Options{}); err == nil {
		t.Error("mismatched --host must error")
	}
}

func TestBootstrapUnknownDevice(t *testing.T) {
	testRoot(t)
	if _, err := Bootstrap(context.Background(), script.Args{Device: "device-9"}, Options{}); err == nil {
		t.Error("unknown --device must error")
	}
}

func TestScriptNameRedirection(t *testing.T) {
	t.Setenv("AI_SCRIPT_NAME", "")
	if got := ScriptName("goto"); got != "goto" {
		t.Errorf("default name: got %q", got)
	}
	t.Setenv("AI_SCRIPT_NAME", "ai_testcase_42")
	if got := ScriptName("goto"); got != "ai_testcase_42" {
		t.Errorf("redirected name: got %q", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := `# comment
FOO=bar
export QUOTED="a=b"
SINGLE='x'
EXISTING=overwritten
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EXISTING", "original")
	t.Setenv("FOO", "")
	os.Unsetenv("FOO")
	t.Setenv("QUOTED", "")
	os.Unsetenv("QUOTED")
	t.Setenv("SINGLE", "")
	os.Unsetenv("SINGLE")

	LoadDotEnv(path)

	if got := os.Getenv("FOO"); got != "bar" {
		t.Errorf("FOO=%q", got)
	}
	if got := os.Getenv("QUOTED"); got != "a=b" {
		t.Errorf("QUOTED=%q", got)
	}
	if got := os.Getenv("SINGLE"); got != "x" {
		t.Errorf("SINGLE=%q", got)
	}
	if got := os.Getenv("EXISTING"); got != "original" {
		t.Errorf("existing variables must not be clobbered, got %q", got)
	}

	// Missing files are a no-op.
	LoadDotEnv(filepath.Join(t.TempDir(), "absent.env"))
}
