package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_FullConfig(t *testing.T) {
	yaml := `zig: /opt/zig/zig
args: [build, -Doptimize=ReleaseSafe]
chdir: ./project
format: json
timeout: 2m

render:
  source: true
  trace: false
  log: true
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertEqual(t, "zig", cfg.Zig, "/opt/zig/zig")
	assertEqual(t, "chdir", cfg.Chdir, "./project")
	assertEqual(t, "format", cfg.Format, "json")

	if len(cfg.Args) != 2 || cfg.Args[0] != "build" || cfg.Args[1] != "-Doptimize=ReleaseSafe" {
		t.Errorf("args = %v", cfg.Args)
	}
	if cfg.Timeout.Duration != 2*time.Minute {
		t.Errorf("timeout = %v, want 2m", cfg.Timeout.Duration)
	}

	if cfg.Render.Source == nil || !*cfg.Render.Source {
		t.Error("render.source should be true")
	}
	if cfg.Render.Trace == nil || *cfg.Render.Trace {
		t.Error("render.trace should be explicit false")
	}
	if cfg.Render.Log == nil || !*cfg.Render.Log {
		t.Error("render.log should be true")
	}
}

func TestLoad_EmptyConfig(t *testing.T) {
	path := writeTemp(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertEqual(t, "zig", cfg.Zig, "")
	if cfg.Render.Source != nil {
		t.Error("render.source should stay unset, not default to false")
	}
	if cfg.Timeout.Duration != 0 {
		t.Errorf("timeout = %v, want 0", cfg.Timeout.Duration)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("ZIG_BIN", "/usr/local/bin/zig")

	yaml := `zig: ${ZIG_BIN}
chdir: ${MISSING_DIR_9876:-.}
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertEqual(t, "zig", cfg.Zig, "/usr/local/bin/zig")
	assertEqual(t, "chdir", cfg.Chdir, ".")
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeTemp(t, "timeout: not-a-duration\n")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "invalid") {
		t.Errorf("error = %v", err)
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTemp(t, "zig: [unclosed\n")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

// writeTemp writes content to a temp file and returns the path.
func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "zigserve.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}
