package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitDirWritesLogFile(t *testing.T) {
	dir := t.TempDir()
	if err := InitDir(dir); err != nil {
		t.Fatalf("InitDir: %v", err)
	}
	Info("page loaded", "page", 2, "count", 20)
	Close()

	matches, err := filepath.Glob(filepath.Join(dir, "feedview-*.log"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one log file, got %v (err %v)", matches, err)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{"feedview started", "page loaded", "page=2", "feedview shutting down"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestHelpersAreNilSafe(t *testing.T) {
	Close()
	Info("x")
	Debug("x")
	Warn("x")
	Error("x")
	if WithPrefix("loader") != nil {
		t.Error("WithPrefix before Init should be nil")
	}
}
