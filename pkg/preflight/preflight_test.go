package preflight

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func stubTool(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", name, err)
	}
}

func TestCheck_AllPresent(t *testing.T) {
	binDir := t.TempDir()
	stubTool(t, binDir, "qemu-system-x86_64")
	stubTool(t, binDir, "qemu-img")
	stubTool(t, binDir, "genisoimage")
	t.Setenv("PATH", binDir)

	if err := NewChecker().Check(); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
}

func TestCheck_MissingRequired(t *testing.T) {
	binDir := t.TempDir()
	stubTool(t, binDir, "qemu-img")
	stubTool(t, binDir, "cloud-localds")
	t.Setenv("PATH", binDir)

	err := NewChecker().Check()
	if !errors.Is(err, ErrDependencyMissing) {
		t.Fatalf("Check() error = %v, want ErrDependencyMissing", err)
	}
	if got := err.Error(); !strings.Contains(got, "qemu-system-x86_64") {
		t.Errorf("error %q does not name the missing tool", got)
	}
}

func TestCheck_OneOfSatisfiedByAnyMember(t *testing.T) {
	for _, tool := range []string{"cloud-localds", "genisoimage", "mkisofs"} {
		binDir := t.TempDir()
		stubTool(t, binDir, "qemu-system-x86_64")
		stubTool(t, binDir, "qemu-img")
		stubTool(t, binDir, tool)
		t.Setenv("PATH", binDir)

		if err := NewChecker().Check(); err != nil {
			t.Errorf("Check() with %s error = %v", tool, err)
		}
	}
}

func TestCheck_ReportsAllMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	err := NewChecker().Check()
	if err == nil {
		t.Fatal("Check() should fail with empty PATH")
	}
	for _, want := range []string{"qemu-system-x86_64", "qemu-img", "cloud-localds"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err.Error(), want)
		}
	}
}
