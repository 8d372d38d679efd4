package pathutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandHomePath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	if got := ExpandHomePath("~/x/y"); got != filepath.Join(home, "x", "y") {
		t.Fatalf("ExpandHomePath(~/x/y) = %q", got)
	}
	if got := ExpandHomePath("~"); got != home {
		t.Fatalf("ExpandHomePath(~) = %q, want %q", got, home)
	}
	if got := ExpandHomePath(" /abs "); got != "/abs" {
		t.Fatalf("ExpandHomePath(/abs) = %q", got)
	}
	if got := ExpandHomePath("~other/x"); got != "~other/x" {
		t.Fatalf("ExpandHomePath(~other/x) = %q", got)
	}
}

func TestResolveStateChildDir(t *testing.T) {
	if got := ResolveStateChildDir("/state", "", "registry"); got != "/state/registry" {
		t.Fatalf("fallback = %q", got)
	}
	if got := ResolveStateChildDir("/state", "users", "registry"); got != "/state/users" {
		t.Fatalf("relative = %q", got)
	}
	if got := ResolveStateChildDir("/state", "/var/lib/users", "registry"); got != "/var/lib/users" {
		t.Fatalf("absolute = %q", got)
	}
	if got := ResolveStateFile("/state/", "users.json"); got != "/state/users.json" {
		t.Fatalf("ResolveStateFile = %q", got)
	}
}

func TestNormalizeFileCacheDirPath(t *testing.T) {
	if got := NormalizeFileCacheDirPath("/tmp/cache/"); got != "/tmp/cache" {
		t.Fatalf("NormalizeFileCacheDirPath = %q", got)
	}
	if got := NormalizeFileCacheDirPath("  "); got != "" {
		t.Fatalf("empty = %q", got)
	}
}
