package mediacache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/chat"
)

func TestEnsureSecureDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "cache")
	got, err := EnsureSecureDir(dir)
	if err != nil {
		t.Fatalf("EnsureSecureDir() error = %v", err)
	}
	fi, err := os.Stat(got)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if fi.Mode().Perm() != 0o700 {
		t.Fatalf("perm = %#o, want 0700", fi.Mode().Perm())
	}
	if _, err := EnsureSecureDir(" "); err == nil {
		t.Fatalf("EnsureSecureDir(empty) should fail")
	}
}

func TestEnsureSecureDirRejectsSymlink(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	real := filepath.Join(root, "real")
	if err := os.Mkdir(real, 0o700); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}
	link := filepath.Join(root, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlink unsupported: %v", err)
	}
	if _, err := EnsureSecureDir(link); err == nil {
		t.Fatalf("EnsureSecureDir(symlink) should fail")
	}
}

func TestScopedPathIsNamespaced(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := ScopedPath(dir, "user/1", RoleSource, "jpg")
	b := ScopedPath(dir, "user/1", RoleSource, ".jpg")
	c := ScopedPath(dir, "user-2", RoleSource, ".jpg")
	if a == b || a == c {
		t.Fatalf("scoped paths collide: %s %s %s", a, b, c)
	}
	if filepath.Dir(a) != dir {
		t.Fatalf("path escaped dir: %s", a)
	}
	base := filepath.Base(a)
	if !strings.Contains(base, "_user-1_src_") || !strings.HasSuffix(base, ".jpg") {
		t.Fatalf("unexpected name: %s", base)
	}
	if !strings.Contains(filepath.Base(ScopedPath(dir, "", RoleOutput, "")), "_anon_out_") {
		t.Fatalf("empty user should map to anon")
	}
}

func TestExtForMedia(t *testing.T) {
	cases := []struct {
		m    chat.Media
		want string
	}{
		{chat.Media{Kind: chat.MediaPhoto}, ".jpg"},
		{chat.Media{Kind: chat.MediaSticker}, ".webp"},
		{chat.Media{Kind: chat.MediaVideo}, ".mp4"},
		{chat.Media{Kind: chat.MediaDocument, MimeType: "image/png"}, ".png"},
		{chat.Media{Kind: chat.MediaDocument, FileName: "clip.MOV"}, ".mov"},
	}
	for _, tc := range cases {
		if got := ExtForMedia(tc.m); got != tc.want {
			t.Fatalf("ExtForMedia(%#v) = %q, want %q", tc.m, got, tc.want)
		}
	}
}

func TestRemoveIgnoresMissing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := filepath.Join(dir, "a.jpg")
	_ = os.WriteFile(p, []byte("x"), 0o600)
	if err := Remove(p, "", filepath.Join(dir, "missing.jpg")); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatalf("file should be removed, stat err = %v", err)
	}
}

func TestCleanup(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	old := filepath.Join(dir, "old.jpg")
	mid := filepath.Join(dir, "mid.jpg")
	fresh := filepath.Join(dir, "fresh.jpg")
	for _, p := range []string{old, mid, fresh} {
		if err := os.WriteFile(p, []byte("1234"), 0o600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
	now := time.Now()
	_ = os.Chtimes(old, now.Add(-48*time.Hour), now.Add(-48*time.Hour))
	_ = os.Chtimes(mid, now.Add(-2*time.Hour), now.Add(-2*time.Hour))

	removed, err := Cleanup(dir, 24*time.Hour, 1, 0, nil)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("freshest file should survive: %v", err)
	}
	if n, _ := Cleanup(dir, 0, 0, 0, nil); n != 0 {
		t.Fatalf("no limits should be a no-op")
	}
}

func TestCleanupKeepsPinnedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	stale := filepath.Join(dir, "stale.jpg")
	out := filepath.Join(dir, "out.jpg")
	for _, p := range []string{src, stale, out} {
		if err := os.WriteFile(p, []byte("1234"), 0o600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
	now := time.Now()
	_ = os.Chtimes(src, now.Add(-72*time.Hour), now.Add(-72*time.Hour))
	_ = os.Chtimes(stale, now.Add(-48*time.Hour), now.Add(-48*time.Hour))
	pinned := func(p string) bool { return p == src }

	removed, err := Cleanup(dir, 24*time.Hour, 0, 0, pinned)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("pinned file past max age should survive: %v", err)
	}

	removed, err = Cleanup(dir, 0, 1, 0, pinned)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if removed != 0 {
		t.Fatalf("removed = %d, want 0 with one unpinned file under a limit of one", removed)
	}
	if _, err := Cleanup(dir, 0, 0, 1, pinned); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("pinned file should survive byte pressure: %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("unpinned file should be evicted under byte pressure, stat err = %v", err)
	}
}
