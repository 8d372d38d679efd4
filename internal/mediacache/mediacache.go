// Package mediacache manages the shared scratch directory that holds
// downloaded inputs and produced outputs for every user.
package mediacache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/chat"
	"github.com/google/uuid"
)

type Role string

const (
	RoleSource Role = "src"
	RoleTarget Role = "tgt"
	RoleOutput Role = "out"
)

// EnsureSecureDir creates dir with 0700 and refuses symlinks, foreign owners
// and permissions that cannot be tightened.
func EnsureSecureDir(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return "", fmt.Errorf("empty cache dir")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return "", err
	}
	fi, err := os.Lstat(abs)
	if err != nil {
		return "", err
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return "", fmt.Errorf("refusing symlink cache dir: %s", abs)
	}
	if !fi.IsDir() {
		return "", fmt.Errorf("cache dir is not a directory: %s", abs)
	}
	if st, ok := fi.Sys().(*syscall.Stat_t); ok && st != nil {
		if uid := uint32(os.Getuid()); st.Uid != uid {
			return "", fmt.Errorf("cache dir not owned by current user (uid=%d, owner=%d): %s", uid, st.Uid, abs)
		}
	}
	if perm := fi.Mode().Perm(); perm != 0o700 {
		if err := os.Chmod(abs, 0o700); err != nil {
			return "", fmt.Errorf("cache dir has insecure perms (%#o) and chmod failed: %w", perm, err)
		}
	}
	return abs, nil
}

// ScopedPath returns a fresh path in dir namespaced by time and user so
// concurrent users never collide.
func ScopedPath(dir string, userID string, role Role, ext string) string {
	ext = strings.TrimSpace(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name := strings.Join([]string{
		strconv.FormatInt(time.Now().UnixNano(), 10),
		sanitizeComponent(userID),
		string(role),
		uuid.NewString()[:8],
	}, "_")
	return filepath.Join(dir, name+ext)
}

func sanitizeComponent(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
		if b.Len() >= 40 {
			break
		}
	}
	if b.Len() == 0 {
		return "anon"
	}
	return b.String()
}

// ExtForMedia picks a file extension for persisted media.
func ExtForMedia(m chat.Media) string {
	if ext := strings.ToLower(filepath.Ext(strings.TrimSpace(m.FileName))); ext != "" && len(ext) <= 6 {
		return ext
	}
	switch strings.ToLower(strings.TrimSpace(m.MimeType)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/quicktime":
		return ".mov"
	case "video/webm":
		return ".webm"
	}
	switch m.Kind {
	case chat.MediaSticker:
		return ".webp"
	case chat.MediaVideo, chat.MediaAnimation:
		return ".mp4"
	default:
		return ".jpg"
	}
}

// Remove deletes paths, ignoring empty entries and files already gone. It
// returns the first real failure.
func Remove(paths ...string) error {
	var firstErr error
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type cacheEntry struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// Cleanup garbage-collects dir: files older than maxAge go first, then the
// oldest files until maxFiles and maxTotalBytes hold. Zero limits are off.
// Files for which pinned returns true are never removed and do not count
// against the limits.
func Cleanup(dir string, maxAge time.Duration, maxFiles int, maxTotalBytes int64, pinned func(path string) bool) (int, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return 0, fmt.Errorf("missing dir")
	}
	if maxAge <= 0 && maxFiles <= 0 && maxTotalBytes <= 0 {
		return 0, nil
	}
	now := time.Now()
	removed := 0
	var kept []cacheEntry
	total := int64(0)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&os.ModeSymlink != 0 {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if pinned != nil && pinned(path) {
			return nil
		}
		if maxAge > 0 && now.Sub(info.ModTime()) > maxAge {
			if os.Remove(path) == nil {
				removed++
			}
			return nil
		}
		kept = append(kept, cacheEntry{Path: path, ModTime: info.ModTime(), Size: info.Size()})
		total += info.Size()
		return nil
	})
	if walkErr != nil && !os.IsNotExist(walkErr) {
		return removed, walkErr
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].ModTime.Before(kept[j].ModTime) })
	over := func() bool {
		return (maxFiles > 0 && len(kept) > maxFiles) || (maxTotalBytes > 0 && total > maxTotalBytes)
	}
	for over() && len(kept) > 0 {
		old := kept[0]
		kept = kept[1:]
		total -= old.Size
		if os.Remove(old.Path) == nil {
			removed++
		}
	}
	return removed, nil
}
