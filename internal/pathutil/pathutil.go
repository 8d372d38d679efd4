package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

const defaultStateDir = "~/.deepfakebot"

// ExpandHomePath replaces a leading "~" with the current user's home dir.
func ExpandHomePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, `~\`) {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return p
	}
	if p == "~" {
		return home
	}
	return filepath.Join(home, p[2:])
}

func ResolveStateDir(stateDir string) string {
	stateDir = strings.TrimSpace(stateDir)
	if stateDir == "" {
		stateDir = defaultStateDir
	}
	return filepath.Clean(ExpandHomePath(stateDir))
}

// ResolveStateChildDir resolves dirName under the state dir. Absolute or
// home-relative names are used as-is.
func ResolveStateChildDir(stateDir string, dirName string, fallback string) string {
	dirName = strings.TrimSpace(dirName)
	if dirName == "" {
		dirName = fallback
	}
	expanded := ExpandHomePath(dirName)
	if filepath.IsAbs(expanded) {
		return filepath.Clean(expanded)
	}
	return filepath.Join(ResolveStateDir(stateDir), expanded)
}

func ResolveStateFile(stateDir string, name string) string {
	return filepath.Join(ResolveStateDir(stateDir), strings.TrimSpace(name))
}

// NormalizeFileCacheDirPath expands "~" and drops a trailing separator.
func NormalizeFileCacheDirPath(p string) string {
	p = ExpandHomePath(p)
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}
