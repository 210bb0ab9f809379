// Package security implements C1: path validation with symlink/hardlink
// defenses, shell-command blocking, and subprocess environment filtering.
package security

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
)

// PathResult is the outcome of ValidatePath.
type PathResult struct {
	Allowed      bool
	ResolvedPath string
	Reason       string
}

// ValidatePath canonicalizes target (expanding ~, resolving symlinks, and
// resolving through the nearest existing ancestor when the target doesn't
// yet exist) and checks it against allowed/denied boundary lists, which are
// canonicalized the same way. Deny wins over allow.
func ValidatePath(target string, allowed, denied []string) PathResult {
	expanded, err := expandHome(target)
	if err != nil {
		return PathResult{Allowed: false, Reason: "cannot resolve home directory: " + err.Error()}
	}

	resolved, err := canonicalize(expanded)
	if err != nil {
		return PathResult{Allowed: false, Reason: "cannot resolve path: " + err.Error()}
	}

	for _, d := range denied {
		dExp, err := expandHome(d)
		if err != nil {
			continue
		}
		dCanon, err := canonicalize(dExp)
		if err != nil {
			continue
		}
		if isPathInside(resolved, dCanon) {
			return PathResult{Allowed: false, ResolvedPath: resolved, Reason: "path is within denied boundary: " + dCanon}
		}
	}

	if len(allowed) == 0 {
		return PathResult{Allowed: true, ResolvedPath: resolved}
	}

	for _, a := range allowed {
		aExp, err := expandHome(a)
		if err != nil {
			continue
		}
		aCanon, err := canonicalize(aExp)
		if err != nil {
			continue
		}
		if isPathInside(resolved, aCanon) {
			if reason := mutabilityConcern(resolved, aCanon); reason != "" {
				return PathResult{Allowed: false, ResolvedPath: resolved, Reason: reason}
			}
			return PathResult{Allowed: true, ResolvedPath: resolved}
		}
	}

	return PathResult{Allowed: false, ResolvedPath: resolved, Reason: "path is outside all allowed boundaries"}
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	if p == "~" {
		return u.HomeDir, nil
	}
	return filepath.Join(u.HomeDir, p[2:]), nil
}

// canonicalize follows all symlinks in an existing path; for a path that
// does not (yet) exist, it canonicalizes the deepest existing ancestor and
// re-appends the unresolved tail, so writes to brand-new files are still
// checked against the real (symlink-resolved) parent directory.
func canonicalize(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return resolveThroughExistingAncestors(abs)
}

func resolveThroughExistingAncestors(abs string) (string, error) {
	dir := abs
	var tail []string
	for {
		if _, err := os.Lstat(dir); err == nil {
			resolvedDir, err := filepath.EvalSymlinks(dir)
			if err != nil {
				return "", err
			}
			for i := len(tail) - 1; i >= 0; i-- {
				resolvedDir = filepath.Join(resolvedDir, tail[i])
			}
			return resolvedDir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no existing ancestor for %q", abs)
		}
		tail = append(tail, filepath.Base(dir))
		dir = parent
	}
}

// isPathInside reports whether child is equal to or a descendant of parent,
// using path-separator-aware prefix matching (so "/tmp/abc" is not treated
// as inside "/tmp/ab").
func isPathInside(child, parent string) bool {
	if child == parent {
		return true
	}
	sep := string(filepath.Separator)
	if !strings.HasSuffix(parent, sep) {
		parent += sep
	}
	return strings.HasPrefix(child, parent)
}

// mutabilityConcern returns a non-empty reason if any ancestor directory of
// resolved, up to (but not including) the allowed boundary, is both a
// symlink and writable by the current user — a TOCTOU window where the
// boundary check above could be invalidated between check and use.
func mutabilityConcern(resolved, boundary string) string {
	if runtime.GOOS == "windows" {
		return ""
	}
	dir := filepath.Dir(resolved)
	for dir != boundary && len(dir) > len(boundary) {
		info, err := os.Lstat(dir)
		if err != nil {
			return ""
		}
		if info.Mode()&os.ModeSymlink != 0 {
			if err := syscall.Access(filepath.Dir(dir), 2 /* W_OK */); err == nil {
				return "path traverses a writable symlinked directory: " + dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// CheckHardlink rejects paths with more than one hard link, which would let
// a write through an allowed path mutate content reachable from elsewhere
// on the filesystem.
func CheckHardlink(path string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return false, nil
	}
	return stat.Nlink > 1, nil
}
