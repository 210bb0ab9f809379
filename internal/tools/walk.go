package tools

import (
	"io/fs"
	"path/filepath"

	"github.com/nextlevelbuilder/agentrun/internal/security"
)

// walkBounded walks root (already validated) and calls fn for every
// regular file, refusing to follow any symlink that would resolve outside
// root's canonical boundary.
func walkBounded(policy *security.PathPolicy, root string, fn func(path string, d fs.DirEntry) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries rather than aborting the walk
		}
		if path != root {
			vr := policy.ValidateResolved(path, root)
			if !vr.Allowed {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		if d.IsDir() {
			return nil
		}
		return fn(path, d)
	})
}
