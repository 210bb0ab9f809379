package security

import "context"

// PathPolicy binds a workspace root plus allow/deny lists into a reusable
// validator for tool call sites. The workspace (if set) is implicitly
// allowed; additional allowed paths extend it (e.g. a skills directory),
// and denied paths always win.
type PathPolicy struct {
	Workspace    string
	AllowedPaths []string
	DeniedPaths  []string
}

// Validate resolves path against the policy's boundaries. ctx is accepted
// for symmetry with other call sites and future cancellation-aware
// resolution (e.g. network filesystems); it is not currently consulted.
func (p *PathPolicy) Validate(ctx context.Context, path string) PathResult {
	allowed := p.AllowedPaths
	if p.Workspace != "" {
		allowed = append([]string{p.Workspace}, allowed...)
	}
	return ValidatePath(path, allowed, p.DeniedPaths)
}

// ValidateResolved re-checks an already-walked filesystem path against a
// single canonical root boundary, used by recursive walkers (grep/find) so
// a symlink encountered mid-walk can never lead outside the root even if
// the root itself was validated against a broader allow list.
func (p *PathPolicy) ValidateResolved(path, root string) PathResult {
	canon, err := canonicalize(path)
	if err != nil {
		return PathResult{Allowed: false, Reason: "cannot resolve: " + err.Error()}
	}
	if !isPathInside(canon, root) {
		return PathResult{Allowed: false, ResolvedPath: canon, Reason: "path escapes walk root via symlink"}
	}
	for _, d := range p.DeniedPaths {
		dCanon, err := canonicalize(d)
		if err != nil {
			continue
		}
		if isPathInside(canon, dCanon) {
			return PathResult{Allowed: false, ResolvedPath: canon, Reason: "path is within denied boundary"}
		}
	}
	return PathResult{Allowed: true, ResolvedPath: canon}
}
