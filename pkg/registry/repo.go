package registry

import "strings"

// RepoFromCwd derives a short repository identifier from a working directory.
// Paths under a ".worktrees" segment resolve to the parent segment, so
// worktree checkouts share the main checkout's identifier. Otherwise the last
// path component is used, falling back to "unknown" for empty paths.
func RepoFromCwd(cwd string) string {
	trimmed := strings.TrimRight(cwd, "/")
	parts := strings.Split(trimmed, "/")

	for i, part := range parts {
		if part == ".worktrees" && i > 0 && parts[i-1] != "" {
			return parts[i-1]
		}
	}

	last := parts[len(parts)-1]
	if last == "" {
		return "unknown"
	}
	return last
}
