package rules

import (
	"path"
	"path/filepath"
	"strings"
)

// matchPath reports whether name matches a slash-separated glob. "**"
// spans any number of segments. Patterns without a slash match the base
// name; other patterns may match at any directory boundary of name, so
// "src/**/*.go" matches both "src/a/b.go" and "/home/u/proj/src/a/b.go".
func matchPath(pattern, name string) bool {
	pattern = normalize(pattern)
	name = normalize(name)
	if pattern == "" || name == "" {
		return false
	}

	segs := strings.Split(name, "/")
	if !strings.Contains(pattern, "/") {
		ok, _ := path.Match(pattern, segs[len(segs)-1])
		return ok
	}

	pat := strings.Split(pattern, "/")
	for start := range segs {
		if matchSegments(pat, segs[start:]) {
			return true
		}
	}
	return false
}

// matchDir reports whether dir or one of its ancestors matches pattern.
func matchDir(pattern, dir string) bool {
	pattern = strings.TrimSuffix(normalize(pattern), "/")
	if pattern == "" {
		return false
	}
	return matchPath(pattern+"/**", dir)
}

func matchSegments(pat, segs []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			rest := pat[1:]
			for i := 0; i <= len(segs); i++ {
				if matchSegments(rest, segs[i:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 {
			return false
		}
		ok, err := path.Match(pat[0], segs[0])
		if err != nil || !ok {
			return false
		}
		pat, segs = pat[1:], segs[1:]
	}
	return len(segs) == 0
}

// validGlob reports whether every segment of pattern is well formed.
func validGlob(pattern string) bool {
	for _, seg := range strings.Split(normalize(pattern), "/") {
		if seg == "**" {
			continue
		}
		if _, err := path.Match(seg, ""); err != nil {
			return false
		}
	}
	return true
}

func normalize(p string) string {
	p = filepath.ToSlash(strings.TrimSpace(p))
	p = strings.TrimPrefix(p, "./")
	return strings.Trim(p, "/")
}
