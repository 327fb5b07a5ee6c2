package scanner

import (
	"path"
	"strings"
)

// rule is one gitignore-style pattern from an ignore file.
type rule struct {
	base     string // Directory holding the ignore file, "" for the root
	segs     []string
	negate   bool
	dirOnly  bool
	anchored bool // Pattern contains a slash, so it matches from base only
}

func parseRule(line, base string) rule {
	r := rule{base: base}
	if strings.HasPrefix(line, "!") {
		r.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.Contains(line, "/") {
		r.anchored = true
		line = strings.TrimPrefix(line, "/")
	}
	r.segs = strings.Split(line, "/")
	return r
}

// match reports whether rel, a slash separated path relative to the scan
// root, is selected by the rule.
func (r rule) match(rel string, isDir bool) bool {
	if r.dirOnly && !isDir {
		return false
	}
	if r.base != "" {
		if !strings.HasPrefix(rel, r.base+"/") {
			return false
		}
		rel = rel[len(r.base)+1:]
	}
	parts := strings.Split(rel, "/")
	if r.anchored {
		return matchSegs(r.segs, parts)
	}
	return matchSegs(r.segs, parts[len(parts)-1:])
}

func matchSegs(pat, parts []string) bool {
	if len(pat) == 0 {
		return len(parts) == 0
	}
	if pat[0] == "**" {
		for i := 0; i <= len(parts); i++ {
			if matchSegs(pat[1:], parts[i:]) {
				return true
			}
		}
		return false
	}
	if len(parts) == 0 {
		return false
	}
	ok, err := path.Match(pat[0], parts[0])
	if err != nil || !ok {
		return false
	}
	return matchSegs(pat[1:], parts[1:])
}

// ignored applies rules in order; the last matching rule decides.
func ignored(rules []rule, rel string, isDir bool) bool {
	out := false
	for _, r := range rules {
		if r.match(rel, isDir) {
			out = !r.negate
		}
	}
	return out
}
