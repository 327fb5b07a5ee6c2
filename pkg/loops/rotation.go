// Package loops recognizes cycles that an external bound check has certified
// as terminating. A cycle matches a bounded loop when one is a rotation of the
// other; reflections never match.
package loops

import (
	"github.com/l3aro/go-trace-query/pkg/graph"
)

// IsRotation reports whether pattern is a cyclic shift of candidate.
//
// The candidate is treated as doubled; the first occurrence of pattern[0] in
// it fixes the alignment and the next len(pattern) elements must equal
// pattern. Vertices on a simple cycle are distinct, so the first occurrence is
// the only one that can align.
func IsRotation(candidate, pattern []graph.Vertex) bool {
	n := len(candidate)
	if n != len(pattern) {
		return false
	}
	if n == 0 {
		return true
	}

	offset := -1
	for i := 0; i < 2*n; i++ {
		if candidate[i%n] == pattern[0] {
			offset = i
			break
		}
	}
	if offset < 0 {
		return false
	}
	if 2*n-offset < n {
		return false
	}

	for j := 0; j < n; j++ {
		if candidate[(offset+j)%n] != pattern[j] {
			return false
		}
	}
	return true
}
