package scanner

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		full := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
	return dir
}

func paths(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func TestScan(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"main.c":             "int main(void) {}",
		"util/util.c":        "void u(void) {}",
		"util/util.h":        "void u(void);",
		"README.md":          "# readme",
		".hidden/x.c":        "",
		"build/gen.c":        "",
		"graphs/sample.yaml": "vertices: []",
	})

	files, err := New(DefaultOptions()).Scan(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"graphs/sample.yaml", "main.c", "util/util.c", "util/util.h"}, paths(files))
	assert.Equal(t, C, files[1].Kind)
	assert.Equal(t, Header, files[3].Kind)
	assert.Equal(t, filepath.Join(dir, "main.c"), files[1].FullPath)
	assert.EqualValues(t, len("int main(void) {}"), files[1].Size)
}

func TestScanIgnoreFile(t *testing.T) {
	dir := writeTree(t, map[string]string{
		".tcqignore":             "gen/\n*_test.c\n# comment\n!keep_test.c\n",
		"main.c":                 "",
		"main_test.c":            "",
		"keep_test.c":            "",
		"gen/out.c":              "",
		"src/a.c":                "",
		"src/.tcqignore":         "/b.c\n",
		"src/b.c":                "",
		"src/deep/b.c":           "",
		"third_party/x/y/z.c":    "",
		"third_party/.tcqignore": "**/y\n",
	})

	files, err := New(DefaultOptions()).Scan(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep_test.c", "main.c", "src/a.c", "src/deep/b.c"}, paths(files))
}

func TestRule(t *testing.T) {
	tests := []struct {
		pattern, base, path string
		dir                 bool
		want                bool
	}{
		{"*.o", "", "a/b/c.o", false, true},
		{"*.o", "", "a/b/c.c", false, false},
		{"out/", "", "a/out", true, true},
		{"out/", "", "a/out", false, false},
		{"/out", "", "a/out", true, false},
		{"/out", "", "out", true, true},
		{"a/**/z.c", "", "a/z.c", false, true},
		{"a/**/z.c", "", "a/b/c/z.c", false, true},
		{"x.c", "sub", "sub/x.c", false, true},
		{"x.c", "sub", "other/x.c", false, false},
		{"f[0-9].c", "", "f7.c", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, parseRule(tt.pattern, tt.base).match(tt.path, tt.dir))
		})
	}
}

func TestResolve(t *testing.T) {
	cdir := writeTree(t, map[string]string{"a.c": "", "b/b.c": "", "b/b.h": ""})
	godir := writeTree(t, map[string]string{"go.mod": "module m\n", "main.go": "package main"})
	bare := writeTree(t, map[string]string{"main.go": "package main"})
	empty := writeTree(t, map[string]string{"notes.txt": ""})
	s := New(DefaultOptions())

	kind, inputs, err := s.Resolve([]string{cdir})
	require.NoError(t, err)
	assert.Equal(t, C, kind)
	assert.Equal(t, []string{filepath.Join(cdir, "a.c"), filepath.Join(cdir, "b", "b.c")}, inputs)

	kind, inputs, err = s.Resolve([]string{godir})
	require.NoError(t, err)
	assert.Equal(t, Go, kind)
	assert.Equal(t, []string{godir + "/..."}, inputs)

	kind, _, err = s.Resolve([]string{bare})
	require.NoError(t, err)
	assert.Equal(t, Go, kind)

	kind, inputs, err = s.Resolve([]string{filepath.Join(cdir, "a.c"), filepath.Join(cdir, "b", "b.h")})
	require.NoError(t, err)
	assert.Equal(t, C, kind)
	assert.Len(t, inputs, 1)

	kind, _, err = s.Resolve([]string{"./pkg/..."})
	require.NoError(t, err)
	assert.Equal(t, Go, kind)

	_, _, err = s.Resolve([]string{cdir, godir})
	assert.True(t, errors.Is(err, ErrMixedInputs), "got %v", err)

	_, _, err = s.Resolve([]string{empty})
	assert.True(t, errors.Is(err, ErrNoInputs), "got %v", err)

	_, _, err = s.Resolve([]string{filepath.Join(empty, "notes.txt")})
	assert.True(t, errors.Is(err, ErrNoInputs), "got %v", err)

	_, _, err = s.Resolve([]string{filepath.Join(empty, "missing.c")})
	assert.Error(t, err)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, C, KindOf("x/Y.C"))
	assert.Equal(t, Graph, KindOf("g.yml"))
	assert.Equal(t, Unknown, KindOf("Makefile"))
	assert.Equal(t, "unknown", Unknown.String())
	assert.Equal(t, "go", Go.String())
}
