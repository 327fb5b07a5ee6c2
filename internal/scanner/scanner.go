// Package scanner resolves command line inputs into the source files a
// frontend should load. Directories are walked honoring .tcqignore files
// with gitignore-style patterns.
package scanner

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoInputs is returned when the inputs name no file of a supported kind.
var ErrNoInputs = errors.New("no analyzable inputs")

// ErrMixedInputs is returned when the inputs mix languages.
var ErrMixedInputs = errors.New("inputs mix several kinds")

// File is a discovered source file.
type File struct {
	Path     string // Relative to the scan root, slash separated
	FullPath string
	Kind     Kind
	Size     int64
}

// Options configures the walk.
type Options struct {
	SkipHidden     bool     // Skip entries starting with "."
	Excludes       []string // Directory names never entered
	IgnoreFileName string
}

// DefaultOptions returns options suitable for C and Go source trees.
func DefaultOptions() Options {
	return Options{
		SkipHidden:     true,
		IgnoreFileName: ".tcqignore",
		Excludes: []string{
			".git",
			".hg",
			".svn",
			"build",
			"vendor",
			"testdata",
			"node_modules",
		},
	}
}

// Scanner walks source trees.
type Scanner struct {
	opts Options
}

// New creates a Scanner.
func New(opts Options) *Scanner {
	return &Scanner{opts: opts}
}

// Scan walks root and returns every file with a known kind, sorted by path.
func (s *Scanner) Scan(root string) ([]File, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}

	var rules []rule
	var files []File
	err = filepath.WalkDir(absRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == absRoot {
				return err
			}
			return nil
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." {
				if s.skipName(d.Name()) || ignored(rules, rel, true) {
					return filepath.SkipDir
				}
			}
			nested, err := s.loadRules(path, rel)
			if err != nil {
				return err
			}
			rules = append(rules, nested...)
			return nil
		}

		if s.opts.SkipHidden && strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if !d.Type().IsRegular() || ignored(rules, rel, false) {
			return nil
		}
		kind := KindOf(path)
		if kind == Unknown {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, File{Path: rel, FullPath: path, Kind: kind, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (s *Scanner) skipName(name string) bool {
	if s.opts.SkipHidden && strings.HasPrefix(name, ".") {
		return true
	}
	for _, ex := range s.opts.Excludes {
		if strings.EqualFold(name, ex) {
			return true
		}
	}
	return false
}

// loadRules reads the ignore file in dir. Patterns are anchored at base,
// the directory's path relative to the scan root.
func (s *Scanner) loadRules(dir, base string) ([]rule, error) {
	if s.opts.IgnoreFileName == "" {
		return nil, nil
	}
	f, err := os.Open(filepath.Join(dir, s.opts.IgnoreFileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	if base == "." {
		base = ""
	}
	var rules []rule
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rules = append(rules, parseRule(line, base))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return rules, nil
}

// Resolve turns command line arguments into one kind of input. Files are
// taken as given; directories holding a go.mod or only Go files resolve to
// Go package patterns, other directories to the C files beneath them.
func (s *Scanner) Resolve(args []string) (Kind, []string, error) {
	if len(args) == 0 {
		args = []string{"."}
	}

	kind := Unknown
	var inputs []string
	add := func(k Kind, items ...string) error {
		if kind != Unknown && k != kind {
			return fmt.Errorf("%w: %s and %s", ErrMixedInputs, kind, k)
		}
		kind = k
		inputs = append(inputs, items...)
		return nil
	}

	for _, arg := range args {
		if strings.HasSuffix(arg, "/...") {
			if err := add(Go, arg); err != nil {
				return Unknown, nil, err
			}
			continue
		}
		info, err := os.Stat(arg)
		if err != nil {
			return Unknown, nil, fmt.Errorf("reading input: %w", err)
		}
		if !info.IsDir() {
			k := KindOf(arg)
			if k == Unknown {
				return Unknown, nil, fmt.Errorf("%w: %s", ErrNoInputs, arg)
			}
			if k == Header {
				continue
			}
			if err := add(k, arg); err != nil {
				return Unknown, nil, err
			}
			continue
		}

		k, items, err := s.resolveDir(arg)
		if err != nil {
			return Unknown, nil, err
		}
		if err := add(k, items...); err != nil {
			return Unknown, nil, err
		}
	}

	if kind == Unknown || len(inputs) == 0 {
		return Unknown, nil, ErrNoInputs
	}
	return kind, inputs, nil
}

func (s *Scanner) resolveDir(dir string) (Kind, []string, error) {
	if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
		return Go, []string{dir + "/..."}, nil
	}
	files, err := s.Scan(dir)
	if err != nil {
		return Unknown, nil, err
	}

	var c []string
	hasGo := false
	for _, f := range files {
		switch f.Kind {
		case C:
			c = append(c, f.FullPath)
		case Go:
			hasGo = true
		}
	}
	switch {
	case len(c) > 0:
		return C, c, nil
	case hasGo:
		return Go, []string{dir + "/..."}, nil
	}
	return Unknown, nil, fmt.Errorf("%w: %s", ErrNoInputs, dir)
}
