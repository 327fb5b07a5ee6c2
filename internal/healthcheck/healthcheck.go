// Package healthcheck runs the environment checks behind tcq doctor.
package healthcheck

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"

	"github.com/l3aro/go-trace-query/internal/config"
)

// Status of a single check.
type Status string

const (
	StatusOK   Status = "ok"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// CheckStatus is the outcome of one check.
type CheckStatus struct {
	Name   string
	Status Status
	Detail string
}

// HealthCheckResult contains the full health check output for display.
type HealthCheckResult struct {
	EffectivePath  string
	EffectiveScope string // "global", "project" or "" for defaults
	Checks         []CheckStatus
}

// OK reports whether no check failed. Warnings do not count.
func (r *HealthCheckResult) OK() bool {
	for _, check := range r.Checks {
		if check.Status == StatusFail {
			return false
		}
	}
	return true
}

var lookPath = exec.LookPath

// sample is a minimal program the C grammar must parse without errors.
const sample = "int main(void) { besc_tracepoint(\"x\"); return 0; }\n"

// Check runs every check against cfg. effectivePath is the config file in
// use, empty when only defaults and environment apply.
func Check(ctx context.Context, cfg *config.Config, effectivePath string) (*HealthCheckResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	return &HealthCheckResult{
		EffectivePath:  effectivePath,
		EffectiveScope: scopeFromPath(effectivePath),
		Checks: []CheckStatus{
			checkConfig(cfg),
			checkCacheDir(cfg),
			checkGrammar(ctx),
			checkGoToolchain(ctx),
		},
	}, nil
}

// scopeFromPath determines "global" or "project" scope from a config file path.
func scopeFromPath(path string) string {
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if global, err := filepath.Abs(config.GlobalConfigFilePath()); err == nil && path == global {
		return "global"
	}
	return "project"
}

func checkConfig(cfg *config.Config) CheckStatus {
	s := CheckStatus{Name: "config"}
	if err := cfg.Validate(); err != nil {
		s.Status = StatusFail
		s.Detail = err.Error()
		return s
	}
	s.Status = StatusOK
	s.Detail = fmt.Sprintf("tracepoints %s (C), %s (Go)", cfg.TracepointFunc, cfg.GoTracepointFunc)
	return s
}

// checkCacheDir creates the cache directory if needed and writes a scratch file.
func checkCacheDir(cfg *config.Config) CheckStatus {
	s := CheckStatus{Name: "cache", Detail: cfg.CacheDir}
	if !cfg.CacheEnabled {
		s.Status = StatusOK
		s.Detail = "disabled"
		return s
	}
	if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
		s.Status = StatusFail
		s.Detail = fmt.Sprintf("cannot create %s: %v", cfg.CacheDir, err)
		return s
	}
	f, err := os.CreateTemp(cfg.CacheDir, ".doctor-*")
	if err != nil {
		s.Status = StatusFail
		s.Detail = fmt.Sprintf("%s is not writable: %v", cfg.CacheDir, err)
		return s
	}
	f.Close()
	os.Remove(f.Name())
	s.Status = StatusOK
	return s
}

func checkGrammar(ctx context.Context) CheckStatus {
	s := CheckStatus{Name: "c grammar"}
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(c.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, []byte(sample))
	if err != nil {
		s.Status = StatusFail
		s.Detail = err.Error()
		return s
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() || root.NamedChildCount() != 1 || root.NamedChild(0).Type() != "function_definition" {
		s.Status = StatusFail
		s.Detail = "sample program did not parse cleanly"
		return s
	}
	s.Status = StatusOK
	s.Detail = "tree-sitter c"
	return s
}

// checkGoToolchain looks for the go command, which loading Go packages needs.
// Its absence only limits tcq to C sources and graph files.
func checkGoToolchain(ctx context.Context) CheckStatus {
	s := CheckStatus{Name: "go toolchain"}
	path, err := lookPath("go")
	if err != nil {
		s.Status = StatusWarn
		s.Detail = "go not found on PATH; Go packages cannot be analyzed"
		return s
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, "env", "GOVERSION").Output()
	if err != nil {
		s.Status = StatusWarn
		s.Detail = fmt.Sprintf("%s: %v", path, err)
		return s
	}
	s.Status = StatusOK
	s.Detail = strings.TrimSpace(string(out))
	return s
}
