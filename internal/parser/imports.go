package parser

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/example/openapi-extract/internal/spec"
)

var (
	importBlockRE  = regexp.MustCompile(`import\s+\(\s*((?:[^()]*\n)+)\s*\)`)
	importLineRE   = regexp.MustCompile(`\s*(?:([a-zA-Z0-9_]+)\s+)?"([^"]+)"`)
	importSingleRE = regexp.MustCompile(`import\s+(?:([a-zA-Z0-9_]+)\s+)?"([^"]+)"`)
	moduleLineRE   = regexp.MustCompile(`module\s+(\S+)`)
)

// ExtractImports pulls the import bindings out of a source file, covering
// both the block form and single-line imports. An unaliased import binds
// under the last segment of its path. Dir is left empty; resolution is the
// locator's job.
func ExtractImports(src string) []spec.ImportBinding {
	var bindings []spec.ImportBinding

	appendBinding := func(alias, path string) {
		if alias == "" {
			alias = path
			if i := strings.LastIndex(path, "/"); i >= 0 {
				alias = path[i+1:]
			}
		}
		bindings = append(bindings, spec.ImportBinding{Alias: alias, Path: path})
	}

	if m := importBlockRE.FindStringSubmatch(src); m != nil {
		for _, line := range strings.Split(m[1], "\n") {
			if lm := importLineRE.FindStringSubmatch(line); lm != nil {
				appendBinding(lm[1], lm[2])
			}
		}
		return bindings
	}

	for _, m := range importSingleRE.FindAllStringSubmatch(src, -1) {
		appendBinding(m[1], m[2])
	}
	return bindings
}

// ImportLocator resolves an import path to the directory holding the
// package's sources. ok is false when the path cannot be located; callers
// treat that as a soft miss, never an error.
type ImportLocator interface {
	Locate(importPath string) (dir string, ok bool)
}

// ModuleResolver locates imported packages on the local filesystem. It
// anchors on the nearest go.mod above its starting directory and falls back
// to GOROOT, the module cache and the legacy GOPATH tree.
type ModuleResolver struct {
	moduleName string
	moduleDir  string
	log        *slog.Logger
}

var _ ImportLocator = (*ModuleResolver)(nil)

// NewModuleResolver builds a resolver rooted at startDir. A missing go.mod
// is not an error; module-relative resolution is simply unavailable then.
func NewModuleResolver(startDir string, logger *slog.Logger) *ModuleResolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &ModuleResolver{log: logger}

	dir, err := filepath.Abs(startDir)
	if err != nil {
		dir = startDir
	}
	for {
		data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
		if err == nil {
			if m := moduleLineRE.FindStringSubmatch(string(data)); m != nil {
				r.moduleName = m[1]
			}
			r.moduleDir = dir
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return r
}

// Locate resolves one import path, in order: module-relative under the
// go.mod directory, GOROOT/src, the GOPATH module cache (lexicographically
// last version wins), and finally the legacy GOPATH/src tree.
func (r *ModuleResolver) Locate(importPath string) (string, bool) {
	if r.moduleName != "" && strings.HasPrefix(importPath, r.moduleName) {
		rel := strings.TrimPrefix(strings.TrimPrefix(importPath, r.moduleName), "/")
		dir := filepath.Join(r.moduleDir, filepath.FromSlash(rel))
		if dirExists(dir) {
			return dir, true
		}
	}

	// Single-segment paths are standard library packages with no source
	// directory worth scanning.
	if !strings.Contains(importPath, "/") {
		return "", false
	}

	if goroot := os.Getenv("GOROOT"); goroot != "" {
		dir := filepath.Join(goroot, "src", filepath.FromSlash(importPath))
		if dirExists(dir) {
			return dir, true
		}
	}

	gopath := os.Getenv("GOPATH")
	if gopath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			gopath = filepath.Join(home, "go")
		}
	}
	if gopath != "" {
		pattern := filepath.Join(gopath, "pkg", "mod", filepath.FromSlash(importPath)+"@*")
		if matches, err := filepath.Glob(pattern); err == nil && len(matches) > 0 {
			sort.Strings(matches)
			return matches[len(matches)-1], true
		}

		dir := filepath.Join(gopath, "src", filepath.FromSlash(importPath))
		if dirExists(dir) {
			return dir, true
		}
	}

	r.log.Debug("unresolved import path", "path", importPath)
	return "", false
}

// Bind fills the Dir of every binding the resolver can locate. Unresolved
// bindings keep an empty Dir.
func (r *ModuleResolver) Bind(bindings []spec.ImportBinding) []spec.ImportBinding {
	for i := range bindings {
		if dir, ok := r.Locate(bindings[i].Path); ok {
			bindings[i].Dir = dir
		}
	}
	return bindings
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
