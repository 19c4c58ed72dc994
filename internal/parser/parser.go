package parser

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/example/openapi-extract/internal/spec"
)

// Parser is the annotation resolution engine. It is stateless across runs;
// all accumulation happens inside a single call.
type Parser struct {
	log *slog.Logger
}

// New returns a Parser logging through the given logger, falling back to
// slog.Default when nil.
func New(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{log: logger}
}

// ParseOperations scans every .go file under the given directories,
// resolves the annotated operations and the closed set of schemas they
// reference. moduleRoot anchors import resolution; when empty, the first
// directory is used. Malformed operations are skipped with a warning; only
// I/O failures walking a requested directory are fatal.
func (p *Parser) ParseOperations(dirs, excludeDirs []string, moduleRoot string) ([]spec.ParsedOperation, map[string]*spec.Schema, error) {
	files, err := p.collectGoFiles(dirs, excludeDirs)
	if err != nil {
		return nil, nil, err
	}

	if moduleRoot == "" && len(dirs) > 0 {
		moduleRoot = dirs[0]
	}
	locator := NewModuleResolver(moduleRoot, p.log)

	examples := p.extractStructExamples(files, locator)

	seeds := make(map[string]struct{})
	for _, name := range envelopeSeedNames() {
		seeds[name] = struct{}{}
	}

	var operations []spec.ParsedOperation
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			p.log.Warn("skipping unreadable file", "file", file, "error", err)
			continue
		}

		var run []Annotation
		for _, line := range strings.Split(string(data), "\n") {
			if ann, ok := ParseAnnotation(line); ok {
				run = append(run, ann)
				continue
			}
			if !strings.HasPrefix(strings.TrimSpace(line), "func ") || len(run) == 0 {
				continue
			}
			if hasRouter(run) {
				parsed, err := p.buildOperation(run, examples)
				if err != nil {
					p.log.Warn("skipping operation", "file", file, "error", err)
				} else {
					operationSchemaRefs(parsed.Operation, seeds)
					operations = append(operations, parsed)
				}
			}
			run = run[:0]
		}
	}

	schemas := p.resolveSchemas(files, seeds)

	p.log.Info("parsing finished",
		"operations", len(operations),
		"schemas", len(schemas),
		"files", len(files))
	return operations, schemas, nil
}

func hasRouter(run []Annotation) bool {
	for _, ann := range run {
		if ann.Kind == KindRouter || ann.Kind == KindDeprecatedRouter {
			return true
		}
	}
	return false
}

// collectGoFiles gathers every .go file under the directories, honoring the
// exclude list both as path prefixes and as path component names. The
// result is deduplicated and sorted lexicographically so downstream
// last-writer semantics are deterministic.
func (p *Parser) collectGoFiles(dirs, excludeDirs []string) ([]string, error) {
	excluded := make([]string, 0, len(excludeDirs))
	for _, e := range excludeDirs {
		if abs, err := filepath.Abs(e); err == nil {
			excluded = append(excluded, abs)
		} else {
			excluded = append(excluded, e)
		}
	}

	seen := make(map[string]struct{})
	var files []string
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != dir && isExcluded(path, excluded) {
					return fs.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(path, ".go") || isExcluded(path, excluded) {
				return nil
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				abs = path
			}
			if _, dup := seen[abs]; !dup {
				seen[abs] = struct{}{}
				files = append(files, abs)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk directory %s: %w", dir, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

func isExcluded(path string, excluded []string) bool {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	components := strings.Split(path, string(filepath.Separator))
	for _, ex := range excluded {
		if strings.HasPrefix(path, ex+string(filepath.Separator)) || path == ex {
			return true
		}
		base := filepath.Base(ex)
		for _, comp := range components {
			if comp == base {
				return true
			}
		}
	}
	return false
}
