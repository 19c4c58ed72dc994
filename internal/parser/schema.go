package parser

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/example/openapi-extract/internal/spec"
)

var (
	structRE       = regexp.MustCompile(`type\s+(\w+)\s+struct\s*\{`)
	fieldRE        = regexp.MustCompile("^\\s*(\\w+)\\s+((?:\\*|\\[\\])*[\\w.]+)(?:\\s+`[^`]*`)?")
	exampleFieldRE = regexp.MustCompile("^\\s*(\\w+)\\s+\\S+\\s+`[^`]*example:\"([^\"]*)\"`")

	paramBodyModelRE = regexp.MustCompile(`@Param\s+\w+\s+body\s+([a-zA-Z0-9_.]+)`)
	responseModelRE  = regexp.MustCompile(`@(?:Success|Failure|Response)\s+\w+\s+\{object}\s+([a-zA-Z0-9_.]+)`)
	packageRE        = regexp.MustCompile(`(?m)^package\s+(\w+)`)
)

// mapGoType converts a declared field or parameter type to its schema.
// Primitives map onto JSON Schema types, slices become arrays, pointers map
// as their base type (optionality is the caller's concern), and anything
// else is treated as a reference to a declared type.
func mapGoType(t string) *spec.Schema {
	switch t {
	case "string":
		return &spec.Schema{Type: "string"}
	case "int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64", "integer":
		return &spec.Schema{Type: "integer"}
	case "float32", "float64", "number":
		return &spec.Schema{Type: "number"}
	case "bool", "boolean":
		return &spec.Schema{Type: "boolean"}
	case "file":
		return &spec.Schema{Type: "string", Format: "binary"}
	}
	switch {
	case strings.HasPrefix(t, "[]"):
		return &spec.Schema{Type: "array", Items: mapGoType(t[2:])}
	case strings.HasPrefix(t, "*"):
		return mapGoType(t[1:])
	default:
		return &spec.Schema{Ref: spec.NormalizeRef(t)}
	}
}

// collectFieldDeps records the declared type names a field type pulls in.
// Qualified names register both the bare and the qualified form.
func collectFieldDeps(t string, deps map[string]struct{}) {
	switch t {
	case "string", "int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64",
		"float32", "float64", "bool":
		return
	}
	switch {
	case strings.HasPrefix(t, "[]"):
		collectFieldDeps(t[2:], deps)
	case strings.HasPrefix(t, "*"):
		collectFieldDeps(t[1:], deps)
	case strings.Contains(t, "."):
		parts := strings.SplitN(t, ".", 2)
		deps[parts[1]] = struct{}{}
		deps[t] = struct{}{}
	default:
		deps[t] = struct{}{}
	}
}

// envelopeSchemas returns the pre-registered response wrapper shapes that
// handler annotations commonly reference without declaring locally.
func envelopeSchemas() map[string]*spec.Schema {
	wrapper := func(withData bool) *spec.Schema {
		props := map[string]*spec.Schema{
			"Status":  {Type: "string"},
			"Code":    {Type: "string"},
			"Message": {Type: "string"},
		}
		if withData {
			props["Data"] = &spec.Schema{Type: "object"}
		}
		return &spec.Schema{Type: "object", Properties: props}
	}
	return map[string]*spec.Schema{
		"response.ApiResponse":         wrapper(true),
		"response.Response":            wrapper(true),
		"response.OpenApiResponse":     wrapper(true),
		"response.OpenApiErrorNonSnap": wrapper(false),
	}
}

// envelopeSeedNames lists the envelope names seeded into every resolution
// regardless of what operations reference.
func envelopeSeedNames() []string {
	return []string{
		"response.ApiResponse",
		"response.Response",
		"response.OpenApiResponse",
		"response.OpenApiErrorNonSnap",
	}
}

// collectSchemaRefs walks a schema and records every referenced type name.
// Parameterized references like "Wrapper{data=pkg.Inner}" also contribute
// the inner type.
func collectSchemaRefs(s *spec.Schema, refs map[string]struct{}) {
	if s == nil {
		return
	}
	if s.Ref != "" {
		name := spec.RefName(spec.NormalizeRef(s.Ref))
		if name != "" {
			refs[name] = struct{}{}
			if i := strings.Index(name, "="); i >= 0 && strings.HasSuffix(name, "}") {
				inner := strings.TrimSuffix(name[i+1:], "}")
				refs[strings.TrimSpace(inner)] = struct{}{}
			}
		}
	}
	collectSchemaRefs(s.Items, refs)
	collectSchemaRefs(s.AdditionalProperties, refs)
	collectSchemaRefs(s.Not, refs)
	for _, p := range s.Properties {
		collectSchemaRefs(p, refs)
	}
	for _, c := range s.AllOf {
		collectSchemaRefs(c, refs)
	}
	for _, c := range s.AnyOf {
		collectSchemaRefs(c, refs)
	}
	for _, c := range s.OneOf {
		collectSchemaRefs(c, refs)
	}
}

// operationSchemaRefs collects every type name referenced by an operation's
// parameters, request body and responses.
func operationSchemaRefs(op *spec.Operation, refs map[string]struct{}) {
	for i := range op.Parameters {
		collectSchemaRefs(op.Parameters[i].Schema, refs)
	}
	if op.RequestBody != nil {
		for _, mt := range op.RequestBody.Content {
			collectSchemaRefs(mt.Schema, refs)
		}
	}
	for _, resp := range op.Responses {
		for _, mt := range resp.Content {
			collectSchemaRefs(mt.Schema, refs)
		}
	}
}

// frontierKeys returns the frontier entries a declared struct name
// satisfies: the bare name and every qualified entry whose dotted tail
// matches.
func frontierKeys(frontier map[string]struct{}, structName string) []string {
	var keys []string
	if _, ok := frontier[structName]; ok {
		keys = append(keys, structName)
	}
	for name := range frontier {
		if i := strings.LastIndex(name, "."); i >= 0 && name[i+1:] == structName {
			keys = append(keys, name)
		}
	}
	return keys
}

// resolveSchemas runs the fixed-point resolution: starting from the seed
// names, every pass scans all files (in their given lexicographic order)
// for matching struct declarations, converts their fields, and queues newly
// discovered type dependencies for the next pass. Names that never match
// get an empty-object placeholder. Bare-name collisions resolve to the last
// processed declaration; qualified keys keep every declaration reachable,
// with a declaration whose package name equals the qualifier taking
// precedence over tail-only matches.
func (p *Parser) resolveSchemas(files []string, seeds map[string]struct{}) map[string]*spec.Schema {
	schemas := envelopeSchemas()

	frontier := make(map[string]struct{}, len(seeds))
	for name := range seeds {
		frontier[name] = struct{}{}
	}
	processed := make(map[string]struct{})
	exact := make(map[string]struct{})

	for len(frontier) > 0 {
		discovered := make(map[string]struct{})

		for _, file := range files {
			data, err := os.ReadFile(file)
			if err != nil {
				p.log.Warn("unreadable file during schema resolution", "file", file, "error", err)
				continue
			}
			content := string(data)
			bindings := ExtractImports(content)
			pkgName := ""
			if m := packageRE.FindStringSubmatch(content); m != nil {
				pkgName = m[1]
			}
			lines := strings.Split(content, "\n")

			for i := 0; i < len(lines); i++ {
				m := structRE.FindStringSubmatch(lines[i])
				if m == nil {
					continue
				}
				name := m[1]
				keys := frontierKeys(frontier, name)
				if len(keys) == 0 {
					continue
				}
				// Mark every satisfied frontier entry, qualified forms
				// included, so the same name cannot re-enter the frontier.
				processed[name] = struct{}{}
				for _, key := range keys {
					processed[key] = struct{}{}
				}

				schema, deps, next := p.parseStructSchema(lines, i+1)
				i = next

				// A later file overwrites the bare key, so collisions
				// resolve last-file-wins.
				schemas[name] = schema
				for _, key := range keys {
					if key == name {
						continue
					}
					qualifier := key[:strings.LastIndex(key, ".")]
					if qualifier == pkgName {
						schemas[key] = schema
						exact[key] = struct{}{}
					} else if _, fixed := exact[key]; !fixed {
						schemas[key] = schema
					}
				}
				for _, b := range bindings {
					schemas[b.Alias+"."+name] = schema
				}
				for dep := range deps {
					if _, done := processed[dep]; !done && !strings.Contains(dep, "[]") {
						discovered[dep] = struct{}{}
					}
				}
			}
		}

		for name := range processed {
			delete(discovered, name)
		}
		frontier = discovered
	}

	for name := range seeds {
		if _, ok := schemas[name]; !ok {
			p.log.Debug("no declaration found, registering placeholder", "type", name)
			schemas[name] = &spec.Schema{Type: "object"}
		}
	}
	return schemas
}

// parseStructSchema converts the field lines of one struct body, starting
// at the line after the declaration, into an object schema. It returns the
// schema, the discovered type dependencies, and the index of the closing
// brace line. Pointer fields are excluded from required.
func (p *Parser) parseStructSchema(lines []string, start int) (*spec.Schema, map[string]struct{}, int) {
	schema := &spec.Schema{
		Type:       "object",
		Properties: make(map[string]*spec.Schema),
	}
	deps := make(map[string]struct{})

	j := start
	for ; j < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[j]), "}"); j++ {
		m := fieldRE.FindStringSubmatch(lines[j])
		if m == nil {
			continue
		}
		fieldName, fieldType := m[1], m[2]
		schema.Properties[fieldName] = mapGoType(fieldType)
		collectFieldDeps(fieldType, deps)
		if !strings.HasPrefix(fieldType, "*") {
			schema.Required = append(schema.Required, fieldName)
		}
	}
	sort.Strings(schema.Required)
	return schema, deps, j
}

// parseExampleValue interprets an example tag value: JSON first, then the
// value re-quoted as a JSON string, then the raw string.
func parseExampleValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	if err := json.Unmarshal([]byte(`"`+raw+`"`), &v); err == nil {
		return v
	}
	return raw
}

// scanExampleFields collects example-tagged fields of the struct whose body
// starts at the given line index.
func scanExampleFields(lines []string, start int) (map[string]any, int) {
	fields := make(map[string]any)
	j := start
	for ; j < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[j]), "}"); j++ {
		if m := exampleFieldRE.FindStringSubmatch(lines[j]); m != nil {
			fields[m[1]] = parseExampleValue(m[2])
		}
	}
	return fields, j
}

// extractStructExamples walks the files for structs carrying example field
// tags and indexes them by struct name. Package-qualified model references
// in body-parameter and response annotations are chased into the imported
// package via the locator and stored under both the qualified and the bare
// name.
func (p *Parser) extractStructExamples(files []string, locator ImportLocator) map[string]map[string]any {
	examples := make(map[string]map[string]any)

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		content := string(data)
		lines := strings.Split(content, "\n")

		for i := 0; i < len(lines); i++ {
			m := structRE.FindStringSubmatch(lines[i])
			if m == nil {
				continue
			}
			fields, next := scanExampleFields(lines, i+1)
			if len(fields) > 0 {
				examples[m[1]] = fields
			}
			i = next
		}

		p.chaseImportedExamples(content, locator, examples)
	}
	return examples
}

// chaseImportedExamples resolves qualified model references found in the
// file's annotations into their declaring package and pulls example tags
// from there.
func (p *Parser) chaseImportedExamples(content string, locator ImportLocator, examples map[string]map[string]any) {
	refs := make(map[string]struct{})
	for _, m := range paramBodyModelRE.FindAllStringSubmatch(content, -1) {
		refs[m[1]] = struct{}{}
	}
	for _, m := range responseModelRE.FindAllStringSubmatch(content, -1) {
		refs[m[1]] = struct{}{}
	}
	if len(refs) == 0 || locator == nil {
		return
	}

	var bindings []spec.ImportBinding
	for ref := range refs {
		if _, ok := examples[ref]; ok {
			continue
		}
		alias, name, found := strings.Cut(ref, ".")
		if !found {
			continue
		}
		if bindings == nil {
			bindings = ExtractImports(content)
		}
		for _, b := range bindings {
			if b.Alias != alias {
				continue
			}
			dir, ok := locator.Locate(b.Path)
			if !ok {
				break
			}
			if fields := p.scanPackageForExamples(dir, name); len(fields) > 0 {
				examples[ref] = fields
				examples[name] = fields
			}
			break
		}
	}
}

// scanPackageForExamples looks through a package directory for the named
// struct and returns its example-tagged fields.
func (p *Parser) scanPackageForExamples(dir, structName string) map[string]any {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	declRE := regexp.MustCompile(`type\s+` + regexp.QuoteMeta(structName) + `\s+struct\s*\{`)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".go") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		lines := strings.Split(string(data), "\n")
		for i := 0; i < len(lines); i++ {
			if declRE.MatchString(lines[i]) {
				fields, _ := scanExampleFields(lines, i+1)
				if len(fields) > 0 {
					return fields
				}
				return nil
			}
		}
	}
	return nil
}
