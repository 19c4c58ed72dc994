// Package generator assembles parsed API metadata into a complete OpenAPI
// document and serializes it to JSON and/or YAML files.
package generator

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/example/openapi-extract/internal/spec"
)

// DefaultOpenAPIVersion is emitted when no explicit version is configured.
const DefaultOpenAPIVersion = "3.1.1"

// Generator builds and writes the final document from the parser's three
// outputs: global metadata, operations, and the schema registry.
type Generator struct {
	info       *spec.DocumentInfo
	operations []spec.ParsedOperation
	schemas    map[string]*spec.Schema
	version    string
	log        *slog.Logger
}

// New returns a Generator. An empty version falls back to
// DefaultOpenAPIVersion; a nil logger falls back to slog.Default.
func New(info *spec.DocumentInfo, operations []spec.ParsedOperation, schemas map[string]*spec.Schema, version string, logger *slog.Logger) *Generator {
	if version == "" {
		version = DefaultOpenAPIVersion
	}
	if logger == nil {
		logger = slog.Default()
	}
	if info == nil {
		info = spec.NewDocumentInfo()
	}
	return &Generator{
		info:       info,
		operations: operations,
		schemas:    schemas,
		version:    version,
		log:        logger,
	}
}

// BuildDocument assembles the document: servers (synthesizing from legacy
// host/basePath/schemes when none were declared), components, tags,
// security, and the operations keyed by path and slotted by method. The
// result is reference-normalized and closed.
func (g *Generator) BuildDocument() *spec.Document {
	doc := &spec.Document{
		OpenAPI: g.version,
		Info:    g.info.Info,
		Paths:   make(map[string]*spec.PathItem),
	}

	doc.Servers = append(doc.Servers, g.info.Servers...)
	if len(doc.Servers) == 0 && g.info.Host != "" {
		for _, scheme := range g.info.Schemes {
			doc.Servers = append(doc.Servers, spec.Server{
				URL: fmt.Sprintf("%s://%s%s", scheme, g.info.Host, g.info.BasePath),
			})
		}
	}

	components := &spec.Components{Schemas: make(map[string]*spec.Schema)}
	for name, schema := range g.schemas {
		components.Schemas[name] = schema
	}
	if len(g.info.SecuritySchemes) > 0 {
		components.SecuritySchemes = g.info.SecuritySchemes
	}
	doc.Components = components

	doc.Tags = g.info.Tags
	doc.ExternalDocs = g.info.ExternalDocs
	doc.Security = g.info.Security

	for _, parsed := range g.operations {
		item, ok := doc.Paths[parsed.Path]
		if !ok {
			item = &spec.PathItem{}
			doc.Paths[parsed.Path] = item
		}

		// Lift path-located parameters onto the path item.
		for _, param := range parsed.Operation.Parameters {
			if param.In == "path" && !hasPathParameter(item.Parameters, param.Name) {
				item.Parameters = append(item.Parameters, param)
			}
		}

		if !slotOperation(item, parsed.Method, parsed.Operation) {
			g.log.Warn("unknown HTTP method, dropping operation",
				"method", parsed.Method, "path", parsed.Path)
		}
	}

	spec.NormalizeDocument(doc)
	return doc
}

func hasPathParameter(params []spec.Parameter, name string) bool {
	for i := range params {
		if params[i].Name == name && params[i].In == "path" {
			return true
		}
	}
	return false
}

func slotOperation(item *spec.PathItem, method string, op *spec.Operation) bool {
	switch method {
	case "get":
		item.Get = op
	case "post":
		item.Post = op
	case "put":
		item.Put = op
	case "delete":
		item.Delete = op
	case "options":
		item.Options = op
	case "head":
		item.Head = op
	case "patch":
		item.Patch = op
	case "trace":
		item.Trace = op
	default:
		return false
	}
	return true
}

// Generate builds the document and writes one file per requested output
// type into outputDir, creating the directory if needed. Supported types
// are "json" and "yaml"; anything else is logged and skipped.
func (g *Generator) Generate(outputDir string, outputTypes []string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", outputDir, err)
	}

	doc := g.BuildDocument()

	for _, outputType := range outputTypes {
		switch outputType {
		case "json":
			if err := g.writeJSON(filepath.Join(outputDir, "openapi.json"), doc); err != nil {
				return err
			}
		case "yaml", "yml":
			if err := g.writeYAML(filepath.Join(outputDir, "openapi.yaml"), doc); err != nil {
				return err
			}
		default:
			g.log.Warn("unknown output type, skipping", "type", outputType)
		}
	}
	return nil
}

func (g *Generator) writeJSON(path string, doc *spec.Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	g.log.Info("wrote OpenAPI JSON", "path", path)
	return nil
}

func (g *Generator) writeYAML(path string, doc *spec.Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	enc := yaml.NewEncoder(f)
	defer func() { _ = enc.Close() }()
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	g.log.Info("wrote OpenAPI YAML", "path", path)
	return nil
}
