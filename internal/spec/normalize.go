package spec

import "strings"

const refPrefix = "#/components/schemas/"

// externalRefExtensions are document suffixes that mark a $ref as pointing
// at an external file; such refs are never rewritten.
var externalRefExtensions = []string{".json", ".yaml", ".yml"}

// IsExternalRef reports whether ref points at an external document.
func IsExternalRef(ref string) bool {
	for _, ext := range externalRefExtensions {
		if strings.HasSuffix(ref, ext) {
			return true
		}
	}
	return false
}

// NormalizeRef rewrites a $ref value into canonical
// "#/components/schemas/<Name>" form. Already-canonical refs and external
// document refs pass through unchanged; a ref missing the leading '#' gets
// one; a bare name is wrapped; for any other path the last segment is taken
// as the schema name.
func NormalizeRef(ref string) string {
	switch {
	case ref == "":
		return ref
	case strings.HasPrefix(ref, refPrefix):
		return ref
	case strings.HasPrefix(ref, "/components/schemas/"):
		return "#" + ref
	case !strings.Contains(ref, "/"):
		return refPrefix + ref
	case IsExternalRef(ref):
		return ref
	default:
		parts := strings.Split(ref, "/")
		return refPrefix + parts[len(parts)-1]
	}
}

// RefName extracts the registry key from a canonical $ref. It returns ""
// for external refs and refs in any other shape.
func RefName(ref string) string {
	if name, ok := strings.CutPrefix(ref, refPrefix); ok {
		return name
	}
	return ""
}

// NormalizeDocument canonicalizes every $ref reachable from the document
// and then closes the schema registry: any ref whose target is absent gets
// a placeholder entry, so no dangling reference survives. The operation is
// idempotent.
func NormalizeDocument(doc *Document) {
	walkDocument(doc, func(s *Schema) {
		if s.Ref != "" {
			s.Ref = NormalizeRef(s.Ref)
		}
	})

	if doc.Components == nil {
		doc.Components = &Components{Schemas: make(map[string]*Schema)}
	}
	if doc.Components.Schemas == nil {
		doc.Components.Schemas = make(map[string]*Schema)
	}
	registry := doc.Components.Schemas

	// Closure pass. Inserting placeholders can expose no new refs
	// (placeholders are empty objects), so one collect+insert round is
	// enough to reach a closed registry.
	refs := make(map[string]struct{})
	walkDocument(doc, func(s *Schema) {
		if name := RefName(s.Ref); name != "" {
			refs[name] = struct{}{}
		}
	})
	for name := range refs {
		if _, ok := registry[name]; !ok {
			registry[name] = &Schema{Type: "object"}
		}
	}
}

// walkDocument visits every schema reachable from the document exactly
// once, cycle-safe via a visited set.
func walkDocument(doc *Document, visit func(*Schema)) {
	seen := make(map[*Schema]bool)

	for _, item := range doc.Paths {
		if item == nil {
			continue
		}
		for _, op := range []*Operation{item.Get, item.Post, item.Put, item.Delete, item.Options, item.Head, item.Patch, item.Trace} {
			walkOperation(op, visit, seen)
		}
		for i := range item.Parameters {
			walkSchema(item.Parameters[i].Schema, visit, seen)
		}
	}

	if doc.Components != nil {
		for _, s := range doc.Components.Schemas {
			walkSchema(s, visit, seen)
		}
	}
}

func walkOperation(op *Operation, visit func(*Schema), seen map[*Schema]bool) {
	if op == nil {
		return
	}
	for i := range op.Parameters {
		walkSchema(op.Parameters[i].Schema, visit, seen)
	}
	if op.RequestBody != nil {
		for _, mt := range op.RequestBody.Content {
			if mt != nil {
				walkSchema(mt.Schema, visit, seen)
			}
		}
	}
	for _, resp := range op.Responses {
		if resp == nil {
			continue
		}
		for _, mt := range resp.Content {
			if mt != nil {
				walkSchema(mt.Schema, visit, seen)
			}
		}
	}
}

func walkSchema(s *Schema, visit func(*Schema), seen map[*Schema]bool) {
	if s == nil || seen[s] {
		return
	}
	seen[s] = true
	visit(s)

	walkSchema(s.Items, visit, seen)
	walkSchema(s.AdditionalProperties, visit, seen)
	walkSchema(s.Not, visit, seen)
	for _, p := range s.Properties {
		walkSchema(p, visit, seen)
	}
	for _, c := range s.AllOf {
		walkSchema(c, visit, seen)
	}
	for _, c := range s.AnyOf {
		walkSchema(c, visit, seen)
	}
	for _, c := range s.OneOf {
		walkSchema(c, visit, seen)
	}
}
