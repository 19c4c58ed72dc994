package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/example/openapi-extract/internal/spec"
)

var (
	routerRE     = regexp.MustCompile(`/(.+?)\s+\[(\w+)]$`)
	whitespaceRE = regexp.MustCompile(`\s+`)
)

const exampleMarker = "{example="

// normalizeMimeType expands the shorthand media type names used in accept
// and produce annotations. Bare tokens without a '/' get an application/
// prefix; full media types pass through.
func normalizeMimeType(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "json":
		return "application/json"
	case "xml":
		return "application/xml"
	case "plain", "text":
		return "text/plain"
	case "html":
		return "text/html"
	case "form", "form-data", "multipart":
		return "multipart/form-data"
	case "form-urlencoded", "urlencoded":
		return "application/x-www-form-urlencoded"
	case "octet-stream", "binary":
		return "application/octet-stream"
	default:
		mime = strings.TrimSpace(mime)
		if !strings.Contains(mime, "/") {
			return "application/" + mime
		}
		return mime
	}
}

// splitQuoted collapses whitespace and splits into tokens, keeping
// double-quoted runs together. Quotes stay on the token.
func splitQuoted(s string) []string {
	s = whitespaceRE.ReplaceAllString(strings.ReplaceAll(s, "\t", " "), " ")

	var tokens []string
	var b strings.Builder
	inQuotes := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			b.WriteRune(r)
		case r == ' ' && !inQuotes:
			if b.Len() > 0 {
				tokens = append(tokens, b.String())
				b.Reset()
			}
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}

// mergeBraceTokens rejoins a split "{object Name}" data type into a single
// token. Single-token markers like "{object}" pass through untouched.
func mergeBraceTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); {
		tok := tokens[i]
		i++
		for strings.HasPrefix(tok, "{") && !strings.HasSuffix(tok, "}") && i < len(tokens) {
			tok += " " + tokens[i]
			i++
		}
		out = append(out, tok)
	}
	return out
}

// splitExample separates a trailing {example=JSON} fragment from the
// annotation body. The fragment's closing brace is optional.
func splitExample(s string) (body, example string) {
	idx := strings.Index(s, exampleMarker)
	if idx < 0 {
		return s, ""
	}
	example = s[idx+len(exampleMarker):]
	example = strings.TrimSuffix(example, "}")
	return s[:idx], example
}

func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}

func refTail(ref string) string {
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

// buildOperation folds one contiguous annotation run into an operation.
// The run must contain a parseable router annotation; any other malformed
// annotation is logged and skipped without failing the operation.
func (p *Parser) buildOperation(anns []Annotation, examples map[string]map[string]any) (spec.ParsedOperation, error) {
	op := &spec.Operation{Responses: make(map[string]*spec.Response)}
	var path, method string
	var bodyModel string

	for _, ann := range anns {
		switch ann.Kind {
		case KindID:
			op.OperationID = ann.Value
		case KindSummary:
			op.Summary = ann.Value
		case KindDescription:
			op.Description = ann.Value
		case KindTags:
			for _, tag := range strings.Split(ann.Value, ",") {
				op.Tags = append(op.Tags, strings.TrimSpace(tag))
			}
		case KindRouter, KindDeprecatedRouter:
			m := routerRE.FindStringSubmatch(ann.Value)
			if m == nil {
				return spec.ParsedOperation{}, fmt.Errorf("invalid router format: %s", ann.Value)
			}
			path = "/" + m[1]
			method = strings.ToLower(m[2])
			if ann.Kind == KindDeprecatedRouter {
				op.Deprecated = true
			}
		case KindDeprecated:
			op.Deprecated = true
		case KindAccept:
			for _, mime := range strings.Split(ann.Value, ",") {
				normalized := normalizeMimeType(mime)
				op.Consumes = append(op.Consumes, normalized)
				if op.RequestBody == nil {
					op.RequestBody = &spec.RequestBody{
						Required: true,
						Content:  make(map[string]*spec.MediaType),
					}
				}
				if _, ok := op.RequestBody.Content[normalized]; !ok {
					op.RequestBody.Content[normalized] = &spec.MediaType{}
				}
			}
		case KindProduce:
			for _, mime := range strings.Split(ann.Value, ",") {
				op.Produces = append(op.Produces, normalizeMimeType(mime))
			}
		case KindParam:
			param, err := p.parseParameter(ann.Value)
			if err != nil {
				p.log.Warn("skipping malformed parameter", "value", ann.Value, "error", err)
				continue
			}
			if param.In == "body" {
				bodyModel = p.foldBodyParameter(op, param)
			} else {
				op.Parameters = append(op.Parameters, param)
			}
		case KindRequestBody:
			if op.RequestBody == nil {
				op.RequestBody = &spec.RequestBody{
					Description: ann.Value,
					Required:    true,
					Content:     make(map[string]*spec.MediaType),
				}
			}
			if model := requestBodyModel(ann.Value); model != "" {
				bodyModel = model
			}
		case KindResponse:
			resp, err := p.parseResponse(ann.Value)
			if err != nil {
				p.log.Warn("skipping malformed response", "value", ann.Value, "error", err)
				continue
			}
			op.Responses[resp.Code] = resp
		case KindSecurity:
			op.Security = append(op.Security, parseSecurityRequirement(ann.Value))
		}
	}

	if method == "" {
		return spec.ParsedOperation{}, fmt.Errorf("operation annotations carry no router")
	}

	if bodyModel != "" {
		p.attachBodyExample(op, bodyModel, examples)
	}
	if op.OperationID == "" {
		op.OperationID = method + strings.ReplaceAll(path, "/", "_")
	}
	p.finishResponses(op, examples)

	return spec.ParsedOperation{Path: path, Method: method, Operation: op}, nil
}

// requestBodyModel extracts a "{object Name}" (or bare "{Name}") model
// reference embedded in a request body annotation value.
func requestBodyModel(value string) string {
	start := strings.Index(value, "{")
	end := strings.Index(value, "}")
	if start < 0 || end < start {
		return ""
	}
	fields := strings.Fields(value[start+1 : end])
	switch {
	case len(fields) >= 2 && fields[0] == "object":
		return fields[1]
	case len(fields) >= 1:
		return fields[0]
	default:
		return ""
	}
}

// parseParameter parses one parameter annotation value:
//
//	name location dataType required "description" [attributes...]
func (p *Parser) parseParameter(value string) (spec.Parameter, error) {
	body, example := splitExample(value)

	tokens := mergeBraceTokens(splitQuoted(body))
	if len(tokens) < 5 {
		return spec.Parameter{}, fmt.Errorf("parameter needs name, location, dataType, required and description, got %q", strings.TrimSpace(body))
	}

	param := spec.Parameter{
		Name:        tokens[0],
		In:          tokens[1],
		Required:    strings.EqualFold(tokens[3], "true"),
		Description: parameterDescription(tokens[4:]),
	}

	schema, err := dataTypeSchema(tokens[2])
	if err != nil {
		return spec.Parameter{}, err
	}
	param.Schema = schema

	if len(tokens) > 5 {
		applyParameterAttributes(&param, tokens[5:])
	}

	if example != "" {
		var v any
		if err := json.Unmarshal([]byte(example), &v); err != nil {
			p.log.Warn("unparseable parameter example, dropping it", "example", example)
		} else {
			param.Example = v
		}
	}
	return param, nil
}

// parameterDescription takes the quoted description token, tolerating
// descriptions whose quotes enclose several tokens.
func parameterDescription(tokens []string) string {
	first := tokens[0]
	if strings.HasPrefix(first, `"`) && strings.HasSuffix(first, `"`) && len(first) >= 2 {
		return first[1 : len(first)-1]
	}
	joined := strings.Join(tokens, " ")
	start := strings.Index(joined, `"`)
	end := strings.LastIndex(joined, `"`)
	if start >= 0 && start < end {
		return joined[start+1 : end]
	}
	return joined
}

// dataTypeSchema maps a parameter data type token onto a schema:
// "{object Name}" and "{array Name}" reference declared types, "[]prim"
// is an array of primitives, dotted names reference qualified types, and
// everything else maps as a primitive.
func dataTypeSchema(dataType string) (*spec.Schema, error) {
	switch {
	case strings.HasPrefix(dataType, "{") && strings.HasSuffix(dataType, "}"):
		fields := strings.Fields(dataType[1 : len(dataType)-1])
		if len(fields) < 2 {
			return nil, fmt.Errorf("invalid schema reference %q", dataType)
		}
		ref := &spec.Schema{Ref: spec.NormalizeRef(fields[1])}
		switch fields[0] {
		case "object":
			return ref, nil
		case "array":
			return &spec.Schema{Type: "array", Items: ref}, nil
		default:
			return nil, fmt.Errorf("unknown schema kind %q", fields[0])
		}
	case strings.HasPrefix(dataType, "[]"):
		items, err := dataTypeSchema(dataType[2:])
		if err != nil {
			return nil, err
		}
		return &spec.Schema{Type: "array", Items: items}, nil
	case strings.Contains(dataType, "."):
		return &spec.Schema{Ref: spec.NormalizeRef(dataType)}, nil
	default:
		return mapGoType(dataType), nil
	}
}

func applyParameterAttributes(param *spec.Parameter, attrs []string) {
	for _, attr := range attrs {
		switch {
		case strings.HasPrefix(attr, "Format(") && strings.HasSuffix(attr, ")"):
			param.Schema.Format = attr[len("Format(") : len(attr)-1]
		case strings.HasPrefix(attr, "Enums(") && strings.HasSuffix(attr, ")"):
			for _, v := range strings.Split(attr[len("Enums("):len(attr)-1], ",") {
				param.Schema.Enum = append(param.Schema.Enum, strings.TrimSpace(v))
			}
		case strings.HasPrefix(attr, "Default(") && strings.HasSuffix(attr, ")"):
			param.Schema.Default = attr[len("Default(") : len(attr)-1]
		case strings.HasPrefix(attr, "Example(") && strings.HasSuffix(attr, ")"):
			raw := attr[len("Example(") : len(attr)-1]
			var v any
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				param.Example = raw
			} else {
				param.Example = v
			}
		}
	}
}

// parseResponse parses one response annotation value:
//
//	code [description] [{object|array} TypeName] [description] [{example=JSON}]
//
// The first brace-enclosed token after the code is the type marker; the
// token following it is the type name; every other token joins into the
// description.
func (p *Parser) parseResponse(value string) (*spec.Response, error) {
	body, example := splitExample(value)

	tokens := splitQuoted(body)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("response needs at least a status code")
	}

	resp := &spec.Response{Code: tokens[0]}

	markerIdx := -1
	for i := 1; i < len(tokens); i++ {
		if strings.HasPrefix(tokens[i], "{") && strings.HasSuffix(tokens[i], "}") {
			markerIdx = i
			break
		}
	}

	var schema *spec.Schema
	var descTokens []string
	switch {
	case markerIdx >= 0 && markerIdx+1 < len(tokens):
		kind := strings.Trim(tokens[markerIdx], "{}")
		typeName := tokens[markerIdx+1]
		switch kind {
		case "object":
			schema = &spec.Schema{Ref: spec.NormalizeRef(typeName)}
		case "array":
			schema = &spec.Schema{
				Type:  "array",
				Items: &spec.Schema{Ref: spec.NormalizeRef(typeName)},
			}
		default:
			p.log.Warn("unknown response schema kind", "kind", kind)
		}
		descTokens = append(descTokens, tokens[1:markerIdx]...)
		descTokens = append(descTokens, tokens[markerIdx+2:]...)
	case markerIdx >= 0:
		// A trailing marker with no type name contributes nothing; keep it
		// out of the description.
		p.log.Warn("response schema marker without a type name", "value", value)
		descTokens = tokens[1:markerIdx]
	default:
		descTokens = tokens[1:]
	}
	resp.Description = unquote(strings.Join(descTokens, " "))

	var exampleValue any
	if example != "" {
		if err := json.Unmarshal([]byte(example), &exampleValue); err != nil {
			p.log.Warn("unparseable response example, dropping it", "example", example)
			exampleValue = nil
		}
	}

	if schema != nil || exampleValue != nil {
		resp.Content = map[string]*spec.MediaType{
			"application/json": {Schema: schema, Example: exampleValue},
		}
	}
	return resp, nil
}

// foldBodyParameter merges a body-located parameter into the operation's
// request body and returns the referenced model name for example lookup.
// Body parameters never reach Operation.Parameters.
func (p *Parser) foldBodyParameter(op *spec.Operation, param spec.Parameter) string {
	if op.RequestBody == nil {
		op.RequestBody = &spec.RequestBody{
			Description: param.Description,
			Required:    param.Required,
			Content:     make(map[string]*spec.MediaType),
		}
	}

	model := param.Name
	if param.Schema != nil {
		switch {
		case param.Schema.Ref != "":
			model = refTail(param.Schema.Ref)
		case param.Schema.Type == "array" && param.Schema.Items != nil && param.Schema.Items.Ref != "":
			model = refTail(param.Schema.Items.Ref)
		case param.Schema.Type != "":
			model = param.Schema.Type
		}

		if len(op.RequestBody.Content) == 0 {
			op.RequestBody.Content["application/json"] = &spec.MediaType{Schema: param.Schema}
		} else {
			for _, mt := range op.RequestBody.Content {
				mt.Schema = param.Schema
			}
		}
	}
	return model
}

// modelNameCandidates returns the lookup keys for a model name: the name
// itself, then its bare tail when package-qualified.
func modelNameCandidates(model string) []string {
	names := []string{model}
	if i := strings.LastIndex(model, "."); i >= 0 && i+1 < len(model) {
		names = append(names, model[i+1:])
	}
	return names
}

// attachBodyExample enriches the request body with the struct example
// declared on the referenced model, when one exists.
func (p *Parser) attachBodyExample(op *spec.Operation, model string, examples map[string]map[string]any) {
	for _, name := range modelNameCandidates(model) {
		ex, ok := examples[name]
		if !ok || len(ex) == 0 {
			continue
		}
		if op.RequestBody == nil {
			op.RequestBody = &spec.RequestBody{
				Required: true,
				Content:  make(map[string]*spec.MediaType),
			}
		}
		if len(op.RequestBody.Content) == 0 {
			op.RequestBody.Content["application/json"] = &spec.MediaType{
				Schema:  &spec.Schema{Ref: spec.NormalizeRef(model)},
				Example: ex,
			}
		} else {
			for _, mt := range op.RequestBody.Content {
				mt.Example = ex
				if mt.Schema == nil {
					mt.Schema = &spec.Schema{Ref: spec.NormalizeRef(model)}
				}
			}
		}
		return
	}
}

// finishResponses applies the response post-pass: empty-content responses
// get one entry keyed by the first declared produce type (falling back to
// application/json), and referenced models contribute declared struct
// examples to media types that carry none.
func (p *Parser) finishResponses(op *spec.Operation, examples map[string]map[string]any) {
	contentType := "application/json"
	if len(op.Produces) > 0 {
		contentType = op.Produces[0]
	}

	for _, resp := range op.Responses {
		if len(resp.Content) == 0 {
			if resp.Content == nil {
				resp.Content = make(map[string]*spec.MediaType)
			}
			resp.Content[contentType] = &spec.MediaType{}
			continue
		}
		for _, mt := range resp.Content {
			if mt.Example != nil || mt.Schema == nil {
				continue
			}
			switch {
			case mt.Schema.Ref != "":
				for _, name := range modelNameCandidates(refTail(mt.Schema.Ref)) {
					if ex, ok := examples[name]; ok && len(ex) > 0 {
						mt.Example = ex
						break
					}
				}
			case mt.Schema.Items != nil && mt.Schema.Items.Ref != "":
				for _, name := range modelNameCandidates(refTail(mt.Schema.Items.Ref)) {
					if ex, ok := examples[name]; ok && len(ex) > 0 {
						mt.Example = []any{ex}
						break
					}
				}
			}
		}
	}
}
