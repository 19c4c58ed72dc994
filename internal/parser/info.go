package parser

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/example/openapi-extract/internal/spec"
)

// infoState is the pending-accumulator state threaded through the info
// scan. Server and tag entities arrive as consecutive attribute lines with
// no explicit terminator, so partially-built values live here until their
// commit rule fires.
type infoState struct {
	pendingServer *spec.Server
	currentTag    string
	lastOAuth2    string // name of the most recently declared oauth2 scheme
	inBlock       bool
	desc          strings.Builder
	contact       spec.Contact
	license       spec.License
}

// ParseDocumentInfo consumes the ordered annotation stream of the
// designated entry file and builds the global API metadata. An unreadable
// file is fatal; malformed annotations are logged and skipped.
func (p *Parser) ParseDocumentInfo(entryFile string) (*spec.DocumentInfo, error) {
	f, err := os.Open(entryFile)
	if err != nil {
		return nil, fmt.Errorf("read entry file %s: %w", entryFile, err)
	}
	defer f.Close()

	doc := spec.NewDocumentInfo()
	st := &infoState{}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		p.applyInfoLine(doc, st, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read entry file %s: %w", entryFile, err)
	}

	p.finishInfo(doc, st)
	return doc, nil
}

// applyInfoLine is the per-line step function over the explicit state.
func (p *Parser) applyInfoLine(doc *spec.DocumentInfo, st *infoState, line string) {
	if ann, ok := ParseAnnotation(line); ok {
		p.applyInfoAnnotation(doc, st, ann)
	} else if text, ok := ParseCommentText(line); ok {
		if st.inBlock {
			st.desc.WriteString(text)
			st.desc.WriteByte('\n')
		}
	} else if st.inBlock && st.desc.Len() > 0 {
		// Non-comment line terminates the block description.
		doc.Info.Description = strings.TrimSpace(st.desc.String())
		st.desc.Reset()
		st.inBlock = false
	}

	if strings.HasPrefix(strings.TrimSpace(line), "/*") {
		st.inBlock = true
		st.desc.Reset()
	}
	if strings.HasSuffix(strings.TrimRight(line, " \t"), "*/") {
		st.inBlock = false
		if st.desc.Len() > 0 {
			doc.Info.Description = strings.TrimSpace(st.desc.String())
			st.desc.Reset()
		}
	}
}

func (p *Parser) applyInfoAnnotation(doc *spec.DocumentInfo, st *infoState, ann Annotation) {
	switch ann.Kind {
	case KindTitle:
		doc.Info.Title = ann.Value
	case KindVersion:
		doc.Info.Version = ann.Value
	case KindSummary:
		doc.Info.Summary = ann.Value
	case KindTermsOfService:
		doc.Info.TermsOfService = ann.Value
	case KindDescription:
		if st.inBlock {
			st.desc.WriteString(ann.Value)
			st.desc.WriteByte('\n')
		} else {
			doc.Info.Description = ann.Value
		}
	case KindContact:
		switch ann.Attribute {
		case "name":
			st.contact.Name = ann.Value
		case "url":
			st.contact.URL = ann.Value
		case "email":
			st.contact.Email = ann.Value
		default:
			p.log.Warn("unknown contact attribute", "attribute", ann.Attribute)
		}
	case KindLicense:
		switch ann.Attribute {
		case "name":
			st.license.Name = ann.Value
		case "url":
			st.license.URL = ann.Value
		case "identifier":
			st.license.Identifier = ann.Value
		default:
			p.log.Warn("unknown license attribute", "attribute", ann.Attribute)
		}
	case KindServer:
		p.applyServerAttribute(doc, st, ann)
	case KindHost:
		doc.Host = ann.Value
	case KindBasePath:
		doc.BasePath = ann.Value
	case KindSchemes:
		doc.Schemes = append(doc.Schemes, strings.Fields(ann.Value)...)
	case KindAccept:
		doc.Consumes = append(doc.Consumes, normalizeMimeType(ann.Value))
	case KindProduce:
		doc.Produces = append(doc.Produces, normalizeMimeType(ann.Value))
	case KindTag:
		p.applyTagAttribute(doc, st, ann)
	case KindSecurityDefinitions:
		if ann.Attribute == "" {
			p.log.Warn("securityDefinitions annotation requires an attribute", "value", ann.Value)
			return
		}
		p.applySecurityDefinition(doc, st, ann.Attribute, ann.Value)
	case KindSecurityScheme:
		p.applySecuritySchemeUpdate(doc, ann.Attribute, ann.Value)
	case KindSecurity:
		doc.Security = append(doc.Security, parseSecurityRequirement(ann.Value))
	case KindExternalDocs:
		if doc.ExternalDocs == nil {
			doc.ExternalDocs = &spec.ExternalDocs{}
		}
		switch ann.Attribute {
		case "description":
			doc.ExternalDocs.Description = ann.Value
		case "url":
			doc.ExternalDocs.URL = ann.Value
		default:
			p.log.Warn("unknown externalDocs attribute", "attribute", ann.Attribute)
		}
	}
}

// applyServerAttribute implements the server commit rules: a description on
// a pending server commits it; a url on a pending server overwrites in
// place; either attribute starts a new pending server when none exists.
func (p *Parser) applyServerAttribute(doc *spec.DocumentInfo, st *infoState, ann Annotation) {
	switch ann.Attribute {
	case "url":
		if st.pendingServer == nil {
			st.pendingServer = &spec.Server{URL: ann.Value}
		} else {
			st.pendingServer.URL = ann.Value
		}
	case "description":
		if st.pendingServer != nil {
			st.pendingServer.Description = ann.Value
			doc.Servers = append(doc.Servers, *st.pendingServer)
			st.pendingServer = nil
		} else {
			st.pendingServer = &spec.Server{Description: ann.Value}
		}
	case "":
		p.log.Warn("server annotation requires an attribute", "value", ann.Value)
	default:
		p.log.Warn("unknown server attribute", "attribute", ann.Attribute)
	}
}

func (p *Parser) applyTagAttribute(doc *spec.DocumentInfo, st *infoState, ann Annotation) {
	switch ann.Attribute {
	case "name":
		st.currentTag = ann.Value
		for i := range doc.Tags {
			if doc.Tags[i].Name == ann.Value {
				return
			}
		}
		doc.Tags = append(doc.Tags, spec.Tag{Name: ann.Value})
	case "description":
		if st.currentTag == "" {
			p.log.Warn("tag description provided without a name", "value", ann.Value)
			return
		}
		for i := range doc.Tags {
			if doc.Tags[i].Name == st.currentTag {
				doc.Tags[i].Description = ann.Value
				return
			}
		}
	case "":
		// Legacy form: the value is a bare tag name.
		doc.Tags = append(doc.Tags, spec.Tag{Name: ann.Value})
	default:
		p.log.Warn("unknown tag attribute", "attribute", ann.Attribute)
	}
}

// normalizeFlowName folds the legacy flow spellings onto the OpenAPI 3
// flow names. It returns "" for an unknown flow type.
func normalizeFlowName(flow string) string {
	switch strings.ToLower(flow) {
	case "implicit":
		return "implicit"
	case "password":
		return "password"
	case "clientcredentials", "application":
		return "clientCredentials"
	case "authorizationcode", "accesscode":
		return "authorizationCode"
	default:
		return ""
	}
}

// flowOf returns the named flow object, creating it when asked.
func flowOf(flows *spec.OAuthFlows, name string, create bool) *spec.OAuthFlow {
	var slot **spec.OAuthFlow
	switch name {
	case "implicit":
		slot = &flows.Implicit
	case "password":
		slot = &flows.Password
	case "clientCredentials":
		slot = &flows.ClientCredentials
	case "authorizationCode":
		slot = &flows.AuthorizationCode
	default:
		return nil
	}
	if *slot == nil && create {
		*slot = &spec.OAuthFlow{Scopes: make(map[string]string)}
	}
	return *slot
}

// applySecurityDefinition handles @securityDefinitions.<kind>[...]. The
// attribute selects the scheme kind (and OAuth2 flow); the value is the
// scheme name — except for the dotted OAuth2 property forms, where the
// value is the URL or scope description.
func (p *Parser) applySecurityDefinition(doc *spec.DocumentInfo, st *infoState, attr, value string) {
	parts := strings.Split(attr, ".")
	kind := strings.ToLower(parts[0])

	// Dotted OAuth2 flow property updates, up to four segments:
	// oauth2.<flow>.<property>[.<scopeName>].
	if kind == "oauth2" && len(parts) >= 3 {
		p.applyOAuth2Property(doc, st, parts, value)
		return
	}

	switch kind {
	case "apikey":
		doc.SecuritySchemes[value] = &spec.SecurityScheme{Type: "apiKey"}
	case "basic":
		doc.SecuritySchemes[value] = &spec.SecurityScheme{Type: "http", Scheme: "basic"}
	case "bearer", "jwt":
		s := &spec.SecurityScheme{Type: "http", Scheme: "bearer"}
		if kind == "jwt" {
			s.BearerFormat = "JWT"
		}
		doc.SecuritySchemes[value] = s
	case "oauth2":
		if len(parts) < 2 {
			p.log.Warn("oauth2 security definition requires a flow type", "attribute", attr)
			return
		}
		flow := normalizeFlowName(parts[1])
		if flow == "" {
			p.log.Warn("unknown OAuth2 flow type", "flow", parts[1])
			return
		}
		flows := &spec.OAuthFlows{}
		flowOf(flows, flow, true)
		doc.SecuritySchemes[value] = &spec.SecurityScheme{Type: "oauth2", Flows: flows}
		st.lastOAuth2 = value
	case "openidconnect":
		s := &spec.SecurityScheme{Type: "openIdConnect"}
		if len(parts) >= 2 {
			s.OpenIDConnectURL = parts[1]
		}
		doc.SecuritySchemes[value] = s
	default:
		p.log.Warn("unknown security definition kind", "attribute", attr)
	}
}

// applyOAuth2Property sets a flow URL or scope on the most recently
// declared oauth2 scheme.
func (p *Parser) applyOAuth2Property(doc *spec.DocumentInfo, st *infoState, parts []string, value string) {
	scheme := doc.SecuritySchemes[st.lastOAuth2]
	if scheme == nil || scheme.Flows == nil {
		p.log.Warn("oauth2 property without a declared oauth2 scheme", "attribute", strings.Join(parts, "."))
		return
	}
	flowName := normalizeFlowName(parts[1])
	if flowName == "" {
		p.log.Warn("unknown OAuth2 flow type", "flow", parts[1])
		return
	}
	flow := flowOf(scheme.Flows, flowName, true)

	switch strings.ToLower(parts[2]) {
	case "authorizationurl":
		flow.AuthorizationURL = value
	case "tokenurl":
		flow.TokenURL = value
	case "refreshurl":
		flow.RefreshURL = value
	case "scopes":
		if len(parts) < 4 {
			p.log.Warn("oauth2 scope requires a scope name", "attribute", strings.Join(parts, "."))
			return
		}
		flow.Scopes[parts[3]] = value
	default:
		p.log.Warn("unknown OAuth2 flow property", "property", parts[2])
	}
}

// applySecuritySchemeUpdate handles @securityScheme.<name>.<property>
// updates to an already-declared scheme.
func (p *Parser) applySecuritySchemeUpdate(doc *spec.DocumentInfo, attr, value string) {
	parts := strings.Split(attr, ".")
	if len(parts) < 2 {
		p.log.Warn("securityScheme annotation requires name and property", "attribute", attr)
		return
	}
	scheme, ok := doc.SecuritySchemes[parts[0]]
	if !ok {
		p.log.Warn("security scheme not found", "name", parts[0])
		return
	}
	switch parts[1] {
	case "description":
		scheme.Description = value
	case "in":
		scheme.In = value
	case "name":
		scheme.Name = value
	default:
		p.log.Warn("unknown security scheme property", "property", parts[1])
	}
}

// parseSecurityRequirement parses "name [scope ...]" into a requirement map.
func parseSecurityRequirement(value string) map[string][]string {
	fields := strings.Fields(value)
	req := make(map[string][]string)
	if len(fields) == 0 {
		return req
	}
	scopes := []string{}
	if len(fields) > 1 {
		scopes = fields[1:]
	}
	req[fields[0]] = scopes
	return req
}

// finishInfo applies the end-of-file commit rules: attach accumulated
// contact/license, flush a pending server, and expand the legacy
// host/basePath/schemes triple into servers when none were declared.
func (p *Parser) finishInfo(doc *spec.DocumentInfo, st *infoState) {
	if st.desc.Len() > 0 {
		doc.Info.Description = strings.TrimSpace(st.desc.String())
	}
	if st.contact != (spec.Contact{}) {
		c := st.contact
		doc.Info.Contact = &c
	}
	if st.license.Name != "" {
		l := st.license
		doc.Info.License = &l
	}
	if st.pendingServer != nil && st.pendingServer.URL != "" {
		doc.Servers = append(doc.Servers, *st.pendingServer)
	}
	if len(doc.Servers) == 0 && doc.Host != "" {
		for _, scheme := range doc.Schemes {
			doc.Servers = append(doc.Servers, spec.Server{
				URL: fmt.Sprintf("%s://%s%s", scheme, doc.Host, doc.BasePath),
			})
		}
	}
}
