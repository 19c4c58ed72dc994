// Package parser implements the annotation resolution engine: it scans
// comment-annotated source files and resolves them, together with
// cross-package type declarations, into the document model of
// internal/spec.
package parser

import (
	"regexp"
	"strings"
)

// Kind classifies a recognized annotation keyword. Unknown keywords map to
// KindOther with the raw name preserved on the Annotation.
type Kind int

const (
	KindOther Kind = iota

	// General API info.
	KindTitle
	KindVersion
	KindDescription
	KindSummary
	KindTermsOfService
	KindContact
	KindLicense

	// Servers (OpenAPI 3.x) and legacy Swagger 2.0 equivalents.
	KindServer
	KindHost
	KindBasePath
	KindAccept
	KindProduce
	KindSchemes

	KindTag

	// Security.
	KindSecurityDefinitions
	KindSecurityScheme
	KindSecurity

	KindExternalDocs

	// Operation annotations.
	KindID
	KindTags
	KindRouter
	KindDeprecatedRouter
	KindParam
	KindRequestBody
	KindResponse
	KindHeader
	KindDeprecated
)

// kindNames maps lowercased keywords to their Kind. The legacy success and
// failure markers alias onto KindResponse.
var kindNames = map[string]Kind{
	"title":               KindTitle,
	"version":             KindVersion,
	"description":         KindDescription,
	"summary":             KindSummary,
	"termsofservice":      KindTermsOfService,
	"contact":             KindContact,
	"license":             KindLicense,
	"server":              KindServer,
	"host":                KindHost,
	"basepath":            KindBasePath,
	"accept":              KindAccept,
	"produce":             KindProduce,
	"schemes":             KindSchemes,
	"tag":                 KindTag,
	"securitydefinitions": KindSecurityDefinitions,
	"securityscheme":      KindSecurityScheme,
	"security":            KindSecurity,
	"externaldocs":        KindExternalDocs,
	"id":                  KindID,
	"tags":                KindTags,
	"router":              KindRouter,
	"deprecatedrouter":    KindDeprecatedRouter,
	"param":               KindParam,
	"requestbody":         KindRequestBody,
	"response":            KindResponse,
	"success":             KindResponse,
	"failure":             KindResponse,
	"header":              KindHeader,
	"deprecated":          KindDeprecated,
}

// Annotation is one classified comment line. It is ephemeral: builders
// consume annotations immediately and discard them.
type Annotation struct {
	Kind      Kind
	Name      string // raw keyword, meaningful for KindOther
	Attribute string // dotted attribute path after the keyword, may be empty
	Value     string
}

var (
	annotationRE  = regexp.MustCompile(`//\s*@(\w+)(?:\.([\w.]+))?\s+(.+)$`)
	commentTextRE = regexp.MustCompile(`//\s*(.+)$`)
)

// classifyKeyword resolves a keyword case-insensitively.
func classifyKeyword(keyword string) Kind {
	if k, ok := kindNames[strings.ToLower(keyword)]; ok {
		return k
	}
	return KindOther
}

// ParseAnnotation classifies one source line as an annotation. It returns
// false when the line carries no "@keyword value" comment.
func ParseAnnotation(line string) (Annotation, bool) {
	m := annotationRE.FindStringSubmatch(line)
	if m == nil {
		return Annotation{}, false
	}
	return Annotation{
		Kind:      classifyKeyword(m[1]),
		Name:      m[1],
		Attribute: m[2],
		Value:     m[3],
	}, true
}

// ParseCommentText extracts the text of a bare comment line, used for
// multi-line description continuation inside block comments.
func ParseCommentText(line string) (string, bool) {
	m := commentTextRE.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}
